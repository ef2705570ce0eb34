package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"citewatch.io/adapters"
	"citewatch.io/auth"
	"citewatch.io/common"
	"citewatch.io/model"
)

// PostgresStore is the primary relational Store, built on jackc/pgx/v5's
// pooled connections. It owns the entire schema in schema.go and wraps
// every multi-statement write in an explicit transaction, matching the
// reference database.py's `BEGIN`/`COMMIT`/`ROLLBACK` discipline.
type PostgresStore struct {
	pool  *pgxpool.Pool
	log   *common.ContextLogger
	cache *MetricsCache
}

// NewPostgresStore connects to dsn, applies the schema, and returns a ready
// Store.
func NewPostgresStore(ctx context.Context, dsn string, log *common.ContextLogger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

// SetMetricsCache wires an optional MetricsCache that SaveCrawlerStep and
// SaveMerges invalidate for the affected owner after each commit, so a
// cached /rest/metrics response never outlives the data it summarized. A
// nil cache (the default) makes both calls no-ops.
func (s *PostgresStore) SetMetricsCache(cache *MetricsCache) {
	s.cache = cache
}

func (s *PostgresStore) invalidateMetrics(ctx context.Context, owner string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "metrics:"+owner); err != nil {
		s.log.WithError(err).Warn("failed to invalidate metrics cache")
	}
	if err := s.cache.Invalidate(ctx, "publications:"+owner); err != nil {
		s.log.WithError(err).Warn("failed to invalidate metrics cache")
	}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// -- auth.UserStore --

func (s *PostgresStore) CreateUser(u *auth.User) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash, salt, auth_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.Username, u.PasswordHash, u.Salt, u.AuthToken, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db: create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByUsername(username string) (*auth.User, error) {
	return s.scanUser(context.Background(), `SELECT username, password_hash, salt, auth_token, created_at, updated_at
		FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) GetUserByToken(token string) (*auth.User, error) {
	return s.scanUser(context.Background(), `SELECT username, password_hash, salt, auth_token, created_at, updated_at
		FROM users WHERE auth_token = $1`, token)
}

func (s *PostgresStore) scanUser(ctx context.Context, query string, arg string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	var u auth.User
	err := row.Scan(&u.Username, &u.PasswordHash, &u.Salt, &u.AuthToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db: get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUser(u *auth.User) error {
	tag, err := s.pool.Exec(context.Background(),
		`UPDATE users SET password_hash=$2, salt=$3, auth_token=$4, updated_at=$5 WHERE username=$1`,
		u.Username, u.PasswordHash, u.Salt, u.AuthToken, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteUser(username string) (bool, error) {
	tag, err := s.pool.Exec(context.Background(), `DELETE FROM users WHERE username=$1`, username)
	if err != nil {
		return false, fmt.Errorf("db: delete user: %w", err)
	}
	return tag.RowsAffected() != 0, nil
}

func (s *PostgresStore) Usernames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("db: list usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// -- scheduler-facing operations --

func (s *PostgresStore) NextSourceTask(ctx context.Context) (*model.Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT owner, key, values_json, task_json, due FROM sources ORDER BY due ASC LIMIT 1`)
	var src model.Source
	var valuesRaw []byte
	err := row.Scan(&src.Owner, &src.Key, &valuesRaw, &src.TaskJSON, &src.Due)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db: next source task: %w", err)
	}
	if err := json.Unmarshal(valuesRaw, &src.Values); err != nil {
		return nil, fmt.Errorf("db: decode source values: %w", err)
	}
	return &src, nil
}

func (s *PostgresStore) GetSourceValues(ctx context.Context, owner string) (map[string]map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, values_json FROM sources WHERE owner=$1`, owner)
	if err != nil {
		return nil, fmt.Errorf("db: get source values: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var values map[string]string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("db: decode source values: %w", err)
		}
		out[key] = values
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateSourceValues(ctx context.Context, owner string, sources map[string]map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for key, values := range sources {
		var existingRaw []byte
		err := tx.QueryRow(ctx, `SELECT values_json FROM sources WHERE owner=$1 AND key=$2`, owner, key).Scan(&existingRaw)
		changed := true
		if err == nil {
			var existing map[string]string
			if jsonErr := json.Unmarshal(existingRaw, &existing); jsonErr == nil {
				changed = !stringMapsEqual(existing, values)
			}
		} else if err != pgx.ErrNoRows {
			return fmt.Errorf("db: read source values: %w", err)
		}

		if !changed {
			continue
		}

		raw, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("db: encode source values: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO sources (owner, key, values_json, task_json, due)
			 VALUES ($1, $2, $3, NULL, 0)
			 ON CONFLICT (owner, key) DO UPDATE
			 SET values_json = EXCLUDED.values_json, task_json = NULL, due = 0`,
			owner, key, raw)
		if err != nil {
			return fmt.Errorf("db: upsert source values: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func stringMapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// SaveCrawlerStep is the atomic per-step commit: every record a Step
// produced, plus the source's advanced task_json/due, land in one
// transaction or none of them do.
func (s *PostgresStore) SaveCrawlerStep(ctx context.Context, owner, sourceKey string, step *adapters.Step) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, author := range step.Authors {
		extra, err := json.Marshal(author.Extra)
		if err != nil {
			return fmt.Errorf("db: encode author extra: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO authors (owner, source, path, full_name, id, first_name, last_name, extra_json)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 ON CONFLICT (owner, source, path) DO UPDATE
			 SET full_name=EXCLUDED.full_name, id=EXCLUDED.id,
			     first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
			     extra_json=EXCLUDED.extra_json`,
			owner, sourceKey, author.Path, author.FullName, author.ID, author.FirstName, author.LastName, extra)
		if err != nil {
			return fmt.Errorf("db: upsert author: %w", err)
		}
	}

	upsertPub := func(pub model.Publication) error {
		extra, err := json.Marshal(pub.Extra)
		if err != nil {
			return fmt.Errorf("db: encode publication extra: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO publications (owner, source, path, by_self, name, id, year, ref, extra_json)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			 ON CONFLICT (owner, source, path) DO UPDATE
			 SET by_self = publications.by_self OR EXCLUDED.by_self,
			     name = EXCLUDED.name, id = EXCLUDED.id, year = COALESCE(EXCLUDED.year, publications.year),
			     ref = EXCLUDED.ref, extra_json = EXCLUDED.extra_json`,
			owner, sourceKey, pub.Path, pub.BySelf, pub.Name, pub.ID, pub.Year, pub.Ref, extra)
		if err != nil {
			return fmt.Errorf("db: upsert publication: %w", err)
		}
		for _, authorPath := range pub.Authors {
			_, err := tx.Exec(ctx,
				`INSERT INTO publication_authors (owner, source, pub_path, author_path)
				 VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
				owner, sourceKey, pub.Path, authorPath)
			if err != nil {
				return fmt.Errorf("db: upsert publication author edge: %w", err)
			}
		}
		return nil
	}

	for _, pub := range step.SelfPublications {
		if err := upsertPub(pub); err != nil {
			return err
		}
	}
	for citedPath, citations := range step.Citations {
		for _, citing := range citations {
			if err := upsertPub(citing); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO cites (owner, source, pub_path, cited_by)
				 VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
				owner, sourceKey, citedPath, citing.Path)
			if err != nil {
				return fmt.Errorf("db: upsert cites edge: %w", err)
			}
		}
	}

	taskJSON, err := adapters.EncodeTaskState(step.Stage, step.Error)
	if err != nil {
		return fmt.Errorf("db: encode task state: %w", err)
	}
	due := step.Due(time.Now())

	_, err = tx.Exec(ctx, `UPDATE sources SET task_json=$3, due=$4 WHERE owner=$1 AND key=$2`,
		owner, sourceKey, taskJSON, due)
	if err != nil {
		return fmt.Errorf("db: advance source: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.invalidateMetrics(ctx, owner)
	return nil
}

func (s *PostgresStore) SaveMerges(ctx context.Context, owner string, merges []model.Merge) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM merges WHERE owner=$1`, owner); err != nil {
		return fmt.Errorf("db: clear merges: %w", err)
	}
	for _, m := range merges {
		_, err := tx.Exec(ctx,
			`INSERT INTO merges (owner, source_a, source_b, pub_a, pub_b, similarity) VALUES ($1,$2,$3,$4,$5,$6)`,
			owner, m.SourceA, m.SourceB, m.PubA, m.PubB, m.Similarity)
		if err != nil {
			return fmt.Errorf("db: insert merge: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.invalidateMetrics(ctx, owner)
	return nil
}

func (s *PostgresStore) GetSelfPublications(ctx context.Context, owner string) ([]model.Publication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, path, name, id, year, ref
		 FROM publications WHERE owner=$1 AND by_self = true ORDER BY source, path`, owner)
	if err != nil {
		return nil, fmt.Errorf("db: get self publications: %w", err)
	}
	defer rows.Close()

	var pubs []model.Publication
	for rows.Next() {
		var p model.Publication
		p.Owner = owner
		p.BySelf = true
		if err := rows.Scan(&p.Source, &p.Path, &p.Name, &p.ID, &p.Year, &p.Ref); err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range pubs {
		count, err := s.CiteCount(ctx, owner, pubs[i].Source, pubs[i].Path)
		if err != nil {
			return nil, err
		}
		pubs[i].Extra = map[string]any{"cite_count": count}

		authorRows, err := s.pool.Query(ctx,
			`SELECT author_path FROM publication_authors WHERE owner=$1 AND source=$2 AND pub_path=$3`,
			owner, pubs[i].Source, pubs[i].Path)
		if err != nil {
			return nil, fmt.Errorf("db: get publication authors: %w", err)
		}
		for authorRows.Next() {
			var path string
			if err := authorRows.Scan(&path); err != nil {
				authorRows.Close()
				return nil, err
			}
			pubs[i].Authors = append(pubs[i].Authors, path)
		}
		authorRows.Close()
	}

	return pubs, nil
}

func (s *PostgresStore) GetMerges(ctx context.Context, owner string) ([]model.Merge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_a, source_b, pub_a, pub_b, similarity FROM merges WHERE owner=$1`, owner)
	if err != nil {
		return nil, fmt.Errorf("db: get merges: %w", err)
	}
	defer rows.Close()

	var merges []model.Merge
	for rows.Next() {
		m := model.Merge{Owner: owner}
		if err := rows.Scan(&m.SourceA, &m.SourceB, &m.PubA, &m.PubB, &m.Similarity); err != nil {
			return nil, err
		}
		merges = append(merges, m)
	}
	return merges, rows.Err()
}

func (s *PostgresStore) GetSourcePublications(ctx context.Context, owner, source string) ([]model.Publication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, by_self, name, id, year, ref FROM publications
		 WHERE owner=$1 AND source=$2 AND by_self ORDER BY path`,
		owner, source)
	if err != nil {
		return nil, fmt.Errorf("db: get source publications: %w", err)
	}
	defer rows.Close()

	var pubs []model.Publication
	for rows.Next() {
		p := model.Publication{Owner: owner, Source: source}
		if err := rows.Scan(&p.Path, &p.BySelf, &p.Name, &p.ID, &p.Year, &p.Ref); err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}

func (s *PostgresStore) CiteCount(ctx context.Context, owner, source, pubPath string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM cites WHERE owner=$1 AND source=$2 AND pub_path=$3`,
		owner, source, pubPath).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db: cite count: %w", err)
	}
	return count, nil
}
