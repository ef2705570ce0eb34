// Package db provides the persistence layer: a Postgres-backed relational
// Store (db.PostgresStore via jackc/pgx/v5), a separate GORM-managed audit log
// (db.AuditStore), and an optional Redis response cache (db.MetricsCache).
package db

import (
	"context"
	"errors"

	"citewatch.io/adapters"
	"citewatch.io/auth"
	"citewatch.io/model"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("db: not found")

// Store is the full persistence contract: user accounts (satisfying
// auth.UserStore), the crawl scheduling table, and the publication catalog.
type Store interface {
	auth.UserStore

	// NextSourceTask returns the globally soonest-due source row, or
	// ErrNotFound if there are none.
	NextSourceTask(ctx context.Context) (*model.Source, error)

	// GetSourceValues returns every source's field values for owner,
	// keyed by adapter namespace.
	GetSourceValues(ctx context.Context, owner string) (map[string]map[string]string, error)

	// UpdateSourceValues upserts per-source field values for owner. Any
	// source whose values changed has its due reset to 0 and task_json
	// cleared, so the Scheduler picks it up immediately.
	UpdateSourceValues(ctx context.Context, owner string, sources map[string]map[string]string) error

	// SaveCrawlerStep atomically persists every record a Step produced
	// along with the source's advanced task_json/due.
	SaveCrawlerStep(ctx context.Context, owner, sourceKey string, step *adapters.Step) error

	// SaveMerges atomically replaces all merge rows for owner.
	SaveMerges(ctx context.Context, owner string, merges []model.Merge) error

	// GetMerges returns every merge row recorded for owner, as of the last
	// completed merge cycle.
	GetMerges(ctx context.Context, owner string) ([]model.Merge, error)

	// GetSelfPublications returns owner's by_self publications across all
	// sources, joined with authors and citation counts.
	GetSelfPublications(ctx context.Context, owner string) ([]model.Publication, error)

	// GetSourcePublications returns owner's by_self publications recorded
	// under a single source, used by the merger to compare one source's
	// catalog against another's. Citation-only records are excluded: only
	// self-publications are merge candidates.
	GetSourcePublications(ctx context.Context, owner, source string) ([]model.Publication, error)

	// CiteCount returns the number of Cites rows naming pubPath as the
	// cited publication within (owner, source).
	CiteCount(ctx context.Context, owner, source, pubPath string) (int, error)

	// ExportDataAsZip emits one CSV per table, bundled as a ZIP byte
	// stream, covering every row owned by owner.
	ExportDataAsZip(ctx context.Context, owner string) ([]byte, error)

	// Usernames lists every registered username, used by the merger to
	// iterate all owners each cycle.
	Usernames(ctx context.Context) ([]string, error)

	Close()
}
