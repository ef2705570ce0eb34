package db

// schemaSQL is the DDL for the primary relational Store, a direct port of
// the reference SQLite schema (server/database.py) to Postgres: composite
// primary keys scoped by owner, cascading deletes from users, and foreign
// keys tying authorship/citation/merge edges back to the records they
// reference.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	salt          TEXT NOT NULL DEFAULT '',
	auth_token    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_auth_token_idx
	ON users (auth_token) WHERE auth_token <> '';

CREATE TABLE IF NOT EXISTS sources (
	owner      TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	values_json JSONB NOT NULL DEFAULT '{}',
	task_json  JSONB,
	due        BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (owner, key)
);

CREATE INDEX IF NOT EXISTS sources_due_idx ON sources (due);

CREATE TABLE IF NOT EXISTS authors (
	owner      TEXT NOT NULL,
	source     TEXT NOT NULL,
	path       TEXT NOT NULL,
	full_name  TEXT NOT NULL,
	id         TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	extra_json JSONB,
	PRIMARY KEY (owner, source, path),
	FOREIGN KEY (owner, source) REFERENCES sources(owner, key) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS publications (
	owner      TEXT NOT NULL,
	source     TEXT NOT NULL,
	path       TEXT NOT NULL,
	by_self    BOOLEAN NOT NULL DEFAULT false,
	name       TEXT NOT NULL,
	id         TEXT NOT NULL DEFAULT '',
	year       INTEGER,
	ref        TEXT NOT NULL DEFAULT '',
	extra_json JSONB,
	PRIMARY KEY (owner, source, path),
	FOREIGN KEY (owner, source) REFERENCES sources(owner, key) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS publication_authors (
	owner       TEXT NOT NULL,
	source      TEXT NOT NULL,
	pub_path    TEXT NOT NULL,
	author_path TEXT NOT NULL,
	PRIMARY KEY (owner, source, pub_path, author_path),
	FOREIGN KEY (owner, source, pub_path) REFERENCES publications(owner, source, path) ON DELETE CASCADE,
	FOREIGN KEY (owner, source, author_path) REFERENCES authors(owner, source, path) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cites (
	owner    TEXT NOT NULL,
	source   TEXT NOT NULL,
	pub_path TEXT NOT NULL,
	cited_by TEXT NOT NULL,
	PRIMARY KEY (owner, source, pub_path, cited_by),
	FOREIGN KEY (owner, source, pub_path) REFERENCES publications(owner, source, path) ON DELETE CASCADE,
	FOREIGN KEY (owner, source, cited_by) REFERENCES publications(owner, source, path) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS merges (
	owner      TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
	source_a   TEXT NOT NULL,
	source_b   TEXT NOT NULL,
	pub_a      TEXT NOT NULL,
	pub_b      TEXT NOT NULL,
	similarity DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (owner, source_a, source_b, pub_a, pub_b)
);
`
