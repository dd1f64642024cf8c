package store

import (
	"context"
	"database/sql"

	"github.com/Aman-CERP/fttf/internal/migrate"
)

// Migrate applies every pending schema migration to db.
func Migrate(ctx context.Context, db *sql.DB, opts ...migrate.Option) (migrate.Status, error) {
	m := migrate.NewManager(db, opts...)
	if err := m.RegisterAll(Migrations()...); err != nil {
		return migrate.Status{}, err
	}
	return m.Apply(ctx)
}

// Migrations returns the history database schema, oldest first.
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Name:        "init",
			Description: "documents, fragments with full-text index, blacklist rules",
			SQL:         schemaInit,
		},
		{
			Version:     2,
			Name:        "task_queue",
			Description: "durable background task queue",
			SQL:         schemaTaskQueue,
		},
		{
			Version:     3,
			Name:        "document_last_visit",
			Description: "index documents by last visit",
			SQL:         schemaLastVisit,
		},
	}
}

const schemaInit = `
CREATE TABLE IF NOT EXISTS document (
	id INTEGER PRIMARY KEY,
	title TEXT,
	url TEXT UNIQUE NOT NULL,
	excerpt TEXT,
	md_content TEXT,
	md_content_hash TEXT,
	publication_date INTEGER,
	hostname TEXT,
	last_visit INTEGER,
	last_visit_date TEXT,
	extractor TEXT,
	created_at INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1000 AS INTEGER)),
	updated_at INTEGER
);

CREATE INDEX IF NOT EXISTS document_hostname ON document (hostname);

CREATE TABLE IF NOT EXISTS document_fragment (
	id INTEGER PRIMARY KEY,
	entity_id INTEGER NOT NULL REFERENCES document (id) ON DELETE CASCADE,
	attribute TEXT NOT NULL CHECK (attribute IN ('title', 'excerpt', 'url', 'content')),
	value TEXT NOT NULL,
	fragment_order INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1000 AS INTEGER)),
	content_vector BLOB,
	UNIQUE (entity_id, attribute, value, fragment_order)
);

CREATE INDEX IF NOT EXISTS document_fragment_entity ON document_fragment (entity_id);

CREATE VIRTUAL TABLE IF NOT EXISTS document_fragment_fts USING fts5(
	value,
	content='document_fragment',
	content_rowid='id',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS document_fragment_ai AFTER INSERT ON document_fragment BEGIN
	INSERT INTO document_fragment_fts(rowid, value) VALUES (new.id, new.value);
END;

CREATE TRIGGER IF NOT EXISTS document_fragment_ad AFTER DELETE ON document_fragment BEGIN
	INSERT INTO document_fragment_fts(document_fragment_fts, rowid, value) VALUES ('delete', old.id, old.value);
END;

CREATE TRIGGER IF NOT EXISTS document_fragment_au AFTER UPDATE OF value ON document_fragment BEGIN
	INSERT INTO document_fragment_fts(document_fragment_fts, rowid, value) VALUES ('delete', old.id, old.value);
	INSERT INTO document_fragment_fts(rowid, value) VALUES (new.id, new.value);
END;

CREATE TABLE IF NOT EXISTS blacklist_rule (
	id INTEGER PRIMARY KEY,
	pattern TEXT UNIQUE NOT NULL,
	level TEXT NOT NULL CHECK (level IN ('no_index', 'url_only')),
	created_at INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1000 AS INTEGER))
);
`

const schemaTaskQueue = `
CREATE TABLE IF NOT EXISTS task (
	id INTEGER PRIMARY KEY,
	task_type TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL DEFAULT (CAST(unixepoch('subsec') * 1000 AS INTEGER)),
	failed_at INTEGER,
	error TEXT,
	UNIQUE (task_type, params)
);

CREATE INDEX IF NOT EXISTS task_failed_at ON task (failed_at);
`

const schemaLastVisit = `
CREATE INDEX IF NOT EXISTS document_last_visit ON document (last_visit);
`
