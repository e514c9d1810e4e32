package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "entities: global id/kind registry",
		SQL: `
CREATE TABLE entities (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL CHECK (kind IN ('fragment', 'decision', 'question', 'assessment', 'roadmap_item', 'gap')),
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_entities_kind ON entities(kind);
`,
	},
	{
		Version:     2,
		Description: "per-kind entity tables",
		SQL: `
CREATE TABLE fragments (
    id                TEXT PRIMARY KEY REFERENCES entities(id),
    text              TEXT NOT NULL,
    lens              TEXT,
    source_id         TEXT,
    seq               INTEGER NOT NULL DEFAULT 0,
    superseded_by     TEXT,
    superseded_reason TEXT,
    key_terms         TEXT
);

CREATE INDEX idx_fragments_source ON fragments(source_id);
CREATE INDEX idx_fragments_lens   ON fragments(lens);

CREATE TABLE decisions (
    id           TEXT PRIMARY KEY REFERENCES entities(id),
    question_id  TEXT,
    text         TEXT NOT NULL,
    rationale    TEXT,
    implications TEXT,
    owner        TEXT,
    status       TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'superseded', 'revisiting')),
    key_terms    TEXT
);

CREATE INDEX idx_decisions_status ON decisions(status);

CREATE TABLE questions (
    id            TEXT PRIMARY KEY REFERENCES entities(id),
    text          TEXT NOT NULL,
    audience      TEXT,
    category      TEXT,
    priority      TEXT,
    status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'answered', 'deferred', 'obsolete')),
    raised_by     TEXT,
    resolved_by   TEXT,
    about_item    TEXT,
    key_terms     TEXT
);

CREATE INDEX idx_questions_status ON questions(status);

CREATE TABLE assessments (
    id         TEXT PRIMARY KEY REFERENCES entities(id),
    subtype    TEXT NOT NULL CHECK (subtype IN ('architecture', 'competitive', 'document_impact')),
    summary    TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    payload    TEXT,
    key_terms  TEXT
);

CREATE TABLE roadmap_items (
    id          TEXT PRIMARY KEY REFERENCES entities(id),
    name        TEXT NOT NULL,
    description TEXT,
    horizon     TEXT,
    theme       TEXT,
    owner       TEXT,
    key_terms   TEXT
);

CREATE TABLE gaps (
    id            TEXT PRIMARY KEY REFERENCES entities(id),
    description   TEXT NOT NULL,
    severity      TEXT,
    category      TEXT,
    identified_by TEXT,
    addressed_by  TEXT,
    key_terms     TEXT
);
`,
	},
	{
		Version:     3,
		Description: "relations: typed directed edges",
		SQL: `
CREATE TABLE relations (
    id         INTEGER PRIMARY KEY,
    rel_type   TEXT NOT NULL,
    from_id    TEXT NOT NULL REFERENCES entities(id),
    to_id      TEXT NOT NULL REFERENCES entities(id),
    weight     REAL NOT NULL DEFAULT 1.0,
    metadata   TEXT,
    created_at INTEGER NOT NULL,
    UNIQUE (rel_type, from_id, to_id)
);

CREATE INDEX idx_relations_from ON relations(from_id, rel_type);
CREATE INDEX idx_relations_to   ON relations(to_id, rel_type);
`,
	},
	{
		Version:     4,
		Description: "vectors: embedding vectors for semantic search",
		SQL: `
CREATE TABLE vectors (
    entity_id  TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
