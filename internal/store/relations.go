package store

import (
	"fmt"
	"time"
)

// RelType tags a directed relation between two entities.
type RelType string

const (
	RelResolves       RelType = "RESOLVES"        // decision → question
	RelSupersedes     RelType = "SUPERSEDES"      // decision → decision
	RelImpacts        RelType = "IMPACTS"         // decision → roadmap item
	RelOverrides      RelType = "OVERRIDES"       // decision → fragment
	RelRaisedBy       RelType = "RAISED_BY"       // question → assessment
	RelAnsweredBy     RelType = "ANSWERED_BY"     // question → decision
	RelAboutItem      RelType = "ABOUT_ITEM"      // question → roadmap item
	RelAnalyzesItem   RelType = "ANALYZES_ITEM"   // assessment → roadmap item
	RelAnalyzesChunk  RelType = "ANALYZES_CHUNK"  // assessment → fragment
	RelIdentifiesGap  RelType = "IDENTIFIES_GAP"  // assessment → gap
	RelRaisesQuestion RelType = "RAISES_QUESTION" // assessment → question
	RelSupportedBy    RelType = "SUPPORTED_BY"    // roadmap item → fragment
	RelHasGap         RelType = "HAS_GAP"         // roadmap item → gap
	RelGapFor         RelType = "GAP_FOR"         // gap → roadmap item
	RelAddressedBy    RelType = "ADDRESSED_BY"    // gap → decision

	// Fragment-to-fragment topical relations from the ingestion stage.
	RelSimilar      RelType = "SIMILAR"
	RelSameSource   RelType = "SAME_SOURCE"
	RelSameCategory RelType = "SAME_CATEGORY"
	RelSequential   RelType = "SEQUENTIAL"
)

// Relation is a directed, typed, weighted edge between two entities.
type Relation struct {
	ID        int64   `json:"-"`
	Type      RelType `json:"type"`
	FromID    string  `json:"from_id"`
	ToID      string  `json:"to_id"`
	Weight    float64 `json:"weight"`
	Metadata  string  `json:"metadata,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// InsertRelation adds an edge. Both endpoints must exist
// (ErrUnknownEndpoint otherwise). Inserting an edge that already exists
// for the same (type, from, to) triple is a no-op, which keeps
// re-integration idempotent and guarantees at most one OVERRIDES edge per
// (decision, fragment) pair.
func (db *DB) InsertRelation(rel *Relation) error {
	for _, id := range []string{rel.FromID, rel.ToID} {
		ok, err := db.HasEntity(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("relation %s endpoint %s: %w", rel.Type, id, ErrUnknownEndpoint)
		}
	}

	if rel.Weight == 0 {
		rel.Weight = 1.0
	}
	if rel.CreatedAt == 0 {
		rel.CreatedAt = time.Now().UnixMilli()
	}

	res, err := db.Exec(`
		INSERT OR IGNORE INTO relations (rel_type, from_id, to_id, weight, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(rel.Type), rel.FromID, rel.ToID, rel.Weight, rel.Metadata, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert relation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rel.ID = id
	}
	return nil
}

// HasRelation reports whether an edge of the given type exists between the
// two entities.
func (db *DB) HasRelation(t RelType, fromID, toID string) (bool, error) {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM relations WHERE rel_type = ? AND from_id = ? AND to_id = ?",
		string(t), fromID, toID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has relation: %w", err)
	}
	return n > 0, nil
}

// Outgoing returns edges of the given type leaving a node.
// An empty type matches all relation types.
func (db *DB) Outgoing(fromID string, t RelType) ([]Relation, error) {
	return db.queryRelations(
		"SELECT id, rel_type, from_id, to_id, weight, metadata, created_at FROM relations WHERE from_id = ? AND (? = '' OR rel_type = ?) ORDER BY id",
		fromID, string(t), string(t),
	)
}

// Incoming returns edges of the given type arriving at a node.
// An empty type matches all relation types.
func (db *DB) Incoming(toID string, t RelType) ([]Relation, error) {
	return db.queryRelations(
		"SELECT id, rel_type, from_id, to_id, weight, metadata, created_at FROM relations WHERE to_id = ? AND (? = '' OR rel_type = ?) ORDER BY id",
		toID, string(t), string(t),
	)
}

// AllRelations returns every edge in the store.
func (db *DB) AllRelations() ([]Relation, error) {
	return db.queryRelations(
		"SELECT id, rel_type, from_id, to_id, weight, metadata, created_at FROM relations ORDER BY id",
	)
}

func (db *DB) queryRelations(query string, args ...any) ([]Relation, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		var relType string
		if err := rows.Scan(&r.ID, &relType, &r.FromID, &r.ToID, &r.Weight, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		r.Type = RelType(relType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveOverrider returns the id of the active decision overriding a
// fragment, or "" if none. Superseded decisions do not count.
func (db *DB) ActiveOverrider(fragmentID string) (string, error) {
	edges, err := db.Incoming(fragmentID, RelOverrides)
	if err != nil {
		return "", err
	}
	for _, e := range edges {
		d, err := db.GetDecision(e.FromID)
		if err != nil {
			return "", err
		}
		if d.Status == DecisionActive || d.Status == DecisionRevisiting {
			return d.ID, nil
		}
	}
	return "", nil
}
