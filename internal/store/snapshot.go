package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Snapshot is the serialized logical state of the graph: one collection
// per entity kind plus the relation list. Vectors are carried along so a
// restored store can answer similarity queries without re-embedding.
type Snapshot struct {
	SavedAt      int64          `json:"saved_at"`
	Fragments    []*Fragment    `json:"fragments"`
	RoadmapItems []*RoadmapItem `json:"roadmap_items"`
	Questions    []*Question    `json:"questions"`
	Decisions    []*Decision    `json:"decisions"`
	Assessments  []*Assessment  `json:"assessments"`
	Gaps         []*Gap         `json:"gaps"`
	Relations    []Relation     `json:"relations"`
	Vectors      []VectorRecord `json:"vectors,omitempty"`
}

// Export collects the full logical state of the store.
func (db *DB) Export() (*Snapshot, error) {
	snap := &Snapshot{SavedAt: time.Now().UnixMilli()}
	var err error

	if snap.Fragments, err = db.Fragments(); err != nil {
		return nil, err
	}
	if snap.RoadmapItems, err = db.RoadmapItems(); err != nil {
		return nil, err
	}
	if snap.Questions, err = db.Questions(); err != nil {
		return nil, err
	}
	if snap.Decisions, err = db.Decisions(); err != nil {
		return nil, err
	}
	if snap.Assessments, err = db.Assessments(); err != nil {
		return nil, err
	}
	if snap.Gaps, err = db.Gaps(); err != nil {
		return nil, err
	}
	if snap.Relations, err = db.AllRelations(); err != nil {
		return nil, err
	}
	if snap.Vectors, err = db.AllVectors(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replays a snapshot into the store. Entities are inserted in
// dependency order so relation endpoint checks pass; existing ids are
// skipped, making Import safe to re-run.
func (db *DB) Import(snap *Snapshot) error {
	insert := func(id string, do func() error) error {
		ok, err := db.HasEntity(id)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return do()
	}

	for _, f := range snap.Fragments {
		f := f
		if err := insert(f.ID, func() error { return db.InsertFragment(f) }); err != nil {
			return fmt.Errorf("import fragment %s: %w", f.ID, err)
		}
	}
	for _, r := range snap.RoadmapItems {
		r := r
		if err := insert(r.ID, func() error { return db.InsertRoadmapItem(r) }); err != nil {
			return fmt.Errorf("import roadmap item %s: %w", r.ID, err)
		}
	}
	for _, q := range snap.Questions {
		q := q
		if err := insert(q.ID, func() error { return db.InsertQuestion(q) }); err != nil {
			return fmt.Errorf("import question %s: %w", q.ID, err)
		}
	}
	for _, d := range snap.Decisions {
		d := d
		if err := insert(d.ID, func() error { return db.InsertDecision(d) }); err != nil {
			return fmt.Errorf("import decision %s: %w", d.ID, err)
		}
	}
	for _, a := range snap.Assessments {
		a := a
		if err := insert(a.ID, func() error { return db.InsertAssessment(a) }); err != nil {
			return fmt.Errorf("import assessment %s: %w", a.ID, err)
		}
	}
	for _, g := range snap.Gaps {
		g := g
		if err := insert(g.ID, func() error { return db.InsertGap(g) }); err != nil {
			return fmt.Errorf("import gap %s: %w", g.ID, err)
		}
	}

	for i := range snap.Relations {
		rel := snap.Relations[i]
		rel.ID = 0
		if err := db.InsertRelation(&rel); err != nil {
			return fmt.Errorf("import relation %s %s->%s: %w", rel.Type, rel.FromID, rel.ToID, err)
		}
	}

	for _, v := range snap.Vectors {
		if err := db.SaveVector(v.EntityID, v.Embedding, v.Model); err != nil {
			return fmt.Errorf("import vector %s: %w", v.EntityID, err)
		}
	}

	return nil
}

// Save writes the snapshot JSON to a file.
func (db *DB) Save(path string) error {
	snap, err := db.Export()
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Restore reads a snapshot file and replays it into the store.
func (db *DB) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return db.Import(&snap)
}
