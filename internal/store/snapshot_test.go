package store

import (
	"path/filepath"
	"testing"
)

func populateGraph(t *testing.T, db *DB) {
	t.Helper()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("populate: %v", err)
		}
	}

	must(db.InsertFragment(&Fragment{ID: "frag-1", Text: "deploy weekly", Lens: "process", SourceID: "doc-1", Seq: 1, KeyTerms: []string{"deploy", "weekly"}}))
	must(db.InsertFragment(&Fragment{ID: "frag-2", Text: "deploy daily", Lens: "process", SourceID: "doc-1", Seq: 2, SupersededBy: "dec-1", SupersededReason: "conflicts with dec-1"}))
	must(db.InsertRoadmapItem(&RoadmapItem{ID: "item-1", Name: "CD pipeline", Description: "continuous delivery"}))
	must(db.InsertQuestion(&Question{ID: "q-1", Text: "how often do we deploy", Status: QuestionAnswered, ResolvedBy: "dec-1"}))
	must(db.InsertDecision(&Decision{ID: "dec-1", QuestionID: "q-1", Text: "deploy on every merge", Status: DecisionActive}))
	must(db.InsertAssessment(&Assessment{ID: "as-1", Subtype: AssessmentArchitecture, Summary: "pipeline review", Confidence: 0.8, Payload: []byte(`{"systems":["CD pipeline"]}`)}))
	must(db.InsertGap(&Gap{ID: "gap-1", Description: "no rollback automation", Severity: "high", IdentifiedBy: "as-1"}))

	must(db.InsertRelation(&Relation{Type: RelResolves, FromID: "dec-1", ToID: "q-1"}))
	must(db.InsertRelation(&Relation{Type: RelAnsweredBy, FromID: "q-1", ToID: "dec-1"}))
	must(db.InsertRelation(&Relation{Type: RelOverrides, FromID: "dec-1", ToID: "frag-2", Weight: 0.82}))
	must(db.InsertRelation(&Relation{Type: RelIdentifiesGap, FromID: "as-1", ToID: "gap-1"}))

	must(db.SaveVector("frag-1", []float64{0.1, 0.2, 0.3}, "tfidf"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := testDB(t)
	populateGraph(t, src)

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := src.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := testDB(t)
	if err := dst.Restore(path); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// Entities survive with their state intact.
	f, err := dst.GetFragment("frag-2")
	if err != nil {
		t.Fatalf("GetFragment: %v", err)
	}
	if f.SupersededBy != "dec-1" {
		t.Errorf("superseded_by = %q, want dec-1", f.SupersededBy)
	}

	q, _ := dst.GetQuestion("q-1")
	if q.Status != QuestionAnswered || q.ResolvedBy != "dec-1" {
		t.Errorf("question = %+v, want answered by dec-1", q)
	}

	// Creation timestamps are preserved, not restamped.
	origFrag, _ := src.GetFragment("frag-1")
	restFrag, _ := dst.GetFragment("frag-1")
	if restFrag.CreatedAt != origFrag.CreatedAt {
		t.Errorf("created_at = %d, want %d", restFrag.CreatedAt, origFrag.CreatedAt)
	}

	// Relations survive.
	ok, _ := dst.HasRelation(RelOverrides, "dec-1", "frag-2")
	if !ok {
		t.Error("expected OVERRIDES edge after restore")
	}

	rels, _ := dst.AllRelations()
	origRels, _ := src.AllRelations()
	if len(rels) != len(origRels) {
		t.Errorf("got %d relations, want %d", len(rels), len(origRels))
	}

	// Vectors survive.
	v, err := dst.GetVector("frag-1")
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if v == nil || len(v.Embedding) != 3 {
		t.Fatalf("vector = %+v, want 3-dim embedding", v)
	}
	if v.Embedding[1] != 0.2 {
		t.Errorf("embedding[1] = %f, want 0.2", v.Embedding[1])
	}
}

func TestSnapshotRestoreIdempotent(t *testing.T) {
	db := testDB(t)
	populateGraph(t, db)

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := db.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Restoring into the same store must not duplicate anything.
	if err := db.Restore(path); err != nil {
		t.Fatalf("Restore into self: %v", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	total := 0
	for _, n := range stats.Entities {
		total += n
	}
	if total != 7 {
		t.Errorf("got %d entities after re-restore, want 7", total)
	}

	rels, _ := db.AllRelations()
	if len(rels) != 4 {
		t.Errorf("got %d relations after re-restore, want 4", len(rels))
	}
}
