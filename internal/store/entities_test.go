package store

import (
	"errors"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertFragment(t *testing.T) {
	db := testDB(t)

	f := &Fragment{
		ID:       "frag-1",
		Text:     "Latency budget for the ingest path is 200ms",
		Lens:     "performance",
		SourceID: "doc-7",
		Seq:      3,
		KeyTerms: []string{"latency", "budget", "ingest"},
	}
	if err := db.InsertFragment(f); err != nil {
		t.Fatalf("InsertFragment: %v", err)
	}
	if f.CreatedAt == 0 {
		t.Error("expected created_at to be stamped")
	}

	found, err := db.GetFragment("frag-1")
	if err != nil {
		t.Fatalf("GetFragment: %v", err)
	}
	if found.Text != f.Text {
		t.Errorf("text = %q, want %q", found.Text, f.Text)
	}
	if found.Superseded() {
		t.Error("fresh fragment should not be superseded")
	}
	if len(found.KeyTerms) != 3 {
		t.Errorf("key terms = %v, want 3 terms", found.KeyTerms)
	}
}

func TestDuplicateIdentifierAcrossKinds(t *testing.T) {
	db := testDB(t)

	if err := db.InsertFragment(&Fragment{ID: "shared-id", Text: "some text"}); err != nil {
		t.Fatalf("InsertFragment: %v", err)
	}

	// Same id under a different kind must fail.
	err := db.InsertDecision(&Decision{ID: "shared-id", Text: "decide something"})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}

	// Same id under the same kind must also fail.
	err = db.InsertFragment(&Fragment{ID: "shared-id", Text: "other text"})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}

	// The failed insert must leave nothing behind under the other kind.
	if _, err := db.GetDecision("shared-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for decision, got %v", err)
	}
}

func TestDecisionStatusDefaultsActive(t *testing.T) {
	db := testDB(t)

	if err := db.InsertDecision(&Decision{ID: "dec-1", Text: "use sqlite"}); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}
	d, err := db.GetDecision("dec-1")
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if d.Status != DecisionActive {
		t.Errorf("status = %q, want active", d.Status)
	}
}

func TestDecisionStatusMonotonic(t *testing.T) {
	db := testDB(t)

	db.InsertDecision(&Decision{ID: "dec-1", Text: "use sqlite"})

	if err := db.SetDecisionStatus("dec-1", DecisionRevisiting); err != nil {
		t.Fatalf("to revisiting: %v", err)
	}
	if err := db.SetDecisionStatus("dec-1", DecisionActive); err != nil {
		t.Fatalf("back to active: %v", err)
	}
	if err := db.SetDecisionStatus("dec-1", DecisionSuperseded); err != nil {
		t.Fatalf("to superseded: %v", err)
	}

	// Superseded is terminal.
	err := db.SetDecisionStatus("dec-1", DecisionActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Setting the same status again is a no-op, not an error.
	if err := db.SetDecisionStatus("dec-1", DecisionSuperseded); err != nil {
		t.Errorf("idempotent set: %v", err)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	db := testDB(t)

	db.InsertQuestion(&Question{ID: "q-1", Text: "which database do we standardize on"})
	db.InsertDecision(&Decision{ID: "dec-1", Text: "standardize on postgres"})

	q, _ := db.GetQuestion("q-1")
	if q.Status != QuestionPending {
		t.Fatalf("status = %q, want pending", q.Status)
	}

	if err := db.SetQuestionAnswered("q-1", "dec-1"); err != nil {
		t.Fatalf("SetQuestionAnswered: %v", err)
	}
	q, _ = db.GetQuestion("q-1")
	if q.Status != QuestionAnswered {
		t.Errorf("status = %q, want answered", q.Status)
	}
	if q.ResolvedBy != "dec-1" {
		t.Errorf("resolved_by = %q, want dec-1", q.ResolvedBy)
	}
}

func TestMarkFragmentSuperseded(t *testing.T) {
	db := testDB(t)

	db.InsertFragment(&Fragment{ID: "frag-1", Text: "old guidance"})
	db.InsertDecision(&Decision{ID: "dec-1", Text: "new direction"})

	if err := db.MarkFragmentSuperseded("frag-1", "dec-1", "conflicts with dec-1"); err != nil {
		t.Fatalf("MarkFragmentSuperseded: %v", err)
	}

	f, _ := db.GetFragment("frag-1")
	if !f.Superseded() {
		t.Error("expected superseded")
	}
	if f.SupersededBy != "dec-1" {
		t.Errorf("superseded_by = %q, want dec-1", f.SupersededBy)
	}

	err := db.MarkFragmentSuperseded("missing", "dec-1", "x")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEntityDispatch(t *testing.T) {
	db := testDB(t)

	db.InsertGap(&Gap{ID: "gap-1", Description: "no disaster recovery plan"})
	db.InsertRoadmapItem(&RoadmapItem{ID: "item-1", Name: "DR overhaul"})

	ent, err := db.GetEntity("gap-1")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if ent.EntityKind() != KindGap {
		t.Errorf("kind = %q, want gap", ent.EntityKind())
	}

	if _, err := db.GetEntity("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAllEntitiesCoversEveryKind(t *testing.T) {
	db := testDB(t)

	db.InsertFragment(&Fragment{ID: "f1", Text: "t"})
	db.InsertRoadmapItem(&RoadmapItem{ID: "r1", Name: "n"})
	db.InsertQuestion(&Question{ID: "q1", Text: "t"})
	db.InsertDecision(&Decision{ID: "d1", Text: "t"})
	db.InsertAssessment(&Assessment{ID: "a1", Subtype: AssessmentArchitecture, Summary: "s"})
	db.InsertGap(&Gap{ID: "g1", Description: "d"})

	entities, err := db.AllEntities()
	if err != nil {
		t.Fatalf("AllEntities: %v", err)
	}
	if len(entities) != 6 {
		t.Fatalf("got %d entities, want 6", len(entities))
	}

	kinds := make(map[Kind]bool)
	for _, e := range entities {
		kinds[e.EntityKind()] = true
	}
	for _, k := range Kinds() {
		if !kinds[k] {
			t.Errorf("missing kind %q", k)
		}
	}
}
