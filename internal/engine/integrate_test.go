package engine

import (
	"context"
	"testing"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stubEmbedder returns preset vectors per exact text. Unknown texts get a
// vector orthogonal to everything preset, so they never match anything.
type stubEmbedder struct {
	vecs map[string][]float64
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 0, 1}, nil
}

func (s *stubEmbedder) Model() string   { return "stub" }
func (s *stubEmbedder) Dimensions() int { return 4 }

func testEngine(t *testing.T, vecs map[string][]float64) *Engine {
	t.Helper()
	return New(testDB(t), &stubEmbedder{vecs: vecs}, config.DefaultThresholds())
}

func TestIntegrateDecisionResolvesQuestion(t *testing.T) {
	e := testEngine(t, nil)
	ctx := context.Background()

	if _, err := e.IntegrateQuestion(ctx, QuestionInput{ID: "q-1", Text: "which rpc framework should services use"}); err != nil {
		t.Fatalf("IntegrateQuestion: %v", err)
	}

	created, err := e.IntegrateDecision(ctx, DecisionInput{ID: "dec-1", QuestionID: "q-1", Text: "services standardize on grpc"})
	if err != nil {
		t.Fatalf("IntegrateDecision: %v", err)
	}
	if !created {
		t.Fatal("expected decision to be created")
	}

	// Bidirectional resolution edges.
	if ok, _ := e.DB.HasRelation(store.RelResolves, "dec-1", "q-1"); !ok {
		t.Error("missing RESOLVES edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelAnsweredBy, "q-1", "dec-1"); !ok {
		t.Error("missing ANSWERED_BY edge")
	}

	q, _ := e.DB.GetQuestion("q-1")
	if q.Status != store.QuestionAnswered {
		t.Errorf("question status = %q, want answered", q.Status)
	}
	if q.ResolvedBy != "dec-1" {
		t.Errorf("resolved_by = %q, want dec-1", q.ResolvedBy)
	}
}

func TestIntegrateDecisionSupersedesPriorResolver(t *testing.T) {
	e := testEngine(t, nil)
	ctx := context.Background()

	e.IntegrateQuestion(ctx, QuestionInput{ID: "q-1", Text: "which queue do we adopt"})
	e.IntegrateDecision(ctx, DecisionInput{ID: "dec-old", QuestionID: "q-1", Text: "adopt rabbitmq"})

	if _, err := e.IntegrateDecision(ctx, DecisionInput{ID: "dec-new", QuestionID: "q-1", Text: "adopt nats instead"}); err != nil {
		t.Fatalf("IntegrateDecision: %v", err)
	}

	old, _ := e.DB.GetDecision("dec-old")
	if old.Status != store.DecisionSuperseded {
		t.Errorf("old decision status = %q, want superseded", old.Status)
	}
	if ok, _ := e.DB.HasRelation(store.RelSupersedes, "dec-new", "dec-old"); !ok {
		t.Error("missing SUPERSEDES edge")
	}

	q, _ := e.DB.GetQuestion("q-1")
	if q.ResolvedBy != "dec-new" {
		t.Errorf("resolved_by = %q, want dec-new", q.ResolvedBy)
	}
}

func TestConflictDetectionOverridesFragment(t *testing.T) {
	fragText := "deploy cadence is weekly for all services"
	decText := "deploy cadence moves to daily releases"
	e := testEngine(t, map[string][]float64{
		fragText: {1, 0, 0, 0},
		decText:  {0.95, 0.3, 0, 0},
	})
	ctx := context.Background()

	e.IntegrateFragment(ctx, FragmentInput{ID: "frag-1", Text: fragText})

	if _, err := e.IntegrateDecision(ctx, DecisionInput{ID: "dec-1", Text: decText}); err != nil {
		t.Fatalf("IntegrateDecision: %v", err)
	}

	if ok, _ := e.DB.HasRelation(store.RelOverrides, "dec-1", "frag-1"); !ok {
		t.Fatal("missing OVERRIDES edge")
	}
	f, _ := e.DB.GetFragment("frag-1")
	if f.SupersededBy != "dec-1" {
		t.Errorf("superseded_by = %q, want dec-1", f.SupersededBy)
	}
	if f.SupersededReason == "" {
		t.Error("expected a superseded reason")
	}
}

func TestConflictRequiresTermOverlap(t *testing.T) {
	// Semantically close vectors, but only one shared key term: no conflict.
	fragText := "deploy tooling runs on jenkins pipelines"
	decText := "deploy environments move onto kubernetes clusters"
	e := testEngine(t, map[string][]float64{
		fragText: {1, 0, 0, 0},
		decText:  {0.99, 0.1, 0, 0},
	})
	ctx := context.Background()

	e.IntegrateFragment(ctx, FragmentInput{ID: "frag-1", Text: fragText})
	e.IntegrateDecision(ctx, DecisionInput{ID: "dec-1", Text: decText})

	if ok, _ := e.DB.HasRelation(store.RelOverrides, "dec-1", "frag-1"); ok {
		t.Error("unexpected OVERRIDES edge with single-term overlap")
	}
	f, _ := e.DB.GetFragment("frag-1")
	if f.Superseded() {
		t.Error("fragment should not be superseded")
	}
}

func TestConflictRequiresSimilarity(t *testing.T) {
	// Two shared terms, but orthogonal vectors: no conflict.
	fragText := "deploy cadence is weekly for all services"
	decText := "deploy cadence moves to daily releases"
	e := testEngine(t, map[string][]float64{
		fragText: {1, 0, 0, 0},
		decText:  {0, 1, 0, 0},
	})
	ctx := context.Background()

	e.IntegrateFragment(ctx, FragmentInput{ID: "frag-1", Text: fragText})
	e.IntegrateDecision(ctx, DecisionInput{ID: "dec-1", Text: decText})

	if ok, _ := e.DB.HasRelation(store.RelOverrides, "dec-1", "frag-1"); ok {
		t.Error("unexpected OVERRIDES edge with dissimilar vectors")
	}
}

func TestSingleActiveOverriderPerFragment(t *testing.T) {
	fragText := "deploy cadence is weekly for all services"
	oldDec := "deploy cadence moves to daily releases"
	newDec := "deploy cadence becomes continuous on merge"
	e := testEngine(t, map[string][]float64{
		fragText: {1, 0, 0, 0},
		oldDec:   {0.95, 0.3, 0, 0},
		newDec:   {0.9, 0.4, 0, 0},
	})
	ctx := context.Background()

	e.IntegrateFragment(ctx, FragmentInput{ID: "frag-1", Text: fragText})
	e.IntegrateDecision(ctx, DecisionInput{ID: "dec-old", Text: oldDec})

	if _, err := e.IntegrateDecision(ctx, DecisionInput{ID: "dec-new", Text: newDec}); err != nil {
		t.Fatalf("IntegrateDecision: %v", err)
	}

	// The newer conflicting decision forces the older one out.
	old, _ := e.DB.GetDecision("dec-old")
	if old.Status != store.DecisionSuperseded {
		t.Errorf("old decision status = %q, want superseded", old.Status)
	}
	if ok, _ := e.DB.HasRelation(store.RelSupersedes, "dec-new", "dec-old"); !ok {
		t.Error("missing SUPERSEDES edge")
	}

	id, _ := e.DB.ActiveOverrider("frag-1")
	if id != "dec-new" {
		t.Errorf("active overrider = %q, want dec-new", id)
	}

	f, _ := e.DB.GetFragment("frag-1")
	if f.SupersededBy != "dec-new" {
		t.Errorf("superseded_by = %q, want dec-new", f.SupersededBy)
	}
}

func TestIntegrateFragmentTopicalEdges(t *testing.T) {
	a := "first section about storage"
	b := "second section about storage"
	e := testEngine(t, map[string][]float64{
		a: {1, 0, 0, 0},
		b: {0.9, 0.43, 0, 0},
	})
	ctx := context.Background()

	e.IntegrateFragment(ctx, FragmentInput{ID: "frag-a", Text: a, SourceID: "doc-1", Seq: 1, Lens: "storage"})
	e.IntegrateFragment(ctx, FragmentInput{ID: "frag-b", Text: b, SourceID: "doc-1", Seq: 2, Lens: "storage"})

	if ok, _ := e.DB.HasRelation(store.RelSameSource, "frag-b", "frag-a"); !ok {
		t.Error("missing SAME_SOURCE edge")
	}
	// Sequential always points lower seq to higher.
	if ok, _ := e.DB.HasRelation(store.RelSequential, "frag-a", "frag-b"); !ok {
		t.Error("missing SEQUENTIAL edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelSameCategory, "frag-b", "frag-a"); !ok {
		t.Error("missing SAME_CATEGORY edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelSimilar, "frag-b", "frag-a"); !ok {
		t.Error("missing SIMILAR edge")
	}
}

func TestIntegrateIdempotent(t *testing.T) {
	e := testEngine(t, nil)
	ctx := context.Background()

	created, err := e.IntegrateFragment(ctx, FragmentInput{ID: "frag-1", Text: "some text"})
	if err != nil || !created {
		t.Fatalf("first integrate: created=%v err=%v", created, err)
	}

	created, err = e.IntegrateFragment(ctx, FragmentInput{ID: "frag-1", Text: "changed text"})
	if err != nil {
		t.Fatalf("second integrate: %v", err)
	}
	if created {
		t.Error("re-integration must not create")
	}

	// Original content wins; re-integration never mutates.
	f, _ := e.DB.GetFragment("frag-1")
	if f.Text != "some text" {
		t.Errorf("text = %q, want original", f.Text)
	}
}

func TestIntegrateAssessmentPayload(t *testing.T) {
	itemBody := "Search relaunch: rebuild the query stack"
	decPayload := `{
		"systems": ["Search relaunch"],
		"gaps": [{"id": "gap-idx", "description": "no index freshness monitoring", "severity": "high", "roadmap_item": "Search relaunch"}],
		"questions": [{"id": "q-shard", "text": "how many shards do we provision", "about_item": "Search relaunch"}]
	}`
	e := testEngine(t, map[string][]float64{itemBody: {1, 0, 0, 0}})
	ctx := context.Background()

	e.IntegrateRoadmapItem(ctx, RoadmapItemInput{ID: "item-1", Name: "Search relaunch", Description: "rebuild the query stack"})

	created, err := e.IntegrateAssessment(ctx, AssessmentInput{
		ID:      "as-1",
		Subtype: store.AssessmentArchitecture,
		Summary: "search stack review",
		Payload: []byte(decPayload),
	})
	if err != nil {
		t.Fatalf("IntegrateAssessment: %v", err)
	}
	if !created {
		t.Fatal("expected assessment to be created")
	}

	if ok, _ := e.DB.HasRelation(store.RelAnalyzesItem, "as-1", "item-1"); !ok {
		t.Error("missing ANALYZES_ITEM edge")
	}

	// Gap created and doubly linked to the roadmap item.
	g, err := e.DB.GetGap("gap-idx")
	if err != nil {
		t.Fatalf("GetGap: %v", err)
	}
	if g.IdentifiedBy != "as-1" {
		t.Errorf("identified_by = %q, want as-1", g.IdentifiedBy)
	}
	if ok, _ := e.DB.HasRelation(store.RelIdentifiesGap, "as-1", "gap-idx"); !ok {
		t.Error("missing IDENTIFIES_GAP edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelHasGap, "item-1", "gap-idx"); !ok {
		t.Error("missing HAS_GAP edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelGapFor, "gap-idx", "item-1"); !ok {
		t.Error("missing GAP_FOR edge")
	}

	// Question created, linked back, and attributed.
	q, err := e.DB.GetQuestion("q-shard")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.RaisedBy != "as-1" {
		t.Errorf("raised_by = %q, want as-1", q.RaisedBy)
	}
	if ok, _ := e.DB.HasRelation(store.RelRaisesQuestion, "as-1", "q-shard"); !ok {
		t.Error("missing RAISES_QUESTION edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelRaisedBy, "q-shard", "as-1"); !ok {
		t.Error("missing RAISED_BY edge")
	}
	if ok, _ := e.DB.HasRelation(store.RelAboutItem, "q-shard", "item-1"); !ok {
		t.Error("missing ABOUT_ITEM edge")
	}
}

func TestIntegrateAssessmentUnknownSubtype(t *testing.T) {
	e := testEngine(t, nil)

	_, err := e.IntegrateAssessment(context.Background(), AssessmentInput{
		ID:      "as-1",
		Subtype: "vibes",
		Summary: "unsupported",
	})
	if err == nil {
		t.Fatal("expected error for unknown subtype")
	}

	// The failed parse must leave no entity behind.
	if ok, _ := e.DB.HasEntity("as-1"); ok {
		t.Error("assessment should not have been inserted")
	}
}

func TestDecisionAddressesGap(t *testing.T) {
	gapDesc := "no rollback automation for deploys"
	decText := "build rollback automation into the deploy pipeline"
	e := testEngine(t, map[string][]float64{
		gapDesc: {1, 0, 0, 0},
		decText: {0.9, 0.43, 0, 0},
	})
	ctx := context.Background()

	e.IntegrateAssessment(ctx, AssessmentInput{
		ID:      "as-1",
		Subtype: store.AssessmentArchitecture,
		Summary: "deploy review",
		Payload: []byte(`{"gaps": [{"id": "gap-1", "description": "` + gapDesc + `"}]}`),
	})

	if _, err := e.IntegrateDecision(ctx, DecisionInput{ID: "dec-1", Text: decText}); err != nil {
		t.Fatalf("IntegrateDecision: %v", err)
	}

	g, _ := e.DB.GetGap("gap-1")
	if g.AddressedBy != "dec-1" {
		t.Errorf("addressed_by = %q, want dec-1", g.AddressedBy)
	}
	if ok, _ := e.DB.HasRelation(store.RelAddressedBy, "gap-1", "dec-1"); !ok {
		t.Error("missing ADDRESSED_BY edge")
	}
}
