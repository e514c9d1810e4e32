package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lazypower/groundtruth/internal/store"
)

// ErrSyncPartial signals that a sync run finished but some entities failed
// to integrate. The accompanying Report lists the failures; entities that
// integrated cleanly are kept.
var ErrSyncPartial = errors.New("sync completed with failures")

// Bundle is one batch of raw entities to integrate, as produced by the
// upstream extraction stage.
type Bundle struct {
	Fragments    []FragmentInput    `json:"fragments,omitempty"`
	RoadmapItems []RoadmapItemInput `json:"roadmap_items,omitempty"`
	Questions    []QuestionInput    `json:"questions,omitempty"`
	Decisions    []DecisionInput    `json:"decisions,omitempty"`
	Assessments  []AssessmentInput  `json:"assessments,omitempty"`
}

// Source supplies bundles for sync.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Bundle, error)
}

// FileSource loads a bundle from a JSON file on disk.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return f.Path }

func (f FileSource) Load(_ context.Context) (*Bundle, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", f.Path, err)
	}
	return &b, nil
}

// Failure records one entity that could not be integrated.
type Failure struct {
	Kind store.Kind `json:"kind"`
	ID   string     `json:"id"`
	Err  string     `json:"error"`
}

// Report summarizes a sync run.
type Report struct {
	Source   string             `json:"source"`
	Created  map[store.Kind]int `json:"created"`
	Skipped  int                `json:"skipped"`
	Failures []Failure          `json:"failures,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Err returns ErrSyncPartial when any entity failed, nil otherwise.
func (r *Report) Err() error {
	if len(r.Failures) > 0 {
		return fmt.Errorf("%w: %d of %d entities", ErrSyncPartial,
			len(r.Failures), r.total())
	}
	return nil
}

func (r *Report) total() int {
	n := len(r.Failures) + r.Skipped
	for _, c := range r.Created {
		n += c
	}
	return n
}

// Sync integrates a source's bundle in dependency order: fragments first,
// then roadmap items, questions, decisions, and assessments last, so each
// stage finds the entities it links to already in the graph. A failing
// entity is recorded and skipped; the run continues. Re-running the same
// bundle is a no-op: existing ids are skipped and relation inserts are
// idempotent. A final cross-reference pass re-links assessments and
// questions whose references did not resolve on first integration.
func (e *Engine) Sync(ctx context.Context, src Source) (*Report, error) {
	bundle, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return e.SyncBundle(ctx, src.Name(), bundle)
}

// SyncBundle integrates an already-loaded bundle. See Sync.
func (e *Engine) SyncBundle(ctx context.Context, name string, bundle *Bundle) (*Report, error) {
	start := time.Now()
	report := &Report{
		Source:  name,
		Created: make(map[store.Kind]int),
	}

	record := func(kind store.Kind, id string, created bool, err error) {
		switch {
		case err != nil:
			log.Printf("sync %s %s: %v", kind, id, err)
			report.Failures = append(report.Failures, Failure{Kind: kind, ID: id, Err: err.Error()})
		case created:
			report.Created[kind]++
		default:
			report.Skipped++
		}
	}

	for _, in := range bundle.Fragments {
		created, err := e.IntegrateFragment(ctx, in)
		record(store.KindFragment, in.ID, created, err)
	}
	for _, in := range bundle.RoadmapItems {
		created, err := e.IntegrateRoadmapItem(ctx, in)
		record(store.KindRoadmapItem, in.ID, created, err)
	}
	for _, in := range bundle.Questions {
		created, err := e.IntegrateQuestion(ctx, in)
		record(store.KindQuestion, in.ID, created, err)
	}
	for _, in := range bundle.Decisions {
		created, err := e.IntegrateDecision(ctx, in)
		record(store.KindDecision, in.ID, created, err)
	}
	for _, in := range bundle.Assessments {
		created, err := e.IntegrateAssessment(ctx, in)
		record(store.KindAssessment, in.ID, created, err)
	}

	if err := e.CrossReference(ctx); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	return report, report.Err()
}

// CrossReference re-resolves dangling references across the whole graph:
// assessment payload links whose targets arrived after the assessment, and
// question-to-roadmap-item references. All edge inserts are idempotent, so
// this pass is safe to run any number of times.
func (e *Engine) CrossReference(ctx context.Context) error {
	assessments, err := e.DB.Assessments()
	if err != nil {
		return err
	}
	for _, a := range assessments {
		payload, err := ParsePayload(a.Subtype, a.Payload)
		if err != nil {
			log.Printf("crossref assessment %s: %v", a.ID, err)
			continue
		}
		if err := e.linkAssessment(ctx, a, payload); err != nil {
			return fmt.Errorf("crossref assessment %s: %w", a.ID, err)
		}
	}

	questions, err := e.DB.Questions()
	if err != nil {
		return err
	}
	for _, q := range questions {
		if q.AboutItem == "" {
			continue
		}
		if err := e.linkQuestionToItem(q); err != nil {
			return fmt.Errorf("crossref question %s: %w", q.ID, err)
		}
	}

	return nil
}
