package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/lazypower/groundtruth/internal/store"
)

// FragmentInput is a raw source excerpt from the ingestion collaborator.
type FragmentInput struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Lens     string `json:"lens,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Seq      int    `json:"seq,omitempty"`
}

// RoadmapItemInput is a raw roadmap entry.
type RoadmapItemInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Horizon     string `json:"horizon,omitempty"`
	Theme       string `json:"theme,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

// QuestionInput is a raw open question.
type QuestionInput struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Audience  string `json:"audience,omitempty"`
	Category  string `json:"category,omitempty"`
	Priority  string `json:"priority,omitempty"`
	AboutItem string `json:"about_item,omitempty"`
}

// DecisionInput is a raw resolved determination.
type DecisionInput struct {
	ID           string   `json:"id"`
	QuestionID   string   `json:"question_id,omitempty"`
	Text         string   `json:"text"`
	Rationale    string   `json:"rationale,omitempty"`
	Implications []string `json:"implications,omitempty"`
	Owner        string   `json:"owner,omitempty"`
}

// AssessmentInput is a raw analytical artifact with a subtype-specific payload.
type AssessmentInput struct {
	ID         string               `json:"id"`
	Subtype    store.AssessmentType `json:"subtype"`
	Summary    string               `json:"summary"`
	Confidence float64              `json:"confidence,omitempty"`
	Payload    json.RawMessage      `json:"payload,omitempty"`
}

func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// IntegrateFragment creates a fragment and lays down its topical relations
// to previously ingested fragments (same-source, sequential, same-category,
// similarity). Re-integration of an existing id is a no-op.
func (e *Engine) IntegrateFragment(ctx context.Context, in FragmentInput) (bool, error) {
	in.ID = ensureID(in.ID)
	if ok, err := e.DB.HasEntity(in.ID); err != nil || ok {
		return false, err
	}

	existing, err := e.DB.Fragments()
	if err != nil {
		return false, err
	}

	frag := &store.Fragment{
		ID:       in.ID,
		Text:     in.Text,
		Lens:     in.Lens,
		SourceID: in.SourceID,
		Seq:      in.Seq,
		KeyTerms: ExtractKeyTerms(in.Text, e.Cfg.KeyTermLimit),
	}
	if err := e.DB.InsertFragment(frag); err != nil {
		return false, err
	}
	vec := e.embed(ctx, frag.ID, frag.Text)

	vectors, err := e.vectorMap()
	if err != nil {
		return false, err
	}

	for _, other := range existing {
		if other.SourceID != "" && other.SourceID == frag.SourceID {
			if err := e.DB.InsertRelation(&store.Relation{Type: store.RelSameSource, FromID: frag.ID, ToID: other.ID}); err != nil {
				return true, err
			}
			// Sequential neighbors within a source
			if other.Seq == frag.Seq-1 {
				if err := e.DB.InsertRelation(&store.Relation{Type: store.RelSequential, FromID: other.ID, ToID: frag.ID}); err != nil {
					return true, err
				}
			}
			if other.Seq == frag.Seq+1 {
				if err := e.DB.InsertRelation(&store.Relation{Type: store.RelSequential, FromID: frag.ID, ToID: other.ID}); err != nil {
					return true, err
				}
			}
		}
		if other.Lens != "" && other.Lens == frag.Lens {
			if err := e.DB.InsertRelation(&store.Relation{Type: store.RelSameCategory, FromID: frag.ID, ToID: other.ID}); err != nil {
				return true, err
			}
		}
		if vec != nil {
			if otherVec, ok := vectors[other.ID]; ok {
				if sim := CosineSimilarity(vec, otherVec); sim >= e.Cfg.FragmentSimilarity {
					if err := e.DB.InsertRelation(&store.Relation{Type: store.RelSimilar, FromID: frag.ID, ToID: other.ID, Weight: sim}); err != nil {
						return true, err
					}
				}
			}
		}
	}

	return true, nil
}

// IntegrateQuestion creates a question with status pending.
// Re-integration of an existing id is a no-op.
func (e *Engine) IntegrateQuestion(ctx context.Context, in QuestionInput) (bool, error) {
	in.ID = ensureID(in.ID)
	if ok, err := e.DB.HasEntity(in.ID); err != nil || ok {
		return false, err
	}

	q := &store.Question{
		ID:        in.ID,
		Text:      in.Text,
		Audience:  in.Audience,
		Category:  in.Category,
		Priority:  in.Priority,
		Status:    store.QuestionPending,
		AboutItem: in.AboutItem,
		KeyTerms:  ExtractKeyTerms(in.Text, e.Cfg.KeyTermLimit),
	}
	if err := e.DB.InsertQuestion(q); err != nil {
		return false, err
	}
	e.embed(ctx, q.ID, q.Text)

	// Link to its roadmap item when the reference already resolves.
	if q.AboutItem != "" {
		if err := e.linkQuestionToItem(q); err != nil {
			return true, err
		}
	}

	return true, nil
}

func (e *Engine) linkQuestionToItem(q *store.Question) error {
	items, err := e.DB.RoadmapItems()
	if err != nil {
		return err
	}
	for _, item := range items {
		if fuzzyNameMatch(q.AboutItem, item.Name) {
			return e.DB.InsertRelation(&store.Relation{Type: store.RelAboutItem, FromID: q.ID, ToID: item.ID})
		}
	}
	return nil
}

// IntegrateDecision creates a decision and wires it into the graph:
// resolves its question, matches impacted roadmap items, detects conflicts
// with fragments (overriding them), and closes matching gaps. A decision
// re-resolving an already-answered question supersedes the prior decision.
// Re-integration of an existing id is a no-op.
func (e *Engine) IntegrateDecision(ctx context.Context, in DecisionInput) (bool, error) {
	in.ID = ensureID(in.ID)
	if ok, err := e.DB.HasEntity(in.ID); err != nil || ok {
		return false, err
	}

	d := &store.Decision{
		ID:           in.ID,
		QuestionID:   in.QuestionID,
		Text:         in.Text,
		Rationale:    in.Rationale,
		Implications: in.Implications,
		Owner:        in.Owner,
		Status:       store.DecisionActive,
		KeyTerms:     ExtractKeyTerms(in.Text+" "+in.Rationale, e.Cfg.KeyTermLimit),
	}
	if err := e.DB.InsertDecision(d); err != nil {
		return false, err
	}
	vec := e.embed(ctx, d.ID, d.Text)

	var question *store.Question
	if d.QuestionID != "" {
		q, err := e.DB.GetQuestion(d.QuestionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return true, err
		}
		question = q
	}

	if question != nil {
		if err := e.resolveQuestion(d, question); err != nil {
			return true, err
		}
	}

	vectors, err := e.vectorMap()
	if err != nil {
		return true, err
	}

	if vec != nil {
		if err := e.matchImpactedItems(d, vec, vectors); err != nil {
			return true, err
		}
		if err := e.detectConflicts(d, question, vec, vectors); err != nil {
			return true, err
		}
		if err := e.matchAddressedGaps(d, vec, vectors); err != nil {
			return true, err
		}
	}

	return true, nil
}

// resolveQuestion flips the question to answered and records the
// bidirectional RESOLVES/ANSWERED_BY pair. If a different active decision
// had answered it, that decision becomes superseded.
func (e *Engine) resolveQuestion(d *store.Decision, q *store.Question) error {
	if q.ResolvedBy != "" && q.ResolvedBy != d.ID {
		if err := e.supersede(d.ID, q.ResolvedBy); err != nil {
			return err
		}
	}

	if err := e.DB.InsertRelation(&store.Relation{Type: store.RelResolves, FromID: d.ID, ToID: q.ID}); err != nil {
		return err
	}
	if err := e.DB.InsertRelation(&store.Relation{Type: store.RelAnsweredBy, FromID: q.ID, ToID: d.ID}); err != nil {
		return err
	}
	return e.DB.SetQuestionAnswered(q.ID, d.ID)
}

// supersede marks the older decision superseded and records the
// SUPERSEDES edge from the newer one.
func (e *Engine) supersede(newerID, olderID string) error {
	err := e.DB.SetDecisionStatus(olderID, store.DecisionSuperseded)
	if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		return err
	}
	return e.DB.InsertRelation(&store.Relation{Type: store.RelSupersedes, FromID: newerID, ToID: olderID})
}

// matchImpactedItems adds IMPACTS edges to roadmap items semantically close
// to the decision text.
func (e *Engine) matchImpactedItems(d *store.Decision, vec []float64, vectors map[string][]float64) error {
	items, err := e.DB.RoadmapItems()
	if err != nil {
		return err
	}
	for _, item := range items {
		itemVec, ok := vectors[item.ID]
		if !ok {
			continue
		}
		if sim := CosineSimilarity(vec, itemVec); sim >= e.Cfg.ImpactMatch {
			if err := e.DB.InsertRelation(&store.Relation{Type: store.RelImpacts, FromID: d.ID, ToID: item.ID, Weight: sim}); err != nil {
				return err
			}
		}
	}
	return nil
}

// detectConflicts finds fragments the decision contradicts: at least
// ConflictMinTerms shared key terms with the union of the decision's and
// question's term sets, and cosine similarity at or above
// ConflictSimilarity. Conflicting fragments gain an OVERRIDES edge and the
// superseded-by annotation; a fragment already overridden by a different
// active decision forces that older decision into superseded first, so at
// most one active decision overrides a fragment at a time.
func (e *Engine) detectConflicts(d *store.Decision, q *store.Question, vec []float64, vectors map[string][]float64) error {
	terms := d.KeyTerms
	if q != nil {
		terms = unionTerms(d.KeyTerms, q.KeyTerms)
	}

	fragments, err := e.DB.Fragments()
	if err != nil {
		return err
	}

	for _, frag := range fragments {
		fragVec, ok := vectors[frag.ID]
		if !ok {
			continue // vectorless fragments are excluded from conflict detection
		}
		if sharedTermCount(frag.KeyTerms, terms) < e.Cfg.ConflictMinTerms {
			continue
		}
		sim := CosineSimilarity(vec, fragVec)
		if sim < e.Cfg.ConflictSimilarity {
			continue
		}

		prior, err := e.DB.ActiveOverrider(frag.ID)
		if err != nil {
			return err
		}
		if prior != "" && prior != d.ID {
			if err := e.supersede(d.ID, prior); err != nil {
				return err
			}
		}

		if err := e.DB.InsertRelation(&store.Relation{Type: store.RelOverrides, FromID: d.ID, ToID: frag.ID, Weight: sim}); err != nil {
			return err
		}
		reason := fmt.Sprintf("conflicts with decision %s: %s", d.ID, clip(d.Text, 120))
		if err := e.DB.MarkFragmentSuperseded(frag.ID, d.ID, reason); err != nil {
			return err
		}
	}

	return nil
}

// matchAddressedGaps closes gaps the decision speaks to: term overlap plus
// semantic similarity, same shape as conflict detection but against gaps.
func (e *Engine) matchAddressedGaps(d *store.Decision, vec []float64, vectors map[string][]float64) error {
	gaps, err := e.DB.Gaps()
	if err != nil {
		return err
	}
	for _, g := range gaps {
		if g.AddressedBy != "" {
			continue
		}
		gapVec, ok := vectors[g.ID]
		if !ok {
			continue
		}
		if sharedTermCount(g.KeyTerms, d.KeyTerms) < e.Cfg.ConflictMinTerms {
			continue
		}
		if sim := CosineSimilarity(vec, gapVec); sim >= e.Cfg.ImpactMatch {
			if err := e.DB.InsertRelation(&store.Relation{Type: store.RelAddressedBy, FromID: g.ID, ToID: d.ID, Weight: sim}); err != nil {
				return err
			}
			if err := e.DB.SetGapAddressedBy(g.ID, d.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// IntegrateRoadmapItem creates a roadmap item, finds supporting fragments,
// and links pre-existing decisions and questions that reference it.
// Re-integration of an existing id is a no-op.
func (e *Engine) IntegrateRoadmapItem(ctx context.Context, in RoadmapItemInput) (bool, error) {
	in.ID = ensureID(in.ID)
	if ok, err := e.DB.HasEntity(in.ID); err != nil || ok {
		return false, err
	}

	item := &store.RoadmapItem{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Horizon:     in.Horizon,
		Theme:       in.Theme,
		Owner:       in.Owner,
	}
	item.KeyTerms = ExtractKeyTerms(item.Body(), e.Cfg.KeyTermLimit)
	if err := e.DB.InsertRoadmapItem(item); err != nil {
		return false, err
	}
	vec := e.embed(ctx, item.ID, item.Body())

	vectors, err := e.vectorMap()
	if err != nil {
		return true, err
	}

	if vec != nil {
		// Supporting fragments
		fragments, err := e.DB.Fragments()
		if err != nil {
			return true, err
		}
		for _, frag := range fragments {
			fragVec, ok := vectors[frag.ID]
			if !ok {
				continue
			}
			if sim := CosineSimilarity(vec, fragVec); sim >= e.Cfg.SupportMatch {
				if err := e.DB.InsertRelation(&store.Relation{Type: store.RelSupportedBy, FromID: item.ID, ToID: frag.ID, Weight: sim}); err != nil {
					return true, err
				}
			}
		}

		// Pre-existing decisions that impact this item
		decisions, err := e.DB.Decisions()
		if err != nil {
			return true, err
		}
		for _, d := range decisions {
			dVec, ok := vectors[d.ID]
			if !ok {
				continue
			}
			if sim := CosineSimilarity(vec, dVec); sim >= e.Cfg.ImpactMatch {
				if err := e.DB.InsertRelation(&store.Relation{Type: store.RelImpacts, FromID: d.ID, ToID: item.ID, Weight: sim}); err != nil {
					return true, err
				}
			}
		}
	}

	// Pre-existing questions that name this item
	questions, err := e.DB.Questions()
	if err != nil {
		return true, err
	}
	for _, q := range questions {
		if q.AboutItem != "" && fuzzyNameMatch(q.AboutItem, item.Name) {
			if err := e.DB.InsertRelation(&store.Relation{Type: store.RelAboutItem, FromID: q.ID, ToID: item.ID}); err != nil {
				return true, err
			}
		}
	}

	return true, nil
}

// IntegrateAssessment creates an assessment, links analyzed roadmap items
// and fragments, creates the gaps its payload identifies, and creates or
// links the questions it raises. Re-integration of an existing id is a
// no-op.
func (e *Engine) IntegrateAssessment(ctx context.Context, in AssessmentInput) (bool, error) {
	in.ID = ensureID(in.ID)
	if ok, err := e.DB.HasEntity(in.ID); err != nil || ok {
		return false, err
	}

	payload, err := ParsePayload(in.Subtype, in.Payload)
	if err != nil {
		return false, err
	}

	a := &store.Assessment{
		ID:         in.ID,
		Subtype:    in.Subtype,
		Summary:    in.Summary,
		Confidence: in.Confidence,
		Payload:    in.Payload,
		KeyTerms:   ExtractKeyTerms(in.Summary, e.Cfg.KeyTermLimit),
	}
	if err := e.DB.InsertAssessment(a); err != nil {
		return false, err
	}
	e.embed(ctx, a.ID, a.Summary)

	if err := e.linkAssessment(ctx, a, payload); err != nil {
		return true, err
	}
	return true, nil
}

// linkAssessment wires an assessment's payload into the graph. Safe to
// re-run: every edge insert is idempotent and entity creation checks ids.
// The cross-reference pass calls this again for references that could not
// resolve on first integration.
func (e *Engine) linkAssessment(ctx context.Context, a *store.Assessment, payload Payload) error {
	items, err := e.DB.RoadmapItems()
	if err != nil {
		return err
	}
	itemByName := func(ref string) *store.RoadmapItem {
		for _, item := range items {
			if fuzzyNameMatch(ref, item.Name) {
				return item
			}
		}
		return nil
	}

	for _, name := range payload.ItemNames() {
		if item := itemByName(name); item != nil {
			if err := e.DB.InsertRelation(&store.Relation{Type: store.RelAnalyzesItem, FromID: a.ID, ToID: item.ID}); err != nil {
				return err
			}
		}
	}

	for _, fragID := range payload.FragmentIDs() {
		err := e.DB.InsertRelation(&store.Relation{Type: store.RelAnalyzesChunk, FromID: a.ID, ToID: fragID})
		if errors.Is(err, store.ErrUnknownEndpoint) {
			log.Printf("assessment %s: analyzed fragment %s not ingested yet", a.ID, fragID)
			continue
		}
		if err != nil {
			return err
		}
	}

	for _, spec := range payload.GapSpecs() {
		gapID := spec.ID
		if gapID == "" {
			// Deterministic id so re-running integration does not mint
			// duplicate gaps for the same payload entry.
			gapID = a.ID + "-gap-" + firstTerm(spec.Description)
		}
		ok, err := e.DB.HasEntity(gapID)
		if err != nil {
			return err
		}
		if !ok {
			g := &store.Gap{
				ID:           gapID,
				Description:  spec.Description,
				Severity:     spec.Severity,
				Category:     spec.Category,
				IdentifiedBy: a.ID,
				KeyTerms:     ExtractKeyTerms(spec.Description, e.Cfg.KeyTermLimit),
			}
			if err := e.DB.InsertGap(g); err != nil {
				return err
			}
			e.embed(ctx, g.ID, g.Description)
		}
		if err := e.DB.InsertRelation(&store.Relation{Type: store.RelIdentifiesGap, FromID: a.ID, ToID: gapID}); err != nil {
			return err
		}
		if spec.RoadmapItem != "" {
			if item := itemByName(spec.RoadmapItem); item != nil {
				if err := e.DB.InsertRelation(&store.Relation{Type: store.RelHasGap, FromID: item.ID, ToID: gapID}); err != nil {
					return err
				}
				if err := e.DB.InsertRelation(&store.Relation{Type: store.RelGapFor, FromID: gapID, ToID: item.ID}); err != nil {
					return err
				}
			}
		}
	}

	for _, spec := range payload.QuestionSpecs() {
		qID := ensureID(spec.ID)
		ok, err := e.DB.HasEntity(qID)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := e.IntegrateQuestion(ctx, QuestionInput{
				ID:        qID,
				Text:      spec.Text,
				Audience:  spec.Audience,
				Category:  spec.Category,
				Priority:  spec.Priority,
				AboutItem: spec.AboutItem,
			}); err != nil {
				return err
			}
		}
		if err := e.DB.InsertRelation(&store.Relation{Type: store.RelRaisesQuestion, FromID: a.ID, ToID: qID}); err != nil {
			return err
		}
		if err := e.DB.InsertRelation(&store.Relation{Type: store.RelRaisedBy, FromID: qID, ToID: a.ID}); err != nil {
			return err
		}
		if err := e.DB.SetQuestionRaisedBy(qID, a.ID); err != nil {
			return err
		}
	}

	return nil
}

// firstTerm returns the first key term of a text, for deterministic
// derived ids.
func firstTerm(text string) string {
	terms := ExtractKeyTerms(text, 1)
	if len(terms) == 0 {
		return "x"
	}
	return terms[0]
}

// clip truncates a string for log and annotation text.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
