package store

import (
	"encoding/json"
)

// Kind tags one of the six entity variants in the graph.
type Kind string

const (
	KindFragment    Kind = "fragment"
	KindDecision    Kind = "decision"
	KindQuestion    Kind = "question"
	KindAssessment  Kind = "assessment"
	KindRoadmapItem Kind = "roadmap_item"
	KindGap         Kind = "gap"
)

// DecisionStatus is the lifecycle state of a decision. Transitions are
// monotonic: a superseded decision never returns to active.
type DecisionStatus string

const (
	DecisionActive     DecisionStatus = "active"
	DecisionSuperseded DecisionStatus = "superseded"
	DecisionRevisiting DecisionStatus = "revisiting"
)

// QuestionStatus is the lifecycle state of a question.
type QuestionStatus string

const (
	QuestionPending  QuestionStatus = "pending"
	QuestionAnswered QuestionStatus = "answered"
	QuestionDeferred QuestionStatus = "deferred"
	QuestionObsolete QuestionStatus = "obsolete"
)

// AssessmentType discriminates the three assessment payload variants.
type AssessmentType string

const (
	AssessmentArchitecture   AssessmentType = "architecture"
	AssessmentCompetitive    AssessmentType = "competitive"
	AssessmentDocumentImpact AssessmentType = "document_impact"
)

// Entity is the tagged union over the six variants. The concrete type
// carries only the fields relevant to its kind; callers switch on
// EntityKind() or type-assert.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	CreatedUnix() int64
	// Terms returns the extracted key terms used for lexical overlap checks.
	Terms() []string
	// Body returns the text used for embedding and display.
	Body() string
}

// Fragment is an immutable excerpt of ingested source content. Only the
// superseded-by fields mutate after creation.
type Fragment struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Lens             string   `json:"lens"`
	SourceID         string   `json:"source_id"`
	Seq              int      `json:"seq"`
	SupersededBy     string   `json:"superseded_by,omitempty"`
	SupersededReason string   `json:"superseded_reason,omitempty"`
	KeyTerms         []string `json:"key_terms,omitempty"`
	CreatedAt        int64    `json:"created_at"`
}

func (f *Fragment) EntityID() string   { return f.ID }
func (f *Fragment) EntityKind() Kind   { return KindFragment }
func (f *Fragment) CreatedUnix() int64 { return f.CreatedAt }
func (f *Fragment) Terms() []string    { return f.KeyTerms }
func (f *Fragment) Body() string       { return f.Text }

// Superseded reports whether an active decision has overridden this fragment.
func (f *Fragment) Superseded() bool { return f.SupersededBy != "" }

// Decision is a resolved, authoritative determination.
type Decision struct {
	ID           string         `json:"id"`
	QuestionID   string         `json:"question_id,omitempty"`
	Text         string         `json:"text"`
	Rationale    string         `json:"rationale,omitempty"`
	Implications []string       `json:"implications,omitempty"`
	Owner        string         `json:"owner,omitempty"`
	Status       DecisionStatus `json:"status"`
	KeyTerms     []string       `json:"key_terms,omitempty"`
	CreatedAt    int64          `json:"created_at"`
}

func (d *Decision) EntityID() string   { return d.ID }
func (d *Decision) EntityKind() Kind   { return KindDecision }
func (d *Decision) CreatedUnix() int64 { return d.CreatedAt }
func (d *Decision) Terms() []string    { return d.KeyTerms }
func (d *Decision) Body() string       { return d.Text }

// Question is an open or resolved inquiry.
type Question struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Audience  string         `json:"audience,omitempty"`
	Category  string         `json:"category,omitempty"`
	Priority  string         `json:"priority,omitempty"`
	Status    QuestionStatus `json:"status"`
	RaisedBy  string         `json:"raised_by,omitempty"`   // originating assessment id
	ResolvedBy string        `json:"resolved_by,omitempty"` // resolving decision id
	AboutItem string         `json:"about_item,omitempty"`  // roadmap item name reference
	KeyTerms  []string       `json:"key_terms,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

func (q *Question) EntityID() string   { return q.ID }
func (q *Question) EntityKind() Kind   { return KindQuestion }
func (q *Question) CreatedUnix() int64 { return q.CreatedAt }
func (q *Question) Terms() []string    { return q.KeyTerms }
func (q *Question) Body() string       { return q.Text }

// Assessment is a structured analytical artifact. Payload holds the
// subtype-specific structure; decode it with engine.ParsePayload.
type Assessment struct {
	ID         string          `json:"id"`
	Subtype    AssessmentType  `json:"subtype"`
	Summary    string          `json:"summary"`
	Confidence float64         `json:"confidence"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	KeyTerms   []string        `json:"key_terms,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

func (a *Assessment) EntityID() string   { return a.ID }
func (a *Assessment) EntityKind() Kind   { return KindAssessment }
func (a *Assessment) CreatedUnix() int64 { return a.CreatedAt }
func (a *Assessment) Terms() []string    { return a.KeyTerms }
func (a *Assessment) Body() string       { return a.Summary }

// RoadmapItem is a synthesized plan entry.
type RoadmapItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Horizon     string   `json:"horizon,omitempty"`
	Theme       string   `json:"theme,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	KeyTerms    []string `json:"key_terms,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

func (r *RoadmapItem) EntityID() string   { return r.ID }
func (r *RoadmapItem) EntityKind() Kind   { return KindRoadmapItem }
func (r *RoadmapItem) CreatedUnix() int64 { return r.CreatedAt }
func (r *RoadmapItem) Terms() []string    { return r.KeyTerms }
func (r *RoadmapItem) Body() string {
	if r.Description == "" {
		return r.Name
	}
	return r.Name + ": " + r.Description
}

// Gap is a shortfall identified by an assessment.
type Gap struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Severity     string   `json:"severity,omitempty"`
	Category     string   `json:"category,omitempty"`
	IdentifiedBy string   `json:"identified_by,omitempty"` // identifying assessment id
	AddressedBy  string   `json:"addressed_by,omitempty"`  // addressing decision id
	KeyTerms     []string `json:"key_terms,omitempty"`
	CreatedAt    int64    `json:"created_at"`
}

func (g *Gap) EntityID() string   { return g.ID }
func (g *Gap) EntityKind() Kind   { return KindGap }
func (g *Gap) CreatedUnix() int64 { return g.CreatedAt }
func (g *Gap) Terms() []string    { return g.KeyTerms }
func (g *Gap) Body() string       { return g.Description }

// Kinds lists all entity kinds in sync dependency order.
func Kinds() []Kind {
	return []Kind{KindFragment, KindRoadmapItem, KindQuestion, KindDecision, KindAssessment, KindGap}
}

// encodeStrings marshals a string slice to its JSON column form.
// Empty slices encode as the empty string to keep the column NULL-ish.
func encodeStrings(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

// decodeStrings unmarshals a JSON column back to a string slice.
func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(s), &ss); err != nil {
		return nil
	}
	return ss
}
