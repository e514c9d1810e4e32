package engine

import (
	"encoding/json"
	"fmt"

	"github.com/lazypower/groundtruth/internal/store"
)

// GapSpec describes a gap found inside an assessment payload.
type GapSpec struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	Category    string `json:"category,omitempty"`
	// RoadmapItem optionally names the item the gap belongs to.
	RoadmapItem string `json:"roadmap_item,omitempty"`
}

// QuestionSpec describes a question raised inside an assessment payload.
type QuestionSpec struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text"`
	Audience string `json:"audience,omitempty"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	// AboutItem optionally names the roadmap item the question concerns.
	AboutItem string `json:"about_item,omitempty"`
}

// Payload is the decoded, subtype-specific body of an assessment. Each
// variant knows how to surface its own gaps, raised questions, analyzed
// roadmap item names, and analyzed fragment ids.
type Payload interface {
	GapSpecs() []GapSpec
	QuestionSpecs() []QuestionSpec
	ItemNames() []string
	FragmentIDs() []string
}

// ArchitecturePayload is the body of an architecture assessment.
type ArchitecturePayload struct {
	Systems   []string       `json:"systems,omitempty"`
	Findings  []string       `json:"findings,omitempty"`
	Gaps      []GapSpec      `json:"gaps,omitempty"`
	Questions []QuestionSpec `json:"questions,omitempty"`
}

func (p *ArchitecturePayload) GapSpecs() []GapSpec           { return p.Gaps }
func (p *ArchitecturePayload) QuestionSpecs() []QuestionSpec { return p.Questions }
func (p *ArchitecturePayload) ItemNames() []string           { return p.Systems }
func (p *ArchitecturePayload) FragmentIDs() []string         { return nil }

// Competitor is one entry of a competitive assessment.
type Competitor struct {
	Name        string `json:"name"`
	Positioning string `json:"positioning,omitempty"`
}

// CompetitivePayload is the body of a competitive assessment.
type CompetitivePayload struct {
	Competitors []Competitor   `json:"competitors,omitempty"`
	Items       []string       `json:"items,omitempty"` // roadmap item names under pressure
	Gaps        []GapSpec      `json:"gaps,omitempty"`
	Questions   []QuestionSpec `json:"questions,omitempty"`
}

func (p *CompetitivePayload) GapSpecs() []GapSpec           { return p.Gaps }
func (p *CompetitivePayload) QuestionSpecs() []QuestionSpec { return p.Questions }
func (p *CompetitivePayload) ItemNames() []string           { return p.Items }
func (p *CompetitivePayload) FragmentIDs() []string         { return nil }

// DocumentImpactPayload is the body of a document-impact assessment.
type DocumentImpactPayload struct {
	DocumentID    string         `json:"document_id,omitempty"`
	FragmentRefs  []string       `json:"fragment_refs,omitempty"` // analyzed fragment ids
	AffectedItems []string       `json:"affected_items,omitempty"`
	Gaps          []GapSpec      `json:"gaps,omitempty"`
	Questions     []QuestionSpec `json:"questions,omitempty"`
}

func (p *DocumentImpactPayload) GapSpecs() []GapSpec           { return p.Gaps }
func (p *DocumentImpactPayload) QuestionSpecs() []QuestionSpec { return p.Questions }
func (p *DocumentImpactPayload) ItemNames() []string           { return p.AffectedItems }
func (p *DocumentImpactPayload) FragmentIDs() []string         { return p.FragmentRefs }

// ParsePayload decodes an assessment payload by its subtype tag. A missing
// payload decodes to an empty variant of the right type.
func ParsePayload(subtype store.AssessmentType, raw json.RawMessage) (Payload, error) {
	decode := func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, v)
	}

	switch subtype {
	case store.AssessmentArchitecture:
		var p ArchitecturePayload
		if err := decode(&p); err != nil {
			return nil, fmt.Errorf("decode architecture payload: %w", err)
		}
		return &p, nil
	case store.AssessmentCompetitive:
		var p CompetitivePayload
		if err := decode(&p); err != nil {
			return nil, fmt.Errorf("decode competitive payload: %w", err)
		}
		return &p, nil
	case store.AssessmentDocumentImpact:
		var p DocumentImpactPayload
		if err := decode(&p); err != nil {
			return nil, fmt.Errorf("decode document-impact payload: %w", err)
		}
		return &p, nil
	}
	return nil, fmt.Errorf("unknown assessment subtype %q", subtype)
}
