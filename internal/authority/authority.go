// Package authority ranks graph entities on the fixed 7-level precedence
// scale used to resolve conflicts between content of different provenance.
// Lower rank means higher authority. The classifier is pure: it is consulted
// for sorting and filtering only and never mutates the graph.
package authority

import (
	"github.com/lazypower/groundtruth/internal/store"
)

// Rank is a position on the 7-level authority scale.
type Rank int

const (
	RankActiveDecision   Rank = 1
	RankAnsweredQuestion Rank = 2
	RankAssessment       Rank = 3
	RankRoadmapItem      Rank = 4
	RankGap              Rank = 5
	RankFragment         Rank = 6
	RankPendingQuestion  Rank = 7
)

// String names the rank for display and API payloads.
func (r Rank) String() string {
	switch r {
	case RankActiveDecision:
		return "active decisions"
	case RankAnsweredQuestion:
		return "answered questions"
	case RankAssessment:
		return "assessments"
	case RankRoadmapItem:
		return "roadmap items"
	case RankGap:
		return "gaps"
	case RankFragment:
		return "source fragments"
	case RankPendingQuestion:
		return "open questions"
	}
	return "unknown"
}

// Classify maps an entity to its authority rank. The second return value is
// true for historical content: superseded decisions, obsolete questions, and
// overridden fragments. Historical entities carry a rank-6-equivalent
// position but are visible only when the caller opts in.
func Classify(e store.Entity) (Rank, bool) {
	switch v := e.(type) {
	case *store.Decision:
		if v.Status == store.DecisionSuperseded {
			return RankFragment, true
		}
		// A decision under revisiting is still the latest authoritative
		// word until it is actually superseded.
		return RankActiveDecision, false
	case *store.Question:
		switch v.Status {
		case store.QuestionAnswered:
			return RankAnsweredQuestion, false
		case store.QuestionObsolete:
			return RankFragment, true
		default: // pending, deferred
			return RankPendingQuestion, false
		}
	case *store.Assessment:
		return RankAssessment, false
	case *store.RoadmapItem:
		return RankRoadmapItem, false
	case *store.Gap:
		return RankGap, false
	case *store.Fragment:
		if v.Superseded() {
			return RankFragment, true
		}
		return RankFragment, false
	}
	return RankPendingQuestion, false
}
