package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/lazypower/groundtruth/internal/authority"
	"github.com/lazypower/groundtruth/internal/store"
)

// QueryOptions controls retrieval behavior.
type QueryOptions struct {
	// Limit caps entries per authority bucket. Zero means no cap.
	Limit int
	// IncludeHistorical surfaces superseded decisions, obsolete questions,
	// and overridden fragments in the lowest bucket. They are suppressed by
	// default.
	IncludeHistorical bool
}

// Entry is one retrieved entity with its provenance.
type Entry struct {
	ID         string       `json:"id"`
	Kind       store.Kind   `json:"kind"`
	Body       string       `json:"body"`
	Similarity float64      `json:"similarity"`
	// Via is the relation that pulled this entry in during graph
	// expansion; empty for direct similarity seeds.
	Via store.RelType `json:"via,omitempty"`
	// ViaID is the seed entity the expansion edge came from.
	ViaID string `json:"via_id,omitempty"`
	// Historical marks superseded or obsolete content surfaced on opt-in.
	Historical bool `json:"historical,omitempty"`
	// SupersededBy carries the overriding decision id for overridden
	// fragments and superseded decisions, so readers know what replaced
	// this content.
	SupersededBy string `json:"superseded_by,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// Bucket groups entries sharing an authority rank.
type Bucket struct {
	Rank    authority.Rank `json:"rank"`
	Label   string         `json:"label"`
	Entries []Entry        `json:"entries"`
}

// Result is a complete retrieval response, buckets ordered by descending
// authority (rank 1 first).
type Result struct {
	Query   string   `json:"query"`
	Buckets []Bucket `json:"buckets"`
}

// expansion declares which edges retrieval follows from a seed and in
// which direction. Authority edges run forward only: reaching a decision
// must not drag in everything the decision touches, but reaching a
// question should surface its answer.
var expansion = []struct {
	rel      store.RelType
	outgoing bool
	incoming bool
}{
	{store.RelResolves, true, false},
	{store.RelAnsweredBy, true, false},
	{store.RelSupersedes, true, false},
	{store.RelImpacts, true, false},
	{store.RelOverrides, true, false},
	{store.RelAddressedBy, true, false},
	{store.RelIdentifiesGap, true, false},
	{store.RelRaisesQuestion, true, false},
	{store.RelRaisedBy, true, false},
	{store.RelAboutItem, true, false},
	{store.RelAnalyzesItem, true, false},
	{store.RelAnalyzesChunk, true, false},
	{store.RelHasGap, true, false},
	{store.RelGapFor, true, false},
	{store.RelSupportedBy, true, true},
	{store.RelSimilar, true, true},
	{store.RelSameSource, true, true},
	{store.RelSameCategory, true, true},
	{store.RelSequential, true, true},
}

// Retrieve answers a query: embed it, seed with entities at or above the
// relevance threshold, expand one hop along the declared edges, then group
// by authority rank. Within a bucket entries sort by similarity descending,
// ties broken by older creation time first.
func (e *Engine) Retrieve(ctx context.Context, query string, opts QueryOptions) (*Result, error) {
	if e.Embedder == nil {
		return nil, fmt.Errorf("retrieve: %w", ErrEmbeddingUnavailable)
	}

	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors, err := e.vectorMap()
	if err != nil {
		return nil, err
	}

	entities, err := e.DB.AllEntities()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.Entity, len(entities))
	for _, ent := range entities {
		byID[ent.EntityID()] = ent
	}

	// Similarity seeds
	picked := make(map[string]*Entry)
	var seeds []string
	for _, ent := range entities {
		vec, ok := vectors[ent.EntityID()]
		if !ok {
			continue
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim < e.Cfg.Relevance {
			continue
		}
		picked[ent.EntityID()] = &Entry{
			ID:         ent.EntityID(),
			Kind:       ent.EntityKind(),
			Body:       ent.Body(),
			Similarity: sim,
			CreatedAt:  ent.CreatedUnix(),
		}
		seeds = append(seeds, ent.EntityID())
	}

	// Graph expansion from the seeds
	hops := e.Cfg.ExpansionHops
	if hops <= 0 {
		hops = 1
	}
	frontier := seeds
	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		var next []string
		for _, seedID := range frontier {
			neighbors, err := e.neighbors(seedID)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if _, ok := picked[n.id]; ok {
					continue
				}
				ent, ok := byID[n.id]
				if !ok {
					continue
				}
				// Expanded-only entities inherit the reaching seed's
				// similarity; direct matches above the threshold are
				// already seeds with their own score.
				sim := picked[seedID].Similarity
				picked[n.id] = &Entry{
					ID:         n.id,
					Kind:       ent.EntityKind(),
					Body:       ent.Body(),
					Similarity: sim,
					Via:        n.rel,
					ViaID:      seedID,
					CreatedAt:  ent.CreatedUnix(),
				}
				next = append(next, n.id)
			}
		}
		frontier = next
	}

	// Classify, annotate, suppress
	buckets := make(map[authority.Rank][]Entry)
	for id, entry := range picked {
		ent := byID[id]
		rank, historical := authority.Classify(ent)

		overriddenBy := ""
		if f, ok := ent.(*store.Fragment); ok && f.Superseded() {
			// Suppression keys off a live override: if the overriding
			// decision has itself been superseded, the fragment stands.
			overriddenBy, err = e.DB.ActiveOverrider(f.ID)
			if err != nil {
				return nil, err
			}
			historical = overriddenBy != ""
		}

		if historical {
			if !opts.IncludeHistorical {
				continue
			}
			entry.Historical = true
			switch ent.(type) {
			case *store.Fragment:
				entry.SupersededBy = overriddenBy
			case *store.Decision:
				entry.SupersededBy = e.supersededBy(id)
			}
		}
		buckets[rank] = append(buckets[rank], *entry)
	}

	result := &Result{Query: query}
	for rank := authority.RankActiveDecision; rank <= authority.RankPendingQuestion; rank++ {
		entries := buckets[rank]
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Similarity != entries[j].Similarity {
				return entries[i].Similarity > entries[j].Similarity
			}
			if entries[i].CreatedAt != entries[j].CreatedAt {
				return entries[i].CreatedAt < entries[j].CreatedAt
			}
			return entries[i].ID < entries[j].ID
		})
		if opts.Limit > 0 && len(entries) > opts.Limit {
			entries = entries[:opts.Limit]
		}
		result.Buckets = append(result.Buckets, Bucket{
			Rank:    rank,
			Label:   rank.String(),
			Entries: entries,
		})
	}

	return result, nil
}

type neighbor struct {
	id  string
	rel store.RelType
}

// neighbors returns the ids reachable from a node along the expansion
// edges, honoring per-relation direction.
func (e *Engine) neighbors(id string) ([]neighbor, error) {
	var out []neighbor
	for _, exp := range expansion {
		if exp.outgoing {
			edges, err := e.DB.Outgoing(id, exp.rel)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				out = append(out, neighbor{id: edge.ToID, rel: edge.Type})
			}
		}
		if exp.incoming {
			edges, err := e.DB.Incoming(id, exp.rel)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				out = append(out, neighbor{id: edge.FromID, rel: edge.Type})
			}
		}
	}
	return out, nil
}

// supersededBy returns the id of the decision that superseded the given
// decision, or "" if the SUPERSEDES edge is missing.
func (e *Engine) supersededBy(decisionID string) string {
	edges, err := e.DB.Incoming(decisionID, store.RelSupersedes)
	if err != nil || len(edges) == 0 {
		return ""
	}
	return edges[0].FromID
}
