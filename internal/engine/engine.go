package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/store"
)

// Engine wires the integrator and the retrieval engine over one store and
// one embedding provider. It is the single logical owner of graph writes;
// retrieval methods never mutate the store.
type Engine struct {
	DB       *store.DB
	Embedder Embedder
	Cfg      config.Thresholds
}

// New creates an Engine. A nil embedder is allowed: entities are then
// stored without vectors and all similarity-based matching is skipped.
func New(db *store.DB, emb Embedder, cfg config.Thresholds) *Engine {
	return &Engine{DB: db, Embedder: emb, Cfg: cfg}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// embed computes and persists an embedding for an entity, degrading
// gracefully: on provider failure the entity stays vectorless and is
// excluded from similarity matching, but keeps its explicit relations.
func (e *Engine) embed(ctx context.Context, entityID, text string) []float64 {
	if e.Embedder == nil || text == "" {
		return nil
	}
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("embed %s: %v", entityID, err)
		return nil
	}
	if err := e.DB.SaveVector(entityID, vec, e.Embedder.Model()); err != nil {
		log.Printf("save vector %s: %v", entityID, err)
	}
	return vec
}

// EmbedMissing embeds all entities that don't have a vector or whose
// stored vector came from a different model. Returns the number embedded.
func (e *Engine) EmbedMissing(ctx context.Context) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	entities, err := e.DB.AllEntities()
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}

	embedded := 0
	for _, ent := range entities {
		if ent.Body() == "" {
			continue
		}
		existing, err := e.DB.GetVector(ent.EntityID())
		if err != nil {
			log.Printf("embed missing: get vector for %s: %v", ent.EntityID(), err)
			continue
		}
		if existing != nil && existing.Model == e.Embedder.Model() {
			continue
		}
		if vec := e.embed(ctx, ent.EntityID(), ent.Body()); vec != nil {
			embedded++
		}
	}

	return embedded, nil
}

// vectorMap loads every stored embedding keyed by entity id.
func (e *Engine) vectorMap() (map[string][]float64, error) {
	vectors, err := e.DB.AllVectors()
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	m := make(map[string][]float64, len(vectors))
	for _, v := range vectors {
		m[v.EntityID] = v.Embedding
	}
	return m, nil
}
