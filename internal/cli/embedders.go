package cli

import (
	"fmt"
	"os"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/lazypower/groundtruth/internal/store"
)

// pickEmbedder probes Ollama and falls back to TF-IDF over the store's
// current content. Returns nil when even the fallback cannot be built.
func pickEmbedder(cfg config.EmbeddingConfig, db *store.DB) engine.Embedder {
	if cfg.Provider != "tfidf" && engine.ProbeOllama(cfg.OllamaURL, cfg.Model) {
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Model)
		return engine.NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, 768)
	}

	emb, err := engine.NewTFIDFEmbedder(db, 512)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tfidf embedder init failed: %v\n", err)
		return nil
	}
	fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
	return emb
}
