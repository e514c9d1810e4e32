package config

import "fmt"

// Config holds all groundtruth configuration.
type Config struct {
	Server     ServerConfig    `toml:"server"`
	Database   DatabaseConfig  `toml:"database"`
	Embedding  EmbeddingConfig `toml:"embedding"`
	Thresholds Thresholds      `toml:"thresholds"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider"` // "ollama", "tfidf"
	OllamaURL string `toml:"ollama_url"`
	Model     string `toml:"model"` // e.g. "nomic-embed-text"
}

// Thresholds are the heuristic constants of integration and retrieval.
// They are tunable configuration, not load-bearing business logic.
type Thresholds struct {
	// ConflictMinTerms is the minimum key-term overlap between a fragment
	// and the decision+question term union for a conflict.
	ConflictMinTerms int `toml:"conflict_min_terms"`
	// ConflictSimilarity is the minimum cosine similarity between a
	// decision and a fragment for a conflict.
	ConflictSimilarity float64 `toml:"conflict_similarity"`
	// Relevance is the minimum query similarity for a retrieval seed.
	Relevance float64 `toml:"relevance"`
	// ImpactMatch is the minimum similarity between a decision and a
	// roadmap item for an IMPACTS edge.
	ImpactMatch float64 `toml:"impact_match"`
	// SupportMatch is the minimum similarity between a roadmap item and a
	// fragment for a SUPPORTED_BY edge.
	SupportMatch float64 `toml:"support_match"`
	// FragmentSimilarity is the minimum similarity for a fragment-to-
	// fragment SIMILAR edge.
	FragmentSimilarity float64 `toml:"fragment_similarity"`
	// ExpansionHops bounds graph traversal during retrieval.
	ExpansionHops int `toml:"expansion_hops"`
	// KeyTermLimit caps the number of key terms extracted per entity.
	KeyTermLimit int `toml:"key_term_limit"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Embedding: EmbeddingConfig{
			Provider:  "tfidf",
			OllamaURL: "http://localhost:11434",
			Model:     "nomic-embed-text",
		},
		Thresholds: DefaultThresholds(),
	}
}

// DefaultThresholds returns the default heuristic constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConflictMinTerms:   2,
		ConflictSimilarity: 0.7,
		Relevance:          0.6,
		ImpactMatch:        0.6,
		SupportMatch:       0.6,
		FragmentSimilarity: 0.75,
		ExpansionHops:      1,
		KeyTermLimit:       12,
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
