// Package config holds the pipeline configuration: external endpoints,
// retrieval limits, scoring weights, and loop bounds. Values load from
// YAML with environment overrides and are validated before use.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the language model client.
type LLMConfig struct {
	// BaseURL targets an OpenAI-compatible endpoint. Empty means the
	// public OpenAI API.
	BaseURL string `yaml:"base_url"`
	// Model is the model name.
	Model string `yaml:"model"`
	// APIKey is the API key. Usually left empty and taken from the
	// OPENAI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`
	// Timeout bounds a single model call.
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig configures the vector search index.
type SearchConfig struct {
	// PersistPath is where the embedded index lives on disk. Empty keeps
	// it in memory.
	PersistPath string `yaml:"persist_path"`
	// Collection is the index collection name.
	Collection string `yaml:"collection"`
	// CallTimeout bounds a single search call.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// RetrievalConfig configures the retrieval strategies.
type RetrievalConfig struct {
	// FocusedLimit is the result limit for the focused strategy.
	FocusedLimit int `yaml:"focused_limit"`
	// BroadLimit is the per-sub-search limit for the broad strategy.
	BroadLimit int `yaml:"broad_limit"`
	// MaxConcurrency bounds parallel sub-searches.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// GradingConfig configures document grading.
type GradingConfig struct {
	// MaxConcurrency bounds parallel per-passage grading calls.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// RerankConfig configures re-ranking. The four weights must sum to 1.
type RerankConfig struct {
	SemanticWeight  float64 `yaml:"semantic_weight"`
	KeywordWeight   float64 `yaml:"keyword_weight"`
	QualityWeight   float64 `yaml:"quality_weight"`
	DiversityWeight float64 `yaml:"diversity_weight"`
	// TopK caps the ranked set size.
	TopK int `yaml:"top_k"`
	// MinScore drops passages with a lower combined score.
	MinScore float64 `yaml:"min_score"`
}

// PipelineConfig configures the coordinator.
type PipelineConfig struct {
	// MaxRewrites bounds the query rewrite loop.
	MaxRewrites int `yaml:"max_rewrites"`
	// EnableEnrichment turns on the context enrichment stage.
	EnableEnrichment bool `yaml:"enable_enrichment"`
	// VerifyCitations turns on the citation verification stage.
	VerifyCitations bool `yaml:"verify_citations"`
	// HumanInTheLoop pauses at review checkpoints for human feedback.
	HumanInTheLoop bool `yaml:"human_in_the_loop"`
}

// CheckpointConfig configures run persistence.
type CheckpointConfig struct {
	// Backend selects the store: "memory", "file", or "redis".
	Backend string `yaml:"backend"`
	// Path is the file store location (file backend).
	Path string `yaml:"path"`
	// RedisAddr is the Redis address (redis backend).
	RedisAddr string `yaml:"redis_addr"`
	// TTL expires persisted runs. Zero means no expiry.
	TTL time.Duration `yaml:"ttl"`
}

// Config is the root configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Search     SearchConfig     `yaml:"search"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Grading    GradingConfig    `yaml:"grading"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// Default returns the canonical configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Search: SearchConfig{
			Collection:  "passages",
			CallTimeout: 15 * time.Second,
		},
		Retrieval: RetrievalConfig{
			FocusedLimit:   40,
			BroadLimit:     15,
			MaxConcurrency: 4,
		},
		Grading: GradingConfig{
			MaxConcurrency: 4,
		},
		Rerank: RerankConfig{
			SemanticWeight:  0.40,
			KeywordWeight:   0.25,
			QualityWeight:   0.20,
			DiversityWeight: 0.15,
			TopK:            10,
			MinScore:        0.3,
		},
		Pipeline: PipelineConfig{
			MaxRewrites:      1,
			EnableEnrichment: false,
			VerifyCitations:  false,
			HumanInTheLoop:   false,
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("QUARRY_REDIS_ADDR"); v != "" && c.Checkpoint.RedisAddr == "" {
		c.Checkpoint.RedisAddr = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	sum := c.Rerank.SemanticWeight + c.Rerank.KeywordWeight +
		c.Rerank.QualityWeight + c.Rerank.DiversityWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("rerank weights must sum to 1, got %.4f", sum)
	}
	for name, w := range map[string]float64{
		"semantic_weight":  c.Rerank.SemanticWeight,
		"keyword_weight":   c.Rerank.KeywordWeight,
		"quality_weight":   c.Rerank.QualityWeight,
		"diversity_weight": c.Rerank.DiversityWeight,
	} {
		if w < 0 {
			return fmt.Errorf("rerank %s must not be negative", name)
		}
	}
	if c.Rerank.TopK <= 0 {
		return fmt.Errorf("rerank top_k must be positive, got %d", c.Rerank.TopK)
	}
	if c.Rerank.MinScore < 0 || c.Rerank.MinScore > 1 {
		return fmt.Errorf("rerank min_score must be in [0, 1], got %.2f", c.Rerank.MinScore)
	}
	if c.Pipeline.MaxRewrites < 0 {
		return fmt.Errorf("pipeline max_rewrites must not be negative, got %d", c.Pipeline.MaxRewrites)
	}
	if c.Retrieval.MaxConcurrency <= 0 {
		return fmt.Errorf("retrieval max_concurrency must be positive, got %d", c.Retrieval.MaxConcurrency)
	}
	if c.Grading.MaxConcurrency <= 0 {
		return fmt.Errorf("grading max_concurrency must be positive, got %d", c.Grading.MaxConcurrency)
	}
	switch c.Checkpoint.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	return nil
}
