// Package quarry assembles a ready-to-use pipeline.Coordinator from a
// Config: the OpenAI client, the chromem search index, the checkpoint
// store named by the checkpoint backend, and every stage component wired
// with its configuration section. Callers that need a different
// composition can build pipeline.Components by hand instead.
package quarry

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/philippgille/chromem-go"
	"github.com/redis/go-redis/v9"

	"github.com/quarrylabs/quarry/analyzer"
	"github.com/quarrylabs/quarry/checkpoint"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/enricher"
	"github.com/quarrylabs/quarry/grader"
	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/pipeline"
	"github.com/quarrylabs/quarry/quality"
	"github.com/quarrylabs/quarry/reranker"
	"github.com/quarrylabs/quarry/retriever"
	"github.com/quarrylabs/quarry/search"
	"github.com/quarrylabs/quarry/synthesis"
)

// Option configures the assembly.
type Option func(*builder)

type builder struct {
	logger *slog.Logger
	embed  chromem.EmbeddingFunc
}

// WithLogger sets the logger shared by every assembled component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// WithEmbedding sets the embedding function for the search index. Nil
// uses the index's default, which embeds through the OpenAI API.
func WithEmbedding(fn chromem.EmbeddingFunc) Option {
	return func(b *builder) {
		b.embed = fn
	}
}

// New builds a Coordinator from the configuration. A nil cfg uses the
// defaults; a non-nil cfg is validated first.
func New(cfg *config.Config, opts ...Option) (*pipeline.Coordinator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &builder{
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	model := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey,
		llm.WithModel(cfg.LLM.Model),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithLogger(b.logger))

	index, err := search.NewChromemClient(cfg.Search.PersistPath, cfg.Search.Collection, b.embed)
	if err != nil {
		return nil, fmt.Errorf("quarry: search index: %w", err)
	}

	store, err := NewStore(cfg.Checkpoint)
	if err != nil {
		return nil, err
	}

	components := pipeline.Components{
		Analyzer: analyzer.New(model, analyzer.WithLogger(b.logger)),
		Retriever: retriever.New(index,
			retriever.WithConfig(cfg.Retrieval),
			retriever.WithCallTimeout(cfg.Search.CallTimeout),
			retriever.WithLogger(b.logger)),
		Grader: grader.New(model,
			grader.WithConfig(cfg.Grading),
			grader.WithLogger(b.logger)),
		ReRanker: reranker.New(
			reranker.WithConfig(cfg.Rerank),
			reranker.WithLogger(b.logger)),
		Assessor: quality.New(quality.WithLogger(b.logger)),
		Writer:   synthesis.NewWriter(model, synthesis.WithWriterLogger(b.logger)),
	}
	if cfg.Pipeline.EnableEnrichment {
		components.Enricher = enricher.New(model, enricher.WithLogger(b.logger))
	}
	if cfg.Pipeline.VerifyCitations {
		components.Verifier = synthesis.NewVerifier(synthesis.WithVerifierLogger(b.logger))
	}

	return pipeline.New(components, store,
		pipeline.WithConfig(cfg.Pipeline),
		pipeline.WithLogger(b.logger))
}

// NewStore builds the checkpoint store the configuration names. An empty
// backend means memory.
func NewStore(cfg config.CheckpointConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "file":
		return checkpoint.NewFileStore(cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return checkpoint.NewRedisStore(client, checkpoint.WithTTL(cfg.TTL)), nil
	default:
		return nil, fmt.Errorf("quarry: unknown checkpoint backend %q", cfg.Backend)
	}
}
