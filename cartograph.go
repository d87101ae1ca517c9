package cartograph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/cartograph/pkg/embedder"
	"github.com/soundprediction/cartograph/pkg/index"
	"github.com/soundprediction/cartograph/pkg/interpret"
	"github.com/soundprediction/cartograph/pkg/retrieve"
	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/telemetry"
	"github.com/soundprediction/cartograph/pkg/types"
)

// Config tunes the pipeline. Zero values take the documented defaults.
type Config struct {
	HopLimit                   int
	SeedCap                    int
	MentionSimilarityThreshold float64
	IntentConfidenceFloor      float64
	KDefault                   int
	Weights                    retrieve.Weights
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		HopLimit:                   retrieve.DefaultHopLimit,
		SeedCap:                    retrieve.DefaultSeedCap,
		MentionSimilarityThreshold: interpret.DefaultSimilarityThreshold,
		IntentConfidenceFloor:      interpret.DefaultConfidenceFloor,
		KDefault:                   10,
		Weights:                    retrieve.DefaultWeights(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.HopLimit <= 0 {
		c.HopLimit = d.HopLimit
	}
	if c.SeedCap <= 0 {
		c.SeedCap = d.SeedCap
	}
	if c.MentionSimilarityThreshold == 0 {
		c.MentionSimilarityThreshold = d.MentionSimilarityThreshold
	}
	if c.IntentConfidenceFloor == 0 {
		c.IntentConfidenceFloor = d.IntentConfidenceFloor
	}
	if c.KDefault <= 0 {
		c.KDefault = d.KDefault
	}
	if c.Weights == (retrieve.Weights{}) {
		c.Weights = d.Weights
	}
}

// Client is the pipeline facade: one instance serves concurrent queries
// and graph writes against a shared store.
type Client struct {
	store       store.GraphStore
	index       *index.Index
	interpreter *interpret.Interpreter
	retriever   *retrieve.Retriever
	recorder    *telemetry.Recorder
	config      Config
	logger      *slog.Logger
}

// NewClient assembles the pipeline. emb and classifier may be nil, which
// disables semantic mention resolution and the classifier fallback
// respectively.
func NewClient(graphStore store.GraphStore, emb embedder.Client, classifier interpret.Classifier, config Config, logger *slog.Logger) (*Client, error) {
	if graphStore == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()

	ix := index.New(graphStore, graphStore, emb)
	it := interpret.New(ix, classifier, interpret.Config{
		SimilarityThreshold: config.MentionSimilarityThreshold,
		ConfidenceFloor:     config.IntentConfidenceFloor,
	}, logger)
	rt := retrieve.New(graphStore, graphStore, graphStore, retrieve.Config{
		HopLimit: config.HopLimit,
		SeedCap:  config.SeedCap,
		Weights:  config.Weights,
	}, logger)

	return &Client{
		store:       graphStore,
		index:       ix,
		interpreter: it,
		retriever:   rt,
		config:      config,
		logger:      logger,
	}, nil
}

// SetRecorder attaches a telemetry recorder. Optional.
func (c *Client) SetRecorder(r *telemetry.Recorder) { c.recorder = r }

// PutEntity validates and upserts an entity, then refreshes its mention
// index entry. Index maintenance failures are logged, not fatal: the graph
// write already succeeded and lexical resolution still works.
func (c *Client) PutEntity(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	if err := c.store.PutEntity(ctx, entity); err != nil {
		return err
	}
	if err := c.index.IndexEntity(ctx, entity); err != nil {
		c.logger.Warn("entity index refresh failed",
			slog.String("entity_id", entity.ID),
			slog.String("error", err.Error()))
	}
	return nil
}

// PutRelationship validates and upserts a relationship, applying the
// store's confidence reconciliation.
func (c *Client) PutRelationship(ctx context.Context, rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	return c.store.PutRelationship(ctx, rel)
}

// GetEntity fetches one entity by id.
func (c *Client) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	return c.store.GetEntity(ctx, id)
}

// Stats reports graph size by type.
func (c *Client) Stats(ctx context.Context) (*store.GraphStats, error) {
	return c.store.Stats(ctx)
}

// Interpret exposes the interpreter stage for callers that manage their
// own retrieval.
func (c *Client) Interpret(ctx context.Context, rawText string, history []types.StructuredQuery) (types.StructuredQuery, error) {
	return c.interpreter.Interpret(ctx, rawText, history)
}

// Close releases the store and flushes telemetry.
func (c *Client) Close() error {
	if c.recorder != nil {
		if err := c.recorder.Close(); err != nil {
			c.logger.Warn("telemetry close failed", slog.String("error", err.Error()))
		}
	}
	return c.store.Close()
}
