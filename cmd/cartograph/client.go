package cartograph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/cartograph"
	"github.com/soundprediction/cartograph/pkg/config"
	"github.com/soundprediction/cartograph/pkg/embedder"
	"github.com/soundprediction/cartograph/pkg/interpret"
	cartographLogger "github.com/soundprediction/cartograph/pkg/logger"
	"github.com/soundprediction/cartograph/pkg/retrieve"
	"github.com/soundprediction/cartograph/pkg/store"
	"github.com/soundprediction/cartograph/pkg/telemetry"
)

// initializeClient builds the pipeline client from configuration: graph
// store by driver, optional embedder (wrapped in a circuit breaker when
// enabled), optional classifier and telemetry.
func initializeClient(cfg *config.Config) (*cartograph.Client, *slog.Logger, error) {
	logger := cartographLogger.NewDefaultLogger(cartographLogger.ParseLevel(cfg.Log.Level))

	graphStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	embedderClient, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var classifier interpret.Classifier
	if cfg.Classifier.Provider == "openai" {
		classifier = interpret.NewOpenAIClassifier(cfg.Classifier.APIKey, interpret.ClassifierConfig{
			Model:       cfg.Classifier.Model,
			BaseURL:     cfg.Classifier.BaseURL,
			Temperature: cfg.Classifier.Temperature,
			MaxTokens:   cfg.Classifier.MaxTokens,
		})
	}

	clientConfig := cartograph.Config{
		HopLimit:                   cfg.Pipeline.HopLimit,
		SeedCap:                    cfg.Pipeline.SeedCap,
		MentionSimilarityThreshold: cfg.Pipeline.MentionSimilarityThreshold,
		IntentConfidenceFloor:      cfg.Pipeline.IntentConfidenceFloor,
		KDefault:                   cfg.Pipeline.KDefault,
		Weights: retrieve.Weights{
			Mention:  cfg.Pipeline.ScoreWeights.Mention,
			HopDecay: cfg.Pipeline.ScoreWeights.HopDecay,
			Edge:     cfg.Pipeline.ScoreWeights.Edge,
			Spatial:  cfg.Pipeline.ScoreWeights.Spatial,
		},
	}

	client, err := cartograph.NewClient(graphStore, embedderClient, classifier, clientConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.ParquetPath != "" {
		recorder, err := telemetry.NewRecorder(cfg.Telemetry.ParquetPath, cfg.Telemetry.BatchSize, logger)
		if err != nil {
			logger.Warn("telemetry disabled", slog.String("error", err.Error()))
		} else {
			client.SetRecorder(recorder)
			fmt.Printf("Telemetry enabled at: %s\n", cfg.Telemetry.ParquetPath)
		}
	}
	return client, logger, nil
}

func openStore(cfg *config.Config) (store.GraphStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "badger":
		if cfg.Store.URI == "" {
			return nil, fmt.Errorf("store.uri is required for the badger driver")
		}
		return store.OpenBadgerStore(cfg.Store.URI)
	case "neo4j":
		if cfg.Store.URI == "" {
			return nil, fmt.Errorf("store.uri is required for the neo4j driver")
		}
		return store.NewNeo4jStore(cfg.Store.URI, cfg.Store.Username, cfg.Store.Password, cfg.Store.Database)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func buildEmbedder(cfg *config.Config, logger *slog.Logger) (embedder.Client, error) {
	var client embedder.Client
	switch cfg.Embedding.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, fmt.Errorf("embedding.api_key is required for the openai provider")
		}
		client = embedder.NewOpenAIClient(cfg.Embedding.APIKey, embedder.Config{
			Model:   cfg.Embedding.Model,
			BaseURL: cfg.Embedding.BaseURL,
		})
	case "embedeverything":
		var err error
		client, err = embedder.NewEmbedEverythingClient(embedder.Config{Model: cfg.Embedding.Model})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	if cfg.CircuitBreaker.Enabled {
		client = embedder.NewBreakerClient(client, embedder.BreakerConfig{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, logger)
	}
	return client, nil
}
