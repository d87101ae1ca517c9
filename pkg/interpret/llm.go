package interpret

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"github.com/soundprediction/cartograph/pkg/types"
)

// Classifier is the fallback intent classifier consulted when keyword
// rules score nothing. Implementations return an intent with a confidence
// in [0,1]; the interpreter discards results below its confidence floor.
type Classifier interface {
	Classify(ctx context.Context, rawText string) (types.Intent, float64, error)
}

// ClassifierConfig holds settings for the OpenAI-backed classifier.
type ClassifierConfig struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// OpenAIClassifier asks a chat model to label the query intent. Works with
// OpenAI and OpenAI-compatible endpoints (Ollama, vLLM).
type OpenAIClassifier struct {
	client *openai.Client
	config ClassifierConfig
}

const classifierSystemPrompt = `You classify user questions about a satellite data catalog.
Respond with JSON only: {"intent": "<LOOKUP|LIST|COMPARE|SPATIAL_LOOKUP|UNKNOWN>", "confidence": <0.0-1.0>}.
LOOKUP asks about one thing, LIST enumerates, COMPARE contrasts two or more things, SPATIAL_LOOKUP asks about a geographic area.`

// NewOpenAIClassifier creates a classifier client. apiKey may be empty for
// local OpenAI-compatible services.
func NewOpenAIClassifier(apiKey string, config ClassifierConfig) *OpenAIClassifier {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 100
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

type intentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, rawText string) (types.Intent, float64, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Stream:      false,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rawText},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return types.IntentUnknown, 0, fmt.Errorf("intent classification failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.IntentUnknown, 0, fmt.Errorf("intent classification returned no choices")
	}

	content, _ := jsonrepair.JSONRepair(resp.Choices[0].Message.Content)
	var parsed intentResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return types.IntentUnknown, 0, fmt.Errorf("parse intent response: %w", err)
	}

	intent := types.Intent(strings.ToUpper(strings.TrimSpace(parsed.Intent)))
	switch intent {
	case types.IntentLookup, types.IntentList, types.IntentCompare, types.IntentSpatialLookup:
	default:
		intent = types.IntentUnknown
	}
	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return intent, confidence, nil
}
