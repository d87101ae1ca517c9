// Package interpret parses free-text questions into structured queries:
// intent, resolved entity mentions, relation hints, a result type filter
// and an optional spatial constraint.
package interpret

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/cartograph/pkg/index"
	"github.com/soundprediction/cartograph/pkg/types"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// semantic mention match.
	DefaultSimilarityThreshold = 0.6
	// DefaultConfidenceFloor is the minimum classifier confidence below
	// which intent stays UNKNOWN.
	DefaultConfidenceFloor = 0.5

	maxSpanTokens = 3
)

// Config tunes the interpreter.
type Config struct {
	SimilarityThreshold float64
	ConfidenceFloor     float64
}

// Interpreter turns raw text plus conversation history into a
// StructuredQuery. Stateless per call; history is passed in explicitly so
// calls stay pure and testable.
type Interpreter struct {
	index      *index.Index
	classifier Classifier
	normalizer Normalizer
	config     Config
	logger     *slog.Logger
}

// New creates an interpreter. classifier may be nil (rules only).
func New(ix *index.Index, classifier Classifier, config Config, logger *slog.Logger) *Interpreter {
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if config.ConfidenceFloor == 0 {
		config.ConfidenceFloor = DefaultConfidenceFloor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		index:      ix,
		classifier: classifier,
		normalizer: DefaultNormalizer{},
		config:     config,
		logger:     logger,
	}
}

// SetNormalizer swaps the text normalizer.
func (it *Interpreter) SetNormalizer(n Normalizer) { it.normalizer = n }

// Interpret parses rawText into a StructuredQuery. history is ordered
// oldest-first; only the immediately preceding entry is consulted for
// pronoun carry-over. An empty query after normalization returns
// ErrEmptyQuery. Ambiguous intent is not an error here: the query comes
// back with intent UNKNOWN and an Explanation, and the caller decides
// whether to ask for clarification.
func (it *Interpreter) Interpret(ctx context.Context, rawText string, history []types.StructuredQuery) (types.StructuredQuery, error) {
	normalized, tokens := it.normalizer.Normalize(rawText)
	if normalized == "" {
		return types.StructuredQuery{}, types.ErrEmptyQuery
	}

	query := types.StructuredQuery{RawText: rawText}

	query.Spatial = parseSpatialConstraint(normalized)

	mentions, err := it.detectMentions(ctx, tokens)
	if err != nil {
		return types.StructuredQuery{}, fmt.Errorf("mention detection: %w", err)
	}
	query.Mentions = mentions

	// Pronoun follow-ups with nothing newly resolved inherit the previous
	// turn's mentions and spatial constraint. Bounded to one turn back.
	if len(query.Mentions) == 0 && hasPronoun(tokens) {
		if prev, ok := lastWithMentions(history); ok {
			query.Mentions = prev.Mentions
			if query.Spatial == nil {
				query.Spatial = prev.Spatial
			}
			query.Explanation = "interpreted in context of previous question"
		}
	}

	query.ResultTypeFilter = detectResultTypeFilter(tokens)
	query.RelationHints = detectRelationHints(tokens)

	intent, confidence := classifyRules(tokens, query.Spatial != nil)
	if intent == types.IntentUnknown && it.classifier != nil {
		intent, confidence, err = it.classifier.Classify(ctx, rawText)
		if err != nil {
			it.logger.Warn("intent classifier failed, falling back to UNKNOWN",
				slog.String("error", err.Error()))
			intent, confidence = types.IntentUnknown, 0
		} else if confidence < it.config.ConfidenceFloor {
			it.logger.Debug("classifier confidence below floor",
				slog.String("intent", string(intent)),
				slog.Float64("confidence", confidence))
			intent = types.IntentUnknown
		}
	}
	query.Intent = intent
	query.IntentConfidence = confidence

	if query.Intent == types.IntentUnknown && query.Explanation == "" {
		query.Explanation = "could not determine what the question is asking; please rephrase"
	}

	it.logger.Debug("interpreted query",
		slog.String("intent", string(query.Intent)),
		slog.Int("mentions", len(query.Mentions)),
		slog.Bool("spatial", query.Spatial != nil))
	return query, nil
}

// detectMentions scans token n-grams longest-first for entity matches.
// Each token participates in at most one mention, so "sea surface
// temperature" resolves as one span rather than three. Lexical matches win
// over semantic ones; semantic lookups apply the similarity threshold.
func (it *Interpreter) detectMentions(ctx context.Context, tokens []string) ([]types.EntityMention, error) {
	var mentions []types.EntityMention
	used := make([]bool, len(tokens))

	for size := maxSpanTokens; size >= 1; size-- {
		for start := 0; start+size <= len(tokens); start++ {
			if anyUsed(used, start, size) {
				continue
			}
			span := strings.Join(tokens[start:start+size], " ")
			if size == 1 && (isStopWord(span) || isIntentWord(span)) {
				continue
			}

			candidates, err := it.index.ResolveLexical(ctx, span)
			if err != nil {
				return nil, err
			}
			if len(candidates) == 0 {
				candidates, err = it.index.ResolveSemantic(ctx, span, it.config.SimilarityThreshold)
				if err != nil {
					return nil, err
				}
			}
			if len(candidates) == 0 {
				continue
			}

			mention := types.EntityMention{
				Span:       span,
				Confidence: candidates[0].Similarity,
			}
			for _, c := range candidates {
				mention.ResolvedIDs = append(mention.ResolvedIDs, c.ID)
			}
			mentions = append(mentions, mention)
			markUsed(used, start, size)
		}
	}
	return mentions, nil
}

func anyUsed(used []bool, start, size int) bool {
	for i := start; i < start+size; i++ {
		if used[i] {
			return true
		}
	}
	return false
}

func markUsed(used []bool, start, size int) {
	for i := start; i < start+size; i++ {
		used[i] = true
	}
}

// isIntentWord reports whether the token belongs to an intent keyword
// table or names a result type; those never form entity mentions.
func isIntentWord(token string) bool {
	for _, keywords := range intentKeywords {
		for _, kw := range keywords {
			if token == kw {
				return true
			}
		}
	}
	_, isNoun := resultTypeNouns[token]
	return isNoun
}

// lastWithMentions looks only one turn back. Older history is never
// consulted, keeping follow-up behavior predictable.
func lastWithMentions(history []types.StructuredQuery) (types.StructuredQuery, bool) {
	if len(history) == 0 {
		return types.StructuredQuery{}, false
	}
	prev := history[len(history)-1]
	if len(prev.Mentions) == 0 {
		return types.StructuredQuery{}, false
	}
	return prev, true
}
