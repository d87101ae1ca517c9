package cartograph

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundprediction/cartograph/pkg/assemble"
	"github.com/soundprediction/cartograph/pkg/telemetry"
	"github.com/soundprediction/cartograph/pkg/types"
)

// Answer runs the full pipeline for one question. history is the caller's
// prior structured queries, oldest first; k caps the result count (0 uses
// the configured default). The caller bounds wall time through ctx: when
// the deadline fires mid-traversal the payload carries whatever was found,
// marked partial, instead of an error.
//
// An unparseable intent is not an error either: the payload comes back
// empty and partial with a clarification explanation and suggested
// questions. Only EmptyQuery, InvalidQuery and store failures surface as
// errors.
func (c *Client) Answer(ctx context.Context, rawText string, history []types.StructuredQuery, k int) (*types.AnswerPayload, error) {
	if k <= 0 {
		k = c.config.KDefault
	}
	start := time.Now()

	query, err := c.interpreter.Interpret(ctx, rawText, history)
	if err != nil {
		c.record(rawText, nil, nil, time.Since(start), err)
		return nil, &types.QueryError{Stage: "interpret", Err: err}
	}

	if query.Intent == types.IntentUnknown {
		payload := assemble.Clarification(&query)
		c.record(rawText, &query, payload, time.Since(start), nil)
		return payload, nil
	}

	result, err := c.retriever.Retrieve(ctx, &query, k)
	if err != nil {
		c.record(rawText, &query, nil, time.Since(start), err)
		return nil, &types.QueryError{Stage: "retrieve", Err: err}
	}

	payload := assemble.Assemble(result.Candidates, &query, result.Partial)
	c.record(rawText, &query, payload, time.Since(start), nil)

	c.logger.Debug("answered query",
		slog.String("intent", string(query.Intent)),
		slog.Int("results", len(payload.Results)),
		slog.Bool("partial", payload.Partial),
		slog.Duration("took", time.Since(start)))
	return payload, nil
}

func (c *Client) record(rawText string, query *types.StructuredQuery, payload *types.AnswerPayload, took time.Duration, err error) {
	if c.recorder == nil {
		return
	}
	rec := telemetry.QueryRecord{
		RawText:    rawText,
		DurationMs: took.Milliseconds(),
	}
	if query != nil {
		rec.Intent = string(query.Intent)
		rec.IntentConfidence = query.IntentConfidence
		rec.MentionCount = int32(len(query.Mentions))
		rec.SeedCount = int32(len(query.SeedIDs()))
	}
	if payload != nil {
		rec.ResultCount = int32(len(payload.Results))
		rec.Partial = payload.Partial
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.recorder.Record(rec)
}
