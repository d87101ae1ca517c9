// Package dto defines request and response bodies for the HTTP API.
package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/cartograph/pkg/types"
)

// MaxQueryLength bounds the accepted question size.
const MaxQueryLength = 2048

// ErrQueryTooLong is returned when the question exceeds MaxQueryLength.
var ErrQueryTooLong = errors.New("query exceeds maximum length")

// AnswerRequest is the body of POST /api/v1/answer. History carries the
// structured queries of prior turns so the server stays stateless.
type AnswerRequest struct {
	Query          string                  `json:"query" binding:"required"`
	History        []types.StructuredQuery `json:"history,omitempty"`
	K              int                     `json:"k,omitempty"`
	TimeoutSeconds int                     `json:"timeout_seconds,omitempty"`
}

// Validate performs validation on AnswerRequest
func (r *AnswerRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if r.K < 0 {
		return errors.New("k cannot be negative")
	}
	if r.TimeoutSeconds < 0 {
		return errors.New("timeout_seconds cannot be negative")
	}
	return nil
}

// UpsertResponse acknowledges a graph write.
type UpsertResponse struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
