// Package handlers implements the HTTP endpoint handlers.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/cartograph"
	"github.com/soundprediction/cartograph/pkg/server/dto"
	"github.com/soundprediction/cartograph/pkg/types"
)

// AnswerHandler handles question answering requests
type AnswerHandler struct {
	client *cartograph.Client
	// defaultTimeout bounds requests that do not set their own.
	defaultTimeout time.Duration
}

// NewAnswerHandler creates a new answer handler
func NewAnswerHandler(client *cartograph.Client, defaultTimeout time.Duration) *AnswerHandler {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &AnswerHandler{client: client, defaultTimeout: defaultTimeout}
}

// Answer handles POST /api/v1/answer
func (h *AnswerHandler) Answer(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	timeout := h.defaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	payload, err := h.client.Answer(ctx, req.Query, req.History, req.K)
	if err != nil {
		status, code := answerErrorStatus(err)
		c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func answerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrEmptyQuery):
		return http.StatusBadRequest, "empty_query"
	case errors.Is(err, types.ErrInvalidQuery), errors.Is(err, types.ErrInvalidLimit):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, types.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
