package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/cartograph"
	"github.com/soundprediction/cartograph/pkg/server/dto"
	"github.com/soundprediction/cartograph/pkg/types"
)

// GraphHandler handles graph write and inspection requests from the
// extraction pipeline.
type GraphHandler struct {
	client *cartograph.Client
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(client *cartograph.Client) *GraphHandler {
	return &GraphHandler{client: client}
}

// PutEntity handles PUT /api/v1/graph/entities
func (h *GraphHandler) PutEntity(c *gin.Context) {
	var entity types.Entity
	if err := c.ShouldBindJSON(&entity); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.client.PutEntity(c.Request.Context(), &entity); err != nil {
		status, code := writeErrorStatus(err)
		c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.UpsertResponse{ID: entity.ID, Updated: true})
}

// PutRelationship handles PUT /api/v1/graph/relationships
func (h *GraphHandler) PutRelationship(c *gin.Context) {
	var rel types.Relationship
	if err := c.ShouldBindJSON(&rel); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.client.PutRelationship(c.Request.Context(), &rel); err != nil {
		status, code := writeErrorStatus(err)
		c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.UpsertResponse{ID: rel.Key(), Updated: true})
}

// GetEntity handles GET /api/v1/graph/entities/:id
func (h *GraphHandler) GetEntity(c *gin.Context) {
	entity, err := h.client.GetEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := writeErrorStatus(err)
		c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, entity)
}

// Stats handles GET /api/v1/graph/stats
func (h *GraphHandler) Stats(c *gin.Context) {
	stats, err := h.client.Stats(c.Request.Context())
	if err != nil {
		status, code := writeErrorStatus(err)
		c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func writeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrEntityNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrEndpointMissing):
		return http.StatusUnprocessableEntity, "endpoint_missing"
	case errors.Is(err, types.ErrImmutableType):
		return http.StatusConflict, "immutable_type"
	case errors.Is(err, types.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, types.ErrEmptyID),
		errors.Is(err, types.ErrEmptyLabel),
		errors.Is(err, types.ErrUnknownType),
		errors.Is(err, types.ErrUnknownRelation),
		errors.Is(err, types.ErrEmptyEndpoint),
		errors.Is(err, types.ErrConfidenceRange),
		errors.Is(err, types.ErrInvalidGeometry):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
