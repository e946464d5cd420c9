package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
)

// SegmentHandler handles segment-related HTTP requests
type SegmentHandler struct {
	segmentService *services.SegmentService
}

// NewSegmentHandler creates a new SegmentHandler
func NewSegmentHandler(segmentService *services.SegmentService) *SegmentHandler {
	return &SegmentHandler{segmentService: segmentService}
}

// CreateSegment handles POST /segments
func (h *SegmentHandler) CreateSegment(c *gin.Context) {
	var segment models.Segment
	if err := c.ShouldBindJSON(&segment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.segmentService.CreateSegment(c.Request.Context(), &segment); err != nil {
		var ruleErr *rules.InvalidRuleError
		if errors.As(err, &ruleErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ruleErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create segment: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, segment)
}

// PreviewAudience handles POST /segments/preview
func (h *SegmentHandler) PreviewAudience(c *gin.Context) {
	var ruleSet models.RuleSet
	if err := c.ShouldBindJSON(&ruleSet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.segmentService.PreviewAudience(c.Request.Context(), ruleSet)
	if err != nil {
		var ruleErr *rules.InvalidRuleError
		if errors.As(err, &ruleErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ruleErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to preview audience: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, preview)
}

// GetSegmentByID handles GET /segments/:id
func (h *SegmentHandler) GetSegmentByID(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	segment, err := h.segmentService.GetSegmentByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
		return
	}

	c.JSON(http.StatusOK, segment)
}

// GetAllSegments handles GET /segments
func (h *SegmentHandler) GetAllSegments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	segments, err := h.segmentService.GetAllSegments(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get segments: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, segments)
}

// UpdateSegment handles PUT /segments/:id
func (h *SegmentHandler) UpdateSegment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var segment models.Segment
	if err := c.ShouldBindJSON(&segment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	segment.ID = id

	if err := h.segmentService.UpdateSegment(c.Request.Context(), &segment); err != nil {
		var ruleErr *rules.InvalidRuleError
		if errors.As(err, &ruleErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ruleErr.Error()})
			return
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update segment: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, segment)
}

// DeleteSegment handles DELETE /segments/:id
func (h *SegmentHandler) DeleteSegment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	if err := h.segmentService.DeleteSegment(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete segment: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Segment deleted successfully"})
}

// RefreshSegment handles POST /segments/:id/refresh
func (h *SegmentHandler) RefreshSegment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	count, err := h.segmentService.RefreshSegment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh segment: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audienceSize": count})
}
