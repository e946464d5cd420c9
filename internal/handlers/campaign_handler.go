package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/events"
	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/rules"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
)

// CampaignHandler handles campaign-related HTTP requests. Creation publishes
// campaign.created; the worker process picks it up and runs activation.
type CampaignHandler struct {
	campaignService *services.CampaignService
	bus             events.Bus
	log             *zap.Logger
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaignService *services.CampaignService, bus events.Bus, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		bus:             bus,
		log:             log,
	}
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var campaign models.Campaign
	if err := c.ShouldBindJSON(&campaign); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.campaignService.CreateCampaign(c.Request.Context(), &campaign); err != nil {
		var ruleErr *rules.InvalidRuleError
		switch {
		case errors.Is(err, services.ErrNoRuleSource):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Campaign requires exactly one of segmentId or rules"})
		case errors.Is(err, services.ErrSegmentNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Referenced segment does not exist"})
		case errors.As(err, &ruleErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": ruleErr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign: " + err.Error()})
		}
		return
	}

	event := events.CampaignCreated{CampaignID: campaign.ID.Hex()}
	if err := h.bus.Publish(c.Request.Context(), events.ChannelCampaignCreated, event); err != nil {
		h.log.Error("failed to publish campaign.created",
			zap.String("campaignId", campaign.ID.Hex()), zap.Error(err))
	}

	c.JSON(http.StatusCreated, campaign)
}

// ActivateCampaign handles POST /campaigns/:id/activate
func (h *CampaignHandler) ActivateCampaign(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	if err := h.campaignService.Activate(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate campaign: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Campaign activated"})
}

// GetCampaignByID handles GET /campaigns/:id
func (h *CampaignHandler) GetCampaignByID(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	campaign, err := h.campaignService.GetCampaignByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// GetAllCampaigns handles GET /campaigns
func (h *CampaignHandler) GetAllCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	status := c.Query("status")
	if status != "" {
		campaigns, err := h.campaignService.GetCampaignsByStatus(c.Request.Context(), status, page, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get campaigns: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, campaigns)
		return
	}

	campaigns, err := h.campaignService.GetAllCampaigns(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get campaigns: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, campaigns)
}

// GetCampaignLogs handles GET /campaigns/:id/logs
func (h *CampaignHandler) GetCampaignLogs(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.campaignService.GetCampaignLogs(c.Request.Context(), id, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get campaign logs: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}

// GetCampaignCount handles GET /campaigns/count
func (h *CampaignHandler) GetCampaignCount(c *gin.Context) {
	count, err := h.campaignService.GetCampaignCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get campaign count: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
