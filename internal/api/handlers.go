package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"realprice/server/config"
	"realprice/server/internal/database"
	"realprice/server/internal/market"
	"realprice/server/internal/monitor"
)

type Handler struct {
	service *market.Service
	db      *database.Database
	monitor *monitor.Service
	logger  *logrus.Logger
}

type TTLRequest struct {
	Hours int `json:"hours" binding:"required,min=1"`
}

type RefreshRequest struct {
	Region string `json:"region"`
}

type MonitorRuleRequest struct {
	Area       string  `json:"area" binding:"required"`
	Threshold  float64 `json:"threshold" binding:"required"`
	Direction  string  `json:"direction"`
	WebhookURL string  `json:"webhook_url"`
}

func NewHandler(service *market.Service, db *database.Database, monitorService *monitor.Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{
		service: service,
		db:      db,
		monitor: monitorService,
		logger:  logger,
	}
}

func (h *Handler) QueryPrice(c *gin.Context) {
	area := c.Query("area")
	if area == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "area query parameter is required"})
		return
	}
	useCache := c.DefaultQuery("use_cache", "true") != "false"

	stats, err := h.service.QueryPrice(c.Request.Context(), area, useCache)
	if err != nil {
		var inputErr *market.UserInputError
		var absentErr *market.DataAbsentError
		switch {
		case errors.As(err, &inputErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":       inputErr.Error(),
				"suggestions": inputErr.Suggestions,
			})
		case errors.As(err, &absentErr):
			c.JSON(http.StatusNotFound, gin.H{
				"error":               absentErr.Error(),
				"available_districts": absentErr.Districts,
				"outside_window":      absentErr.OutsideWindow,
			})
		default:
			h.logger.WithError(err).Error("Price query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return
	}

	if err := h.db.RecordQuery(&database.QueryRecord{
		Area:         area,
		Transactions: stats.TotalTransactions,
		AvgUnitPrice: stats.AvgUnitPrice,
	}); err != nil {
		h.logger.WithError(err).Error("Failed to record query history")
	}
	h.monitor.Check(area, stats)

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetRegions(c *gin.Context) {
	c.JSON(http.StatusOK, config.SupportedRegions)
}

func (h *Handler) GetCacheInfo(c *gin.Context) {
	region := c.Param("region")
	info := h.service.GetCacheInfo(region)
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached data for region"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) SetCacheTTL(c *gin.Context) {
	var req TTLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}
	h.service.SetCacheTTL(req.Hours)
	c.JSON(http.StatusOK, gin.H{"ttl_hours": req.Hours})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if req.Region != "" {
		ok, err := h.service.EnsureData(ctx, req.Region)
		if err != nil || !ok {
			h.logger.WithError(err).WithField("region", req.Region).Error("Refresh failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "refresh failed", "region": req.Region})
			return
		}
		c.JSON(http.StatusOK, gin.H{"region": req.Region, "refreshed": true})
		return
	}

	results := h.service.RefreshAll(ctx)
	response := make(map[string]bool, len(results))
	for region, err := range results {
		response[region] = err == nil
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := h.db.GetRecentQueries(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get query history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) ListMonitorRules(c *gin.Context) {
	rules, err := h.db.ListMonitorRules()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list monitor rules")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) CreateMonitorRule(c *gin.Context) {
	var req MonitorRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	direction := req.Direction
	if direction != "below" {
		direction = "above"
	}

	rule := &database.MonitorRule{
		Area:       req.Area,
		Threshold:  req.Threshold,
		Direction:  direction,
		WebhookURL: req.WebhookURL,
		Enabled:    true,
	}
	if err := h.db.CreateMonitorRule(rule); err != nil {
		h.logger.WithError(err).Error("Failed to create monitor rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) DeleteMonitorRule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	if err := h.db.DeleteMonitorRule(uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
