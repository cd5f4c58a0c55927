package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"spyglass/internal/analysis"
	"spyglass/internal/content"
	"spyglass/internal/reports"
	"spyglass/internal/scenario"
	"spyglass/pkg/logging"
)

// ScenarioReader loads one scenario for a run request.
type ScenarioReader interface {
	Get(ctx context.Context, id string) (scenario.AnalysisScenario, error)
}

// RecordReader lists and purges persisted analysis records.
type RecordReader interface {
	List(ctx context.Context, filter analysis.ListFilter) ([]analysis.AnalysisRecord, error)
	Purge(ctx context.Context, sourceID string, from, to time.Time) (int64, error)
}

// Handler exposes the trigger and report surfaces over HTTP.
type Handler struct {
	orchestrator *analysis.Orchestrator
	scenarios    ScenarioReader
	records      RecordReader
	reports      *reports.Service
	supplier     content.Supplier
	adminAPIKey  string
	logger       logging.Logger
}

func NewHandler(orchestrator *analysis.Orchestrator, scenarios ScenarioReader, records RecordReader, reportsSvc *reports.Service, supplier content.Supplier, adminAPIKey string, logger logging.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		scenarios:    scenarios,
		records:      records,
		reports:      reportsSvc,
		supplier:     supplier,
		adminAPIKey:  adminAPIKey,
		logger:       logger,
	}
}

// RegisterRoutes mounts the API under /api/v1.
func RegisterRoutes(router gin.IRouter, handler *Handler) {
	v1 := router.Group("/api/v1")
	v1.POST("/analysis/run", handler.HandleRunAnalysis)
	v1.GET("/analysis/records", handler.HandleListRecords)
	v1.GET("/reports/:kind", handler.HandleGetReport)
	v1.DELETE("/analysis/records", handler.HandlePurgeRecords)
}

type runRequest struct {
	SourceID      string                   `json:"source_id" binding:"required"`
	ScenarioID    string                   `json:"scenario_id" binding:"required"`
	Items         []content.RawContentItem `json:"items,omitempty"`
	LookbackHours int                      `json:"lookback_hours,omitempty"`
}

// HandleRunAnalysis triggers one orchestration run. The caller supplies the
// content batch inline, or omits it to have the configured supplier fetch
// over a lookback window.
func (h *Handler) HandleRunAnalysis(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	scn, err := h.scenarios.Get(c.Request.Context(), req.ScenarioID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}

	batch := req.Items
	if len(batch) == 0 {
		if h.supplier == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "items required when no content supplier is configured"})
			return
		}
		lookback := time.Duration(req.LookbackHours) * time.Hour
		if lookback <= 0 {
			lookback = 24 * time.Hour
		}
		batch, err = h.supplier.Fetch(c.Request.Context(), req.SourceID, lookback)
		if err != nil {
			h.logger.WithError(err).WithField("source_id", req.SourceID).Warn("Content fetch failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "content fetch failed"})
			return
		}
	}

	result, err := h.orchestrator.Run(c.Request.Context(), req.SourceID, scn, batch)
	if err != nil {
		h.logger.WithError(err).WithField("source_id", req.SourceID).Error("Analysis run failed to start")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis run failed to start"})
		return
	}

	complete, partial, failed := result.Counts()
	c.JSON(http.StatusOK, gin.H{
		"outcomes":               result.Outcomes,
		"unsatisfied_modalities": result.Unsatisfied,
		"used_fallback":          result.UsedFallback,
		"catalog_version":        result.CatalogVersion,
		"warnings":               result.Warnings,
		"complete":               complete,
		"partial":                partial,
		"failed":                 failed,
	})
}

// HandleListRecords returns recent analysis records, newest first.
func (h *Handler) HandleListRecords(c *gin.Context) {
	filter := analysis.ListFilter{
		SourceID:   c.Query("source_id"),
		ScenarioID: c.Query("scenario_id"),
		Limit:      50,
	}
	if from, ok := parseDay(c.Query("from")); ok {
		filter.From = from
	}
	if to, ok := parseDay(c.Query("to")); ok {
		filter.To = to
	}

	records, err := h.records.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list analysis records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// HandleGetReport serves one of the aggregate report shapes.
func (h *Handler) HandleGetReport(c *gin.Context) {
	kind, err := reports.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filters := reports.Filters{
		SourceID:   c.Query("source_id"),
		ScenarioID: c.Query("scenario_id"),
		Days:       intQuery(c, "days"),
		Limit:      intQuery(c, "limit"),
	}
	report, err := h.reports.Get(c.Request.Context(), kind, filters)
	if err != nil {
		h.logger.WithError(err).WithField("kind", string(kind)).Error("Failed to build report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "report": report})
}

// HandlePurgeRecords deletes a source's records over a day range. Requires
// the admin API key and an explicit bounded range.
func (h *Handler) HandlePurgeRecords(c *gin.Context) {
	if h.adminAPIKey == "" || c.GetHeader("X-Admin-Key") != h.adminAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin key required"})
		return
	}
	sourceID := c.Query("source_id")
	from, okFrom := parseDay(c.Query("from"))
	to, okTo := parseDay(c.Query("to"))
	if sourceID == "" || !okFrom || !okTo {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id, from and to are required"})
		return
	}

	deleted, err := h.records.Purge(c.Request.Context(), sourceID, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to purge analysis records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func parseDay(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return day.UTC(), true
}

func intQuery(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
