package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/database"
	"github.com/oussamaboulmali/newswire/app/tasks"
)

func NewHandler(configCache *agency.ConfigCache, db Pinger, ledger database.Ledger,
	articleRepo database.ArticleStore, agencyRepo database.AgencyStore,
	generator GeneratorInterface, version string) *Handler {
	return &Handler{
		db:          db,
		ledger:      ledger,
		articleRepo: articleRepo,
		agencyRepo:  agencyRepo,
		generator:   generator,
		configCache: configCache,
		version:     version,
	}
}

func (h *Handler) GetAgencyFeed(c *gin.Context) {
	name := c.Param("name")

	agencyConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Debug("Agency configuration not found", "agency", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	articles, err := h.articleRepo.GetRecentArticles(c.Request.Context(), agencyConfig.ID, defaultArticleLimit)
	if err != nil {
		slog.Error("Database error", "operation", "get_articles", "agency", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(toAgency(agencyConfig), articles)
	if err != nil {
		slog.Error("RSS generation error", "agency", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(articles)))
	c.Header("X-Agency-Name", name)

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
		"version":               h.version,
	}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		slog.Error("Database ping failed", "error", err)
		health["status"] = "unhealthy"
		health["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health["status"] = "ok"
	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	articles, processed, err := h.articleRepo.GetTotals(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_totals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agencies":        h.configCache.GetConfigCount(),
		"enabled":         len(h.configCache.GetEnabledConfigs()),
		"articles":        articles,
		"processed_files": processed,
	})
}

func (h *Handler) APIListAgencies(c *gin.Context) {
	ctx := c.Request.Context()
	configs := h.configCache.GetConfigs()

	agencies := make([]AgencyResponse, 0, len(configs))
	for _, agencyConfig := range configs {
		info := AgencyResponse{
			Name:    agencyConfig.Name,
			ID:      agencyConfig.ID,
			Format:  agencyConfig.Format,
			Source:  agencyConfig.Source.Kind,
			Enabled: agencyConfig.Enabled,
		}

		if count, err := h.articleRepo.GetArticleCount(ctx, agencyConfig.ID); err == nil {
			info.ArticleCount = count
		}
		if count, err := h.ledger.GetProcessedCount(ctx, agencyConfig.ID); err == nil {
			info.Processed = count
		}
		if watermark, err := h.ledger.LastWatermark(ctx, agencyConfig.ID); err == nil && watermark != nil {
			formatted := watermark.Format(time.RFC3339Nano)
			info.Watermark = &formatted
		}

		agencies = append(agencies, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"agencies": agencies,
		"total":    len(agencies),
	})
}

func (h *Handler) APIGetArticles(c *gin.Context) {
	name := c.Param("name")

	agencyConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agency configuration not found"})
		return
	}

	limit := defaultArticleLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(limit, maxArticleLimit)
	}

	articles, err := h.articleRepo.GetRecentArticles(c.Request.Context(), agencyConfig.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_articles", "agency", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]ArticleResponse, 0, len(articles))
	for _, a := range articles {
		response = append(response, ArticleResponse{
			ID:          a.ID,
			FileName:    a.FileName,
			Title:       a.Title,
			Slug:        a.Slug,
			Label:       a.Label,
			FullText:    a.FullText,
			CreatedDate: a.CreatedDate.Format(time.RFC3339Nano),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"agency":   name,
		"articles": response,
		"total":    len(response),
	})
}

// APIReloadAgency rereads one agency file and syncs it to the agencies table.
func (h *Handler) APIReloadAgency(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agency configuration not found"})
		return
	}

	agencyConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "agency", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncAgencyConfigTask(agencyConfig, h.agencyRepo)
	syncTask.Start()
	if err := syncTask.Execute(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to sync agency",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded",
		"agency": gin.H{
			"name":    agencyConfig.Name,
			"id":      agencyConfig.ID,
			"format":  agencyConfig.Format,
			"enabled": agencyConfig.Enabled,
		},
		"task": gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
		},
	})
}

func toAgency(c *agency.Config) database.Agency {
	return database.Agency{
		ID:         c.ID,
		Name:       c.Name,
		Format:     c.Format,
		SourceKind: c.Source.Kind,
		Enabled:    c.Enabled,
	}
}
