package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lifeos-backend/internal/middleware"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/services"
)

type InsightsHandler struct {
	log      *logger.Logger
	insights services.InsightsService
}

func NewInsightsHandler(log *logger.Logger, insights services.InsightsService) *InsightsHandler {
	return &InsightsHandler{
		log:      log.With("handler", "InsightsHandler"),
		insights: insights,
	}
}

func (h *InsightsHandler) Recent(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	resp, err := h.insights.Recent(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn("Recent insights failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}

func (h *InsightsHandler) Summary(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	resp, err := h.insights.DailySummary(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn("Daily summary failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}
