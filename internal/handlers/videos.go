package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/middleware"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/services"
)

type VideoHandler struct {
	log    *logger.Logger
	videos services.VideoService
}

func NewVideoHandler(log *logger.Logger, videos services.VideoService) *VideoHandler {
	return &VideoHandler{
		log:    log.With("handler", "VideoHandler"),
		videos: videos,
	}
}

func (h *VideoHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	rows, err := h.videos.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.log.Warn("Video list failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, rows)
}

func (h *VideoHandler) Get(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// Malformed ids get the same response as unknown ones.
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	row, err := h.videos.Get(c.Request.Context(), userID, videoID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (h *VideoHandler) Delete(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.videos.Delete(c.Request.Context(), userID, videoID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "Video deleted successfully"})
}

func (h *VideoHandler) ListHighlights(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	list, err := h.videos.ListHighlights(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn("Highlights list failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, list)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
