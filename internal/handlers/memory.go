package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/middleware"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/services"
)

type MemoryHandler struct {
	log     *logger.Logger
	memory  services.MemoryService
	chatbot services.ChatbotService
}

func NewMemoryHandler(log *logger.Logger, memory services.MemoryService, chatbot services.ChatbotService) *MemoryHandler {
	return &MemoryHandler{
		log:     log.With("handler", "MemoryHandler"),
		memory:  memory,
		chatbot: chatbot,
	}
}

func (h *MemoryHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req services.CreateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.memory.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.log.Warn("Memory create failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, rec)
}

func (h *MemoryHandler) Search(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req services.MemorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	resp, err := h.memory.Search(c.Request.Context(), userID, req)
	if err != nil {
		h.log.Warn("Memory search failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}

type chatbotRequest struct {
	UserInput           string   `json:"user_input" binding:"required"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
}

func (h *MemoryHandler) Chatbot(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req chatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	resp, err := h.chatbot.Ask(c.Request.Context(), userID, req.UserInput, req.ConfidenceThreshold)
	if err != nil {
		h.log.Warn("Chatbot query failed", "user_id", userID, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}

type memoryDeleteRequest struct {
	MemoryIDs []uuid.UUID `json:"memory_ids" binding:"required"`
}

func (h *MemoryHandler) Delete(c *gin.Context) {
	if _, ok := middleware.CurrentUserID(c); !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req memoryDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	resp, err := h.memory.Delete(c.Request.Context(), req.MemoryIDs)
	if err != nil {
		h.log.Warn("Memory delete failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}

func (h *MemoryHandler) Health(c *gin.Context) {
	RespondOK(c, h.memory.Health(c.Request.Context()))
}

func (h *MemoryHandler) CollectionStats(c *gin.Context) {
	stats, err := h.memory.Stats(c.Request.Context())
	if err != nil {
		h.log.Warn("Collection stats failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}
