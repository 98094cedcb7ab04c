package handler

import (
	"errors"
	"net/http"
	"strconv"

	"stageflow_backend/internal/pipeline/repository"
	"stageflow_backend/internal/pipeline/service"
	"stageflow_backend/internal/pipeline/transport"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/httpkit"
	"stageflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.ProcessMessage)
	rg.GET("/conversations", h.ListConversations)
	rg.GET("/conversations/:id", h.GetConversation)
	rg.GET("/conversations/:id/messages", h.ListMessages)
	rg.GET("/conversations/:id/process-logs", h.ListConversationLogs)
	rg.POST("/conversations/:id/ai-stop", h.SetConversationStop)
	rg.POST("/users/:userId/ai-stop", h.SetUserStop)
	rg.GET("/process-logs/recent", h.RecentLogs)
	rg.GET("/process-logs/:id", h.GetLog)
}

// ProcessMessage runs a message through the pipeline. Failures keep the
// processing trace in the response body so template authors can debug them.
func (h *Handler) ProcessMessage(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	var req transport.ProcessMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	in := service.Input{
		BusinessID: businessID,
		UserID:     req.UserID,
		Content:    req.Content,
		SenderRole: req.SenderRole,
	}
	if req.ConversationID != nil {
		if id, err := uuid.Parse(*req.ConversationID); err == nil {
			in.ConversationID = &id
		}
	}

	result, err := h.svc.ProcessMessage(c.Request.Context(), in)
	if err != nil {
		status := http.StatusInternalServerError
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			status = appErr.HTTPStatus()
		}
		httpkit.JSON(c, status, result)
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListConversations(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	conversations, err := h.svc.Conversations().List(c.Request.Context(), businessID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, toConversationResponse(conv))
	}
	httpkit.OK(c, out)
}

func (h *Handler) GetConversation(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	conv, err := h.svc.Conversations().GetByID(c.Request.Context(), businessID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toConversationResponse(conv))
}

func (h *Handler) ListMessages(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	// Ownership check before reading messages.
	if _, err := h.svc.Conversations().GetByID(c.Request.Context(), businessID, id); httpkit.HandleError(c, err) {
		return
	}

	messages, err := h.svc.Messages().ListByConversation(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, transport.MessageResponse{
			ID:        msg.ID.String(),
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	httpkit.OK(c, out)
}

func (h *Handler) ListConversationLogs(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if _, err := h.svc.Conversations().GetByID(c.Request.Context(), businessID, id); httpkit.HandleError(c, err) {
		return
	}

	entries, err := h.svc.Logs().ListByConversation(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, entries)
}

func (h *Handler) RecentLogs(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.svc.Logs().ListByBusiness(c.Request.Context(), businessID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, entries)
}

func (h *Handler) GetLog(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	entry, err := h.svc.Logs().Get(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	if entry.BusinessID != businessID {
		httpkit.Error(c, http.StatusNotFound, "process log entry not found", nil)
		return
	}
	httpkit.OK(c, entry)
}

func (h *Handler) SetConversationStop(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if _, err := h.svc.Conversations().GetByID(c.Request.Context(), businessID, id); httpkit.HandleError(c, err) {
		return
	}
	if err := h.svc.Stops().SetStopped(c.Request.Context(), id, *req.Stopped); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"conversationId": id.String(), "stopped": *req.Stopped})
}

func (h *Handler) SetUserStop(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	userID := c.Param("userId")
	if userID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.Stops().SetUserStopped(c.Request.Context(), businessID, userID, *req.Stopped); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"userId": userID, "stopped": *req.Stopped})
}

func toConversationResponse(conv repository.Conversation) transport.ConversationResponse {
	var stageID *string
	if conv.CurrentStageID != nil {
		s := conv.CurrentStageID.String()
		stageID = &s
	}
	return transport.ConversationResponse{
		ID:             conv.ID.String(),
		UserID:         conv.UserID,
		CurrentStageID: stageID,
		CreatedAt:      conv.CreatedAt,
		LastUpdated:    conv.LastUpdated,
	}
}
