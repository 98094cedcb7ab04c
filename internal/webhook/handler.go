package webhook

import (
	"net/http"

	"stageflow_backend/platform/httpkit"
	"stageflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// InboundMessageRequest is the raw channel payload.
type InboundMessageRequest struct {
	Sender  string `json:"sender" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"required"`
}

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleInbound accepts a channel message and returns 202 once it is queued.
func (h *Handler) HandleInbound(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if err := h.svc.Accept(c.Request.Context(), businessID, c.Param("channel"), req.Sender, req.Content); httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
}
