package handler

import (
	"net/http"

	"stageflow_backend/internal/business/repository"
	"stageflow_backend/internal/business/service"
	"stageflow_backend/internal/business/transport"
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
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/rotate-key", h.RotateKey)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	created, err := h.svc.Create(c.Request.Context(), req.Name, req.Email)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.CreatedBusinessResponse{
		BusinessResponse: toResponse(created.Business),
		APIKey:           created.APIKey,
	})
}

func (h *Handler) List(c *gin.Context) {
	businesses, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.BusinessResponse, 0, len(businesses))
	for _, b := range businesses {
		out = append(out, toResponse(b))
	}
	httpkit.OK(c, out)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	b, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(b))
}

func (h *Handler) RotateKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	key, err := h.svc.RotateKey(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RotatedKeyResponse{APIKey: key})
}

func toResponse(b repository.Business) transport.BusinessResponse {
	return transport.BusinessResponse{
		ID:        b.ID.String(),
		Name:      b.Name,
		Email:     b.Email,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
