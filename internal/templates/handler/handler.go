package handler

import (
	"net/http"

	"stageflow_backend/internal/templates/repository"
	"stageflow_backend/internal/templates/service"
	"stageflow_backend/internal/templates/transport"
	"stageflow_backend/internal/variables"
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
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/preview", h.Preview)
}

func (h *Handler) List(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	templates, err := h.svc.Repository().List(c.Request.Context(), businessID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toResponse(t))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Create(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	var req transport.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	tmpl, err := h.svc.Repository().Create(c.Request.Context(), repository.CreateTemplateParams{
		BusinessID:   businessID,
		Name:         req.Name,
		Text:         req.Text,
		SystemPrompt: req.SystemPrompt,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toResponse(tmpl))
}

func (h *Handler) GetByID(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	tmpl, err := h.svc.GetTemplate(c.Request.Context(), businessID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(tmpl))
}

func (h *Handler) Update(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	tmpl, err := h.svc.Repository().Update(c.Request.Context(), repository.UpdateTemplateParams{
		ID:           id,
		BusinessID:   businessID,
		Name:         req.Name,
		Text:         req.Text,
		SystemPrompt: req.SystemPrompt,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(tmpl))
}

func (h *Handler) Delete(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.Repository().Delete(c.Request.Context(), businessID, id); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// Preview renders a template against an ad-hoc context without persisting
// anything. Useful for operators tuning placeholder text.
func (h *Handler) Preview(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.PreviewTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	tmpl, err := h.svc.GetTemplate(c.Request.Context(), businessID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	rc := variables.Context{variables.KeyBusinessID: businessID.String()}
	for k, v := range req.Context {
		rc[k] = v
	}

	rendered := h.svc.Apply(c.Request.Context(), tmpl, rc)
	httpkit.OK(c, transport.PreviewTemplateResponse{
		Text:         rendered.Text,
		SystemPrompt: rendered.SystemPrompt,
		Values:       rendered.Variables,
	})
}

func toResponse(t repository.Template) transport.TemplateResponse {
	source := t.Text
	if t.SystemPrompt != nil {
		source += "\n" + *t.SystemPrompt
	}
	return transport.TemplateResponse{
		ID:           t.ID.String(),
		Name:         t.Name,
		Text:         t.Text,
		SystemPrompt: t.SystemPrompt,
		Variables:    variables.ExtractVariables(source),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}
