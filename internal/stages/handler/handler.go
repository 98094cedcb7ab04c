package handler

import (
	"net/http"

	"stageflow_backend/internal/stages/repository"
	"stageflow_backend/internal/stages/service"
	"stageflow_backend/internal/stages/transport"
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
}

func (h *Handler) List(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	order := repository.OrderByCreated
	if c.Query("order") == "name" {
		order = repository.OrderByName
	}

	stages, err := h.svc.ListStages(c.Request.Context(), businessID, order)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.StageResponse, 0, len(stages))
	for _, st := range stages {
		out = append(out, toResponse(st))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Create(c *gin.Context) {
	businessID, ok := httpkit.MustGetBusinessID(c)
	if !ok {
		return
	}

	var req transport.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	st, err := h.svc.CreateStage(c.Request.Context(), repository.CreateStageParams{
		BusinessID:           businessID,
		Name:                 req.Name,
		Description:          req.Description,
		Type:                 req.Type,
		IsDefault:            req.IsDefault,
		SelectionTemplateID:  parseOptionalID(req.SelectionTemplateID),
		ExtractionTemplateID: parseOptionalID(req.ExtractionTemplateID),
		ResponseTemplateID:   parseOptionalID(req.ResponseTemplateID),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toResponse(st))
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

	st, err := h.svc.Repository().GetByID(c.Request.Context(), businessID, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(st))
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

	var req transport.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	st, err := h.svc.UpdateStage(c.Request.Context(), repository.UpdateStageParams{
		ID:                   id,
		BusinessID:           businessID,
		Name:                 req.Name,
		Description:          req.Description,
		Type:                 req.Type,
		IsDefault:            req.IsDefault,
		SelectionTemplateID:  parseOptionalID(req.SelectionTemplateID),
		ExtractionTemplateID: parseOptionalID(req.ExtractionTemplateID),
		ResponseTemplateID:   parseOptionalID(req.ResponseTemplateID),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(st))
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

// parseOptionalID converts a validated uuid string to a uuid pointer. The
// validator has already rejected malformed values.
func parseOptionalID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toResponse(st repository.Stage) transport.StageResponse {
	return transport.StageResponse{
		ID:                   st.ID.String(),
		Name:                 st.Name,
		Description:          st.Description,
		Type:                 st.Type,
		IsDefault:            st.IsDefault,
		SelectionTemplateID:  idString(st.SelectionTemplateID),
		ExtractionTemplateID: idString(st.ExtractionTemplateID),
		ResponseTemplateID:   idString(st.ResponseTemplateID),
		CreatedAt:            st.CreatedAt,
		UpdatedAt:            st.UpdatedAt,
	}
}
