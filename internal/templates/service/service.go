// Package service implements template retrieval and rendering. Rendering is
// best-effort: a template that cannot be fully resolved still renders, with
// visible markers where values are missing, so generation is never blocked by
// a bad placeholder.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"stageflow_backend/internal/templates/repository"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/logger"
)

// Rendered is the outcome of applying a template against a context.
type Rendered struct {
	Text         string
	SystemPrompt string
	Variables    map[string]string
}

// Service resolves and renders templates.
type Service struct {
	repo     repository.Repository
	registry *variables.Registry
	log      *logger.Logger
}

// New creates the template service.
func New(repo repository.Repository, registry *variables.Registry, log *logger.Logger) *Service {
	return &Service{repo: repo, registry: registry, log: log}
}

// Repository exposes the underlying store for other modules.
func (s *Service) Repository() repository.Repository {
	return s.repo
}

// GetTemplate fetches a template by id, failing with apperr.NotFound when absent.
func (s *Service) GetTemplate(ctx context.Context, businessID, id uuid.UUID) (repository.Template, error) {
	return s.repo.GetByID(ctx, businessID, id)
}

// Apply renders a template against the given context. Double-brace
// placeholders are substituted first, then single-brace ones. A resolver
// panic leaves the template unrendered rather than failing the caller.
func (s *Service) Apply(ctx context.Context, tmpl repository.Template, rc variables.Context) (rendered Rendered) {
	rendered = Rendered{
		Text:         tmpl.Text,
		SystemPrompt: stringValue(tmpl.SystemPrompt),
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("template render panic", "template_id", tmpl.ID, "panic", r)
			rendered = Rendered{
				Text:         tmpl.Text,
				SystemPrompt: stringValue(tmpl.SystemPrompt),
			}
		}
	}()

	names := variables.ExtractVariables(tmpl.Text + "\n" + rendered.SystemPrompt)
	if len(names) == 0 {
		return rendered
	}

	values := s.registry.ResolveAll(ctx, names, rc)
	rendered.Variables = values
	rendered.Text = substitute(tmpl.Text, values)
	rendered.SystemPrompt = substitute(rendered.SystemPrompt, values)
	return rendered
}

// substitute replaces placeholders in two passes: {{name}} first so the inner
// braces of a double placeholder are never misread as a single one.
func substitute(text string, values map[string]string) string {
	result := text
	for name, value := range values {
		result = strings.ReplaceAll(result, "{{"+name+"}}", value)
	}
	for name, value := range values {
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
