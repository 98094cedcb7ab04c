// Package service implements the message pipeline: per inbound message it
// resolves the conversation and its stage, runs the optional selection and
// extraction steps, generates the mandatory response, persists messages and
// records a full processing trace.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stageflow_backend/internal/events"
	"stageflow_backend/internal/pipeline/controls"
	"stageflow_backend/internal/pipeline/domain"
	"stageflow_backend/internal/pipeline/ports"
	"stageflow_backend/internal/pipeline/processlog"
	"stageflow_backend/internal/pipeline/repository"
	stagerepo "stageflow_backend/internal/stages/repository"
	stagesvc "stageflow_backend/internal/stages/service"
	templatesvc "stageflow_backend/internal/templates/service"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/logger"
)

// Step names as they appear in process log entries.
const (
	stepValidation   = "validation"
	stepStopCheck    = "ai_stop_check"
	stepConversation = "conversation"
	stepStage        = "stage_resolution"
	stepSelection    = "selection"
	stepExtraction   = "extraction"
	stepResponse     = "response"
	stepPersistence  = "persistence"
)

const detailLimit = 500

// Input is one inbound message.
type Input struct {
	BusinessID     uuid.UUID
	UserID         string
	Content        string
	ConversationID *uuid.UUID
	// SenderRole is "user" unless an operator injected the message; only
	// user messages get an assistant reply persisted.
	SenderRole string
}

// Result is the pipeline outcome. ProcessingSteps is populated on both
// success and failure; it is the primary debugging surface for template
// authors.
type Result struct {
	Success         bool              `json:"success"`
	Response        *string           `json:"response"`
	ConversationID  uuid.UUID         `json:"conversationId"`
	MessageID       *uuid.UUID        `json:"messageId,omitempty"`
	ResponseID      *uuid.UUID        `json:"responseId,omitempty"`
	ProcessLogID    string            `json:"processLogId,omitempty"`
	ProcessingSteps []processlog.Step `json:"processingSteps"`
	AIStopped       bool              `json:"aiStopped,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Service orchestrates message processing.
type Service struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	stages        *stagesvc.Service
	templates     *templatesvc.Service
	generator     ports.Generator
	logs          processlog.Store
	stops         controls.StopStore
	aliases       domain.AliasTable
	bus           events.Bus
	log           *logger.Logger
}

// New creates the pipeline service.
func New(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	stages *stagesvc.Service,
	templates *templatesvc.Service,
	generator ports.Generator,
	logs processlog.Store,
	stops controls.StopStore,
	aliases domain.AliasTable,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	if aliases == nil {
		aliases = domain.DefaultAliases()
	}
	return &Service{
		conversations: conversations,
		messages:      messages,
		stages:        stages,
		templates:     templates,
		generator:     generator,
		logs:          logs,
		stops:         stops,
		aliases:       aliases,
		bus:           bus,
		log:           log,
	}
}

// Logs exposes the process log store for the read API.
func (s *Service) Logs() processlog.Store { return s.logs }

// Stops exposes the stop flag store for the control API.
func (s *Service) Stops() controls.StopStore { return s.stops }

// Conversations exposes the conversation repository for the read API.
func (s *Service) Conversations() repository.ConversationRepository { return s.conversations }

// Messages exposes the message repository for the read API.
func (s *Service) Messages() repository.MessageRepository { return s.messages }

type trace struct {
	steps          []processlog.Step
	log            *logger.Logger
	conversationID string
}

func (t *trace) add(step processlog.Step) {
	step.At = time.Now()
	if len(step.Detail) > detailLimit {
		step.Detail = step.Detail[:detailLimit]
	}
	t.steps = append(t.steps, step)
	if t.log != nil {
		t.log.PipelineStep(step.Name, step.Status, t.conversationID)
	}
}

func (t *trace) completed(name, detail string) {
	t.add(processlog.Step{Name: name, Status: processlog.StatusCompleted, Detail: detail})
}

func (t *trace) failed(name, detail string) {
	t.add(processlog.Step{Name: name, Status: processlog.StatusFailed, Detail: detail})
}

func (t *trace) skipped(name, detail string) {
	t.add(processlog.Step{Name: name, Status: processlog.StatusSkipped, Detail: detail})
}

// ProcessMessage runs one message through the pipeline. The returned Result
// carries the processing trace even when err is non-nil.
func (s *Service) ProcessMessage(ctx context.Context, in Input) (Result, error) {
	tr := &trace{log: s.log}

	if in.BusinessID == uuid.Nil || strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.Content) == "" {
		err := apperr.Validation("businessId, userId and content are required")
		return Result{Success: false, ProcessingSteps: tr.steps, Error: err.Message}, err
	}
	if in.SenderRole == "" {
		in.SenderRole = repository.RoleUser
	}
	tr.completed(stepValidation, "")

	log := s.log.WithBusinessID(in.BusinessID.String())

	conv, err := s.conversations.ResolveOrCreate(ctx, in.BusinessID, in.UserID)
	if err != nil {
		tr.failed(stepConversation, err.Error())
		return s.fail(ctx, in.BusinessID, uuid.Nil, tr, apperr.Wrap(apperr.KindInternal, "conversation resolution failed", err))
	}
	tr.conversationID = conv.ID.String()
	tr.completed(stepConversation, conv.ID.String())

	stopped, err := s.isStopped(ctx, in, conv.ID)
	if err != nil {
		log.Warn("stop flag check failed", "conversation_id", conv.ID, "error", err)
	}
	if stopped {
		return s.finishStopped(ctx, in, conv, tr)
	}
	tr.completed(stepStopCheck, "not stopped")

	refs, err := s.stages.StageForConversation(ctx, in.BusinessID, conv.ID)
	if err != nil {
		tr.failed(stepStage, err.Error())
		return s.fail(ctx, in.BusinessID, conv.ID, tr, toAppErr(err, "stage resolution failed"))
	}
	tr.completed(stepStage, refs.StageName)

	rc := variables.Context{
		variables.KeyBusinessID:     in.BusinessID.String(),
		variables.KeyUserID:         in.UserID,
		variables.KeyConversationID: conv.ID.String(),
		variables.KeyMessage:        in.Content,
	}

	refs = s.runSelection(ctx, in, conv, refs, rc, tr, log)
	s.runExtraction(ctx, in, conv, refs, rc, tr, log)

	responseText, responseErr := s.runResponse(ctx, in, conv, refs, rc, tr, log)
	if responseErr != nil {
		return s.fail(ctx, in.BusinessID, conv.ID, tr, responseErr)
	}

	userMsg, err := s.messages.Append(ctx, conv.ID, repository.RoleUser, in.Content)
	if err != nil {
		tr.failed(stepPersistence, err.Error())
		return s.fail(ctx, in.BusinessID, conv.ID, tr, apperr.Wrap(apperr.KindInternal, "message persistence failed", err))
	}

	var responseID *uuid.UUID
	if in.SenderRole == repository.RoleUser {
		assistantMsg, err := s.messages.Append(ctx, conv.ID, repository.RoleAssistant, responseText)
		if err != nil {
			tr.failed(stepPersistence, err.Error())
			return s.fail(ctx, in.BusinessID, conv.ID, tr, apperr.Wrap(apperr.KindInternal, "response persistence failed", err))
		}
		responseID = &assistantMsg.ID
	}
	tr.completed(stepPersistence, "")

	if err := s.conversations.Touch(ctx, conv.ID); err != nil {
		log.Warn("conversation touch failed", "conversation_id", conv.ID, "error", err)
	}

	logID := s.writeLog(ctx, in.BusinessID, conv.ID, tr, true, "")

	s.bus.Publish(ctx, events.MessageProcessed{
		BaseEvent:      events.NewBaseEvent(),
		BusinessID:     in.BusinessID,
		ConversationID: conv.ID,
		MessageID:      userMsg.ID,
		ProcessLogID:   logID,
	})

	messageID := userMsg.ID
	return Result{
		Success:         true,
		Response:        &responseText,
		ConversationID:  conv.ID,
		MessageID:       &messageID,
		ResponseID:      responseID,
		ProcessLogID:    logID,
		ProcessingSteps: tr.steps,
	}, nil
}

// isStopped checks the user flag, the resolved conversation flag, and when
// the caller named a different conversation id, that one too.
func (s *Service) isStopped(ctx context.Context, in Input, resolvedID uuid.UUID) (bool, error) {
	stopped, err := s.stops.IsUserStopped(ctx, in.BusinessID, in.UserID)
	if err != nil || stopped {
		return stopped, err
	}
	stopped, err = s.stops.IsStopped(ctx, resolvedID)
	if err != nil || stopped {
		return stopped, err
	}
	if in.ConversationID != nil && *in.ConversationID != resolvedID {
		return s.stops.IsStopped(ctx, *in.ConversationID)
	}
	return false, nil
}

// finishStopped records the user message but generates nothing.
func (s *Service) finishStopped(ctx context.Context, in Input, conv repository.Conversation, tr *trace) (Result, error) {
	tr.completed(stepStopCheck, "ai stopped")

	var messageID *uuid.UUID
	if msg, err := s.messages.Append(ctx, conv.ID, repository.RoleUser, in.Content); err != nil {
		s.log.Warn("stopped-message persistence failed", "conversation_id", conv.ID, "error", err)
	} else {
		messageID = &msg.ID
	}

	logID := s.writeLog(ctx, in.BusinessID, conv.ID, tr, true, "")

	s.bus.Publish(ctx, events.MessageProcessed{
		BaseEvent:      events.NewBaseEvent(),
		BusinessID:     in.BusinessID,
		ConversationID: conv.ID,
		ProcessLogID:   logID,
		AIStopped:      true,
	})

	return Result{
		Success:         true,
		ConversationID:  conv.ID,
		MessageID:       messageID,
		ProcessLogID:    logID,
		ProcessingSteps: tr.steps,
		AIStopped:       true,
	}, nil
}

// runSelection detects a stage transition from model output. Every failure
// here is absorbed: the pipeline continues on the current stage.
func (s *Service) runSelection(ctx context.Context, in Input, conv repository.Conversation, refs stagesvc.TemplateRefs, rc variables.Context, tr *trace, log *logger.Logger) stagesvc.TemplateRefs {
	if refs.SelectionTemplateID == nil {
		tr.skipped(stepSelection, "no selection template")
		return refs
	}

	tmpl, err := s.templates.GetTemplate(ctx, in.BusinessID, *refs.SelectionTemplateID)
	if err != nil {
		tr.failed(stepSelection, "template: "+err.Error())
		return refs
	}
	rendered := s.templates.Apply(ctx, tmpl, rc)

	raw, err := s.generator.Generate(ctx, ports.Call{
		Type:           ports.CallIntent,
		BusinessID:     in.BusinessID,
		ConversationID: conv.ID,
		SystemPrompt:   rendered.SystemPrompt,
		Prompt:         rendered.Text,
	})
	if err != nil {
		tr.add(processlog.Step{
			Name: stepSelection, Status: processlog.StatusFailed,
			Detail: err.Error(), TemplateID: tmpl.ID.String(), Prompt: rendered.Text,
		})
		return refs
	}

	stages, err := s.stages.ListStages(ctx, in.BusinessID, stagerepo.OrderByCreated)
	if err != nil {
		tr.failed(stepSelection, "stage list: "+err.Error())
		return refs
	}
	stageRefs := make([]domain.StageRef, 0, len(stages))
	for _, st := range stages {
		stageRefs = append(stageRefs, domain.StageRef{ID: st.ID, Name: st.Name})
	}

	step := processlog.Step{
		Name: stepSelection, Status: processlog.StatusCompleted,
		TemplateID: tmpl.ID.String(), Prompt: rendered.Text, Response: raw,
	}

	match, ok := domain.MatchStage(raw, stageRefs, s.aliases)
	switch {
	case !ok:
		step.Detail = "unmatched, retaining stage " + refs.StageName
	case match.Stage.ID == refs.StageID:
		step.Detail = "retained stage " + refs.StageName
	default:
		oldStageID := refs.StageID
		newRefs, terr := s.stages.Transition(ctx, in.BusinessID, conv.ID, match.Stage.ID)
		if terr != nil {
			// The transition holds for the rest of this message even when
			// the write failed; the persisted stage stays authoritative for
			// the next message.
			log.Warn("stage transition persist failed",
				"conversation_id", conv.ID, "stage_id", match.Stage.ID, "error", terr)
			tr.failed("stage_persist_failed", terr.Error())
		}
		if newRefs.StageID != uuid.Nil {
			refs = newRefs
		}
		step.Detail = fmt.Sprintf("transitioned to %s (%s)", match.Stage.Name, match.Tier)

		s.bus.Publish(ctx, events.ConversationStageChanged{
			BaseEvent:      events.NewBaseEvent(),
			BusinessID:     in.BusinessID,
			ConversationID: conv.ID,
			OldStageID:     oldStageID,
			NewStageID:     match.Stage.ID,
			MatchTier:      string(match.Tier),
		})
	}
	tr.add(step)
	return refs
}

// runExtraction pulls structured fields out of the message and merges them
// into the context. Non-fatal on every path.
func (s *Service) runExtraction(ctx context.Context, in Input, conv repository.Conversation, refs stagesvc.TemplateRefs, rc variables.Context, tr *trace, log *logger.Logger) {
	if refs.ExtractionTemplateID == nil {
		tr.skipped(stepExtraction, "no extraction template")
		return
	}

	tmpl, err := s.templates.GetTemplate(ctx, in.BusinessID, *refs.ExtractionTemplateID)
	if err != nil {
		tr.failed(stepExtraction, "template: "+err.Error())
		return
	}
	rendered := s.templates.Apply(ctx, tmpl, rc)

	raw, err := s.generator.Generate(ctx, ports.Call{
		Type:           ports.CallExtraction,
		BusinessID:     in.BusinessID,
		ConversationID: conv.ID,
		SystemPrompt:   rendered.SystemPrompt,
		Prompt:         rendered.Text,
	})
	if err != nil {
		tr.add(processlog.Step{
			Name: stepExtraction, Status: processlog.StatusFailed,
			Detail: err.Error(), TemplateID: tmpl.ID.String(), Prompt: rendered.Text,
		})
		return
	}

	fields, err := parseExtraction(raw)
	if err != nil {
		tr.add(processlog.Step{
			Name: stepExtraction, Status: processlog.StatusFailed,
			Detail: "unparseable output: " + err.Error(),
			TemplateID: tmpl.ID.String(), Prompt: rendered.Text, Response: raw,
		})
		return
	}

	for k, v := range fields {
		rc[k] = v
	}
	tr.add(processlog.Step{
		Name: stepExtraction, Status: processlog.StatusCompleted,
		Detail:     fmt.Sprintf("%d fields extracted", len(fields)),
		TemplateID: tmpl.ID.String(), Prompt: rendered.Text, Response: raw,
	})
}

// runResponse generates the mandatory reply. Any failure here fails the
// whole message.
func (s *Service) runResponse(ctx context.Context, in Input, conv repository.Conversation, refs stagesvc.TemplateRefs, rc variables.Context, tr *trace, log *logger.Logger) (string, *apperr.Error) {
	var prompt, system, templateID string
	if refs.ResponseTemplateID != nil {
		tmpl, err := s.templates.GetTemplate(ctx, in.BusinessID, *refs.ResponseTemplateID)
		if err != nil {
			tr.failed(stepResponse, "template: "+err.Error())
			return "", toAppErr(err, "response template lookup failed")
		}
		rendered := s.templates.Apply(ctx, tmpl, rc)
		prompt, system, templateID = rendered.Text, rendered.SystemPrompt, tmpl.ID.String()
	} else {
		system = "You are a helpful assistant responding on behalf of a business."
		prompt = "Reply to the following message from the user.\n\nMessage: " + in.Content
	}

	raw, err := s.generator.Generate(ctx, ports.Call{
		Type:           ports.CallResponse,
		BusinessID:     in.BusinessID,
		ConversationID: conv.ID,
		SystemPrompt:   system,
		Prompt:         prompt,
	})
	if err != nil {
		tr.add(processlog.Step{
			Name: stepResponse, Status: processlog.StatusFailed,
			Detail: err.Error(), TemplateID: templateID, Prompt: prompt,
		})
		return "", apperr.Wrap(apperr.KindUnavailable, "generation service error", err)
	}

	tr.add(processlog.Step{
		Name: stepResponse, Status: processlog.StatusCompleted,
		TemplateID: templateID, Prompt: prompt, Response: raw,
	})
	return raw, nil
}

// fail writes an error log entry, notifies subscribers and builds the failed
// result. The trace travels with the result so callers can inspect the
// failure without another query.
func (s *Service) fail(ctx context.Context, businessID, conversationID uuid.UUID, tr *trace, appErr *apperr.Error) (Result, error) {
	var logID string
	if conversationID != uuid.Nil {
		logID = s.writeLog(ctx, businessID, conversationID, tr, false, appErr.Message)
		s.bus.Publish(ctx, events.PipelineFailed{
			BaseEvent:      events.NewBaseEvent(),
			BusinessID:     businessID,
			ConversationID: conversationID,
			ProcessLogID:   logID,
			Reason:         appErr.Message,
		})
	}
	return Result{
		Success:         false,
		ConversationID:  conversationID,
		ProcessLogID:    logID,
		ProcessingSteps: tr.steps,
		Error:           appErr.Message,
	}, appErr
}

func (s *Service) writeLog(ctx context.Context, businessID, conversationID uuid.UUID, tr *trace, success bool, errText string) string {
	status := processlog.EntryOK
	if !success {
		status = processlog.EntryError
	}
	entry := processlog.Entry{
		ID:             uuid.NewString(),
		BusinessID:     businessID,
		ConversationID: conversationID,
		Steps:          tr.steps,
		Status:         status,
		Success:        success,
		Error:          errText,
		CreatedAt:      time.Now(),
	}
	if err := s.logs.Put(ctx, entry); err != nil {
		s.log.Warn("process log write failed", "entry_id", entry.ID, "error", err)
	}
	return entry.ID
}

func toAppErr(err error, fallback string) *apperr.Error {
	if appErr, ok := err.(*apperr.Error); ok {
		return appErr
	}
	return apperr.Wrap(apperr.KindInternal, fallback, err)
}

// parseExtraction interprets model output as a flat JSON object. Markdown
// code fences around the object are tolerated.
func parseExtraction(raw string) (map[string]string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(parsed))
	for k, v := range parsed {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			fields[k] = value
		default:
			fields[k] = fmt.Sprint(value)
		}
	}
	return fields, nil
}
