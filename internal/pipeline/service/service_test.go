package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"stageflow_backend/internal/pipeline/controls"
	"stageflow_backend/internal/pipeline/domain"
	"stageflow_backend/internal/pipeline/ports"
	"stageflow_backend/internal/pipeline/processlog"
	"stageflow_backend/internal/pipeline/repository"
	stagerepo "stageflow_backend/internal/stages/repository"
	stagesvc "stageflow_backend/internal/stages/service"
	tmplrepo "stageflow_backend/internal/templates/repository"
	templatesvc "stageflow_backend/internal/templates/service"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/events"
	"stageflow_backend/platform/logger"
)

// ---- fakes ----

type fakeConvRepo struct {
	byKey map[string]uuid.UUID
	byID  map[uuid.UUID]*repository.Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		byKey: make(map[string]uuid.UUID),
		byID:  make(map[uuid.UUID]*repository.Conversation),
	}
}

func (f *fakeConvRepo) ResolveOrCreate(_ context.Context, businessID uuid.UUID, userID string) (repository.Conversation, error) {
	key := businessID.String() + "|" + userID
	if id, ok := f.byKey[key]; ok {
		return *f.byID[id], nil
	}
	conv := &repository.Conversation{
		ID:          uuid.New(),
		BusinessID:  businessID,
		UserID:      userID,
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
	f.byKey[key] = conv.ID
	f.byID[conv.ID] = conv
	return *conv, nil
}

func (f *fakeConvRepo) GetByID(_ context.Context, businessID, id uuid.UUID) (repository.Conversation, error) {
	conv, ok := f.byID[id]
	if !ok || conv.BusinessID != businessID {
		return repository.Conversation{}, apperr.NotFound("conversation not found")
	}
	return *conv, nil
}

func (f *fakeConvRepo) List(_ context.Context, businessID uuid.UUID, _ int) ([]repository.Conversation, error) {
	var out []repository.Conversation
	for _, conv := range f.byID {
		if conv.BusinessID == businessID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) GetCurrentStageID(_ context.Context, _, conversationID uuid.UUID) (*uuid.UUID, error) {
	conv, ok := f.byID[conversationID]
	if !ok {
		return nil, apperr.NotFound("conversation not found")
	}
	return conv.CurrentStageID, nil
}

func (f *fakeConvRepo) SetCurrentStage(_ context.Context, _, conversationID, stageID uuid.UUID) error {
	conv, ok := f.byID[conversationID]
	if !ok {
		return apperr.NotFound("conversation not found")
	}
	id := stageID
	conv.CurrentStageID = &id
	return nil
}

func (f *fakeConvRepo) Touch(_ context.Context, conversationID uuid.UUID) error {
	if conv, ok := f.byID[conversationID]; ok {
		conv.LastUpdated = time.Now()
	}
	return nil
}

type fakeMsgRepo struct {
	messages []repository.Message
}

func (f *fakeMsgRepo) Append(_ context.Context, conversationID uuid.UUID, role, content string) (repository.Message, error) {
	msg := repository.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeMsgRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, _ int) ([]repository.Message, error) {
	var out []repository.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMsgRepo) ListByUser(_ context.Context, _ uuid.UUID, _ string, _ int) ([]repository.Message, error) {
	return nil, nil
}

func (f *fakeMsgRepo) byRole(role string) []repository.Message {
	var out []repository.Message
	for _, m := range f.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakeStageRepo struct {
	stages []stagerepo.Stage
}

func (f *fakeStageRepo) Create(_ context.Context, params stagerepo.CreateStageParams) (stagerepo.Stage, error) {
	st := stagerepo.Stage{
		ID:         uuid.New(),
		BusinessID: params.BusinessID,
		Name:       params.Name,
		IsDefault:  params.IsDefault,
		CreatedAt:  time.Now(),
	}
	f.stages = append(f.stages, st)
	return st, nil
}

func (f *fakeStageRepo) Update(_ context.Context, _ stagerepo.UpdateStageParams) (stagerepo.Stage, error) {
	return stagerepo.Stage{}, errors.New("not implemented")
}

func (f *fakeStageRepo) Delete(_ context.Context, _, _ uuid.UUID) error {
	return errors.New("not implemented")
}

func (f *fakeStageRepo) GetByID(_ context.Context, businessID, id uuid.UUID) (stagerepo.Stage, error) {
	for _, st := range f.stages {
		if st.ID == id && st.BusinessID == businessID {
			return st, nil
		}
	}
	return stagerepo.Stage{}, apperr.NotFound("stage not found")
}

func (f *fakeStageRepo) List(_ context.Context, businessID uuid.UUID, _ stagerepo.ListOrder) ([]stagerepo.Stage, error) {
	var out []stagerepo.Stage
	for _, st := range f.stages {
		if st.BusinessID == businessID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStageRepo) ClearDefault(_ context.Context, businessID uuid.UUID) error {
	for i := range f.stages {
		if f.stages[i].BusinessID == businessID {
			f.stages[i].IsDefault = false
		}
	}
	return nil
}

func (f *fakeStageRepo) GetDefault(_ context.Context, businessID uuid.UUID) (stagerepo.Stage, error) {
	var earliest *stagerepo.Stage
	for i := range f.stages {
		st := &f.stages[i]
		if st.BusinessID != businessID {
			continue
		}
		if st.IsDefault {
			return *st, nil
		}
		if earliest == nil || st.CreatedAt.Before(earliest.CreatedAt) {
			earliest = st
		}
	}
	if earliest == nil {
		return stagerepo.Stage{}, apperr.NotFound("stage not found")
	}
	return *earliest, nil
}

type fakeTemplateRepo struct {
	byID map[uuid.UUID]tmplrepo.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{byID: make(map[uuid.UUID]tmplrepo.Template)}
}

func (f *fakeTemplateRepo) add(businessID uuid.UUID, text string) *uuid.UUID {
	tmpl := tmplrepo.Template{ID: uuid.New(), BusinessID: businessID, Text: text}
	f.byID[tmpl.ID] = tmpl
	id := tmpl.ID
	return &id
}

func (f *fakeTemplateRepo) Create(_ context.Context, _ tmplrepo.CreateTemplateParams) (tmplrepo.Template, error) {
	return tmplrepo.Template{}, errors.New("not implemented")
}

func (f *fakeTemplateRepo) Update(_ context.Context, _ tmplrepo.UpdateTemplateParams) (tmplrepo.Template, error) {
	return tmplrepo.Template{}, errors.New("not implemented")
}

func (f *fakeTemplateRepo) Delete(_ context.Context, _, _ uuid.UUID) error {
	return errors.New("not implemented")
}

func (f *fakeTemplateRepo) GetByID(_ context.Context, businessID, id uuid.UUID) (tmplrepo.Template, error) {
	tmpl, ok := f.byID[id]
	if !ok || tmpl.BusinessID != businessID {
		return tmplrepo.Template{}, apperr.NotFound("template not found")
	}
	return tmpl, nil
}

func (f *fakeTemplateRepo) List(_ context.Context, _ uuid.UUID) ([]tmplrepo.Template, error) {
	return nil, nil
}

type fakeGenerator struct {
	responses map[ports.CallType]string
	errs      map[ports.CallType]error
	prompts   map[ports.CallType]string
	calls     []ports.Call
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		responses: make(map[ports.CallType]string),
		errs:      make(map[ports.CallType]error),
		prompts:   make(map[ports.CallType]string),
	}
}

func (f *fakeGenerator) Generate(_ context.Context, call ports.Call) (string, error) {
	f.calls = append(f.calls, call)
	f.prompts[call.Type] = call.Prompt
	if err := f.errs[call.Type]; err != nil {
		return "", err
	}
	return f.responses[call.Type], nil
}

// ---- harness ----

type pipelineFixture struct {
	svc        *Service
	businessID uuid.UUID
	convs      *fakeConvRepo
	msgs       *fakeMsgRepo
	stageRepo  *fakeStageRepo
	tmplRepo   *fakeTemplateRepo
	gen        *fakeGenerator
	stops      controls.StopStore
	logs       processlog.Store
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	log := logger.New("test")
	convs := newFakeConvRepo()
	msgs := &fakeMsgRepo{}
	stageRepo := &fakeStageRepo{}
	tmplRepo := newFakeTemplateRepo()
	gen := newFakeGenerator()
	logs := processlog.NewMemoryStore(100, time.Hour)
	stops := controls.NewMemoryStopStore(time.Hour)
	registry := variables.NewRegistry(log)
	bus := events.NewInMemoryBus(log)

	stages := stagesvc.New(stageRepo, convs, log)
	templates := templatesvc.New(tmplRepo, registry, log)

	return &pipelineFixture{
		svc:        New(convs, msgs, stages, templates, gen, logs, stops, domain.DefaultAliases(), bus, log),
		businessID: uuid.New(),
		convs:      convs,
		msgs:       msgs,
		stageRepo:  stageRepo,
		tmplRepo:   tmplRepo,
		gen:        gen,
		stops:      stops,
		logs:       logs,
	}
}

func (f *pipelineFixture) addStage(name string, isDefault bool, selection, extraction, response *uuid.UUID) stagerepo.Stage {
	st := stagerepo.Stage{
		ID:                   uuid.New(),
		BusinessID:           f.businessID,
		Name:                 name,
		IsDefault:            isDefault,
		SelectionTemplateID:  selection,
		ExtractionTemplateID: extraction,
		ResponseTemplateID:   response,
		CreatedAt:            time.Now(),
	}
	f.stageRepo.stages = append(f.stageRepo.stages, st)
	return st
}

func (f *pipelineFixture) input(content string) Input {
	return Input{BusinessID: f.businessID, UserID: "user-1", Content: content}
}

func stepByName(steps []processlog.Step, name string) (processlog.Step, bool) {
	for _, s := range steps {
		if s.Name == name {
			return s, true
		}
	}
	return processlog.Step{}, false
}

// ---- tests ----

func TestProcessMessage_FullFlow(t *testing.T) {
	f := newFixture(t)
	sel := f.tmplRepo.add(f.businessID, "Classify: {message}")
	ext := f.tmplRepo.add(f.businessID, "Extract from: {message}")
	resp := f.tmplRepo.add(f.businessID, "Reply to {name}: {message}")
	f.addStage("Greeting", true, sel, ext, resp)

	f.gen.responses[ports.CallIntent] = "no stage mentioned here"
	f.gen.responses[ports.CallExtraction] = `{"name": "John"}`
	f.gen.responses[ports.CallResponse] = "Hello John!"

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hi there"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success || result.Response == nil || *result.Response != "Hello John!" {
		t.Errorf("unexpected result: %+v", result)
	}

	// Extracted fields feed the response template.
	if got := f.gen.prompts[ports.CallResponse]; got != "Reply to John: hi there" {
		t.Errorf("response prompt = %q", got)
	}

	// Every generation call carries the tenant and conversation identity.
	for _, call := range f.gen.calls {
		if call.BusinessID != f.businessID {
			t.Errorf("%s call businessID = %s, want %s", call.Type, call.BusinessID, f.businessID)
		}
		if call.ConversationID != result.ConversationID {
			t.Errorf("%s call conversationID = %s, want %s", call.Type, call.ConversationID, result.ConversationID)
		}
	}

	if len(f.msgs.byRole(repository.RoleUser)) != 1 || len(f.msgs.byRole(repository.RoleAssistant)) != 1 {
		t.Errorf("expected one user and one assistant message, got %d total", len(f.msgs.messages))
	}

	entry, err := f.logs.Get(context.Background(), result.ProcessLogID)
	if err != nil {
		t.Fatalf("log entry: %v", err)
	}
	if entry.Status != processlog.EntryOK || !entry.Success {
		t.Errorf("expected ok entry, got %+v", entry)
	}
	for _, name := range []string{"validation", "conversation", "stage_resolution", "selection", "extraction", "response", "persistence"} {
		step, ok := stepByName(result.ProcessingSteps, name)
		if !ok {
			t.Errorf("missing step %q", name)
			continue
		}
		if step.Status != processlog.StatusCompleted {
			t.Errorf("step %q status %q", name, step.Status)
		}
	}
}

func TestProcessMessage_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ProcessMessage(context.Background(), f.input("   "))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Errorf("expected validation kind, got %v", err)
	}
	if result.Success {
		t.Error("result should not be successful")
	}
	if len(f.gen.calls) != 0 {
		t.Error("no generation should happen on invalid input")
	}
}

func TestProcessMessage_StopFlagShortCircuits(t *testing.T) {
	f := newFixture(t)
	resp := f.tmplRepo.add(f.businessID, "Reply: {message}")
	f.addStage("Greeting", true, nil, nil, resp)

	if err := f.stops.SetUserStopped(context.Background(), f.businessID, "user-1", true); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hello"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success || !result.AIStopped {
		t.Errorf("expected success with aiStopped, got %+v", result)
	}
	if result.Response != nil {
		t.Error("response should be nil when stopped")
	}
	if len(f.gen.calls) != 0 {
		t.Error("no generation call should be made when stopped")
	}
	if len(f.msgs.byRole(repository.RoleAssistant)) != 0 {
		t.Error("no assistant message should be persisted when stopped")
	}
	// The inbound user message is still recorded.
	if len(f.msgs.byRole(repository.RoleUser)) != 1 {
		t.Error("user message should be persisted when stopped")
	}
}

func TestProcessMessage_AssignsDefaultStageOnce(t *testing.T) {
	f := newFixture(t)
	f.addStage("Older", false, nil, nil, nil)
	def := f.addStage("Default", true, nil, nil, nil)
	f.gen.responses[ports.CallResponse] = "ok"

	for i := 0; i < 2; i++ {
		if _, err := f.svc.ProcessMessage(context.Background(), f.input("hello")); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}

	convID := f.convs.byKey[f.businessID.String()+"|user-1"]
	stageID := f.convs.byID[convID].CurrentStageID
	if stageID == nil || *stageID != def.ID {
		t.Errorf("expected default stage assigned, got %v", stageID)
	}
}

func TestProcessMessage_SelectionTransition(t *testing.T) {
	f := newFixture(t)
	sel := f.tmplRepo.add(f.businessID, "Classify: {message}")
	respGreeting := f.tmplRepo.add(f.businessID, "Greeting reply: {message}")
	respScheduling := f.tmplRepo.add(f.businessID, "Scheduling reply: {message}")
	f.addStage("Greeting", true, sel, nil, respGreeting)
	scheduling := f.addStage("Scheduling", false, nil, nil, respScheduling)

	f.gen.responses[ports.CallIntent] = "The user moved to Scheduling."
	f.gen.responses[ports.CallResponse] = "See you Tuesday."

	result, err := f.svc.ProcessMessage(context.Background(), f.input("can we meet tuesday"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	// Transition is persisted and the new stage's templates are in effect.
	convID := f.convs.byKey[f.businessID.String()+"|user-1"]
	stageID := f.convs.byID[convID].CurrentStageID
	if stageID == nil || *stageID != scheduling.ID {
		t.Errorf("expected transition to Scheduling, got %v", stageID)
	}
	if got := f.gen.prompts[ports.CallResponse]; !strings.HasPrefix(got, "Scheduling reply:") {
		t.Errorf("response should use the new stage's template, prompt = %q", got)
	}

	step, ok := stepByName(result.ProcessingSteps, "selection")
	if !ok || !strings.Contains(step.Detail, "transitioned to Scheduling") {
		t.Errorf("selection step detail = %+v", step)
	}
}

func TestProcessMessage_UnparseableExtractionIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	ext := f.tmplRepo.add(f.businessID, "Extract: {message}")
	resp := f.tmplRepo.add(f.businessID, "Reply: {message}")
	f.addStage("Greeting", true, nil, ext, resp)

	f.gen.responses[ports.CallExtraction] = "this is not json"
	f.gen.responses[ports.CallResponse] = "fine anyway"

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hello"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success {
		t.Fatalf("extraction failure must not fail the message: %+v", result)
	}

	step, ok := stepByName(result.ProcessingSteps, "extraction")
	if !ok || step.Status != processlog.StatusFailed {
		t.Errorf("extraction step = %+v", step)
	}
	respStep, ok := stepByName(result.ProcessingSteps, "response")
	if !ok || respStep.Status != processlog.StatusCompleted {
		t.Errorf("response step = %+v", respStep)
	}
}

func TestProcessMessage_SelectionFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	sel := f.tmplRepo.add(f.businessID, "Classify: {message}")
	resp := f.tmplRepo.add(f.businessID, "Reply: {message}")
	f.addStage("Greeting", true, sel, nil, resp)

	f.gen.errs[ports.CallIntent] = errors.New("model overloaded")
	f.gen.responses[ports.CallResponse] = "still fine"

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hello"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success {
		t.Fatalf("selection failure must not fail the message: %+v", result)
	}
}

func TestProcessMessage_ResponseFailureFailsMessage(t *testing.T) {
	f := newFixture(t)
	resp := f.tmplRepo.add(f.businessID, "Reply: {message}")
	f.addStage("Greeting", true, nil, nil, resp)

	f.gen.errs[ports.CallResponse] = errors.New("model unavailable")

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hello"))
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUnavailable {
		t.Errorf("expected unavailable kind, got %v", err)
	}
	if result.Success {
		t.Error("result should be failed")
	}
	if result.ProcessLogID == "" {
		t.Fatal("failed result must carry a process log id")
	}

	entry, err := f.logs.Get(context.Background(), result.ProcessLogID)
	if err != nil {
		t.Fatalf("log entry: %v", err)
	}
	if entry.Status != processlog.EntryError || entry.Success {
		t.Errorf("expected error entry, got %+v", entry)
	}
	if len(result.ProcessingSteps) == 0 {
		t.Error("trace must be returned on failure")
	}
	if len(f.msgs.messages) != 0 {
		t.Error("no messages should be persisted on response failure")
	}
}

func TestProcessMessage_NoStagesConfigured(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hello"))
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Errorf("expected conflict kind, got %v", err)
	}
	if result.ProcessLogID == "" {
		t.Error("failure after conversation resolution should carry a log id")
	}
}

func TestProcessMessage_OperatorMessageGetsNoAssistantReply(t *testing.T) {
	f := newFixture(t)
	resp := f.tmplRepo.add(f.businessID, "Reply: {message}")
	f.addStage("Greeting", true, nil, nil, resp)
	f.gen.responses[ports.CallResponse] = "generated"

	in := f.input("note from operator")
	in.SenderRole = "operator"

	result, err := f.svc.ProcessMessage(context.Background(), in)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.ResponseID != nil {
		t.Error("operator-injected message should not persist an assistant reply")
	}
	if len(f.msgs.byRole(repository.RoleAssistant)) != 0 {
		t.Error("no assistant message should be stored")
	}
}

func TestProcessMessage_NoResponseTemplateUsesDefaultPrompt(t *testing.T) {
	f := newFixture(t)
	f.addStage("Greeting", true, nil, nil, nil)
	f.gen.responses[ports.CallResponse] = "default prompt reply"

	result, err := f.svc.ProcessMessage(context.Background(), f.input("hello"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if got := f.gen.prompts[ports.CallResponse]; !strings.Contains(got, "hello") {
		t.Errorf("default prompt should include the message, got %q", got)
	}
}
