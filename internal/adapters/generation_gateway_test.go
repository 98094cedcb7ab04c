package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"stageflow_backend/internal/pipeline/ports"
	"stageflow_backend/platform/logger"
)

type fakeCompleter struct {
	text    string
	errs    []error
	calls   int
	systems []string
	prompts []string
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, prompt string) (string, error) {
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, prompt)
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.text, nil
}

func newGateway(client completer) *GenerationGateway {
	return &GenerationGateway{client: client, timeout: time.Second, log: logger.New("error")}
}

func TestGenerate_PassesPromptsThrough(t *testing.T) {
	fc := &fakeCompleter{text: "answer"}
	g := newGateway(fc)

	got, err := g.Generate(context.Background(), ports.Call{
		Type:           ports.CallResponse,
		BusinessID:     uuid.New(),
		ConversationID: uuid.New(),
		SystemPrompt:   "sys",
		Prompt:         "user text",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "answer" {
		t.Errorf("got %q", got)
	}
	if fc.calls != 1 || fc.systems[0] != "sys" || fc.prompts[0] != "user text" {
		t.Errorf("client saw calls=%d systems=%v prompts=%v", fc.calls, fc.systems, fc.prompts)
	}
}

func TestGenerate_RetriesOnceThenFails(t *testing.T) {
	boom := errors.New("upstream down")
	fc := &fakeCompleter{errs: []error{boom, boom}}
	g := newGateway(fc)

	_, err := g.Generate(context.Background(), ports.Call{Type: ports.CallIntent, Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v", err)
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2", fc.calls)
	}
}

func TestGenerate_RecoversOnSecondAttempt(t *testing.T) {
	fc := &fakeCompleter{text: "ok", errs: []error{errors.New("blip"), nil}}
	g := newGateway(fc)

	got, err := g.Generate(context.Background(), ports.Call{Type: ports.CallExtraction, Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" || fc.calls != 2 {
		t.Errorf("got %q after %d calls", got, fc.calls)
	}
}

func TestGenerate_StopsWhenContextCanceled(t *testing.T) {
	fc := &fakeCompleter{text: "never"}
	g := newGateway(fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, ports.Call{Type: ports.CallResponse, Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if fc.calls != 0 {
		t.Errorf("client should not be called, got %d", fc.calls)
	}
}
