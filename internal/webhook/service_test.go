package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"stageflow_backend/internal/scheduler"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/logger"
)

type fakeEnqueuer struct {
	payloads []scheduler.ProcessMessagePayload
	err      error
}

func (f *fakeEnqueuer) EnqueueProcessMessage(_ context.Context, payload scheduler.ProcessMessagePayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestAccept_NormalizesPhoneSender(t *testing.T) {
	enq := &fakeEnqueuer{}
	svc := NewService(enq, logger.New("error"))
	businessID := uuid.New()

	err := svc.Accept(context.Background(), businessID, "whatsapp", "(650) 253-0000", "<b>hello</b> there")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(enq.payloads) != 1 {
		t.Fatalf("expected one queued payload, got %d", len(enq.payloads))
	}
	p := enq.payloads[0]
	if p.UserID != "+16502530000" {
		t.Errorf("sender not normalized: %q", p.UserID)
	}
	if p.Content != "hello there" {
		t.Errorf("content not sanitized: %q", p.Content)
	}
	if p.BusinessID != businessID.String() || p.Channel != "whatsapp" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestAccept_RejectsBadInput(t *testing.T) {
	svc := NewService(&fakeEnqueuer{}, logger.New("error"))

	cases := []struct {
		name    string
		channel string
		sender  string
		content string
	}{
		{"unknown channel", "carrier-pigeon", "a", "hi"},
		{"empty sender", "web", "  ", "hi"},
		{"empty content", "web", "user-1", "   "},
		{"html-only content", "web", "user-1", "<br/> <hr/>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Accept(context.Background(), uuid.New(), tc.channel, tc.sender, tc.content)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAccept_NoQueueConfigured(t *testing.T) {
	svc := NewService(nil, logger.New("error"))

	err := svc.Accept(context.Background(), uuid.New(), "web", "user-1", "hello")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUnavailable {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestAccept_EnqueueFailure(t *testing.T) {
	svc := NewService(&fakeEnqueuer{err: errors.New("redis down")}, logger.New("error"))

	err := svc.Accept(context.Background(), uuid.New(), "web", "user-1", "hello")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}
