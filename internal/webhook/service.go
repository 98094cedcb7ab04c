// Package webhook provides the inbound channel webhook bounded context
// module. Channel messages are normalized, sanitized and queued for
// asynchronous pipeline processing.
package webhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"stageflow_backend/internal/scheduler"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/phone"
	"stageflow_backend/platform/sanitize"
)

// phoneChannels carry E.164 sender identifiers.
var phoneChannels = map[string]bool{
	"whatsapp": true,
	"sms":      true,
}

var knownChannels = map[string]bool{
	"whatsapp": true,
	"sms":      true,
	"web":      true,
}

// Service accepts raw channel messages and queues them.
type Service struct {
	enqueuer scheduler.MessageEnqueuer
	log      *logger.Logger
}

// NewService creates the webhook service.
func NewService(enqueuer scheduler.MessageEnqueuer, log *logger.Logger) *Service {
	return &Service{enqueuer: enqueuer, log: log}
}

// Accept validates and queues one inbound channel message. The sender id of
// phone channels is normalized to E.164 so one user maps to one
// conversation regardless of formatting.
func (s *Service) Accept(ctx context.Context, businessID uuid.UUID, channel, sender, content string) error {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if !knownChannels[channel] {
		return apperr.Validation(fmt.Sprintf("unknown channel %q", channel))
	}

	sender = strings.TrimSpace(sender)
	if sender == "" {
		return apperr.Validation("sender is required")
	}
	if phoneChannels[channel] {
		sender = phone.NormalizeE164(sender)
	}

	content = strings.TrimSpace(sanitize.Text(content))
	if content == "" {
		return apperr.Validation("content is required")
	}

	if s.enqueuer == nil {
		return apperr.Unavailable("message queue not configured")
	}

	if err := s.enqueuer.EnqueueProcessMessage(ctx, scheduler.ProcessMessagePayload{
		BusinessID: businessID.String(),
		UserID:     sender,
		Content:    content,
		Channel:    channel,
	}); err != nil {
		return apperr.Wrap(apperr.KindInternal, "message enqueue failed", err)
	}

	s.log.Info("webhook message queued",
		"business_id", businessID, "channel", channel)
	return nil
}
