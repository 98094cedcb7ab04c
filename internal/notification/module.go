// Package notification alerts operators about pipeline failures. It
// subscribes to domain events and inverts the dependency: the pipeline
// never needs to know about email delivery.
package notification

import (
	"context"
	"fmt"

	"stageflow_backend/internal/events"
	"stageflow_backend/platform/config"
	"stageflow_backend/platform/logger"
)

// Module delivers ops alert emails in response to pipeline failures.
type Module struct {
	mailer  Mailer
	alertTo string
	log     *logger.Logger
}

// NewModule wires the alert handler onto the event bus. When email delivery
// is disabled in the configuration no subscription is made and the module is
// inert.
func NewModule(cfg config.EmailConfig, bus events.Bus, log *logger.Logger) *Module {
	m := &Module{log: log}
	if !cfg.GetEmailEnabled() {
		log.Info("ops alert email disabled")
		return m
	}

	m.mailer = NewSMTPMailer(cfg)
	m.alertTo = cfg.GetOpsAlertAddress()
	bus.Subscribe(events.PipelineFailed{}.EventName(), m)
	return m
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	failed, ok := event.(events.PipelineFailed)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	subject := fmt.Sprintf("Pipeline failure for business %s", failed.BusinessID)
	body := fmt.Sprintf(
		"A message failed processing.\n\nBusiness: %s\nConversation: %s\nProcess log: %s\nReason: %s\n",
		failed.BusinessID, failed.ConversationID, failed.ProcessLogID, failed.Reason)

	if err := m.mailer.Send(ctx, m.alertTo, subject, body); err != nil {
		m.log.Error("ops alert email failed",
			"business_id", failed.BusinessID, "error", err)
		return err
	}

	m.log.Info("ops alert email sent",
		"business_id", failed.BusinessID, "conversation_id", failed.ConversationID)
	return nil
}
