// Package email delivers rendered notifications to recipients via a
// pluggable provider and renders every outbound message body.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"garden-notifier/pkg/notifier"
)

// Provider defines the interface for mail transport implementations.
type Provider interface {
	// Send delivers an email to one recipient. Failures are classified:
	// a *SendError with Permanent set means retrying is pointless
	// (authentication, rejected recipient); anything else is transient.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SendError is a classified delivery failure.
type SendError struct {
	Permanent bool
	Err       error
}

func (e *SendError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("send failed (%s): %v", kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a delivery failure not worth retrying.
func IsPermanent(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Permanent
}

// IconSource resolves item icons for rendering. Satisfied by
// catalog.Catalog.
type IconSource interface {
	Icon(itemID string) string
}

// Sender renders notification bodies and hands them to the provider.
type Sender struct {
	provider Provider
	icons    IconSource
	logger   *slog.Logger
	baseURL  string // for verify/unsubscribe links in emails
}

// New creates a sender with the given provider.
func New(provider Provider, icons IconSource, logger *slog.Logger, baseURL string) *Sender {
	return &Sender{
		provider: provider,
		icons:    icons,
		logger:   logger,
		baseURL:  baseURL,
	}
}

// Dispatch delivers a fan-out batch. One recipient's failure never prevents
// delivery to the rest: failures are logged, with permanent
// (authentication-class) failures distinguished from transient transport
// ones, and the batch continues. Returns how many jobs were delivered.
func (s *Sender) Dispatch(ctx context.Context, jobs []notifier.Job) int {
	sent := 0
	for _, job := range jobs {
		if err := s.provider.Send(ctx, job.Email, job.Subject, job.Body); err != nil {
			if IsPermanent(err) {
				s.logger.Error("Notification rejected permanently",
					"to", job.Email,
					"subject", job.Subject,
					"error", err)
			} else {
				s.logger.Warn("Notification delivery failed",
					"to", job.Email,
					"subject", job.Subject,
					"error", err)
			}
			continue
		}
		sent++
	}
	if len(jobs) > 0 {
		s.logger.Info("Fan-out batch dispatched", "jobs", len(jobs), "sent", sent)
	}
	return sent
}

// SendVerification emails the one-time verification link for a pending
// signup.
func (s *Sender) SendVerification(ctx context.Context, to, token string) error {
	subject := "Confirm your garden stock notifications"
	body := s.formatVerificationBody(to, token)
	s.logger.Info("Sending verification email", "to", to)
	return s.provider.Send(ctx, to, subject, body)
}

// SendWelcome emails a confirmation summary after a subscription is
// confirmed. Failures are the caller's to log; the subscription itself
// stands either way.
func (s *Sender) SendWelcome(ctx context.Context, sub *notifier.Subscription) error {
	subject := "Garden stock notifications confirmed"
	body := s.formatWelcomeBody(sub)
	s.logger.Info("Sending welcome email", "to", sub.Email)
	return s.provider.Send(ctx, sub.Email, subject, body)
}
