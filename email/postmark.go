package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mrz1836/postmark"
)

// PostmarkProvider sends emails via the Postmark transactional API.
type PostmarkProvider struct {
	client   *postmark.Client
	fromAddr string
	logger   *slog.Logger
}

// NewPostmarkProvider creates a new Postmark email provider.
func NewPostmarkProvider(serverToken, accountToken, fromAddr string, logger *slog.Logger) *PostmarkProvider {
	return &PostmarkProvider{
		client:   postmark.NewClient(serverToken, accountToken),
		fromAddr: fromAddr,
		logger:   logger,
	}
}

// Postmark API error codes that no retry can fix.
const (
	postmarkErrBadToken          = 10
	postmarkErrInvalidRequest    = 300
	postmarkErrInactiveRecipient = 406
)

func postmarkPermanent(code int64) bool {
	switch code {
	case postmarkErrBadToken, postmarkErrInvalidRequest, postmarkErrInactiveRecipient:
		return true
	default:
		return false
	}
}

// Send sends an email via the Postmark API.
func (p *PostmarkProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	permanent := false
	err := retry.Do(
		func() error {
			startTime := time.Now()
			resp, err := p.client.SendEmail(ctx, postmark.Email{
				From:       p.fromAddr,
				To:         to,
				Subject:    subject,
				HTMLBody:   htmlBody,
				TrackOpens: true,
			})
			duration := time.Since(startTime)

			if err != nil {
				p.logger.Warn("Postmark send failed, will retry",
					"to", to,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			if resp.ErrorCode > 0 {
				sendErr := fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message)
				if postmarkPermanent(resp.ErrorCode) {
					permanent = true
					return retry.Unrecoverable(sendErr)
				}
				p.logger.Warn("Postmark returned error code, will retry",
					"to", to,
					"error_code", resp.ErrorCode,
					"message", resp.Message)
				return sendErr
			}

			p.logger.Info("Postmark request completed",
				"to", to,
				"duration_ms", duration.Milliseconds(),
				"status", "success")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying Postmark email send after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return &SendError{Permanent: permanent, Err: err}
	}
	return nil
}
