package email

import (
	"context"
	"log/slog"
	"sync"
)

// MockProvider logs emails instead of sending them. Useful for local
// development and tests.
type MockProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []MockMessage
}

// MockMessage records one email handed to the mock provider.
type MockMessage struct {
	To      string
	Subject string
	Body    string
}

// NewMockProvider creates a provider that records messages in memory.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// Send records the message and logs it.
func (m *MockProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	m.sent = append(m.sent, MockMessage{To: to, Subject: subject, Body: htmlBody})
	m.mu.Unlock()

	m.logger.Info("MOCK EMAIL (not actually sent)",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody))
	return nil
}

// Sent returns a copy of every message recorded so far.
func (m *MockProvider) Sent() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
