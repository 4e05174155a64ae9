// Package registry owns subscriber state: confirmed subscriptions and
// pending email-ownership verifications with TTL expiry.
package registry

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"garden-notifier/pkg/notifier"
)

const (
	// PendingTTL is how long a verification token stays valid.
	PendingTTL = 24 * time.Hour

	tokenBytes = 32 // 256 bits of entropy, hex-encoded to 64 chars
)

var (
	ErrInvalidEmail      = errors.New("registry: invalid email")
	ErrAlreadySubscribed = errors.New("registry: email already subscribed")
	ErrInvalidToken      = errors.New("registry: invalid or expired token")
	ErrEmptyInterest     = errors.New("registry: interest set must not be empty")
	ErrNotVerified       = errors.New("registry: email not verified")
)

// Mode selects the confirmation policy.
type Mode int

const (
	// VerifyThenConfirm requires a successful token verification before a
	// subscription can be confirmed.
	VerifyThenConfirm Mode = iota
	// DirectConfirm skips verification entirely; Confirm succeeds for any
	// valid input.
	DirectConfirm
)

// pending is an unconfirmed signup awaiting token-based proof of ownership.
// At most one exists per email; a new request supersedes the prior token.
type pending struct {
	token     string
	createdAt time.Time
}

// Registry is the single owner of all subscription entries. Every access is
// mutex-serialized: feed fan-out reads race with subscribe/verify traffic.
type Registry struct {
	mu       sync.RWMutex
	subs     map[string]*notifier.Subscription
	pending  map[string]pending
	verified map[string]time.Time // verified but not yet confirmed
	mode     Mode
	logger   *slog.Logger
}

// New creates an empty registry with the given confirmation mode.
func New(mode Mode, logger *slog.Logger) *Registry {
	return &Registry{
		subs:     make(map[string]*notifier.Subscription),
		pending:  make(map[string]pending),
		verified: make(map[string]time.Time),
		mode:     mode,
		logger:   logger,
	}
}

// Mode returns the confirmation policy in effect.
func (r *Registry) Mode() Mode { return r.mode }

// normalizeEmail trims surrounding whitespace. Case is preserved: the local
// part of an address is case-sensitive per RFC 5321.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RequestVerification creates (or supersedes) a pending verification for the
// email and returns its fresh token. Fails with ErrAlreadySubscribed when a
// confirmed subscription exists.
func (r *Registry) RequestVerification(email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[email]; ok {
		return "", ErrAlreadySubscribed
	}

	// Overwriting invalidates any prior token for this email.
	r.pending[email] = pending{token: token, createdAt: time.Now().UTC()}
	r.logger.Info("Verification requested", "email", email)
	return token, nil
}

// Verify consumes the pending verification when the token matches. The token
// is single-use: success removes it, so a replayed call fails.
func (r *Registry) Verify(email, token string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[email]
	if !ok {
		return ErrInvalidToken
	}
	if time.Since(p.createdAt) > PendingTTL {
		delete(r.pending, email)
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(p.token), []byte(token)) != 1 {
		return ErrInvalidToken
	}

	delete(r.pending, email)
	r.verified[email] = time.Now().UTC()
	r.logger.Info("Email verified", "email", email)
	return nil
}

// Confirm creates or replaces the subscription for email with the given
// interest set. The interest set must be non-empty; there is no partial
// update, the whole set is replaced. In VerifyThenConfirm mode the email
// must have passed Verify first (or already hold a subscription being
// re-confirmed with a new interest set).
func (r *Registry) Confirm(email string, interest notifier.Interest) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if interest.Empty() {
		return ErrEmptyInterest
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existing := r.subs[email]
	if r.mode == VerifyThenConfirm && !existing {
		if _, ok := r.verified[email]; !ok {
			return ErrNotVerified
		}
	}
	delete(r.verified, email)

	r.subs[email] = &notifier.Subscription{
		Email:     email,
		Interest:  interest,
		CreatedAt: time.Now().UTC(),
	}
	r.logger.Info("Subscription confirmed",
		"email", email,
		"seed_count", len(interest.SeedIDs),
		"gear_count", len(interest.GearIDs),
		"replaced", existing)
	return nil
}

// Unsubscribe removes the subscription if present. Idempotent: returns false
// when the email was never subscribed.
func (r *Registry) Unsubscribe(email string) bool {
	email, err := normalizeEmail(email)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[email]; !ok {
		return false
	}
	delete(r.subs, email)
	r.logger.Info("Subscription removed", "email", email)
	return true
}

// Subscribers returns a point-in-time copy of all confirmed subscriptions.
// The planner iterates the copy so fan-out never holds the registry lock
// across rendering.
func (r *Registry) Subscribers() []*notifier.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*notifier.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		c := *sub
		out = append(out, &c)
	}
	return out
}

// SweepExpired removes every pending verification (and stale verified
// marker) older than PendingTTL and returns how many were dropped.
func (r *Registry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for email, p := range r.pending {
		if now.Sub(p.createdAt) > PendingTTL {
			delete(r.pending, email)
			removed++
		}
	}
	for email, at := range r.verified {
		if now.Sub(at) > PendingTTL {
			delete(r.verified, email)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("Expired verifications swept", "removed", removed)
	}
	return removed
}

// Stats is a snapshot of registry counts for the health endpoint.
type Stats struct {
	SubscriberCount          int `json:"subscriber_count"`
	PendingVerificationCount int `json:"pending_verification_count"`
}

// Stats returns current counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		SubscriberCount:          len(r.subs),
		PendingVerificationCount: len(r.pending),
	}
}
