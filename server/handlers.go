package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"garden-notifier/pkg/notifier"
	"garden-notifier/registry"
)

const maxRequestBody = 64 << 10 // 64KB is plenty for any subscribe payload

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already written; an encode failure here only
	// truncates the body.
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type subscribeRequest struct {
	Email   string   `json:"email"`
	SeedIDs []string `json:"seed_ids"`
	GearIDs []string `json:"gear_ids"`
}

func (req *subscribeRequest) interest() notifier.Interest {
	interest := notifier.Interest{
		SeedIDs: make(map[string]bool, len(req.SeedIDs)),
		GearIDs: make(map[string]bool, len(req.GearIDs)),
	}
	for _, id := range req.SeedIDs {
		interest.SeedIDs[id] = true
	}
	for _, id := range req.GearIDs {
		interest.GearIDs[id] = true
	}
	return interest
}

func decodeRequest(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// handleSubscribe starts a signup. Under verify-then-confirm it issues a
// token and emails the verification link; under direct-confirm the interest
// set in the same request creates the subscription outright.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if s.registry.Mode() == registry.DirectConfirm {
		if err := s.registry.Confirm(req.Email, req.interest()); err != nil {
			writeRegistryError(w, err)
			return
		}
		s.sendWelcome(r, req.Email, req.interest())
		writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
		return
	}

	token, err := s.registry.RequestVerification(req.Email)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	if err := s.mailer.SendVerification(r.Context(), req.Email, token); err != nil {
		s.logger.Error("Failed to send verification email", "email", req.Email, "error", err)
		writeError(w, http.StatusBadGateway, "could not send verification email")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification_sent"})
}

// handleVerify consumes the emailed token. The link is a GET so it works
// from a mail client.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")

	if err := s.registry.Verify(email, token); err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// handleConfirm sets the subscriber's interest set and activates the
// subscription. The set replaces any previous one wholesale.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := s.registry.Confirm(req.Email, req.interest()); err != nil {
		writeRegistryError(w, err)
		return
	}

	s.sendWelcome(r, req.Email, req.interest())
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

func (s *Server) sendWelcome(r *http.Request, emailAddr string, interest notifier.Interest) {
	sub := &notifier.Subscription{Email: emailAddr, Interest: interest}
	if err := s.mailer.SendWelcome(r.Context(), sub); err != nil {
		// The subscription stands either way.
		s.logger.Warn("Failed to send welcome email", "email", emailAddr, "error", err)
	}
}

// handleUnsubscribe removes the subscription. Responds 200 whether or not
// the email was subscribed so the emailed link never shows an error.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		var req subscribeRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		email = req.Email
	}

	removed := s.registry.Unsubscribe(email)
	writeJSON(w, http.StatusOK, map[string]any{"status": "unsubscribed", "removed": removed})
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		s.logger.Error("Catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                     "healthy",
		"subscriber_count":           stats.SubscriberCount,
		"pending_verification_count": stats.PendingVerificationCount,
		"catalog_loaded":             s.catalog.Loaded(),
	})
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, registry.ErrEmptyInterest):
		writeError(w, http.StatusBadRequest, "interest set must not be empty")
	case errors.Is(err, registry.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, "email already subscribed")
	case errors.Is(err, registry.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, registry.ErrNotVerified):
		writeError(w, http.StatusForbidden, "email not verified")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
