package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rentagg/feedbot/internal/telegram"
)

// handleHealth serves the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook receives one Telegram update. It always answers 200 for
// well-formed requests — Telegram retries non-2xx responses, and a replayed
// update is worse than a dropped one — and hands the decoded event to the
// engine in the background.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.secretOK(r) {
		slog.Warn("Webhook request with bad secret", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("Webhook request with malformed body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if inb, ok := telegram.Decode(update); ok {
		s.dispatch(inb)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSelfTest performs one end-to-end persistence write and reports the
// result. Runs synchronously so the caller sees the real outcome.
func (s *Server) handleSelfTest(w http.ResponseWriter, r *http.Request) {
	ok := s.dispatcher.SelfTest(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]bool{"ok": ok})
}

func (s *Server) secretOK(r *http.Request) bool {
	if s.opts.WebhookSecret == "" {
		return true
	}
	got := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
