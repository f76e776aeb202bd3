// Package api exposes the web boundary: mailcommand link landing and
// completion, short-URL redirects, and the mailing-list subscribe
// endpoint. Everything stateful lives behind the service interfaces;
// handlers only translate HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/pkg/logger"
	"github.com/felag/mailengine/internal/repository/postgres"
	"github.com/felag/mailengine/internal/service/interactive"
	"github.com/felag/mailengine/internal/service/tokenlink"
)

// InteractiveEngine is the slice of the interactive service the
// handlers need. Satisfied by interactive.Engine.
type InteractiveEngine interface {
	Send(ctx context.Context, t domain.InteractiveType, r domain.Recipient) error
	Peek(ctx context.Context, token string) (domain.Recipient, error)
	Consume(ctx context.Context, t domain.InteractiveType, action, token string) (interactive.Effect, error)
}

// LinkResolver resolves short codes. Satisfied by tokenlink.Service.
type LinkResolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// SubscriberStore creates mailing-list subscribers and holds the
// member/subscriber exclusivity invariant. Satisfied by
// postgres.SubscriberRepo.
type SubscriberStore interface {
	Create(ctx context.Context, email string) (*domain.Subscriber, error)
	DeleteByMemberEmail(ctx context.Context, email string) error
}

// Config holds handler settings.
type Config struct {
	// DefaultRedirectURL is where unknown or expired short codes land.
	DefaultRedirectURL string
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	engine      InteractiveEngine
	links       LinkResolver
	subscribers SubscriberStore
	cfg         Config
}

// NewHandlers creates the handler set.
func NewHandlers(engine InteractiveEngine, links LinkResolver, subscribers SubscriberStore, cfg Config) *Handlers {
	return &Handlers{engine: engine, links: links, subscribers: subscribers, cfg: cfg}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MailCommandPrompt renders the confirmation prompt for an action
// link. No effect is applied here; the effect happens on the POST.
func (h *Handlers) MailCommandPrompt(w http.ResponseWriter, r *http.Request) {
	mtype := domain.InteractiveType(chi.URLParam(r, "type"))
	action := chi.URLParam(r, "action")
	token := chi.URLParam(r, "token")
	if !mtype.Valid() || !validAction(action) {
		http.NotFound(w, r)
		return
	}

	recipient, err := h.engine.Peek(r.Context(), token)
	if errors.Is(err, interactive.ErrTokenNotFound) {
		// Already consumed or never existed; show the no-op page
		// rather than an error, the link may simply be old.
		renderConsumedPage(w)
		return
	}
	if err != nil {
		logger.Error("mailcommand prompt failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	renderPromptPage(w, action, recipient.Email(), r.URL.Path+"complete/")
}

// MailCommandComplete consumes the action link and applies its effect.
func (h *Handlers) MailCommandComplete(w http.ResponseWriter, r *http.Request) {
	mtype := domain.InteractiveType(chi.URLParam(r, "type"))
	action := chi.URLParam(r, "action")
	token := chi.URLParam(r, "token")
	if !mtype.Valid() || !validAction(action) {
		http.NotFound(w, r)
		return
	}

	// Capture the owning email before the token is consumed; the
	// member-verified effect needs it below.
	var email string
	if recipient, err := h.engine.Peek(r.Context(), token); err == nil {
		email = recipient.Email()
	}

	effect, err := h.engine.Consume(r.Context(), mtype, action, token)
	if errors.Is(err, interactive.ErrUnknownAction) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.Error("mailcommand consume failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// A confirmed member takes over its email; any mailing-list
	// subscriber with the same address goes away. Members and
	// subscribers never coexist on one email.
	if effect == interactive.EffectMemberVerified && email != "" {
		if err := h.subscribers.DeleteByMemberEmail(r.Context(), email); err != nil {
			logger.Error("subscriber takeover delete failed", "error", err.Error())
		}
	}

	renderEffectPage(w, effect)
}

// Redirect resolves a short code and redirects. Unknown and expired
// codes land on the configured default URL instead of a 404.
func (h *Handlers) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	target, err := h.links.Resolve(r.Context(), code)
	if errors.Is(err, tokenlink.ErrNotFound) {
		http.Redirect(w, r, h.cfg.DefaultRedirectURL, http.StatusFound)
		return
	}
	if err != nil {
		logger.Error("short url resolve failed", "error", err.Error())
		http.Redirect(w, r, h.cfg.DefaultRedirectURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe creates an unverified mailing-list subscriber and sends
// the confirmation mail with its action links.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	sub, err := h.subscribers.Create(r.Context(), email)
	if errors.Is(err, postgres.ErrEmailIsMember) || errors.Is(err, postgres.ErrSubscriberExists) {
		// Do not leak which emails are registered.
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if err != nil {
		logger.Error("subscriber create failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	err = h.engine.Send(r.Context(), domain.InteractiveMailinglistConfirm, domain.SubscriberRecipient(sub))
	if err != nil {
		// A missing confirmation template is an operational failure of
		// this flow; the subscription row stays for a later resend.
		logger.Error("confirmation send failed", "error", err.Error(), "email", sub.Email)
		respondError(w, http.StatusInternalServerError, "could not send confirmation")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func validAction(action string) bool {
	return action == "confirm" || action == "reject"
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func renderPromptPage(w http.ResponseWriter, action, email, completeURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><body>
<p>Confirm action <strong>%s</strong> for %s?</p>
<form method="POST" action="%s"><button type="submit">Confirm</button></form>
</body></html>`, action, email, completeURL)
}

func renderConsumedPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><body><p>This link has already been used or has expired.</p></body></html>`)
}

func renderEffectPage(w http.ResponseWriter, effect interactive.Effect) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if effect == interactive.EffectNone {
		renderConsumedPage(w)
		return
	}
	fmt.Fprint(w, `<!DOCTYPE html>
<html><body><p>Done. You can close this window.</p></body></html>`)
}
