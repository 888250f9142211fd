package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"expense-ledger/internal/accounts"
	"expense-ledger/internal/auth"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/models"

	"github.com/go-chi/chi/v5"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	accounts     *accounts.Service
	ledger       *ledger.Ledger
	creds        *auth.Credentials
	secureCookie bool
	healthCheck  func(context.Context) error
}

// Option configures Handlers.
type Option func(*Handlers)

// WithSecureCookie sets the Secure flag on the auth cookie.
func WithSecureCookie(secure bool) Option {
	return func(h *Handlers) { h.secureCookie = secure }
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(h *Handlers) { h.healthCheck = check }
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(acc *accounts.Service, l *ledger.Ledger, creds *auth.Credentials, opts ...Option) *Handlers {
	h := &Handlers{accounts: acc, ledger: l, creds: creds}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r.
func (h *Handlers) Register(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Route("/expense", func(r chi.Router) {
			r.Post("/add", h.AddExpense)
			r.Delete("/delete", h.DeleteExpense)
			r.Get("/all", h.ListExpenses)
		})
		r.Get("/category/all", h.ListCategories)
	})
}

// Health reports whether the service and its database are up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Health check failed", "error", err)
			writeFailure(w, http.StatusServiceUnavailable, "Service unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, response{Status: statusSuccess, Message: "ok"})
}

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// response is the JSON envelope of every endpoint.
type response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Error     any    `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
	User      any    `json:"user,omitempty"`
	ExpenseID string `json:"expenseId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Status: statusFailure, Message: message})
}

// writeValidation reports the offending fields of a validation error.
func writeValidation(w http.ResponseWriter, err error) {
	resp := response{Status: statusFailure, Message: "Input validation failed"}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Fields
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// writeInternal logs err and answers 500 without detail.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeFailure(w, http.StatusInternalServerError, "Internal server error")
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeJSON decodes the request body into v, answering 400 on failure.
// The body must hold exactly one JSON value. Numbers inside untyped fields
// decode as json.Number.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	err := dec.Decode(v)
	if err == nil {
		if extra := dec.Decode(&json.RawMessage{}); !errors.Is(extra, io.EOF) {
			err = errTrailingData
		}
	}
	if err != nil {
		slog.WarnContext(r.Context(), "Invalid request payload", "path", r.URL.Path, "error", err)
		writeFailure(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
