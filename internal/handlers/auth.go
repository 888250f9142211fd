package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"expense-ledger/internal/accounts"
	"expense-ledger/internal/auth"
	"expense-ledger/internal/models"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// ClaimsContextKey is the context key for the authenticated identity.
	ClaimsContextKey contextKey = "claims"
	// TokenCookieName is the name of the auth cookie.
	TokenCookieName = "token"
)

// ClaimsFromContext retrieves the authenticated identity from ctx.
func ClaimsFromContext(ctx context.Context) (models.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(models.Claims)
	return claims, ok
}

// AuthMiddleware admits requests carrying a valid token, read from the
// token cookie or an Authorization bearer header.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeFailure(w, http.StatusForbidden, "No token provided. Access forbidden")
			return
		}

		claims, err := h.creds.VerifyToken(token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrTokenExpired):
			slog.WarnContext(r.Context(), "Rejected token", "reason", "expired", "path", r.URL.Path)
			writeFailure(w, http.StatusUnauthorized, "Token expired")
			return
		case errors.Is(err, auth.ErrNotConfigured):
			slog.ErrorContext(r.Context(), "SECRET is not set, cannot verify tokens")
			writeFailure(w, http.StatusInternalServerError, "Internal server error")
			return
		default:
			slog.WarnContext(r.Context(), "Rejected token", "reason", "invalid", "path", r.URL.Path, "error", err)
			writeFailure(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		// Add identity to context
		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Signup handles account creation.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req accounts.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_, err := h.accounts.Signup(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, response{Status: statusSuccess, Message: "User signup successful"})
	case errors.Is(err, models.ErrValidation):
		writeValidation(w, err)
	case errors.Is(err, models.ErrConflict):
		writeFailure(w, http.StatusConflict, "User already exists")
	default:
		writeInternal(w, r, err)
	}
}

type userResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login checks credentials and sets the auth cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req accounts.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.accounts.Login(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrValidation):
		writeValidation(w, err)
		return
	case errors.Is(err, models.ErrNotFound):
		writeFailure(w, http.StatusBadRequest, "User doesn't exist")
		return
	case errors.Is(err, accounts.ErrInvalidPassword):
		writeFailure(w, http.StatusUnauthorized, "Incorrect Password")
		return
	default:
		writeInternal(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, response{
		Status:  statusSuccess,
		Message: "User login successful",
		User: userResponse{
			ID:       session.User.ID.String(),
			Name:     session.User.Name,
			Username: session.User.Username,
			Email:    session.User.Email,
		},
	})
}

// Logout clears the auth cookie. Tokens are stateless and stay valid until
// they expire.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, response{Status: statusSuccess, Message: "User logout successful"})
}
