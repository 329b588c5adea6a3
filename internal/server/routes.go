package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lazypower/mnemo/internal/common"
)

// maxPushPayload bounds the opaque push subscription body.
const maxPushPayload = 16 << 10

// maxJSONBody bounds the /login and /message request bodies.
const maxJSONBody = 64 << 10

// decodeJSON reads a bounded JSON body into v. On failure it writes the
// response (413 when the body is too large, 400 otherwise) and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
	return false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.RequestLogin(r.Context(), req.Email); err != nil {
		if errors.Is(err, common.ErrInvalidEmail) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email required"})
			return
		}
		s.logger.ErrorContext(r.Context(), "request login", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not send login link"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token.", http.StatusBadRequest)
		return
	}

	id, err := s.auth.Verify(r.Context(), token)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTokenNotFound):
		http.Error(w, "Invalid login link.", http.StatusNotFound)
		return
	case errors.Is(err, common.ErrTokenExpired):
		http.Error(w, "This login link has expired. Request a new one.", http.StatusGone)
		return
	case errors.Is(err, common.ErrTokenAlreadyUsed):
		http.Error(w, "This login link has already been used. Request a new one.", http.StatusGone)
		return
	default:
		s.logger.ErrorContext(r.Context(), "verify login", slog.String("error", err.Error()))
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}

	value, expires, err := s.sessions.Issue(id.Email)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "issue session", slog.String("error", err.Error()))
		http.Error(w, "Server error.", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, s.sessions.Cookie(value, expires))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessions.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"loggedIn": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loggedIn": true, "email": id.Email})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		s.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := s.assist.HandleMessage(r.Context(), id, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.assist.ListNotes(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleSavePushSubscription(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		s.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushPayload+1))
	if err != nil || len(body) > maxPushPayload || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid subscription"})
		return
	}

	if err := s.assist.SavePushSubscription(r.Context(), id, string(body)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeError maps the error taxonomy to a status code. Clients get a
// generic message; the full chain goes to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Something went wrong. Please try again."
	switch {
	case errors.Is(err, common.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "Not logged in."
	case errors.Is(err, common.ErrEmptyMessage):
		status, msg = http.StatusBadRequest, "Message is empty."
	case errors.Is(err, common.ErrUserNotFound):
		status, msg = http.StatusNotFound, "User not found."
	case errors.Is(err, common.ErrClassifier):
		status, msg = http.StatusBadGateway, "The assistant is unavailable right now. Please try again."
	}

	if status >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
