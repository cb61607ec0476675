package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/forumboard/server/internal/services"
	"github.com/forumboard/server/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ticketTTL bounds how long a websocket ticket stays usable. Tickets are
// fetched immediately before dialing, so the window is short.
const ticketTTL = time.Minute

// AuthHandler serves the combined login/registration flow and issues
// websocket tickets for authenticated sessions.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *session.Manager
	ticketKey   []byte
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, sessions *session.Manager, ticketSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		ticketKey:   []byte(ticketSecret),
	}
}

// AuthRouter registers the auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/", handler.Login)
	r.Post("/login", handler.Login)
	r.With(handler.sessions.RequireAuth).Post("/logout", handler.Logout)
	r.With(handler.sessions.RequireAuth).Get("/chat/ticket", handler.Ticket)
}

// LoginRequest is the JSON form of a credential submission. The field
// names match the HTML form inputs.
type LoginRequest struct {
	User  string `json:"user"`
	Pass  string `json:"pass"`
	Email string `json:"email,omitempty"`
}

// Login runs the combined login/registration state machine. An unknown
// username registers a new account; a known one is checked against the
// stored hash.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLoginRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	outcome, user, err := h.authService.Authenticate(r.Context(), req.User, req.Pass, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrMissingCredentials) {
			if isFormRequest(r) {
				writeText(w, http.StatusBadRequest, "Please enter both a username and password")
				return
			}
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}
		log.Printf("authenticate %q: %v", req.User, err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	switch outcome {
	case services.OutcomeRegistered:
		if isFormRequest(r) {
			writeText(w, http.StatusCreated, "Created a new user.")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"outcome": outcome, "user": user})

	case services.OutcomeAuthenticated:
		if _, err := h.sessions.Bind(w, user.Username); err != nil {
			log.Printf("bind session for %q: %v", user.Username, err)
			writeError(w, http.StatusInternalServerError, "failed to establish session")
			return
		}
		if isFormRequest(r) {
			http.Redirect(w, r, "/convoList", http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "user": user})

	case services.OutcomeWrongPassword:
		// The same message regardless of whether the username exists.
		if isFormRequest(r) {
			writeText(w, http.StatusUnauthorized, "Incorrect Password.")
			return
		}
		writeError(w, http.StatusUnauthorized, "incorrect password")
	}
}

// Logout destroys the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Ticket issues a short-lived token the websocket endpoint accepts in
// place of the session cookie. The subject is the session's user, so the
// socket's identity stays bound to the authenticated session.
func (h *AuthHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	current, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ticket, err := issueTicket(current.Username, h.ticketKey, ticketTTL)
	if err != nil {
		log.Printf("issue ticket for %q: %v", current.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to create ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

// VerifyTicket returns the username a ticket was issued to.
func (h *AuthHandler) VerifyTicket(ticket string) (string, error) {
	return parseTicketSubject(ticket, h.ticketKey)
}

func decodeLoginRequest(r *http.Request) (LoginRequest, error) {
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return LoginRequest{}, err
		}
		return LoginRequest{
			User:  r.PostFormValue("user"),
			Pass:  r.PostFormValue("pass"),
			Email: r.PostFormValue("email"),
		}, nil
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return LoginRequest{}, err
	}
	return req, nil
}

func issueTicket(username string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTicketSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
