package session

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"
)

const cookieName = "session_id"

// Session binds a live client to an authenticated username. A session
// exists only after a successful credential match.
type Session struct {
	ID       string
	Username string
	Created  time.Time
	LastSeen time.Time
}

// Manager keeps sessions in memory, keyed by a random ID carried in an
// HttpOnly cookie. Expiry and cleanup are the manager's concern; callers
// only bind and look up users.
type Manager struct {
	sessions map[string]*Session
	ttl      time.Duration
	mu       sync.RWMutex

	stop        chan struct{}
	stopOnce    sync.Once
	cleanupDone chan struct{}
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	manager := &Manager{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		stop:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go manager.cleanup()
	return manager
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Bind creates a session for the username and sets the cookie.
func (m *Manager) Bind(w http.ResponseWriter, username string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:       id,
		Username: username,
		Created:  now,
		LastSeen: now,
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return session, nil
}

// FromRequest returns the live session referenced by the request cookie.
func (m *Manager) FromRequest(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[cookie.Value]
	if !ok {
		return nil, false
	}
	if time.Since(session.LastSeen) > m.ttl {
		delete(m.sessions, cookie.Value)
		return nil, false
	}
	session.LastSeen = time.Now()
	return session, true
}

// CurrentUser returns the username bound to the request, if any.
func (m *Manager) CurrentUser(r *http.Request) (string, bool) {
	session, ok := m.FromRequest(r)
	if !ok {
		return "", false
	}
	return session.Username, true
}

// Destroy removes the request's session and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(cookieName); err == nil {
		m.mu.Lock()
		delete(m.sessions, cookie.Value)
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// RequireAuth admits requests carrying a session with a bound user and
// injects the session into the context. Browsers are redirected to the
// login surface; API clients get a 401.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := m.FromRequest(r)
		if !ok {
			if wantsHTML(r) {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (m *Manager) cleanup() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for id, session := range m.sessions {
				if now.Sub(session.LastSeen) > m.ttl {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

func generateSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}
