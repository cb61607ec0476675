package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBindAndFromRequest(t *testing.T) {
	manager := NewManager(time.Hour)

	rec := httptest.NewRecorder()
	created, err := manager.Bind(rec, "alice")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if created.Username != "alice" {
		t.Fatalf("unexpected username: %q", created.Username)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session_id" {
		t.Fatalf("expected a session_id cookie, got %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/convoList", nil)
	req.AddCookie(cookies[0])
	found, ok := manager.FromRequest(req)
	if !ok {
		t.Fatalf("session not found from request")
	}
	if found.Username != "alice" {
		t.Fatalf("unexpected username: %q", found.Username)
	}
}

func TestFromRequestWithoutCookie(t *testing.T) {
	manager := NewManager(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/convoList", nil)
	if _, ok := manager.FromRequest(req); ok {
		t.Fatalf("expected no session")
	}
}

func TestFromRequestExpired(t *testing.T) {
	manager := NewManager(time.Hour)

	rec := httptest.NewRecorder()
	created, err := manager.Bind(rec, "alice")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	created.LastSeen = time.Now().Add(-2 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/convoList", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	if _, ok := manager.FromRequest(req); ok {
		t.Fatalf("expected expired session to be rejected")
	}
}

func TestDestroy(t *testing.T) {
	manager := NewManager(time.Hour)

	rec := httptest.NewRecorder()
	if _, err := manager.Bind(rec, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	clearRec := httptest.NewRecorder()
	manager.Destroy(clearRec, req)

	cleared := clearRec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge != -1 {
		t.Fatalf("expected cookie to be cleared, got %+v", cleared)
	}

	again := httptest.NewRequest(http.MethodGet, "/convoList", nil)
	again.AddCookie(cookie)
	if _, ok := manager.FromRequest(again); ok {
		t.Fatalf("expected destroyed session to be gone")
	}
}

func TestCloseStopsCleanup(t *testing.T) {
	manager := NewManager(time.Hour)

	manager.Close()
	select {
	case <-manager.cleanupDone:
	case <-time.After(time.Second):
		t.Fatalf("cleanup goroutine did not stop")
	}

	// Close is idempotent.
	manager.Close()
}

func TestRequireAuth(t *testing.T) {
	manager := NewManager(time.Hour)
	guarded := manager.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("session missing from context")
		}
		w.Write([]byte(session.Username))
	}))

	// No session: API clients get 401.
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/convoList", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// No session: browsers get redirected to the login surface.
	browserReq := httptest.NewRequest(http.MethodGet, "/convoList", nil)
	browserReq.Header.Set("Accept", "text/html")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, browserReq)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	// With a session the request is admitted.
	bindRec := httptest.NewRecorder()
	if _, err := manager.Bind(bindRec, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	authedReq := httptest.NewRequest(http.MethodGet, "/convoList", nil)
	authedReq.AddCookie(bindRec.Result().Cookies()[0])
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, authedReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "alice" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}
