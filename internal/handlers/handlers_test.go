package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/forumboard/server/internal/bus"
	"github.com/forumboard/server/internal/hub"
	"github.com/forumboard/server/internal/services"
	"github.com/forumboard/server/internal/session"
	"github.com/forumboard/server/internal/store"
	"github.com/forumboard/server/types"
	"github.com/go-chi/chi/v5"
)

// In-memory repositories honoring the same sentinel errors as the
// Postgres-backed ones.

type memUserRepo struct {
	users  map[string]types.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]types.User), nextID: 1}
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	user, ok := m.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if _, ok := m.users[user.Username]; ok {
		return types.User{}, store.ErrUsernameTaken
	}
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now()
	m.users[user.Username] = user
	return user, nil
}

type memConvoRepo struct {
	convos []types.Convo
	nextID int
}

func newMemConvoRepo() *memConvoRepo {
	return &memConvoRepo{nextID: 1}
}

func (m *memConvoRepo) List(_ context.Context) ([]types.Convo, error) {
	out := make([]types.Convo, len(m.convos))
	copy(out, m.convos)
	return out, nil
}

func (m *memConvoRepo) GetByID(_ context.Context, id int) (types.Convo, error) {
	for _, convo := range m.convos {
		if convo.ID == id {
			return convo, nil
		}
	}
	return types.Convo{}, store.ErrNotFound
}

func (m *memConvoRepo) GetByTitle(_ context.Context, title string) (types.Convo, error) {
	for _, convo := range m.convos {
		if convo.Title == title {
			return convo, nil
		}
	}
	return types.Convo{}, store.ErrNotFound
}

func (m *memConvoRepo) Create(_ context.Context, title string) (types.Convo, error) {
	for _, convo := range m.convos {
		if convo.Title == title {
			return types.Convo{}, store.ErrTitleTaken
		}
	}
	convo := types.Convo{ID: m.nextID, Title: title, CreatedAt: time.Now()}
	m.nextID++
	m.convos = append(m.convos, convo)
	return convo, nil
}

type memPostRepo struct {
	convos *memConvoRepo
	posts  []types.Post
	nextID int
}

func newMemPostRepo(convos *memConvoRepo) *memPostRepo {
	return &memPostRepo{convos: convos, nextID: 1}
}

func (m *memPostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if _, err := m.convos.GetByID(ctx, post.ConvoID); err != nil {
		return types.Post{}, store.ErrConvoNotFound
	}
	post.ID = m.nextID
	m.nextID++
	post.CreatedAt = time.Now()
	m.posts = append(m.posts, post)
	return post, nil
}

func (m *memPostRepo) ListByConvo(ctx context.Context, convoID int) ([]types.Post, error) {
	if _, err := m.convos.GetByID(ctx, convoID); err != nil {
		return nil, store.ErrConvoNotFound
	}
	out := make([]types.Post, 0)
	for _, post := range m.posts {
		if post.ConvoID == convoID {
			out = append(out, post)
		}
	}
	return out, nil
}

func (m *memPostRepo) CountByConvo(_ context.Context, convoID int) (int, error) {
	total := 0
	for _, post := range m.posts {
		if post.ConvoID == convoID {
			total++
		}
	}
	return total, nil
}

// testApp wires the full router over in-memory repositories, the way
// internal/server does over Postgres.
type testApp struct {
	router   *chi.Mux
	users    *memUserRepo
	convos   *memConvoRepo
	posts    *memPostRepo
	sessions *session.Manager
	hub      *hub.Hub
}

func newTestApp() (*testApp, context.CancelFunc) {
	users := newMemUserRepo()
	convos := newMemConvoRepo()
	posts := newMemPostRepo(convos)

	sessions := session.NewManager(time.Hour)
	authService := services.NewAuthService(users, true)
	convoService := services.NewConvoService(convos)
	postService := services.NewPostService(posts)

	chatHub := hub.New(bus.New(bus.NewMemoryBackend()))
	ctx, cancel := context.WithCancel(context.Background())
	go chatHub.Run(ctx)

	authHandler := NewAuthHandler(authService, sessions, "test-secret")
	convoHandler := NewConvoHandler(convoService, postService)
	chatHandler := NewChatHandler(convoService, postService, chatHub)
	wsHandler := NewWebSocketHandler(chatHub, sessions, authHandler)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	AuthRouter(router, authHandler)
	ConvoRouter(router, convoHandler, sessions.RequireAuth)
	ChatRouter(router, chatHandler, sessions.RequireAuth)
	WebSocketRouter(router, wsHandler)

	app := &testApp{
		router:   router,
		users:    users,
		convos:   convos,
		posts:    posts,
		sessions: sessions,
		hub:      chatHub,
	}
	return app, func() {
		cancel()
		sessions.Close()
	}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// loginCookie registers (if needed) and logs a user in, returning the
// session cookie.
func (a *testApp) loginCookie(username, password string) *http.Cookie {
	// First submission may register instead of authenticating.
	a.do(jsonRequest(http.MethodPost, "/login", `{"user":"`+username+`","pass":"`+password+`"}`))

	rec := a.do(jsonRequest(http.MethodPost, "/login", `{"user":"`+username+`","pass":"`+password+`"}`))
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "session_id" {
			return cookie
		}
	}
	return nil
}

func jsonRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
