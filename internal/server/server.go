package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/forumboard/server/config"
	"github.com/forumboard/server/internal/bus"
	"github.com/forumboard/server/internal/db"
	"github.com/forumboard/server/internal/handlers"
	"github.com/forumboard/server/internal/hub"
	"github.com/forumboard/server/internal/services"
	"github.com/forumboard/server/internal/session"
	"github.com/forumboard/server/internal/storage"
	"github.com/forumboard/server/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and the hub's lifecycle.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *bus.Bus
	sessions   *session.Manager
	cancelHub  context.CancelFunc
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ticketSecret := strings.TrimSpace(os.Getenv("TICKET_SECRET"))
	if ticketSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("TICKET_SECRET is required")
	}

	userRepo := store.NewUserRepository(dbConn)
	convoRepo := store.NewConvoRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)

	events, err := openBus(ctx, cfg.Broker)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objectStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = events.Close()
		return nil, err
	}

	sessions := session.NewManager(time.Duration(cfg.Session.TTLHours) * time.Hour)

	authService := services.NewAuthService(userRepo, cfg.Session.AllowImplicitRegistration)
	convoService := services.NewConvoService(convoRepo)
	postService := services.NewPostService(postRepo)
	attachmentService := services.NewAttachmentService(attachmentRepo, objectStorage)

	chatHub := hub.New(events)
	hubCtx, cancelHub := context.WithCancel(context.Background())
	go chatHub.Run(hubCtx)

	authHandler := handlers.NewAuthHandler(authService, sessions, ticketSecret)
	convoHandler := handlers.NewConvoHandler(convoService, postService)
	chatHandler := handlers.NewChatHandler(convoService, postService, chatHub)
	wsHandler := handlers.NewWebSocketHandler(chatHub, sessions, authHandler)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, authHandler)
	handlers.ConvoRouter(router, convoHandler, sessions.RequireAuth)
	handlers.ChatRouter(router, chatHandler, sessions.RequireAuth)
	handlers.WebSocketRouter(router, wsHandler)
	handlers.AttachmentRouter(router, attachmentHandler, sessions.RequireAuth)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
		sessions:   sessions,
		cancelHub:  cancelHub,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the hub and closes all resources.
func (s *Server) Shutdown() error {
	if s.cancelHub != nil {
		s.cancelHub()
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func openBus(ctx context.Context, cfg config.BrokerConfig) (*bus.Bus, error) {
	switch cfg.Backend {
	case "", "memory":
		return bus.New(bus.NewMemoryBackend()), nil
	case "rabbitmq":
		backend, err := bus.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("open rabbitmq bus: %w", err)
		}
		return bus.New(backend), nil
	case "pubsub":
		backend, err := bus.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("open pubsub bus: %w", err)
		}
		return bus.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Backend)
	}
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch cfg.Backend {
	case "", "none":
		// Attachments stay disabled; everything else works without them.
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("open minio storage: %w", err)
		}
		wrapped := storage.NewStorage(client)
		if err := wrapped.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure minio bucket: %w", err)
		}
		return wrapped, nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("open gcs storage: %w", err)
		}
		wrapped := storage.NewStorage(client)
		if err := wrapped.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure gcs bucket: %w", err)
		}
		return wrapped, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
