package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/campuslist/campuslist/internal/config"
	"github.com/campuslist/campuslist/internal/database"
	"github.com/campuslist/campuslist/internal/mail"
	"github.com/campuslist/campuslist/internal/messaging"
	"github.com/campuslist/campuslist/internal/server"
	"github.com/gorilla/handlers"
)

type App struct {
	log            *log.Logger
	db             database.Repository
	svc            *messaging.Service
	cs             *server.ChatServer
	notifier       mail.Notifier
	mux            *http.Server
	signingKey     []byte
	emailDomain    string
	clientURL      string
	allowedOrigins []string
}

func NewApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.Repository,
	svc *messaging.Service, notifier mail.Notifier, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		db:             db,
		svc:            svc,
		cs:             cs,
		notifier:       notifier,
		signingKey:     cfg.SigningKey,
		emailDomain:    cfg.EmailDomain,
		clientURL:      cfg.ClientURL,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("GET /api/auth/verify", s.verify)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.Handle("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.Handle("GET /api/conversations/{id}", s.authMiddleware(s.getConversation))
	mux.Handle("GET /api/conversations/{id}/messages", s.authMiddleware(s.getMessages))
	mux.Handle("POST /api/messages/send", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/messages/unread/count", s.authMiddleware(s.unreadCount))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
