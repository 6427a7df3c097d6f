package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campuslist/campuslist/internal/api"
	"github.com/campuslist/campuslist/internal/config"
	"github.com/campuslist/campuslist/internal/database"
	"github.com/campuslist/campuslist/internal/mail"
	"github.com/campuslist/campuslist/internal/messaging"
	"github.com/campuslist/campuslist/internal/server"
	"github.com/campuslist/campuslist/internal/stats"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

const defaultSigningKey = "1fJ0+P5DnPpkLDcpU0td2DrNlrBY0wCCdqybvnYQxVs="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	emailDomain    string
	allowedOrigins stringSliceFlag
)

func main() {
	// a missing .env file is fine, environment variables still apply
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", config.Getenv("SERVER_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", config.Getenv("DATABASE_URL",
		"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", config.Getenv("JWT_SECRET", defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&emailDomain, "email-domain", config.Getenv("EMAIL_DOMAIN", "university.edu"), "email domain allowed to register")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = strings.Split(config.Getenv("ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	}

	logger := log.New(os.Stderr, "[campuslist] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, emailDomain, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	notifier := mail.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom)
	svc := messaging.NewService(dbConn, logger)

	chatServer, err := server.NewChatServer(logger, dbConn, svc, server.NewMemoryRegistry(), notifier, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewApp(mux, logger, chatServer, dbConn, svc, notifier, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	chatServer.Shutdown()

	logger.Println("shutdown complete")
}
