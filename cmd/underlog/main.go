// Command underlog serves the markup editor backend: project storage,
// server-side rendering and PDF export.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/underlog/underlog"
	"github.com/underlog/underlog/internal/api"
	"github.com/underlog/underlog/internal/store"
)

func main() {
	var (
		addr       = flag.String("addr", ":6969", "listen address")
		dbPath     = flag.String("db", "db/underlog.db", "SQLite database path")
		configPath = flag.String("config", "", "layout configuration YAML (optional)")
		timeout    = flag.Duration("pdf-timeout", time.Minute, "PDF conversion timeout")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := underlog.DefaultConfig()
	if *configPath != "" {
		loaded, err := underlog.LoadConfig(*configPath)
		if err != nil {
			log.Error("loading layout config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	st, err := store.New(*dbPath)
	if err != nil {
		log.Error("opening store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	svc, err := underlog.New(
		underlog.WithConfig(cfg),
		underlog.WithTimeout(*timeout),
		underlog.WithImageResolver(api.ResolverFactory(st)),
	)
	if err != nil {
		log.Error("creating render service", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(svc, st, sessionSecret(log), log)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting underlog", "addr", *addr, "db", *dbPath)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// sessionSecret reads UNDERLOG_SESSION_SECRET, falling back to a
// random per-process key. The fallback invalidates sessions on every
// restart, so set the variable in production.
func sessionSecret(log *slog.Logger) []byte {
	if secret := os.Getenv("UNDERLOG_SESSION_SECRET"); secret != "" {
		return []byte(secret)
	}
	log.Warn("UNDERLOG_SESSION_SECRET not set, sessions will not survive restarts")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Error("generating session key", "error", err)
		os.Exit(1)
	}
	return key
}
