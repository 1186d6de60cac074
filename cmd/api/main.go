package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sra/api/internal/app"
	"sra/api/internal/config"
	"sra/api/internal/email"
	"sra/api/internal/export"
	"sra/api/internal/history"
	"sra/api/internal/lock"
	"sra/api/internal/logger"
	"sra/api/internal/search"
	"sra/api/internal/session"
	"sra/api/internal/store"
	"sra/api/internal/telemetry"
	"sra/api/internal/util"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		log.Fatalf("telemetry setup failed: %v", err)
	}
	logger.Setup(cfg)
	if err := util.InitIDs(cfg.SnowflakeNode); err != nil {
		log.Fatalf("id generator: %v", err)
	}

	dataStore, closeStore := openStore(ctx, cfg)
	defer closeStore()

	deps := app.Deps{Checks: map[string]func(context.Context) error{}}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		slog.Info("using redis for refresh sessions and assessment locks")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		deps.Locker = lock.NewRedis(redisStore.Client(), cfg.LockTTL, cfg.LockWait)
		deps.Checks["redis"] = redisStore.Ping
	}

	if dir := strings.TrimSpace(cfg.HistoryDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create history dir: %v", err)
		}
		deps.History = history.New(dir)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewStoreSearcher(dataStore))
	deps.Search = searchService
	go searchService.ReindexAll(ctx, dataStore)

	var archive *export.Archive
	if cfg.Archive.Enabled() {
		archive, err = export.NewArchive(ctx, cfg.Archive.Endpoint, cfg.Archive.AccessKey,
			cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.UseSSL, cfg.Archive.URLExpiry)
		if err != nil {
			slog.Warn("export archive disabled", "error", err)
			archive = nil
		}
	}
	deps.Exporter = export.NewService(cfg.ChromePath, archive)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppURL:   cfg.AppURL,
	})
	if mailer.IsConfigured() {
		deps.Notifier = mailer
	} else {
		slog.Info("smtp not configured, notifications disabled")
	}

	service := app.New(cfg, dataStore, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("SRA API listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}
}

// openStore connects to Postgres and migrates it, or returns the in-memory
// store when STORE_DRIVER=memory.
func openStore(ctx context.Context, cfg config.Config) (app.Store, func()) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}
	}

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	migrations, err := store.Migrations(cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("migrations unavailable: %v", err)
	}
	if err := store.ApplyMigrations(ctx, db, migrations); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	return store.NewPostgresStore(db), func() { _ = db.Close() }
}
