package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/redsalud/turnos-board/internal/api"
	"github.com/redsalud/turnos-board/internal/auth"
	"github.com/redsalud/turnos-board/internal/config"
	"github.com/redsalud/turnos-board/internal/ingest"
	"github.com/redsalud/turnos-board/internal/logger"
	"github.com/redsalud/turnos-board/internal/report"
	"github.com/redsalud/turnos-board/internal/repository/postgres"
)

// checkPortAvailable verifies that the target port is not already in use,
// so a stale process never masks the real server.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

// hardenDBURL appends connection and statement timeouts unless the DSN
// already carries them.
func hardenDBURL(dbURL string, connectTimeout int) string {
	sep := "?"
	if strings.Contains(dbURL, "?") {
		sep = "&"
	}
	if !strings.Contains(dbURL, "connect_timeout") {
		dbURL += fmt.Sprintf("%sconnect_timeout=%d", sep, connectTimeout)
		sep = "&"
	}
	if !strings.Contains(dbURL, "statement_timeout") {
		dbURL += sep + "options=-c%20statement_timeout%3D30000"
	}
	return dbURL
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		zlog.Fatal("pre-flight check failed", zap.Error(err))
	}

	if cfg.Database.URL == "" {
		zlog.Fatal("database url is not configured (set database.url or DATABASE_URL)")
	}
	db, err := sql.Open("postgres", hardenDBURL(cfg.Database.URL, cfg.Database.ConnectTimeoutSeconds))
	if err != nil {
		zlog.Fatal("opening database", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		zlog.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()
	zlog.Info("database connected")

	// Redis is optional; without it reports are recomputed on every request.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			zlog.Warn("redis unreachable, report caching disabled",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			redisClient.Close()
			redisClient = nil
		} else {
			zlog.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
		pingCancel()
	}

	normalizer, err := ingest.NewNormalizer(cfg.Ingest.ReferenceTimezone)
	if err != nil {
		zlog.Fatal("loading reference timezone", zap.Error(err))
	}

	turnoRepo := postgres.NewTurnoRepo(db, zlog)
	turnoRepo.BatchSize = cfg.Ingest.BatchSize
	turnoRepo.PageSize = cfg.Query.PageSize
	turnoRepo.MaxPages = cfg.Query.MaxPages

	pipeline := ingest.NewPipeline(normalizer, turnoRepo, zlog)
	cache := report.NewCache(redisClient, cfg.Redis.CacheTTL(), zlog)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	var authManager *auth.Manager
	if cfg.Auth.Enabled {
		authManager = auth.NewManager(&cfg.Auth, postgres.NewProfileRepo(db), zlog)
		authManager.CleanupExpiredSessions(sweepCtx, 5*time.Minute)
		zlog.Info("session authentication enabled",
			zap.String("cookie", cfg.Auth.CookieName))
	} else {
		zlog.Warn("authentication disabled, uploads attributed to dev user")
	}

	handlers := api.NewHandlers(pipeline, turnoRepo, cache, normalizer.Location(), zlog)
	server := api.NewServer(cfg.Server, handlers, authManager)

	addr := cfg.Server.Addr()
	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening",
			zap.String("addr", addr),
			zap.String("timezone", cfg.Ingest.ReferenceTimezone))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		zlog.Fatal("server stopped", zap.Error(err))
	case sig := <-stop:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		redisClient.Close()
	}
	db.Close()
}
