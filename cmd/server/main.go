package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/musiccy/music-svc/internal/auth"
	"github.com/musiccy/music-svc/internal/blob"
	"github.com/musiccy/music-svc/internal/cache"
	"github.com/musiccy/music-svc/internal/catalog"
	"github.com/musiccy/music-svc/internal/config"
	"github.com/musiccy/music-svc/internal/domain"
	httpserver "github.com/musiccy/music-svc/internal/http"
	"github.com/musiccy/music-svc/internal/logger"
	"github.com/musiccy/music-svc/internal/mail"
	"github.com/musiccy/music-svc/internal/repository"
	"github.com/musiccy/music-svc/internal/store"
	"github.com/musiccy/music-svc/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := store.Migrate(dbCtx, cfg.DBURL); err != nil {
		zlog.Fatal("run migrations", zap.Error(err))
	}

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 zlog,
	})
	if err != nil {
		zlog.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	blobs, err := buildBlobStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("init blob store", zap.Error(err))
	}

	var top *cache.TopSongs
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		top = cache.NewTopSongs(rdb, time.Duration(cfg.TopSongsTTLSecs)*time.Second, zlog)
		defer rdb.Close()
	}

	tokens := token.New(
		token.Config{Secret: []byte(cfg.AccessTokenSecret), TTL: time.Duration(cfg.AccessTTLSecs) * time.Second},
		token.Config{Secret: []byte(cfg.RefreshTokenSecret), TTL: time.Duration(cfg.RefreshTTLSecs) * time.Second},
		token.Config{Secret: []byte(cfg.OTPTokenSecret), TTL: time.Duration(cfg.OTPTTLSecs) * time.Second},
	)

	repos := repository.New(st.Pool())

	catalogSvc := catalog.New(catalog.Params{
		Store:  st,
		Repos:  repos,
		Blobs:  blobs,
		Top:    top,
		Bounds: domain.RatingBounds{Min: cfg.RatingMin, Max: cfg.RatingMax},
		Logger: zlog,
	})

	authSvc := auth.New(auth.Params{
		Store:       st,
		Repos:       repos,
		Tokens:      tokens,
		Mailer:      mail.LogSender{From: cfg.MailFrom, Logger: zlog},
		AdminSecret: cfg.AdminSecret,
		Logger:      zlog,
	})

	server := httpserver.New(cfg, st, catalogSvc, authSvc, zlog)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			zlog.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Error("graceful shutdown error", zap.Error(err))
	}
}

// buildBlobStore uses GCS when a bucket is configured and falls back to
// the in-memory store outside production.
func buildBlobStore(ctx context.Context, cfg config.Config, zlog *zap.Logger) (blob.Store, error) {
	if cfg.GCSBucket != "" {
		return blob.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentials)
	}
	if cfg.Env == "production" {
		return nil, errors.New("GCS_BUCKET is required in production")
	}
	zlog.Warn("no GCS bucket configured, using in-memory blob store")
	return blob.NewMemory(), nil
}
