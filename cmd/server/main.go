package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"songbuzz/internal/arbiter"
	"songbuzz/internal/config"
	"songbuzz/internal/httpapi"
	"songbuzz/internal/hub"
	"songbuzz/internal/round"
	"songbuzz/internal/song"
	"songbuzz/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(cfg, log)
	if err != nil {
		return err
	}
	if catalog.Len() == 0 {
		return errors.New("song catalog has no usable songs")
	}
	log.Info("catalog loaded", zap.Int("songs", catalog.Len()))

	st, err := buildStore(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arb := arbiter.New(st, cfg.Points, log)
	h := hub.NewHub(ctx, hub.Deps{
		Store:     st,
		Arbiter:   arb,
		Generator: round.NewGenerator(log),
		Catalog:   catalog,
		Log:       log,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:           h,
			Store:         st,
			Arbiter:       arb,
			BaseURL:       cfg.BaseURL,
			DefaultRounds: cfg.DefaultRounds,
			Log:           log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func loadCatalog(cfg config.Config, log *zap.Logger) (*song.Catalog, error) {
	switch {
	case cfg.DatabaseURL != "":
		log.Info("loading songs from database")
		return song.LoadDatabase(cfg.DatabaseURL)
	case cfg.SongsFile != "":
		log.Info("loading songs from file", zap.String("path", cfg.SongsFile))
		return song.LoadFile(cfg.SongsFile)
	default:
		return song.Embedded()
	}
}

func buildStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.RedisAddr == "" {
		return store.NewMemory(log), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	log.Info("using redis room store", zap.String("addr", cfg.RedisAddr))
	return store.NewRedis(rdb, log), nil
}
