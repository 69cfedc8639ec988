package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/gochat/internal/auth"
	"github.com/Tyrowin/gochat/internal/gateway"
	"github.com/Tyrowin/gochat/internal/server"
	"github.com/Tyrowin/gochat/internal/store"
)

// messageStore is a gateway.MessageStore that can be released on shutdown.
type messageStore interface {
	gateway.MessageStore
	Close(ctx context.Context) error
}

type sqlStoreCloser struct {
	*store.SQLStore
}

func (s sqlStoreCloser) Close(context.Context) error {
	return s.SQLStore.Close()
}

func main() {
	cfg := server.LoadConfig()
	setupLogger(cfg.LogLevel)
	server.SetConfig(cfg)
	active := server.CurrentConfig()
	cfg = &active

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	ctx := context.Background()

	messages, err := openStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open message store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}

	registry := gateway.NewRegistry(gateway.WithRegistryLogger(slog.Default()))

	var recorder *store.PresenceRecorder
	if cfg.RedisAddr != "" {
		recorder, err = store.DialPresenceRecorder(ctx, cfg.RedisAddr, slog.Default())
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		registry.Observe(recorder)
		slog.Info("recording presence in redis", "addr", cfg.RedisAddr)
	}

	gw := gateway.New(registry, messages, slog.Default())
	hub := server.NewHub(gw, slog.Default())
	server.StartHub(hub)

	gate := auth.NewJWTGate(auth.Config{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	handlers := server.NewHandlers(hub, gate, slog.Default())
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(handlers))

	go func() {
		if err := server.StartServer(httpServer); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// One operation so the teardown order holds: stop accepting,
			// drop clients, then release the backends.
			"gochat": func(ctx context.Context) error {
				var errs []error
				if err := server.ShutdownServer(ctx, httpServer); err != nil {
					errs = append(errs, fmt.Errorf("http server: %w", err))
				}
				if err := hub.Shutdown(remaining(ctx, cfg.ShutdownTimeout)); err != nil {
					errs = append(errs, fmt.Errorf("hub: %w", err))
				}
				if err := messages.Close(ctx); err != nil {
					errs = append(errs, fmt.Errorf("message store: %w", err))
				}
				if recorder != nil {
					if err := recorder.Close(); err != nil {
						errs = append(errs, fmt.Errorf("presence recorder: %w", err))
					}
				}
				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	slog.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

func openStore(ctx context.Context, cfg server.StoreConfig) (messageStore, error) {
	switch cfg.Driver {
	case server.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := store.NewMongoStore(connectCtx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("using mongo message store", "database", cfg.MongoDatabase)
		return s, nil
	default:
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("using sqlite message store", "path", cfg.SQLitePath)
		return sqlStoreCloser{s}, nil
	}
}

// remaining returns how long is left before ctx expires, or fallback when it
// has no deadline.
func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return fallback
}

func setupLogger(levelName string) {
	slog.SetDefault(newLogger(os.Stdout, levelName))
}

func newLogger(w io.Writer, levelName string) *slog.Logger {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
