package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/scripture-messaging/internal/ai"
	"github.com/LeventeLantos/scripture-messaging/internal/api"
	"github.com/LeventeLantos/scripture-messaging/internal/bible"
	"github.com/LeventeLantos/scripture-messaging/internal/config"
	"github.com/LeventeLantos/scripture-messaging/internal/conversation"
	"github.com/LeventeLantos/scripture-messaging/internal/dispatch"
	"github.com/LeventeLantos/scripture-messaging/internal/inbound"
	"github.com/LeventeLantos/scripture-messaging/internal/scheduler"
	"github.com/LeventeLantos/scripture-messaging/internal/state"
	"github.com/LeventeLantos/scripture-messaging/internal/store"
	"github.com/LeventeLantos/scripture-messaging/internal/twilio"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAll()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Init(ctx); err != nil {
		return err
	}

	var stateCache *state.RedisCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		stateCache = state.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	aiClient, err := ai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	if err != nil {
		return err
	}
	verses := bible.NewClient(cfg.Bible.BaseURL, cfg.Bible.APIKey, cfg.Bible.BibleID)
	transport := twilio.NewClient(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber,
		cfg.Twilio.BaseURL,
		cfg.Twilio.ContentMax,
	)

	log := conversation.NewLog(st)
	states := state.NewService(st, stateCache)
	dispatcher := dispatch.NewDispatcher(st, log, verses, aiClient, transport)
	inboundHandler := inbound.NewHandler(log, aiClient, transport, cfg.OpenAI.Doctrine)

	sched, err := scheduler.New(cfg.Scheduler.Interval, dispatcher.Tick)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(st, sched, st, log, states, dispatcher, inboundHandler, cfg.Twilio.DefaultRecipient)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			"addr", cfg.Server.Address,
			"interval", cfg.Scheduler.Interval.String(),
			"redis", cfg.Redis.Enabled,
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
