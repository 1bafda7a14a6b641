package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vn.io.arda/storefront-sync/internal/aggregator"
	"vn.io.arda/storefront-sync/internal/backend"
	"vn.io.arda/storefront-sync/internal/config"
	"vn.io.arda/storefront-sync/internal/derive"
	"vn.io.arda/storefront-sync/internal/domain"
	"vn.io.arda/storefront-sync/internal/ledger"
	"vn.io.arda/storefront-sync/internal/poller"
	"vn.io.arda/storefront-sync/internal/push"
	"vn.io.arda/storefront-sync/internal/realtime"
	"vn.io.arda/storefront-sync/internal/session"
	transporthttp "vn.io.arda/storefront-sync/internal/transport/http"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting storefront-sync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Session & state dir ──────────────────────────────────────────────────
	sess := session.NewStore(cfg.Backend.Token)
	if sess.UserID() == "" {
		log.Warn().Msg("no credential configured, running as guest (no push channel)")
	}

	store, err := ledger.NewStore(cfg.State.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.State.Dir).Msg("failed to open state directory")
	}

	watcher, err := ledger.Watch(ctx, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to watch state directory")
	}

	// ── Backend client & aggregator ──────────────────────────────────────────
	client := backend.New(cfg.Backend.BaseURL, sess)
	snapshot := filepath.Join(cfg.State.Dir, "unified_snapshot.json")
	agg := aggregator.New(client, store, snapshot)

	// ── Local SSE hub & poller ───────────────────────────────────────────────
	hub := transporthttp.NewHub()
	p := poller.New(agg, sess, cfg.Sync.PollInterval(), func(count int, _ []domain.Notification) {
		hub.BroadcastBadge(count)
	})

	// ── Push connection manager ──────────────────────────────────────────────
	manager := push.NewManager(push.NewSSEDialer(cfg.Backend.BaseURL), sess)
	manager.SetBackoff(push.Backoff{Base: cfg.Sync.BackoffBase(), Cap: cfg.Sync.BackoffCap()})
	manager.AddListener(agg)
	manager.AddListener(p)
	manager.AddListener(hub)
	manager.Connect(sess.UserID())
	defer manager.Disconnect()

	// ── Ledger change signals ────────────────────────────────────────────────
	go p.Forward(ctx, store.Subscribe())
	go p.Forward(ctx, watcher.Changes())

	// ── Admin realtime streams ───────────────────────────────────────────────
	for _, resource := range cfg.Realtime.Resources {
		stream := realtime.NewStream(cfg.Backend.WSURL, resource, sess, func(res string, msg []byte) {
			agg.Invalidate()
			if n := derive.Dispatch(res, msg); n != nil {
				agg.AddGenerated(*n)
				p.Wake()
			}
		})
		go stream.Run(ctx)
	}

	// ── Polling fallback ─────────────────────────────────────────────────────
	go p.Run(ctx)

	// ── Local consumer API ───────────────────────────────────────────────────
	handler := transporthttp.NewHandler(agg, store, client, sess, p, hub, manager)
	router := transporthttp.NewRouter(handler)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("local API listening")
		if err := router.Start("127.0.0.1:" + cfg.Server.Port); err != nil {
			log.Info().Msg("local API stopped")
		}
	}()

	// ── Graceful Shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("local API shutdown error")
	}

	log.Info().Msg("storefront-sync stopped")
}
