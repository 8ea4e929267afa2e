package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mesaqr/api/internal/broadcast"
	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/logging"
	"github.com/mesaqr/api/internal/menu"
	"github.com/mesaqr/api/internal/notify"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/mesaqr/api/internal/router"
	"github.com/mesaqr/api/internal/storage"
	"github.com/mesaqr/api/internal/ws"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	passcodeHash, err := cfg.PasscodeHash()
	if err != nil {
		log.Fatal().Err(err).Msg("staff passcode not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initializations ---

	st, closeStorage, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage).Msg("failed to open storage")
	}
	defer closeStorage()

	bus, err := openBus(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("bus", cfg.Bus).Msg("failed to open broadcast bus")
	}
	defer bus.Close()

	store := orderstore.New(orderstore.Options{
		Storage:        st,
		Broadcaster:    bus,
		StateChannel:   cfg.StateChannel,
		NotifyChannel:  cfg.NotifyChannel,
		PersistTimeout: cfg.PersistTimeout,
	})
	store.Open(ctx)
	defer store.Close()

	hub := ws.NewHub()
	go hub.Run(ctx)

	unsubscribe := store.Subscribe(ws.NewStateRelay(hub).Handle)
	defer unsubscribe()

	stopNotify, err := notify.NewRelay(nil, hub).Start(bus, cfg.NotifyChannel)
	if err != nil {
		log.Warn().Err(err).Msg("notification relay disabled")
	} else {
		defer stopNotify()
	}

	r, err := router.New(cfg, passcodeHash, store, menu.Default(), hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("origin", store.Origin()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// closableBus is a broadcaster that owns a connection.
type closableBus interface {
	orderstore.Broadcaster
	Close() error
}

func openBus(cfg *config.Config) (closableBus, error) {
	if cfg.Bus == config.BusNATS {
		return broadcast.NewNATSBus(cfg.NATSURL, "mesaqr")
	}
	return broadcast.NewMemoryBus(0), nil
}
