package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mesaqr/api/internal/auth"
	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/logging"
	"github.com/mesaqr/api/internal/menu"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/mesaqr/api/internal/storage"
	"github.com/rs/zerolog/log"
)

func main() {
	// CLI flags
	mode := flag.String("mode", "", "Snapshot to write: demo or empty")
	force := flag.Bool("force", false, "Overwrite an existing snapshot")
	passcode := flag.String("hash-passcode", "", "Print the bcrypt hash for a staff passcode and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if *passcode != "" {
		hash, err := auth.HashPasscode(*passcode)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to hash passcode")
		}
		fmt.Printf("STAFF_PASSCODE_HASH=%s\n", hash)
		return
	}

	// Fall back to environment variables, then defaults
	if *mode == "" {
		*mode = os.Getenv("SEED_MODE")
	}
	if *mode == "" {
		*mode = "demo"
	}

	ctx := context.Background()
	st, closeStorage, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage).Msg("failed to open storage")
	}
	defer closeStorage()

	existing, err := st.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read existing snapshot")
	}
	if len(existing) > 0 && !*force {
		log.Info().Str("storage", cfg.Storage).Msg("snapshot already exists, skipping (use -force to overwrite)")
		return
	}

	var snap orderstore.Snapshot
	switch *mode {
	case "demo":
		snap, err = demoSnapshot(ctx, menu.Default())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build demo snapshot")
		}
	case "empty":
		snap = orderstore.Snapshot{}
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown seed mode")
	}

	data, err := orderstore.EncodeSnapshot(snap)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode snapshot")
	}
	if err := st.Save(ctx, data); err != nil {
		log.Fatal().Err(err).Msg("failed to write snapshot")
	}

	log.Info().Str("mode", *mode).Str("storage", cfg.Storage).Int("tables", len(snap)).Msg("seed completed successfully")
}

// demoSnapshot plays a short service on a memory-only store: one table
// eating, one waiting for the bill, one calling staff.
func demoSnapshot(ctx context.Context, catalog *menu.Catalog) (orderstore.Snapshot, error) {
	store := orderstore.New(orderstore.Options{})
	store.Open(ctx)
	defer store.Close()

	type entry struct {
		id  string
		qty int
	}
	order := func(tableID string, items ...entry) error {
		var reqs []orderstore.LineRequest
		for _, e := range items {
			it, err := catalog.Get(e.id)
			if err != nil {
				return fmt.Errorf("demo item %s: %w", e.id, err)
			}
			reqs = append(reqs, orderstore.LineRequest{Item: it, Quantity: e.qty})
		}
		store.AddOrderLines(ctx, tableID, reqs)
		return nil
	}

	if err := order("1", entry{"cana", 2}, entry{"patatas-bravas", 1}, entry{"croquetas", 1}); err != nil {
		return nil, err
	}
	store.AdvanceAll(ctx, "1", enum.ItemStatusInPreparation)

	if err := order("4", entry{"vino-tinto", 2}, entry{"hamburguesa", 2}); err != nil {
		return nil, err
	}
	t4, _ := store.Table("4")
	for _, line := range t4.Items {
		store.MarkDelivered(ctx, "4", line.Timestamp)
	}
	store.RequestBill(ctx, "4")

	if err := order("7", entry{"agua", 1}); err != nil {
		return nil, err
	}
	store.CallStaff(ctx, "7")

	return store.Snapshot(), nil
}
