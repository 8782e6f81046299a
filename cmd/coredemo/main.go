// coredemo is a minimal consumer of the clobcore library: it boots a store,
// seeds one trading pair and three user wallets, and runs a short scripted
// sequence of deposits, placements, and a cancel to show the pieces wired
// together end to end. It is not a server; there is no HTTP or WS surface.
package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clobcore/internal/config"
	"clobcore/internal/db"
	"clobcore/internal/ledger"
	"clobcore/internal/logging"
	"clobcore/internal/model"
	"clobcore/internal/orderservice"
	"clobcore/internal/orderstore"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		fatal(log, "db open", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Bootstrap(ctx); err != nil {
		fatal(log, "schema bootstrap", err)
	}

	ledgerStore := ledger.New(log)
	orders := orderstore.New()
	svc := orderservice.New(store, ledgerStore, orders, log)

	const pair = "BTC-USD"
	if err := svc.CreatePair(ctx, pair, "BTC", "USD", true); err != nil {
		fatal(log, "create pair", err)
	}
	if err := svc.Boot(ctx, pair); err != nil {
		fatal(log, "boot pair engine", err)
	}

	seedWallets(ctx, store, ledgerStore, log)

	alice, err := svc.PlaceOrder(ctx, "alice", pair, model.Sell, model.Limit,
		decimal.RequireFromString("20000.00"), decimal.RequireFromString("0.5"))
	if err != nil {
		fatal(log, "place sell order", err)
	}
	log.Info().Int64("order_id", alice.ID).Str("status", string(alice.Status)).Msg("alice sell order placed")

	bob, err := svc.PlaceOrder(ctx, "bob", pair, model.Buy, model.Limit,
		decimal.RequireFromString("20000.00"), decimal.RequireFromString("0.2"))
	if err != nil {
		fatal(log, "place buy order", err)
	}
	log.Info().Int64("order_id", bob.ID).Str("status", string(bob.Status)).Msg("bob buy order placed")

	carol, err := svc.PlaceOrder(ctx, "carol", pair, model.Buy, model.Limit,
		decimal.RequireFromString("19000.00"), decimal.RequireFromString("1"))
	if err != nil {
		fatal(log, "place resting buy order", err)
	}
	log.Info().Int64("order_id", carol.ID).Str("status", string(carol.Status)).Msg("carol resting buy order placed")

	cancelled, err := svc.CancelOrder(ctx, "carol", carol.ID)
	if err != nil {
		fatal(log, "cancel order", err)
	}
	log.Info().Int64("order_id", cancelled.ID).Str("status", string(cancelled.Status)).Msg("carol order cancelled")

	book, err := svc.GetOrderBook(ctx, pair, nil)
	if err != nil {
		fatal(log, "read order book", err)
	}
	log.Info().Int("open_orders", len(book)).Msg("final order book snapshot")
}

func seedWallets(ctx context.Context, store *db.Store, ledgerStore *ledger.Store, log zerolog.Logger) {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		fatal(log, "begin seed tx", err)
	}
	deposits := []struct {
		user     string
		currency string
		amount   string
	}{
		{"alice", "BTC", "1.0"},
		{"bob", "USD", "50000.00"},
		{"carol", "USD", "50000.00"},
	}
	for _, d := range deposits {
		if _, err := ledgerStore.Deposit(ctx, tx, d.user, d.currency, decimal.RequireFromString(d.amount)); err != nil {
			tx.Rollback()
			fatal(log, "seed deposit", err)
		}
	}
	if err := tx.Commit(); err != nil {
		fatal(log, "commit seed tx", err)
	}
}

func fatal(log zerolog.Logger, step string, err error) {
	log.Fatal().Err(err).Str("step", step).Msg("coredemo failed")
}
