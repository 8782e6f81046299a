// Package logging constructs the single zerolog.Logger instance every
// component in the core takes as a constructor argument. There is no
// package-level global; callers wire the logger through explicitly.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config selects the logger's level and wire format.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "console" or "json"
}

// New builds a zerolog.Logger per cfg. Unknown levels fall back to info;
// unknown formats fall back to JSON.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Deposit logs a completed deposit event.
func Deposit(log zerolog.Logger, userID, currency, amount, newBalance string) {
	log.Info().
		Str("event", "deposit").
		Str("user_id", userID).
		Str("currency", currency).
		Str("amount", amount).
		Str("new_balance", newBalance).
		Msg("wallet deposit")
}

// Withdraw logs a completed withdrawal event.
func Withdraw(log zerolog.Logger, userID, currency, amount, newBalance string) {
	log.Info().
		Str("event", "withdraw").
		Str("user_id", userID).
		Str("currency", currency).
		Str("amount", amount).
		Str("new_balance", newBalance).
		Msg("wallet withdraw")
}

// OrderPlaced logs a newly-inserted OPEN order.
func OrderPlaced(log zerolog.Logger, orderID int64, userID, pair, side, orderType, price, amount string) {
	log.Info().
		Str("event", "order_placed").
		Int64("order_id", orderID).
		Str("user_id", userID).
		Str("pair", pair).
		Str("side", side).
		Str("order_type", orderType).
		Str("price", price).
		Str("amount", amount).
		Msg("order placed")
}

// OrderCancelled logs a cancel with the unlocked residual.
func OrderCancelled(log zerolog.Logger, orderID int64, userID, unfilled string) {
	log.Info().
		Str("event", "order_cancelled").
		Int64("order_id", orderID).
		Str("user_id", userID).
		Str("unfilled", unfilled).
		Msg("order cancelled")
}

// Trade logs one executed fill.
func Trade(log zerolog.Logger, tradeID, pair string, buyOrderID, sellOrderID int64, price, quantity string) {
	log.Info().
		Str("event", "trade").
		Str("trade_id", tradeID).
		Str("pair", pair).
		Int64("buy_order_id", buyOrderID).
		Int64("sell_order_id", sellOrderID).
		Str("price", price).
		Str("quantity", quantity).
		Msg("trade executed")
}
