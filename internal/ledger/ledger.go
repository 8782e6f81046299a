// Package ledger is the wallet store: per (user, currency) balance and
// locked accounting, with the atomic primitives section 4.1 specifies.
package ledger

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clobcore/internal/logging"
	"clobcore/internal/model"
	"clobcore/internal/xerrors"
)

// Store performs wallet reads and mutations against the shared database.
// Every mutating method takes an explicit *sql.Tx: atomicity is wired
// through a transaction-context argument, never an ambient mechanism.
type Store struct {
	log zerolog.Logger
}

// New builds a ledger Store logging deposit/withdraw events through log.
func New(log zerolog.Logger) *Store {
	return &Store{log: log}
}

// key identifies one wallet row for canonical lock ordering.
type key struct {
	UserID   string
	Currency string
}

// ordered returns keys sorted lexicographically on (user_id, currency), the
// canonical order section 4.1/5 requires before acquiring more than one
// wallet lock in the same operation.
func ordered(keys ...key) []key {
	out := append([]key(nil), keys...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

func lockRow(ctx context.Context, tx *sql.Tx, k key) (*model.Wallet, error) {
	var balance, locked string
	var createdAt sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT balance, locked, created_at FROM wallet WHERE user_id=$1 AND currency=$2 FOR UPDATE`,
		k.UserID, k.Currency,
	).Scan(&balance, &locked, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w := &model.Wallet{UserID: k.UserID, Currency: k.Currency, CreatedAt: createdAt.Time}
	w.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	w.Locked, err = decimal.NewFromString(locked)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func createRow(ctx context.Context, tx *sql.Tx, k key) (*model.Wallet, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallet (user_id, currency, balance, locked) VALUES ($1,$2,0,0)
		 ON CONFLICT (user_id, currency) DO NOTHING`,
		k.UserID, k.Currency)
	if err != nil {
		return nil, err
	}
	return lockRow(ctx, tx, k)
}

func getOrCreate(ctx context.Context, tx *sql.Tx, userID, currency string) (*model.Wallet, error) {
	k := key{userID, strings.ToUpper(currency)}
	w, err := lockRow(ctx, tx, k)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}
	return createRow(ctx, tx, k)
}

// GetOrCreate returns the row-locked wallet for (userID, currency), creating
// it with zero balances if absent. Currency is normalized to uppercase.
func (s *Store) GetOrCreate(ctx context.Context, tx *sql.Tx, userID, currency string) (*model.Wallet, error) {
	return getOrCreate(ctx, tx, userID, currency)
}

// GetWallet is the read-only external operation; it takes no lock and fails
// WalletNotFoundError if the row does not exist.
func (s *Store) GetWallet(ctx context.Context, db *sql.DB, userID, currency string) (*model.Wallet, error) {
	currency = strings.ToUpper(currency)
	var balance, locked string
	var createdAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT balance, locked, created_at FROM wallet WHERE user_id=$1 AND currency=$2`,
		userID, currency,
	).Scan(&balance, &locked, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &xerrors.WalletNotFoundError{UserID: userID, Currency: currency}
	}
	if err != nil {
		return nil, err
	}
	w := &model.Wallet{UserID: userID, Currency: currency, CreatedAt: createdAt.Time}
	w.Balance, _ = decimal.NewFromString(balance)
	w.Locked, _ = decimal.NewFromString(locked)
	return w, nil
}

func save(ctx context.Context, tx *sql.Tx, w *model.Wallet) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallet SET balance=$1, locked=$2 WHERE user_id=$3 AND currency=$4`,
		w.Balance.String(), w.Locked.String(), w.UserID, w.Currency)
	return err
}

// Deposit increments balance by amount. amount must be positive.
func (s *Store) Deposit(ctx context.Context, tx *sql.Tx, userID, currency string, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, &xerrors.InvalidAmountError{Field: "amount", Value: amount}
	}
	w, err := getOrCreate(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(amount)
	if err := save(ctx, tx, w); err != nil {
		return nil, err
	}
	logging.Deposit(s.log, userID, w.Currency, amount.String(), w.Balance.String())
	return w, nil
}

// Withdraw decrements balance by amount, requiring available >= amount.
func (s *Store) Withdraw(ctx context.Context, tx *sql.Tx, userID, currency string, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, &xerrors.InvalidAmountError{Field: "amount", Value: amount}
	}
	w, err := getOrCreate(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}
	if w.Available().LessThan(amount) {
		return nil, &xerrors.InsufficientBalanceError{Required: amount, Available: w.Available(), Currency: w.Currency}
	}
	w.Balance = w.Balance.Sub(amount)
	if err := save(ctx, tx, w); err != nil {
		return nil, err
	}
	logging.Withdraw(s.log, userID, w.Currency, amount.String(), w.Balance.String())
	return w, nil
}

// Lock reserves amount against an open obligation, requiring available >= amount.
func (s *Store) Lock(ctx context.Context, tx *sql.Tx, userID, currency string, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, &xerrors.InvalidAmountError{Field: "amount", Value: amount}
	}
	w, err := getOrCreate(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}
	if w.Available().LessThan(amount) {
		return nil, &xerrors.InsufficientBalanceError{Required: amount, Available: w.Available(), Currency: w.Currency}
	}
	w.Locked = w.Locked.Add(amount)
	if err := save(ctx, tx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Unlock releases amount from locked back to available, requiring locked >= amount.
func (s *Store) Unlock(ctx context.Context, tx *sql.Tx, userID, currency string, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, &xerrors.InvalidAmountError{Field: "amount", Value: amount}
	}
	w, err := getOrCreate(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}
	if w.Locked.LessThan(amount) {
		return nil, &xerrors.InsufficientBalanceError{Required: amount, Available: w.Locked, Currency: w.Currency}
	}
	w.Locked = w.Locked.Sub(amount)
	if err := save(ctx, tx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// TransferLocked is the settlement primitive: it removes amount from
// fromUser's locked and balance, and credits amount to toUser's balance,
// creating toUser's wallet if needed. Both rows are locked in canonical
// (user_id, currency) order first so concurrent transfers cannot deadlock.
func (s *Store) TransferLocked(ctx context.Context, tx *sql.Tx, fromUser, toUser, currency string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return &xerrors.InvalidAmountError{Field: "amount", Value: amount}
	}
	currency = strings.ToUpper(currency)
	keys := ordered(key{fromUser, currency}, key{toUser, currency})
	wallets := make(map[key]*model.Wallet, 2)
	for _, k := range keys {
		w, err := getOrCreate(ctx, tx, k.UserID, k.Currency)
		if err != nil {
			return err
		}
		wallets[k] = w
	}

	from := wallets[key{fromUser, currency}]
	to := wallets[key{toUser, currency}]

	if from.Locked.LessThan(amount) {
		return &xerrors.InsufficientBalanceError{Required: amount, Available: from.Locked, Currency: currency}
	}

	from.Locked = from.Locked.Sub(amount)
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	if err := save(ctx, tx, from); err != nil {
		return err
	}
	return save(ctx, tx, to)
}
