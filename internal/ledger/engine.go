// Package ledger implements the transaction-posting engine: account
// creation, balanced posting, and read-side balance computation over an
// injected storage collaborator.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/events"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
	"github.com/tally-dev/tally/internal/storage"
)

// Engine orchestrates account creation and transaction posting. It holds
// no mutable state of its own and is safe to share across goroutines.
type Engine struct {
	store  storage.Store
	events events.Publisher // optional
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher attaches an event publisher. Posted transactions are
// published best-effort after commit.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine over the given store.
func NewEngine(store storage.Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateAccountParams holds parameters for creating an account.
type CreateAccountParams struct {
	Name string
	Type model.AccountType
	// NormalBalance optionally overrides the conventional side for the
	// account type. Overrides are honored but logged.
	NormalBalance model.Side
}

// CreateAccount validates the parameters, defaults the normal balance
// from the account type, and persists the account.
func (e *Engine) CreateAccount(ctx context.Context, params CreateAccountParams) (model.Account, error) {
	if params.Name == "" {
		return model.Account{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !params.Type.Valid() {
		return model.Account{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unrecognized account type %q", params.Type)}
	}

	normal := model.NormalBalance(params.Type)
	if params.NormalBalance != "" {
		if !params.NormalBalance.Valid() {
			return model.Account{}, &ValidationError{Field: "normal_balance", Reason: fmt.Sprintf("unrecognized side %q", params.NormalBalance)}
		}
		if params.NormalBalance != normal {
			e.logger.Warn("account created with non-conventional normal balance",
				"name", params.Name,
				"type", params.Type,
				"conventional", normal,
				"override", params.NormalBalance)
		}
		normal = params.NormalBalance
	}

	account := model.Account{
		ID:            uuid.NewString(),
		Name:          params.Name,
		Type:          params.Type,
		NormalBalance: normal,
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return model.Account{}, fmt.Errorf("creating account %q: %w", params.Name, err)
	}
	return account, nil
}

// RenameAccount corrects an account's name, the only mutation permitted
// after creation.
func (e *Engine) RenameAccount(ctx context.Context, id, name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if err := e.store.RenameAccount(ctx, id, name); err != nil {
		return fmt.Errorf("renaming account %s: %w", id, err)
	}
	return nil
}

// Account returns an account by ID.
func (e *Engine) Account(ctx context.Context, id string) (model.Account, error) {
	a, err := e.store.Account(ctx, id)
	if err != nil {
		return model.Account{}, fmt.Errorf("looking up account %s: %w", id, err)
	}
	return a, nil
}

// AccountByName returns an account by its unique name.
func (e *Engine) AccountByName(ctx context.Context, name string) (model.Account, error) {
	a, err := e.store.AccountByName(ctx, name)
	if err != nil {
		return model.Account{}, fmt.Errorf("looking up account %q: %w", name, err)
	}
	return a, nil
}

// Accounts returns the full chart of accounts.
func (e *Engine) Accounts(ctx context.Context) ([]model.Account, error) {
	accts, err := e.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accts, nil
}

// Line is one proposed debit or credit of a candidate transaction.
type Line struct {
	AccountID   string
	Side        model.Side
	Amount      decimal.Decimal
	Description string
}

// PostParams holds a candidate transaction. Line order is preserved as
// the entries' display order; it does not affect the balance check.
type PostParams struct {
	Timestamp time.Time // zero value defaults to now
	Lines     []Line
}

// PostTransaction validates the candidate, assigns ordering and IDs, and
// atomically persists the transaction with its entries. All validation
// runs before any write: a rejected candidate leaves no partial state.
func (e *Engine) PostTransaction(ctx context.Context, params PostParams) (model.Transaction, error) {
	if len(params.Lines) < 2 {
		return model.Transaction{}, &ValidationError{Field: "entries", Reason: "a transaction needs at least 2 entries"}
	}

	debitTotal, creditTotal := decimal.Zero, decimal.Zero
	for i, line := range params.Lines {
		if !line.Side.Valid() {
			return model.Transaction{}, &ValidationError{Field: "side", Reason: fmt.Sprintf("entry %d has unrecognized side %q", i+1, line.Side)}
		}
		if !money.IsPositive(line.Amount) {
			return model.Transaction{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("entry %d amount %s is not positive", i+1, line.Amount)}
		}
		if !money.ValidScale(line.Amount) {
			return model.Transaction{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("entry %d amount %s has more than %d decimal places", i+1, line.Amount, money.Scale)}
		}
		if _, err := e.store.Account(ctx, line.AccountID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return model.Transaction{}, &UnknownAccountError{AccountID: line.AccountID}
			}
			return model.Transaction{}, fmt.Errorf("checking account %s: %w", line.AccountID, err)
		}

		switch line.Side {
		case model.SideDebit:
			debitTotal = debitTotal.Add(line.Amount)
		case model.SideCredit:
			creditTotal = creditTotal.Add(line.Amount)
		}
	}

	if !debitTotal.Equal(creditTotal) {
		return model.Transaction{}, &UnbalancedTransactionError{DebitTotal: debitTotal, CreditTotal: creditTotal}
	}

	timestamp := params.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	tx := model.Transaction{ID: uuid.NewString(), Timestamp: timestamp}
	entries := make([]model.Entry, len(params.Lines))
	for i, line := range params.Lines {
		entries[i] = model.Entry{
			ID:            uuid.NewString(),
			TransactionID: tx.ID,
			AccountID:     line.AccountID,
			Side:          line.Side,
			Amount:        line.Amount,
			Order:         i + 1,
			Description:   line.Description,
		}
	}

	if err := e.store.CreateTransaction(ctx, tx, entries); err != nil {
		return model.Transaction{}, fmt.Errorf("posting transaction: %w", err)
	}
	tx.Entries = entries

	e.logger.Info("posted transaction",
		"transaction_id", tx.ID,
		"entries", len(entries),
		"total", money.Format(debitTotal))
	e.publish(ctx, tx)

	return tx, nil
}

// Balance returns the exact debit and credit totals of a transaction.
// For any transaction that passed posting the two are equal.
func (e *Engine) Balance(tx model.Transaction) (debit, credit decimal.Decimal) {
	return tx.Totals()
}

// Transaction returns a posted transaction with its entries attached in
// order.
func (e *Engine) Transaction(ctx context.Context, id string) (model.Transaction, error) {
	tx, err := e.store.Transaction(ctx, id)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("looking up transaction %s: %w", id, err)
	}
	return tx, nil
}

// AccountBalance returns the account's balance signed relative to its
// normal side: entries on the normal side increase it, entries on the
// opposite side decrease it.
func (e *Engine) AccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := e.store.Account(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("looking up account %s: %w", accountID, err)
	}

	entries, err := e.store.EntriesByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing entries for account %s: %w", accountID, err)
	}

	balance := decimal.Zero
	for _, entry := range entries {
		if entry.Side == account.NormalBalance {
			balance = balance.Add(entry.Amount)
		} else {
			balance = balance.Sub(entry.Amount)
		}
	}
	return balance, nil
}

func (e *Engine) publish(ctx context.Context, tx model.Transaction) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, events.FromTransaction(tx)); err != nil {
		e.logger.Error("publishing transaction event", "transaction_id", tx.ID, "error", err)
	}
}
