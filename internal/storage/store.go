// Package storage defines the persistence collaborator consumed by the
// ledger engine. The engine depends only on the Store interface; backends
// live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/tally-dev/tally/internal/model"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when an account name is already taken.
	ErrDuplicateName = errors.New("account name already exists")
	// ErrAccountInUse is returned when deleting an account that is still
	// referenced by entries.
	ErrAccountInUse = errors.New("account referenced by entries")
)

// Store persists accounts, transactions, and entries. Implementations
// must be safe for concurrent use, and CreateTransaction must commit the
// transaction row and every entry row as a single atomic unit: a reader
// never observes a partially written transaction.
type Store interface {
	CreateAccount(ctx context.Context, a model.Account) error
	Account(ctx context.Context, id string) (model.Account, error)
	AccountByName(ctx context.Context, name string) (model.Account, error)
	Accounts(ctx context.Context) ([]model.Account, error)
	// RenameAccount is the only permitted account mutation.
	RenameAccount(ctx context.Context, id, name string) error
	// DeleteAccount fails with ErrAccountInUse while any entry references
	// the account.
	DeleteAccount(ctx context.Context, id string) error

	CreateTransaction(ctx context.Context, tx model.Transaction, entries []model.Entry) error
	Transaction(ctx context.Context, id string) (model.Transaction, error)
	Transactions(ctx context.Context) ([]model.Transaction, error)
	// DeleteTransaction cascades to the transaction's entries.
	DeleteTransaction(ctx context.Context, id string) error

	EntriesByAccount(ctx context.Context, accountID string) ([]model.Entry, error)
}
