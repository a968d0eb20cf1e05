// Package postgres provides a PostgreSQL-backed Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/storage"
)

const uniqueViolation = "23505"

// Store implements storage.Store against a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL using a lib/pq DSN and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return NewStore(db), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the ledger tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	type           TEXT NOT NULL,
	normal_balance TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	id        TEXT PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id             TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
	account_id     TEXT NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
	side           TEXT NOT NULL,
	amount         NUMERIC(20,2) NOT NULL CHECK (amount > 0),
	entry_order    INTEGER NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	UNIQUE (transaction_id, entry_order)
);
CREATE INDEX IF NOT EXISTS entries_account_idx ON entries(account_id);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	const query = `INSERT INTO accounts (id, name, type, normal_balance) VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, a.ID, a.Name, a.Type, a.NormalBalance)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *Store) Account(ctx context.Context, id string) (model.Account, error) {
	const query = `SELECT id, name, type, normal_balance FROM accounts WHERE id = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) AccountByName(ctx context.Context, name string) (model.Account, error) {
	const query = `SELECT id, name, type, normal_balance FROM accounts WHERE name = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, name))
}

func (s *Store) scanAccount(row *sql.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.NormalBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("scanning account: %w", err)
	}
	return a, nil
}

func (s *Store) Accounts(ctx context.Context) ([]model.Account, error) {
	const query = `SELECT id, name, type, normal_balance FROM accounts ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.NormalBalance); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accts = append(accts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accts, nil
}

func (s *Store) RenameAccount(ctx context.Context, id, name string) error {
	const query = `UPDATE accounts SET name = $2 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, name)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("renaming account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renaming account: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id)
	if isForeignKeyViolation(err) {
		return storage.ErrAccountInUse
	}
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateTransaction writes the transaction row and all entry rows in one
// database transaction, rolling back on any failure.
func (s *Store) CreateTransaction(ctx context.Context, tx model.Transaction, entries []model.Entry) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	const txQuery = `INSERT INTO transactions (id, timestamp) VALUES ($1, $2)`
	if _, err = dbTx.ExecContext(ctx, txQuery, tx.ID, tx.Timestamp); err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	const entryQuery = `INSERT INTO entries (id, transaction_id, account_id, side, amount, entry_order, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, e := range entries {
		if _, err = dbTx.ExecContext(ctx, entryQuery, e.ID, e.TransactionID, e.AccountID, e.Side, e.Amount, e.Order, e.Description); err != nil {
			if isForeignKeyViolation(err) {
				err = storage.ErrNotFound
				return err
			}
			return fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) Transaction(ctx context.Context, id string) (model.Transaction, error) {
	const query = `SELECT id, timestamp FROM transactions WHERE id = $1`

	var tx model.Transaction
	err := s.db.QueryRowContext(ctx, query, id).Scan(&tx.ID, &tx.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
	}

	tx.Entries, err = s.entriesByTransaction(ctx, id)
	if err != nil {
		return model.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) Transactions(ctx context.Context) ([]model.Transaction, error) {
	const query = `SELECT id, timestamp FROM transactions ORDER BY timestamp`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		if err := rows.Scan(&tx.ID, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	for i := range txs {
		txs[i].Entries, err = s.entriesByTransaction(ctx, txs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return txs, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	const query = `DELETE FROM transactions WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]model.Entry, error) {
	const query = `SELECT id, transaction_id, account_id, side, amount, entry_order, description
	FROM entries WHERE account_id = $1`
	return s.queryEntries(ctx, query, accountID)
}

func (s *Store) entriesByTransaction(ctx context.Context, txID string) ([]model.Entry, error) {
	const query = `SELECT id, transaction_id, account_id, side, amount, entry_order, description
	FROM entries WHERE transaction_id = $1 ORDER BY entry_order`
	return s.queryEntries(ctx, query, txID)
}

func (s *Store) queryEntries(ctx context.Context, query string, arg any) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Side, &e.Amount, &e.Order, &e.Description); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "23" && pqErr.Code != uniqueViolation
}

var _ storage.Store = (*Store)(nil)
