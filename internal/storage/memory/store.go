// Package memory provides an in-memory Store used by tests and the demo
// command.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/storage"
)

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]model.Account
	transactions map[string]model.Transaction
	entries      map[string][]model.Entry // keyed by transaction ID, ascending Order
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]model.Account),
		transactions: make(map[string]model.Transaction),
		entries:      make(map[string][]model.Entry),
	}
}

func (s *Store) CreateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Name == a.Name {
			return storage.ErrDuplicateName
		}
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) Account(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountByName(_ context.Context, name string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Account{}, storage.ErrNotFound
}

func (s *Store) Accounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accts := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accts = append(accts, a)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].Name < accts[j].Name })
	return accts, nil
}

func (s *Store) RenameAccount(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	for otherID, other := range s.accounts {
		if otherID != id && other.Name == name {
			return storage.ErrDuplicateName
		}
	}
	a.Name = name
	s.accounts[id] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return storage.ErrNotFound
	}
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.AccountID == id {
				return storage.ErrAccountInUse
			}
		}
	}
	delete(s.accounts, id)
	return nil
}

// CreateTransaction commits the transaction and its entries under one
// lock acquisition, so readers see either all rows or none.
func (s *Store) CreateTransaction(_ context.Context, tx model.Transaction, entries []model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, ok := s.accounts[e.AccountID]; !ok {
			return storage.ErrNotFound
		}
	}

	copied := make([]model.Entry, len(entries))
	copy(copied, entries)
	tx.Entries = nil // entries are stored separately, attached on read
	s.transactions[tx.ID] = tx
	s.entries[tx.ID] = copied
	return nil
}

func (s *Store) Transaction(_ context.Context, id string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, storage.ErrNotFound
	}
	return s.attachEntries(tx), nil
}

func (s *Store) Transactions(_ context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]model.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		txs = append(txs, s.attachEntries(tx))
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp.Before(txs[j].Timestamp) })
	return txs, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.transactions, id)
	delete(s.entries, id)
	return nil
}

func (s *Store) EntriesByAccount(_ context.Context, accountID string) ([]model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Entry
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.AccountID == accountID {
				result = append(result, e)
			}
		}
	}
	return result, nil
}

func (s *Store) attachEntries(tx model.Transaction) model.Transaction {
	entries := s.entries[tx.ID]
	tx.Entries = make([]model.Entry, len(entries))
	copy(tx.Entries, entries)
	sort.Slice(tx.Entries, func(i, j int) bool { return tx.Entries[i].Order < tx.Entries[j].Order })
	return tx
}

var _ storage.Store = (*Store)(nil)
