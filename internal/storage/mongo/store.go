// Package mongo provides a MongoDB-backed Store. Amounts are stored as
// fixed-scale decimal strings so no precision is lost in BSON.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/storage"
)

const (
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
	entriesCollection      = "entries"
)

// Store implements storage.Store against a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB, verifies the connection, and ensures the
// unique account-name index.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting mongo: %w", err)
	}
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(accountsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating account name index: %w", err)
	}
	_, err = s.db.Collection(entriesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating entry account index: %w", err)
	}
	return nil
}

type accountDoc struct {
	ID            string `bson:"_id"`
	Name          string `bson:"name"`
	Type          string `bson:"type"`
	NormalBalance string `bson:"normal_balance"`
	// Revision is bumped by every posting transaction that references the
	// account, so a concurrent account delete conflicts with the post
	// instead of interleaving with it.
	Revision int64 `bson:"revision"`
}

type transactionDoc struct {
	ID        string    `bson:"_id"`
	Timestamp time.Time `bson:"timestamp"`
}

type entryDoc struct {
	ID            string `bson:"_id"`
	TransactionID string `bson:"transaction_id"`
	AccountID     string `bson:"account_id"`
	Side          string `bson:"side"`
	Amount        string `bson:"amount"`
	Order         int    `bson:"order"`
	Description   string `bson:"description"`
}

func toEntryDoc(e model.Entry) entryDoc {
	return entryDoc{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		AccountID:     e.AccountID,
		Side:          string(e.Side),
		Amount:        e.Amount.StringFixed(2),
		Order:         e.Order,
		Description:   e.Description,
	}
}

func fromEntryDoc(d entryDoc) (model.Entry, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return model.Entry{}, fmt.Errorf("parsing stored amount %q: %w", d.Amount, err)
	}
	return model.Entry{
		ID:            d.ID,
		TransactionID: d.TransactionID,
		AccountID:     d.AccountID,
		Side:          model.Side(d.Side),
		Amount:        amount,
		Order:         d.Order,
		Description:   d.Description,
	}, nil
}

func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	doc := accountDoc{ID: a.ID, Name: a.Name, Type: string(a.Type), NormalBalance: string(a.NormalBalance)}
	_, err := s.db.Collection(accountsCollection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *Store) Account(ctx context.Context, id string) (model.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

func (s *Store) AccountByName(ctx context.Context, name string) (model.Account, error) {
	return s.findAccount(ctx, bson.M{"name": name})
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (model.Account, error) {
	var doc accountDoc
	err := s.db.Collection(accountsCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("finding account: %w", err)
	}
	return model.Account{
		ID:            doc.ID,
		Name:          doc.Name,
		Type:          model.AccountType(doc.Type),
		NormalBalance: model.Side(doc.NormalBalance),
	}, nil
}

func (s *Store) Accounts(ctx context.Context) ([]model.Account, error) {
	cursor, err := s.db.Collection(accountsCollection).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accts []model.Account
	for cursor.Next(ctx) {
		var doc accountDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding account: %w", err)
		}
		accts = append(accts, model.Account{
			ID:            doc.ID,
			Name:          doc.Name,
			Type:          model.AccountType(doc.Type),
			NormalBalance: model.Side(doc.NormalBalance),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accts, nil
}

func (s *Store) RenameAccount(ctx context.Context, id, name string) error {
	res, err := s.db.Collection(accountsCollection).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"name": name}})
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("renaming account: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteAccount runs the in-use check and the delete in one session
// transaction, so it conflicts with any concurrent post that touches the
// account instead of interleaving with it.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		n, err := s.db.Collection(entriesCollection).CountDocuments(sc, bson.M{"account_id": id})
		if err != nil {
			return nil, fmt.Errorf("counting entries: %w", err)
		}
		if n > 0 {
			return nil, storage.ErrAccountInUse
		}

		res, err := s.db.Collection(accountsCollection).DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return nil, fmt.Errorf("deleting account: %w", err)
		}
		if res.DeletedCount == 0 {
			return nil, storage.ErrNotFound
		}
		return nil, nil
	})
	if errors.Is(err, storage.ErrAccountInUse) || errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("committing account delete: %w", err)
	}
	return nil
}

// CreateTransaction writes the transaction document and all entry
// documents inside one session transaction. Each referenced account
// document is revision-bumped first, putting the accounts in the
// transaction's write set: a concurrent DeleteAccount produces a write
// conflict rather than leaving entries pointing at a deleted account,
// and a missing account aborts the whole post.
func (s *Store) CreateTransaction(ctx context.Context, tx model.Transaction, entries []model.Entry) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if seen[e.AccountID] {
				continue
			}
			seen[e.AccountID] = true
			res, err := s.db.Collection(accountsCollection).UpdateOne(sc,
				bson.M{"_id": e.AccountID}, bson.M{"$inc": bson.M{"revision": 1}})
			if err != nil {
				return nil, fmt.Errorf("claiming account %s: %w", e.AccountID, err)
			}
			if res.MatchedCount == 0 {
				return nil, storage.ErrNotFound
			}
		}

		if _, err := s.db.Collection(transactionsCollection).InsertOne(sc, transactionDoc{ID: tx.ID, Timestamp: tx.Timestamp}); err != nil {
			return nil, fmt.Errorf("inserting transaction: %w", err)
		}
		docs := make([]any, len(entries))
		for i, e := range entries {
			docs[i] = toEntryDoc(e)
		}
		if _, err := s.db.Collection(entriesCollection).InsertMany(sc, docs); err != nil {
			return nil, fmt.Errorf("inserting entries: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("committing ledger transaction: %w", err)
	}
	return nil
}

func (s *Store) Transaction(ctx context.Context, id string) (model.Transaction, error) {
	var doc transactionDoc
	err := s.db.Collection(transactionsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("finding transaction: %w", err)
	}

	entries, err := s.queryEntries(ctx, bson.M{"transaction_id": id}, true)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{ID: doc.ID, Timestamp: doc.Timestamp, Entries: entries}, nil
}

func (s *Store) Transactions(ctx context.Context) ([]model.Transaction, error) {
	cursor, err := s.db.Collection(transactionsCollection).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []model.Transaction
	for cursor.Next(ctx) {
		var doc transactionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding transaction: %w", err)
		}
		txs = append(txs, model.Transaction{ID: doc.ID, Timestamp: doc.Timestamp})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	for i := range txs {
		txs[i].Entries, err = s.queryEntries(ctx, bson.M{"transaction_id": txs[i].ID}, true)
		if err != nil {
			return nil, err
		}
	}
	return txs, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		res, err := s.db.Collection(transactionsCollection).DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return nil, fmt.Errorf("deleting transaction: %w", err)
		}
		if res.DeletedCount == 0 {
			return nil, storage.ErrNotFound
		}
		if _, err := s.db.Collection(entriesCollection).DeleteMany(sc, bson.M{"transaction_id": id}); err != nil {
			return nil, fmt.Errorf("deleting entries: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("committing cascade delete: %w", err)
	}
	return nil
}

func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]model.Entry, error) {
	return s.queryEntries(ctx, bson.M{"account_id": accountID}, false)
}

func (s *Store) queryEntries(ctx context.Context, filter bson.M, byOrder bool) ([]model.Entry, error) {
	opts := options.Find()
	if byOrder {
		opts.SetSort(bson.D{{Key: "order", Value: 1}})
	}
	cursor, err := s.db.Collection(entriesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []model.Entry
	for cursor.Next(ctx) {
		var doc entryDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		e, err := fromEntryDoc(doc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

var _ storage.Store = (*Store)(nil)
