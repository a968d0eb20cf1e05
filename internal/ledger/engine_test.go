package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/events"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/storage"
	"github.com/tally-dev/tally/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewEngine(store), store
}

func mustAccount(t *testing.T, e *Engine, name string, typ model.AccountType) model.Account {
	t.Helper()
	a, err := e.CreateAccount(context.Background(), CreateAccountParams{Name: name, Type: typ})
	require.NoError(t, err)
	return a
}

func TestCreateAccount_DefaultNormalBalance(t *testing.T) {
	e, _ := newEngine(t)

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	assert.Equal(t, model.SideDebit, cash.NormalBalance)
	assert.NotEmpty(t, cash.ID)

	payable := mustAccount(t, e, "Accounts Payable", model.AccountTypeLiability)
	assert.Equal(t, model.SideCredit, payable.NormalBalance)
}

func TestCreateAccount_Validation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	var verr *ValidationError

	_, err := e.CreateAccount(ctx, CreateAccountParams{Name: "", Type: model.AccountTypeAsset})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = e.CreateAccount(ctx, CreateAccountParams{Name: "Cash", Type: "bank"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)

	_, err = e.CreateAccount(ctx, CreateAccountParams{Name: "Cash", Type: model.AccountTypeAsset, NormalBalance: "Dr"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "normal_balance", verr.Field)
}

func TestCreateAccount_ExplicitOverride(t *testing.T) {
	e, _ := newEngine(t)

	// A contra-asset account legitimately carries a credit normal balance.
	a, err := e.CreateAccount(context.Background(), CreateAccountParams{
		Name:          "Accumulated Depreciation",
		Type:          model.AccountTypeAsset,
		NormalBalance: model.SideCredit,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SideCredit, a.NormalBalance)
}

func TestPostTransaction_EndToEnd(t *testing.T) {
	// The canonical raise-cash-from-equity scenario.
	e, store := newEngine(t)
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	tx, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("25000.00"), Description: "raise cash from equity"},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("25000.00"), Description: "raise cash from equity"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, tx.ID)
	require.Len(t, tx.Entries, 2)

	debit, credit := e.Balance(tx)
	assert.True(t, debit.Equal(dec("25000.00")))
	assert.True(t, credit.Equal(dec("25000.00")))

	// Entries persisted and bound to the right accounts.
	stored, err := store.Transaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, stored.Entries, 2)
	assert.Equal(t, cash.ID, stored.Entries[0].AccountID)
	assert.Equal(t, stock.ID, stored.Entries[1].AccountID)
	assert.Equal(t, tx.ID, stored.Entries[0].TransactionID)
	assert.True(t, stored.Balanced())
}

func TestPostTransaction_OrderPreservation(t *testing.T) {
	e, _ := newEngine(t)

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	tx, err := e.PostTransaction(context.Background(), PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("100.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("100.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, tx.Entries, 2)
	assert.Equal(t, 1, tx.Entries[0].Order)
	assert.Equal(t, model.SideDebit, tx.Entries[0].Side)
	assert.Equal(t, 2, tx.Entries[1].Order)
	assert.Equal(t, model.SideCredit, tx.Entries[1].Side)
}

func TestPostTransaction_Unbalanced(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	_, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("100.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("90.00")},
		},
	})
	var uerr *UnbalancedTransactionError
	require.ErrorAs(t, err, &uerr)
	assert.True(t, uerr.DebitTotal.Equal(dec("100.00")))
	assert.True(t, uerr.CreditTotal.Equal(dec("90.00")))

	// Nothing persisted.
	txs, err := store.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
	entries, err := store.EntriesByAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostTransaction_NonPositiveAmount(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	tests := []struct {
		name   string
		amount string
	}{
		{"zero", "0"},
		{"negative", "-5.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PostTransaction(ctx, PostParams{
				Lines: []Line{
					{AccountID: cash.ID, Side: model.SideDebit, Amount: dec(tt.amount)},
					{AccountID: stock.ID, Side: model.SideCredit, Amount: dec(tt.amount)},
				},
			})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "amount", verr.Field)
		})
	}
}

func TestPostTransaction_MinimumEntryCount(t *testing.T) {
	e, _ := newEngine(t)

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)

	_, err := e.PostTransaction(context.Background(), PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("100.00")},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "entries", verr.Field)
}

func TestPostTransaction_InvalidSide(t *testing.T) {
	e, _ := newEngine(t)

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)

	_, err := e.PostTransaction(context.Background(), PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: "Dr", Amount: dec("100.00")},
			{AccountID: cash.ID, Side: model.SideCredit, Amount: dec("100.00")},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "side", verr.Field)
}

func TestPostTransaction_UnknownAccount(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)

	_, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("100.00")},
			{AccountID: "no-such-account", Side: model.SideCredit, Amount: dec("100.00")},
		},
	})
	var uerr *UnknownAccountError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "no-such-account", uerr.AccountID)

	txs, err := store.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestPostTransaction_MultiLeg(t *testing.T) {
	// One debit split across two credits still balances.
	e, _ := newEngine(t)

	supplies := mustAccount(t, e, "Supplies", model.AccountTypeAsset)
	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	payable := mustAccount(t, e, "Accounts Payable", model.AccountTypeLiability)

	tx, err := e.PostTransaction(context.Background(), PostParams{
		Lines: []Line{
			{AccountID: supplies.ID, Side: model.SideDebit, Amount: dec("500.00")},
			{AccountID: cash.ID, Side: model.SideCredit, Amount: dec("200.00")},
			{AccountID: payable.ID, Side: model.SideCredit, Amount: dec("300.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, tx.Entries, 3)
	debit, credit := e.Balance(tx)
	assert.True(t, debit.Equal(credit))
	assert.Equal(t, []int{1, 2, 3}, []int{tx.Entries[0].Order, tx.Entries[1].Order, tx.Entries[2].Order})
}

func TestPostTransaction_DefaultsTimestamp(t *testing.T) {
	e, _ := newEngine(t)

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	before := time.Now().UTC()
	tx, err := e.PostTransaction(context.Background(), PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("1.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("1.00")},
		},
	})
	require.NoError(t, err)
	assert.False(t, tx.Timestamp.Before(before))

	// A supplied timestamp is kept.
	when := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	tx, err = e.PostTransaction(context.Background(), PostParams{
		Timestamp: when,
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("1.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("1.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, when, tx.Timestamp)
}

func TestAccountBalance_SignedByNormalSide(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)
	rent := mustAccount(t, e, "Rent Expense", model.AccountTypeExpense)

	_, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("25000.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("25000.00")},
		},
	})
	require.NoError(t, err)

	_, err = e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: rent.ID, Side: model.SideDebit, Amount: dec("1200.00")},
			{AccountID: cash.ID, Side: model.SideCredit, Amount: dec("1200.00")},
		},
	})
	require.NoError(t, err)

	balance, err := e.AccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("23800.00")), "cash: debit-normal, 25000 in, 1200 out")

	balance, err = e.AccountBalance(ctx, stock.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("25000.00")), "stock: credit-normal")

	balance, err = e.AccountBalance(ctx, rent.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("1200.00")))
}

func TestBalanceInvariant_AllStoredTransactions(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)
	revenue := mustAccount(t, e, "Service Revenue", model.AccountTypeRevenue)

	amounts := []string{"25000.00", "100.50", "0.01", "9999999.99"}
	for _, amt := range amounts {
		credit := stock.ID
		if amt == "100.50" {
			credit = revenue.ID
		}
		_, err := e.PostTransaction(ctx, PostParams{
			Lines: []Line{
				{AccountID: cash.ID, Side: model.SideDebit, Amount: dec(amt)},
				{AccountID: credit, Side: model.SideCredit, Amount: dec(amt)},
			},
		})
		require.NoError(t, err)
	}

	txs, err := store.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, len(amounts))
	for _, tx := range txs {
		debit, credit := tx.Totals()
		assert.True(t, debit.Equal(credit), "transaction %s: %s != %s", tx.ID, debit, credit)
	}
}

// failingStore wraps the memory store and fails the atomic commit.
type failingStore struct {
	storage.Store
}

var errStorage = errors.New("constraint violation")

func (f *failingStore) CreateTransaction(context.Context, model.Transaction, []model.Entry) error {
	return errStorage
}

func TestPostTransaction_StorageErrorPropagated(t *testing.T) {
	mem := memory.NewStore()
	e := NewEngine(&failingStore{Store: mem})
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	_, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("10.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("10.00")},
		},
	})
	require.ErrorIs(t, err, errStorage)

	// The underlying store saw no partial write.
	txs, err := mem.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	published []events.TransactionPosted
	fail      bool
}

func (r *recordingPublisher) Publish(_ context.Context, event events.TransactionPosted) error {
	if r.fail {
		return errors.New("broker unavailable")
	}
	r.published = append(r.published, event)
	return nil
}

func TestPostTransaction_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEngine(memory.NewStore(), WithPublisher(pub))
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	tx, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("10.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("10.00")},
		},
	})
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Equal(t, tx.ID, pub.published[0].TransactionID)
	assert.True(t, pub.published[0].Total.Equal(dec("10.00")))
	require.Len(t, pub.published[0].Lines, 2)
}

func TestPostTransaction_PublishFailureDoesNotFailPost(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	e := NewEngine(memory.NewStore(), WithPublisher(pub))
	ctx := context.Background()

	cash := mustAccount(t, e, "Cash", model.AccountTypeAsset)
	stock := mustAccount(t, e, "Common Stock", model.AccountTypeEquity)

	tx, err := e.PostTransaction(ctx, PostParams{
		Lines: []Line{
			{AccountID: cash.ID, Side: model.SideDebit, Amount: dec("10.00")},
			{AccountID: stock.ID, Side: model.SideCredit, Amount: dec("10.00")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
}
