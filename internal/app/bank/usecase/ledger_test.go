package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/metrics"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
)

func newTestEngine(t *testing.T) (*usecase.LedgerEngine, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	engine := usecase.NewLedgerEngine(store, zap.NewNop(), metrics.NewLedger(prometheus.NewRegistry()))
	return engine, store
}

// newTestAccount 直接在儲存層開戶，跳過註冊流程
func newTestAccount(t *testing.T, store *memory.Store, ownerID int64, number string) *domain.Account {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), ownerID, number)
	require.NoError(t, err)
	return account
}

func TestDeposit(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	account := newTestAccount(t, store, 1, "1000000001")

	view, err := engine.Deposit(ctx, uuid.Nil, account.ID, 500, "payday")
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeDeposit, view.Type)
	assert.Equal(t, domain.DirectionIn, view.Direction)
	assert.Equal(t, int64(500), view.Amount)
	assert.Equal(t, account.ID, view.From)
	assert.Equal(t, account.ID, view.To)
	assert.Equal(t, account.Number, view.FromNumber)
	assert.Equal(t, account.Number, view.ToNumber)
	assert.Equal(t, domain.TransactionStatusCompleted, view.Status)
	assert.NotEqual(t, uuid.Nil, view.RefID)
	assert.NotZero(t, view.CreatedAt)

	balance, err := engine.GetAccountBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
}

func TestDepositInvalidAmount(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	account := newTestAccount(t, store, 1, "1000000001")

	for _, amount := range []int64{0, -1, -500} {
		_, err := engine.Deposit(ctx, uuid.Nil, account.ID, amount, "")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount=%d", amount)
	}

	balance, err := engine.GetAccountBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, balance, "failed deposits must not touch the balance")
}

func TestDepositUnknownAccount(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Deposit(context.Background(), uuid.Nil, 999, 100, "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestDepositIdempotentReplay(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	account := newTestAccount(t, store, 1, "1000000001")
	refID := uuid.New()

	first, err := engine.Deposit(ctx, refID, account.ID, 300, "once")
	require.NoError(t, err)

	// 同一個 RefID 重送：不重複入帳，回傳原本那筆
	second, err := engine.Deposit(ctx, refID, account.ID, 300, "once")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RefID, second.RefID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	balance, err := engine.GetAccountBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	history, err := engine.GetAccountTransactions(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTransfer(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	alice := newTestAccount(t, store, 1, "1000000001")
	bob := newTestAccount(t, store, 2, "1000000002")

	_, err := engine.Deposit(ctx, uuid.Nil, alice.ID, 1000, "")
	require.NoError(t, err)

	view, err := engine.Transfer(ctx, uuid.Nil, alice.ID, bob.Number, 400, "rent", "bob")
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeTransfer, view.Type)
	assert.Equal(t, domain.DirectionOut, view.Direction)
	assert.Equal(t, alice.ID, view.From)
	assert.Equal(t, bob.ID, view.To)
	assert.Equal(t, alice.Number, view.FromNumber)
	assert.Equal(t, bob.Number, view.ToNumber)
	assert.Equal(t, "rent", view.Description)
	assert.Equal(t, "bob", view.RecipientRef)

	aliceBalance, err := engine.GetAccountBalance(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), aliceBalance)

	bobBalance, err := engine.GetAccountBalance(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), bobBalance)
}

// 前置條件檢查順序固定，第一個失敗者決定回傳的錯誤
func TestTransferPreconditionOrder(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	alice := newTestAccount(t, store, 1, "1000000001")
	bob := newTestAccount(t, store, 2, "1000000002")

	_, err := engine.Deposit(ctx, uuid.Nil, alice.ID, 100, "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		from    int64
		to      string
		amount  int64
		wantErr error
	}{
		{"非正金額優先於來源不存在", 999, "9999999999", 0, domain.ErrInvalidAmount},
		{"非正金額優先於餘額不足", alice.ID, bob.Number, -50, domain.ErrInvalidAmount},
		{"來源不存在優先於收款方不存在", 999, "9999999999", 10, domain.ErrSourceAccountNotFound},
		{"收款方不存在優先於餘額不足", alice.ID, "9999999999", 100000, domain.ErrRecipientAccountNotFound},
		{"轉給自己優先於餘額不足", alice.ID, alice.Number, 100000, domain.ErrSelfTransfer},
		{"餘額不足", alice.ID, bob.Number, 101, domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Transfer(ctx, uuid.Nil, tt.from, tt.to, tt.amount, "", "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// 所有失敗都不能留下任何痕跡
	balance, err := engine.GetAccountBalance(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	history, err := engine.GetAccountTransactions(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the seed deposit should exist")
}

func TestTransferIdempotentReplay(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	alice := newTestAccount(t, store, 1, "1000000001")
	bob := newTestAccount(t, store, 2, "1000000002")

	_, err := engine.Deposit(ctx, uuid.Nil, alice.ID, 500, "")
	require.NoError(t, err)

	refID := uuid.New()
	first, err := engine.Transfer(ctx, refID, alice.ID, bob.Number, 500, "", "")
	require.NoError(t, err)

	// 重送：餘額已是 0，若重複執行會碰到餘額不足。冪等重放必須直接回原紀錄
	second, err := engine.Transfer(ctx, refID, alice.ID, bob.Number, 500, "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	aliceBalance, err := engine.GetAccountBalance(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, aliceBalance)

	bobBalance, err := engine.GetAccountBalance(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bobBalance)
}

func TestHistoryDirectionsAndOrder(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	alice := newTestAccount(t, store, 1, "1000000001")
	bob := newTestAccount(t, store, 2, "1000000002")

	_, err := engine.Deposit(ctx, uuid.Nil, alice.ID, 1000, "seed")
	require.NoError(t, err)
	_, err = engine.Transfer(ctx, uuid.Nil, alice.ID, bob.Number, 200, "", "")
	require.NoError(t, err)
	_, err = engine.Deposit(ctx, uuid.Nil, bob.ID, 50, "")
	require.NoError(t, err)
	_, err = engine.Transfer(ctx, uuid.Nil, bob.ID, alice.Number, 100, "", "")
	require.NoError(t, err)

	// alice 視角：新到舊，收到的轉帳是 IN，轉出去的是 OUT，存款永遠是 IN
	aliceHistory, err := engine.GetAccountTransactions(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceHistory, 3)

	assert.Equal(t, domain.TransactionTypeTransfer, aliceHistory[0].Type)
	assert.Equal(t, domain.DirectionIn, aliceHistory[0].Direction)
	assert.Equal(t, bob.Number, aliceHistory[0].FromNumber)

	assert.Equal(t, domain.TransactionTypeTransfer, aliceHistory[1].Type)
	assert.Equal(t, domain.DirectionOut, aliceHistory[1].Direction)
	assert.Equal(t, bob.Number, aliceHistory[1].ToNumber)

	assert.Equal(t, domain.TransactionTypeDeposit, aliceHistory[2].Type)
	assert.Equal(t, domain.DirectionIn, aliceHistory[2].Direction)

	// bob 視角的同一批交易
	bobHistory, err := engine.GetAccountTransactions(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobHistory, 3)
	assert.Equal(t, domain.DirectionOut, bobHistory[0].Direction)
	assert.Equal(t, domain.DirectionIn, bobHistory[1].Direction)
	assert.Equal(t, domain.DirectionIn, bobHistory[2].Direction)
}

// 並發搶同一筆餘額：只能有一邊成功，餘額絕不為負
func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	source := newTestAccount(t, store, 1, "1000000001")

	const contenders = 8
	recipients := make([]*domain.Account, contenders)
	for i := range recipients {
		recipients[i] = newTestAccount(t, store, int64(i+2), fmt.Sprintf("20000000%02d", i))
	}

	_, err := engine.Deposit(ctx, uuid.Nil, source.ID, 1000, "")
	require.NoError(t, err)

	// 每個 goroutine 都想把全額轉走
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = engine.Transfer(ctx, uuid.Nil, source.ID, recipients[idx].Number, 1000, "", "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one contender may win the balance")

	sourceBalance, err := engine.GetAccountBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Zero(t, sourceBalance)

	// 總額守恆
	var total int64 = sourceBalance
	for _, recipient := range recipients {
		balance, err := engine.GetAccountBalance(ctx, recipient.ID)
		require.NoError(t, err)
		total += balance
	}
	assert.Equal(t, int64(1000), total)
}

func TestGetOwnerAccount(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	account := newTestAccount(t, store, 42, "1000000001")

	found, err := engine.GetOwnerAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = engine.GetOwnerAccount(ctx, 43)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
