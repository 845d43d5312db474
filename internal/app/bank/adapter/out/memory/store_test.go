package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func newBareStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(nil)
	require.NoError(t, err)
	return store
}

func TestCreateAccountUniqueness(t *testing.T) {
	store := newBareStore(t)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, 1, "1000000001")
	require.NoError(t, err)

	// 同號碼
	_, err = store.CreateAccount(ctx, 2, "1000000001")
	assert.ErrorIs(t, err, domain.ErrAccountNumberTaken)

	// 同擁有者
	_, err = store.CreateAccount(ctx, 1, "1000000002")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newBareStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, &domain.User{Email: "a@b.c", PasswordHash: "x"})
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, &domain.User{Email: "a@b.c", PasswordHash: "y"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestFindAccountReturnsCopy(t *testing.T) {
	store := newBareStore(t)
	ctx := context.Background()

	created, err := store.CreateAccount(ctx, 1, "1000000001")
	require.NoError(t, err)

	found, err := store.FindAccountByID(ctx, created.ID)
	require.NoError(t, err)

	// 呼叫端改快照不能影響內部狀態
	found.Balance = 99999
	again, err := store.FindAccountByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Balance)
}

func TestPostTransactionIdempotency(t *testing.T) {
	store := newBareStore(t)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, 1, "1000000001")
	require.NoError(t, err)

	refID := uuid.New()
	tran := &domain.Transaction{
		RefID:  refID,
		Type:   domain.TransactionTypeDeposit,
		From:   account.ID,
		To:     account.ID,
		Amount: 100,
	}

	first, err := store.PostTransaction(ctx, tran)
	require.NoError(t, err)

	second, err := store.PostTransaction(ctx, &domain.Transaction{
		RefID:  refID,
		Type:   domain.TransactionTypeDeposit,
		From:   account.ID,
		To:     account.ID,
		Amount: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := store.FindAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), found.Balance, "replay must not apply twice")
}

func TestPostTransactionRejectsOverdraw(t *testing.T) {
	store := newBareStore(t)
	ctx := context.Background()

	alice, err := store.CreateAccount(ctx, 1, "1000000001")
	require.NoError(t, err)
	bob, err := store.CreateAccount(ctx, 2, "1000000002")
	require.NoError(t, err)

	_, err = store.PostTransaction(ctx, &domain.Transaction{
		RefID:  uuid.New(),
		Type:   domain.TransactionTypeTransfer,
		From:   alice.ID,
		To:     bob.ID,
		Amount: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// 失敗不留紀錄
	trans, err := store.FindTransactionsByParticipant(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, trans)
}

func TestFindTransactionsByParticipantOrder(t *testing.T) {
	store := newBareStore(t)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, 1, "1000000001")
	require.NoError(t, err)

	for _, amount := range []int64{10, 20, 30} {
		_, err := store.PostTransaction(ctx, &domain.Transaction{
			RefID:  uuid.New(),
			Type:   domain.TransactionTypeDeposit,
			From:   account.ID,
			To:     account.ID,
			Amount: amount,
		})
		require.NoError(t, err)
	}

	trans, err := store.FindTransactionsByParticipant(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, trans, 3)

	// 新到舊
	assert.Equal(t, int64(30), trans[0].Amount)
	assert.Equal(t, int64(20), trans[1].Amount)
	assert.Equal(t, int64(10), trans[2].Amount)
}

// 寫入 WAL 後重開 Store，狀態必須完整重放回來
func TestWALRecovery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := wal.NewWAL(path)
	require.NoError(t, err)

	store, err := NewStore(w)
	require.NoError(t, err)

	user, err := store.CreateUser(ctx, &domain.User{Email: "a@b.c", PasswordHash: "hash", Name: "A"})
	require.NoError(t, err)
	alice, err := store.CreateAccount(ctx, user.ID, "1000000001")
	require.NoError(t, err)
	bob, err := store.CreateAccount(ctx, 99, "1000000002")
	require.NoError(t, err)

	depositRef := uuid.New()
	_, err = store.PostTransaction(ctx, &domain.Transaction{
		RefID: depositRef, Type: domain.TransactionTypeDeposit,
		From: alice.ID, To: alice.ID, Amount: 500,
	})
	require.NoError(t, err)
	_, err = store.PostTransaction(ctx, &domain.Transaction{
		RefID: uuid.New(), Type: domain.TransactionTypeTransfer,
		From: alice.ID, To: bob.ID, Amount: 200,
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// 重開
	w2, err := wal.NewWAL(path)
	require.NoError(t, err)
	defer w2.Close()

	recovered, err := NewStore(w2)
	require.NoError(t, err)

	foundUser, err := recovered.FindUserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, user.ID, foundUser.ID)

	foundAlice, err := recovered.FindAccountByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), foundAlice.Balance)

	foundBob, err := recovered.FindAccountByNumber(ctx, "1000000002")
	require.NoError(t, err)
	assert.Equal(t, int64(200), foundBob.Balance)

	trans, err := recovered.FindTransactionsByParticipant(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, trans, 2)

	// 冪等鍵也要跟著重放：重送不能再入帳
	replayed, err := recovered.PostTransaction(ctx, &domain.Transaction{
		RefID: depositRef, Type: domain.TransactionTypeDeposit,
		From: alice.ID, To: alice.ID, Amount: 500,
	})
	require.NoError(t, err)
	assert.NotZero(t, replayed.ID)

	foundAlice, err = recovered.FindAccountByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), foundAlice.Balance)

	// 重放後的流水號要接續，不可重複配號
	next, err := recovered.PostTransaction(ctx, &domain.Transaction{
		RefID: uuid.New(), Type: domain.TransactionTypeDeposit,
		From: alice.ID, To: alice.ID, Amount: 1,
	})
	require.NoError(t, err)
	assert.Greater(t, next.ID, replayed.ID)
}
