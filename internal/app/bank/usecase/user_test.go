package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/token"
)

func newTestUserUseCase(t *testing.T) (*usecase.UserUseCase, *token.Issuer, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	issuer := token.NewIssuer("test-secret", time.Hour)
	return usecase.NewUserUseCase(store, store, issuer, zap.NewNop()), issuer, store
}

func TestRegister(t *testing.T) {
	uc, issuer, store := newTestUserUseCase(t)
	ctx := context.Background()

	user, account, signed, err := uc.Register(ctx, "alice@bank.dev", "s3cret", "Alice")
	require.NoError(t, err)

	assert.Equal(t, "alice@bank.dev", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEqual(t, "s3cret", user.PasswordHash, "password must be stored hashed")

	// 註冊即開戶：帳戶綁定使用者，餘額 0，帳號 10 位數
	assert.Equal(t, user.ID, account.OwnerID)
	assert.Zero(t, account.Balance)
	assert.Len(t, account.Number, 10)

	// 權杖可驗證且指回本人
	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)

	found, err := store.FindAccountByOwner(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	uc, _, _ := newTestUserUseCase(t)
	ctx := context.Background()

	_, _, _, err := uc.Register(ctx, "alice@bank.dev", "s3cret", "Alice")
	require.NoError(t, err)

	_, _, _, err = uc.Register(ctx, "alice@bank.dev", "other", "Imposter")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestLogin(t *testing.T) {
	uc, issuer, _ := newTestUserUseCase(t)
	ctx := context.Background()

	registered, _, _, err := uc.Register(ctx, "alice@bank.dev", "s3cret", "Alice")
	require.NoError(t, err)

	user, signed, err := uc.Login(ctx, "alice@bank.dev", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
}

func TestLoginWrongPassword(t *testing.T) {
	uc, _, _ := newTestUserUseCase(t)
	ctx := context.Background()

	_, _, _, err := uc.Register(ctx, "alice@bank.dev", "s3cret", "Alice")
	require.NoError(t, err)

	_, _, err = uc.Login(ctx, "alice@bank.dev", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)
}

func TestLoginUnknownUser(t *testing.T) {
	uc, _, _ := newTestUserUseCase(t)

	_, _, err := uc.Login(context.Background(), "ghost@bank.dev", "whatever")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
