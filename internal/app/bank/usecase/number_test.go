package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
)

func TestNewAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		number, err := NewAccountNumber()
		require.NoError(t, err)
		assert.Len(t, number, 10)
		assert.NotEqual(t, byte('0'), number[0], "number must not have a leading zero")
		seen[number] = true
	}
	// 9e9 種組合抽 1000 次，撞滿是天文數字等級的機率
	assert.Greater(t, len(seen), 990)
}

// collidingAccountStore 前幾次都回報帳號撞號，之後才成功
type collidingAccountStore struct {
	collisions int
	calls      int
	created    *domain.Account
}

func (s *collidingAccountStore) CreateAccount(ctx context.Context, ownerID int64, number string) (*domain.Account, error) {
	s.calls++
	if s.calls <= s.collisions {
		return nil, domain.ErrAccountNumberTaken
	}
	s.created = &domain.Account{ID: 1, Number: number, OwnerID: ownerID}
	return s.created, nil
}

func (s *collidingAccountStore) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (s *collidingAccountStore) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (s *collidingAccountStore) FindAccountByOwner(ctx context.Context, ownerID int64) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func TestCreateAccountWithNumberRetriesOnCollision(t *testing.T) {
	store := &collidingAccountStore{collisions: 2}

	account, err := createAccountWithNumber(context.Background(), store, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, int64(7), account.OwnerID)
	assert.Len(t, account.Number, 10)
}

func TestCreateAccountWithNumberExhaustsRetries(t *testing.T) {
	store := &collidingAccountStore{collisions: maxNumberAttempts}

	_, err := createAccountWithNumber(context.Background(), store, 7)
	assert.ErrorIs(t, err, domain.ErrNumberExhausted)
	assert.Equal(t, maxNumberAttempts, store.calls)
}
