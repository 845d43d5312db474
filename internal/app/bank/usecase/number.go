package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
)

// 對外帳號為 10 位數字串，範圍 [1000000000, 9999999999]
// 產生方式不保證無碰撞，唯一性靠儲存層約束 + 換號重試
const (
	accountNumberMin  = 1_000_000_000
	accountNumberSpan = 9_000_000_000
	maxNumberAttempts = 5
)

// NewAccountNumber 產生一組 10 位數帳號
func NewAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(accountNumberSpan))
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	return fmt.Sprintf("%d", accountNumberMin+n.Int64()), nil
}

// createAccountWithNumber 產生帳號並建立帳戶，碰撞時換號重試
// 重試用盡回傳 domain.ErrNumberExhausted（視同儲存層故障，非呼叫端錯誤）
func createAccountWithNumber(ctx context.Context, store AccountStore, ownerID int64) (*domain.Account, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		number, err := NewAccountNumber()
		if err != nil {
			return nil, err
		}
		account, err := store.CreateAccount(ctx, ownerID, number)
		if errors.Is(err, domain.ErrAccountNumberTaken) {
			continue
		}
		return account, err
	}
	return nil, domain.ErrNumberExhausted
}
