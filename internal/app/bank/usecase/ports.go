package usecase

import (
	"context"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
)

// AccountStore 帳戶存取介面
type AccountStore interface {
	// CreateAccount 以 ownerID 與對外帳號建立餘額為 0 的新帳戶
	// 帳號碰撞回傳 domain.ErrAccountNumberTaken，呼叫端換號重試
	CreateAccount(ctx context.Context, ownerID int64, number string) (*domain.Account, error)
	// FindAccountByID 以內部 ID 查帳戶
	FindAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	// FindAccountByNumber 以對外帳號查帳戶
	FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	// FindAccountByOwner 以擁有者查帳戶（每人恰一個）
	FindAccountByOwner(ctx context.Context, ownerID int64) (*domain.Account, error)
}

// TransactionStore 交易紀錄查詢介面
type TransactionStore interface {
	// FindTransactionsByParticipant 回傳帳戶作為來源或目的參與的所有交易，新到舊
	FindTransactionsByParticipant(ctx context.Context, accountID int64) ([]*domain.Transaction, error)
}

// LedgerStore 是帳務系統的儲存端口
// PostTransaction 是唯一的餘額寫入路徑：
// 建立交易紀錄與調整餘額必須是同一個原子單位，不得出現部分寫入
type LedgerStore interface {
	AccountStore
	TransactionStore
	// PostTransaction 原子套用一筆交易：
	//   - 依 RefID 冪等，重放回傳已提交紀錄、不重複套用
	//   - 在帳戶序列化（鎖定）之下重新驗證存在性與餘額
	PostTransaction(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error)
}

// UserStore 使用者存取介面
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// Store 是完整儲存後端需要實作的集合，cmd/server 依設定挑選 mysql 或 memory 實作
type Store interface {
	LedgerStore
	UserStore
}
