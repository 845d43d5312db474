// Package memory 是以單一 Mutex 序列化所有寫入的儲存實作
// 搭配 WAL 可在重啟後重放回完整狀態；WAL 為 nil 時是純記憶體（測試用）
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// walEntry WAL 紀錄：使用者建立、開戶、交易三種
// 帳戶快照只記建立當下（餘額 0），餘額由交易重放推回
type walEntry struct {
	Kind        string              `json:"kind"`
	User        *domain.User        `json:"user,omitempty"`
	Account     *domain.Account     `json:"account,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

const (
	entryKindUser        = "user"
	entryKindAccount     = "account"
	entryKindTransaction = "transaction"
)

// Store 記憶體儲存
//
// 結構:
//
//	accounts / users: 主索引 (ID → 物件)
//	numberIndex / ownerIndex / emailIndex: 唯一性索引
//	transactions: append-only 交易序列（尾端最新）
//	processed: RefID → 已提交交易，冪等重放用
type Store struct {
	mu sync.RWMutex

	accounts    map[int64]*domain.Account
	numberIndex map[string]int64
	ownerIndex  map[int64]int64

	users      map[int64]*domain.User
	emailIndex map[string]int64

	transactions []*domain.Transaction
	processed    map[uuid.UUID]*domain.Transaction

	nextUserID    int64
	nextAccountID int64
	nextTranID    int64

	wal *wal.WAL
}

// NewStore 建立 Store 並（若有 WAL）重放歷史紀錄
func NewStore(w *wal.WAL) (*Store, error) {
	s := &Store{
		accounts:    make(map[int64]*domain.Account),
		numberIndex: make(map[string]int64),
		ownerIndex:  make(map[int64]int64),
		users:       make(map[int64]*domain.User),
		emailIndex:  make(map[string]int64),
		processed:   make(map[uuid.UUID]*domain.Transaction),
		wal:         w,
	}
	if w != nil {
		if err := s.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recoverFromWAL 逐筆重放 WAL
// 只有成功套用過的紀錄才會在 WAL 裡，重放理應不會失敗；失敗代表檔案毀損
func (s *Store) recoverFromWAL() error {
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		switch entry.Kind {
		case entryKindUser:
			s.applyUser(entry.User)
		case entryKindAccount:
			s.applyAccount(entry.Account)
		case entryKindTransaction:
			if err := s.applyTransaction(entry.Transaction); err != nil {
				return fmt.Errorf("wal replay: %w", err)
			}
		}
		return nil
	})
}

// --- UserStore ---

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emailIndex[user.Email]; ok {
		return nil, domain.ErrUserAlreadyExists
	}

	created := &domain.User{
		ID:           s.nextUserID + 1,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		CreatedAt:    time.Now().UnixMilli(),
	}
	if err := s.logEntry(walEntry{Kind: entryKindUser, User: created}); err != nil {
		return nil, err
	}
	s.applyUser(created)

	cp := *created
	return &cp, nil
}

func (s *Store) applyUser(user *domain.User) {
	cp := *user
	s.users[cp.ID] = &cp
	s.emailIndex[cp.Email] = cp.ID
	if cp.ID > s.nextUserID {
		s.nextUserID = cp.ID
	}
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// --- AccountStore ---

func (s *Store) CreateAccount(ctx context.Context, ownerID int64, number string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// owner 已有帳戶優先回報，換號重試救不了這種衝突
	if _, ok := s.ownerIndex[ownerID]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	if _, ok := s.numberIndex[number]; ok {
		return nil, domain.ErrAccountNumberTaken
	}

	created := &domain.Account{
		ID:        s.nextAccountID + 1,
		Number:    number,
		OwnerID:   ownerID,
		Balance:   0,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.logEntry(walEntry{Kind: entryKindAccount, Account: created}); err != nil {
		return nil, err
	}
	s.applyAccount(created)

	cp := *created
	return &cp, nil
}

func (s *Store) applyAccount(account *domain.Account) {
	cp := *account
	s.accounts[cp.ID] = &cp
	s.numberIndex[cp.Number] = cp.ID
	s.ownerIndex[cp.OwnerID] = cp.ID
	if cp.ID > s.nextAccountID {
		s.nextAccountID = cp.ID
	}
}

// FindAccountByID 回傳帳戶快照（值拷貝），避免呼叫端越權修改內部狀態
func (s *Store) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.numberIndex[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *Store) FindAccountByOwner(ctx context.Context, ownerID int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ownerIndex[ownerID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

// --- TransactionStore ---

// FindTransactionsByParticipant 新到舊；交易不可變，回傳值拷貝
func (s *Store) FindTransactionsByParticipant(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Transaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tran := s.transactions[i]
		if tran.From == accountID || tran.To == accountID {
			cp := *tran
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- LedgerStore ---

// PostTransaction 在 Mutex 之下原子套用一筆交易
//
// 順序:
//  1. RefID 冪等檢查（重放直接回已提交紀錄）
//  2. 驗證參與帳戶存在、餘額足夠（授權檢查以此處為準，引擎的檢查只定錯誤順序）
//  3. 寫入 WAL 並落盤
//  4. 套用餘額變動、附掛交易序列
//
// 2 失敗時不寫任何東西；3 失敗回傳 ErrWALWriteFailed，狀態不變
func (s *Store) PostTransaction(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if committed, ok := s.processed[tran.RefID]; ok {
		cp := *committed
		return &cp, nil
	}

	if err := s.validate(tran); err != nil {
		return nil, err
	}

	record := *tran
	record.ID = s.nextTranID + 1
	record.CreatedAt = time.Now().UnixMilli()
	record.Status = domain.TransactionStatusCompleted

	if err := s.logEntry(walEntry{Kind: entryKindTransaction, Transaction: &record}); err != nil {
		return nil, err
	}
	if err := s.applyTransaction(&record); err != nil {
		// validate 已通過，這裡理論上到不了；萬一到了代表有程式錯誤
		return nil, err
	}

	cp := record
	return &cp, nil
}

// validate 在鎖內重新驗證交易可否套用
func (s *Store) validate(tran *domain.Transaction) error {
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		if _, ok := s.accounts[tran.To]; !ok {
			return domain.ErrAccountNotFound
		}
	case domain.TransactionTypeTransfer:
		from, ok := s.accounts[tran.From]
		if !ok {
			return domain.ErrSourceAccountNotFound
		}
		if _, ok := s.accounts[tran.To]; !ok {
			return domain.ErrRecipientAccountNotFound
		}
		if from.Balance < tran.Amount {
			return domain.ErrInsufficientBalance
		}
	}
	if tran.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

// applyTransaction 套用餘額變動並記入交易序列（重放共用）
func (s *Store) applyTransaction(tran *domain.Transaction) error {
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		to, ok := s.accounts[tran.To]
		if !ok {
			return domain.ErrAccountNotFound
		}
		to.Balance += tran.Amount
	case domain.TransactionTypeTransfer:
		from, ok := s.accounts[tran.From]
		if !ok {
			return domain.ErrSourceAccountNotFound
		}
		to, ok := s.accounts[tran.To]
		if !ok {
			return domain.ErrRecipientAccountNotFound
		}
		if from.Balance < tran.Amount {
			return domain.ErrInsufficientBalance
		}
		from.Balance -= tran.Amount
		to.Balance += tran.Amount
	}

	cp := *tran
	s.transactions = append(s.transactions, &cp)
	s.processed[cp.RefID] = &cp
	if cp.ID > s.nextTranID {
		s.nextTranID = cp.ID
	}
	return nil
}

// logEntry 寫入 WAL；未設定 WAL 時為 no-op
func (s *Store) logEntry(entry walEntry) error {
	if s.wal == nil {
		return nil
	}
	if err := s.wal.Write(entry); err != nil {
		return domain.ErrWALWriteFailed
	}
	return nil
}

var _ usecase.Store = (*Store)(nil)
