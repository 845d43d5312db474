package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/metrics"
)

// LedgerEngine 是核心業務邏輯層：唯一允許變更餘額、建立交易紀錄的元件
// 引擎負責前置條件檢查（順序固定，保證錯誤可預期），
// 實際的 check-and-apply 由儲存層在帳戶序列化之下原子執行
type LedgerEngine struct {
	store   LedgerStore
	logger  *zap.Logger
	metrics *metrics.Ledger
}

func NewLedgerEngine(store LedgerStore, logger *zap.Logger, m *metrics.Ledger) *LedgerEngine {
	return &LedgerEngine{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Deposit 存款
//
// refID 是外部追蹤號（冪等鍵），uuid.Nil 時由引擎產生
//
// 前置條件（依序檢查）:
//  1. amount > 0，否則 domain.ErrInvalidAmount
//  2. 帳戶存在，否則 domain.ErrAccountNotFound
//
// 成功時原子完成「建立 DEPOSIT 紀錄 + 餘額加值」，回傳方向為 IN 的交易投影
func (e *LedgerEngine) Deposit(ctx context.Context, refID uuid.UUID, accountID int64, amount int64, description string) (*domain.TransactionView, error) {
	view, err := e.deposit(ctx, refID, accountID, amount, description)
	e.metrics.ObserveTransaction(domain.TransactionTypeDeposit.String(), err)
	return view, err
}

func (e *LedgerEngine) deposit(ctx context.Context, refID uuid.UUID, accountID int64, amount int64, description string) (*domain.TransactionView, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	account, err := e.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if refID == uuid.Nil {
		refID = uuid.New()
	}
	tran := &domain.Transaction{
		RefID:       refID,
		Type:        domain.TransactionTypeDeposit,
		From:        account.ID,
		To:          account.ID,
		Amount:      amount,
		Description: description,
		Status:      domain.TransactionStatusCompleted,
	}

	posted, err := e.store.PostTransaction(ctx, tran)
	if err != nil {
		return nil, err
	}

	e.logger.Info("deposit posted",
		zap.Int64("account_id", account.ID),
		zap.Int64("amount", amount),
		zap.String("ref_id", posted.RefID.String()),
	)

	return &domain.TransactionView{
		Transaction: *posted,
		Direction:   domain.DirectionIn,
		FromNumber:  account.Number,
		ToNumber:    account.Number,
	}, nil
}

// Transfer 轉帳：目的地以「對外帳號」指定，由引擎解析成帳戶
//
// 前置條件依序檢查，第一個失敗者勝出（測試依賴此順序）:
//  1. amount > 0              → domain.ErrInvalidAmount
//  2. 來源帳戶存在            → domain.ErrSourceAccountNotFound
//  3. 收款帳號可解析          → domain.ErrRecipientAccountNotFound
//  4. 來源 != 目的            → domain.ErrSelfTransfer
//  5. 來源餘額足夠            → domain.ErrInsufficientBalance
//
// 紀錄建立、扣款、入帳三個寫入全部成功或全部不發生；
// 餘額檢查會在儲存層鎖定之下重新執行，並發扣款不可能同時通過
func (e *LedgerEngine) Transfer(ctx context.Context, refID uuid.UUID, fromAccountID int64, toNumber string, amount int64, description, recipientRef string) (*domain.TransactionView, error) {
	view, err := e.transfer(ctx, refID, fromAccountID, toNumber, amount, description, recipientRef)
	e.metrics.ObserveTransaction(domain.TransactionTypeTransfer.String(), err)
	return view, err
}

func (e *LedgerEngine) transfer(ctx context.Context, refID uuid.UUID, fromAccountID int64, toNumber string, amount int64, description, recipientRef string) (*domain.TransactionView, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	from, err := e.store.FindAccountByID(ctx, fromAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrSourceAccountNotFound
		}
		return nil, err
	}

	to, err := e.store.FindAccountByNumber(ctx, toNumber)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrRecipientAccountNotFound
		}
		return nil, err
	}

	if from.ID == to.ID {
		return nil, domain.ErrSelfTransfer
	}

	if from.Balance < amount {
		return nil, domain.ErrInsufficientBalance
	}

	if refID == uuid.Nil {
		refID = uuid.New()
	}
	tran := &domain.Transaction{
		RefID:        refID,
		Type:         domain.TransactionTypeTransfer,
		From:         from.ID,
		To:           to.ID,
		Amount:       amount,
		Description:  description,
		RecipientRef: recipientRef,
		Status:       domain.TransactionStatusCompleted,
	}

	posted, err := e.store.PostTransaction(ctx, tran)
	if err != nil {
		return nil, err
	}

	e.logger.Info("transfer posted",
		zap.Int64("from_account_id", from.ID),
		zap.Int64("to_account_id", to.ID),
		zap.Int64("amount", amount),
		zap.String("ref_id", posted.RefID.String()),
	)

	return &domain.TransactionView{
		Transaction: *posted,
		Direction:   domain.DirectionOut,
		FromNumber:  from.Number,
		ToNumber:    to.Number,
	}, nil
}

// GetAccountBalance 取得物化餘額
func (e *LedgerEngine) GetAccountBalance(ctx context.Context, accountID int64) (int64, error) {
	account, err := e.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	e.metrics.ObserveBalanceRead()
	return account.Balance, nil
}

// GetAccountTransactions 取得帳戶參與的所有交易（新到舊），
// 每筆以 accountID 的視角附上方向註記與雙方帳號
func (e *LedgerEngine) GetAccountTransactions(ctx context.Context, accountID int64) ([]*domain.TransactionView, error) {
	account, err := e.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	trans, err := e.store.FindTransactionsByParticipant(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveHistoryRead()

	// 同一帳戶會重複出現，先查過的帳號快取起來
	numbers := map[int64]string{account.ID: account.Number}
	views := make([]*domain.TransactionView, 0, len(trans))
	for _, tran := range trans {
		views = append(views, &domain.TransactionView{
			Transaction: *tran,
			Direction:   tran.DirectionFor(account.ID),
			FromNumber:  e.lookupNumber(ctx, numbers, tran.From),
			ToNumber:    e.lookupNumber(ctx, numbers, tran.To),
		})
	}
	return views, nil
}

// GetOwnerAccount 以擁有者取得帳戶（邊界層解析呼叫者身份用）
func (e *LedgerEngine) GetOwnerAccount(ctx context.Context, ownerID int64) (*domain.Account, error) {
	return e.store.FindAccountByOwner(ctx, ownerID)
}

// lookupNumber 查對外帳號；帳戶正常營運下不會刪除，查不到以空字串呈現
func (e *LedgerEngine) lookupNumber(ctx context.Context, cache map[int64]string, accountID int64) string {
	if number, ok := cache[accountID]; ok {
		return number
	}
	account, err := e.store.FindAccountByID(ctx, accountID)
	if err != nil {
		e.logger.Warn("counterparty account lookup failed",
			zap.Int64("account_id", accountID), zap.Error(err))
		cache[accountID] = ""
		return ""
	}
	cache[accountID] = account.Number
	return account.Number
}
