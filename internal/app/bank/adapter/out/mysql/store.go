// Package mysql 是以 GORM/MySQL 實作的持久儲存
// 原子性靠資料庫交易 + SELECT ... FOR UPDATE 悲觀鎖，鎖定順序由 GetLockIDs 固定
package mysql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// sqlUser 對應 users 表
type sqlUser struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;size:191"`
	PasswordHash string `gorm:"size:128"`
	Name         string `gorm:"size:191"`
	CreatedAt    int64  `gorm:"autoCreateTime:milli"`
}

func (*sqlUser) TableName() string {
	return "users"
}

// sqlAccount 對應 accounts 表
// number 與 owner_id 各有唯一索引：帳號不得碰撞、每人恰一帳戶
type sqlAccount struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Number    string `gorm:"uniqueIndex;size:16"`
	OwnerID   int64  `gorm:"uniqueIndex"`
	Balance   int64
	CreatedAt int64 `gorm:"autoCreateTime:milli"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應 transactions 表，建立後不可變更
type sqlTransaction struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	RefID         []byte `gorm:"column:ref_id;type:binary(16);uniqueIndex"`
	FromAccountID int64  `gorm:"index"`
	ToAccountID   int64  `gorm:"index"`
	Amount        int64
	Description   string `gorm:"size:255"`
	RecipientRef  string `gorm:"size:191"`
	Status        string `gorm:"size:16"`
	Type          uint8
	CreatedAt     int64 `gorm:"autoCreateTime:milli"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

type Store struct {
	client *mysql.Client
}

func NewStore(client *mysql.Client) *Store {
	return &Store{client: client}
}

// AutoMigrate 建立缺少的資料表與索引（開發環境便利用，正式環境走既有 schema）
func (s *Store) AutoMigrate() error {
	return s.client.DB().AutoMigrate(&sqlUser{}, &sqlAccount{}, &sqlTransaction{})
}

// --- UserStore ---

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := sqlUser{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
	}
	if err := s.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, err
	}
	return toDomainUser(&row), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row sqlUser
	err := s.client.DB().WithContext(ctx).Where("email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(&row), nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var row sqlUser
	err := s.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return toDomainUser(&row), nil
}

// --- AccountStore ---

func (s *Store) CreateAccount(ctx context.Context, ownerID int64, number string) (*domain.Account, error) {
	row := sqlAccount{
		Number:  number,
		OwnerID: ownerID,
		Balance: 0,
	}
	if err := s.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 同一 owner 重複開戶與帳號碰撞共用唯一鍵錯誤
			// 先分辨是哪一種：owner 已有帳戶優先回報
			var count int64
			s.client.DB().WithContext(ctx).Model(&sqlAccount{}).
				Where("owner_id = ?", ownerID).Count(&count)
			if count > 0 {
				return nil, domain.ErrAccountAlreadyExists
			}
			return nil, domain.ErrAccountNumberTaken
		}
		return nil, err
	}
	return toDomainAccount(&row), nil
}

func (s *Store) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	return s.findAccount(ctx, "id = ?", id)
}

func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.findAccount(ctx, "number = ?", number)
}

func (s *Store) FindAccountByOwner(ctx context.Context, ownerID int64) (*domain.Account, error) {
	return s.findAccount(ctx, "owner_id = ?", ownerID)
}

func (s *Store) findAccount(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&row), nil
}

// --- TransactionStore ---

func (s *Store) FindTransactionsByParticipant(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	var rows []sqlTransaction
	err := s.client.DB().WithContext(ctx).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := toDomainTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tran)
	}
	return out, nil
}

// --- LedgerStore ---

// PostTransaction 在單一資料庫交易內原子套用：
//
//	冪等檢查 → FOR UPDATE 鎖定參與帳戶（遞增順序）→ 重新驗證 → 調整餘額 → 建立紀錄
//
// 任一步失敗整筆回滾，不會出現紀錄存在但餘額未調整的中間狀態
func (s *Store) PostTransaction(ctx context.Context, tran *domain.Transaction) (*domain.Transaction, error) {
	var committed *domain.Transaction

	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 冪等：同 RefID 已提交就直接回傳，不重複套用
		var existing sqlTransaction
		err := tx.Where("ref_id = ?", tran.RefID[:]).First(&existing).Error
		if err == nil {
			committed, err = toDomainTransaction(&existing)
			return err
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSelectTransactionFailed
		}

		// 悲觀鎖，依 GetLockIDs 的遞增順序取鎖避免死鎖
		lockIDs := tran.GetLockIDs()
		var accounts []sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", lockIDs).
			Order("id").
			Find(&accounts).Error; err != nil {
			return err
		}
		accountMap := make(map[int64]*sqlAccount, len(accounts))
		for i := range accounts {
			accountMap[accounts[i].ID] = &accounts[i]
		}

		// 鎖內重新驗證：存在性與餘額以此處為準
		switch tran.Type {
		case domain.TransactionTypeDeposit:
			if _, ok := accountMap[tran.To]; !ok {
				return domain.ErrAccountNotFound
			}
			accountMap[tran.To].Balance += tran.Amount
		case domain.TransactionTypeTransfer:
			from, ok := accountMap[tran.From]
			if !ok {
				return domain.ErrSourceAccountNotFound
			}
			to, ok := accountMap[tran.To]
			if !ok {
				return domain.ErrRecipientAccountNotFound
			}
			if from.Balance < tran.Amount {
				return domain.ErrInsufficientBalance
			}
			from.Balance -= tran.Amount
			to.Balance += tran.Amount
		default:
			return domain.ErrInvalidAmount
		}

		for i := range accounts {
			if err := tx.Save(&accounts[i]).Error; err != nil {
				return err
			}
		}

		record := sqlTransaction{
			RefID:         tran.RefID[:],
			FromAccountID: tran.From,
			ToAccountID:   tran.To,
			Amount:        tran.Amount,
			Description:   tran.Description,
			RecipientRef:  tran.RecipientRef,
			Status:        domain.TransactionStatusCompleted,
			Type:          uint8(tran.Type),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		committed, err = toDomainTransaction(&record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// --- mapping ---

func toDomainUser(row *sqlUser) *domain.User {
	return &domain.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Name:         row.Name,
		CreatedAt:    row.CreatedAt,
	}
}

func toDomainAccount(row *sqlAccount) *domain.Account {
	return &domain.Account{
		ID:        row.ID,
		Number:    row.Number,
		OwnerID:   row.OwnerID,
		Balance:   row.Balance,
		CreatedAt: row.CreatedAt,
	}
}

func toDomainTransaction(row *sqlTransaction) (*domain.Transaction, error) {
	refID, err := uuid.FromBytes(row.RefID)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		ID:           row.ID,
		RefID:        refID,
		Type:         domain.TransactionType(row.Type),
		From:         row.FromAccountID,
		To:           row.ToAccountID,
		Amount:       row.Amount,
		Description:  row.Description,
		RecipientRef: row.RecipientRef,
		Status:       row.Status,
		CreatedAt:    row.CreatedAt,
	}, nil
}

var _ usecase.Store = (*Store)(nil)
