package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/token"
)

// UserUseCase 使用者註冊 / 登入
// 註冊成功時一併開立該使用者唯一的帳戶
type UserUseCase struct {
	users    UserStore
	accounts AccountStore
	issuer   *token.Issuer
	logger   *zap.Logger
}

func NewUserUseCase(users UserStore, accounts AccountStore, issuer *token.Issuer, logger *zap.Logger) *UserUseCase {
	return &UserUseCase{
		users:    users,
		accounts: accounts,
		issuer:   issuer,
		logger:   logger,
	}
}

// Register 註冊新使用者並開戶
//
// 回傳:
//
//	*domain.User: 建立的使用者
//	*domain.Account: 一併開立的帳戶（餘額 0）
//	string: 存取權杖
func (u *UserUseCase) Register(ctx context.Context, email, password, name string) (*domain.User, *domain.Account, string, error) {
	_, err := u.users.FindUserByEmail(ctx, email)
	if err == nil {
		return nil, nil, "", domain.ErrUserAlreadyExists
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, "", err
	}

	user, err := u.users.CreateUser(ctx, &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
	})
	if err != nil {
		return nil, nil, "", err
	}

	account, err := createAccountWithNumber(ctx, u.accounts, user.ID)
	if err != nil {
		return nil, nil, "", err
	}

	signed, err := u.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, nil, "", err
	}

	u.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("account_id", account.ID),
	)
	return user, account, signed, nil
}

// Login 驗證帳密並簽發權杖
func (u *UserUseCase) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := u.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", domain.ErrInvalidPassword
	}

	signed, err := u.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, signed, nil
}
