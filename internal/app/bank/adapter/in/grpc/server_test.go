package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/metrics"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/token"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

func newTestServer(t *testing.T) (*BankServer, *token.Issuer) {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)

	logger := zap.NewNop()
	issuer := token.NewIssuer("test-secret", time.Hour)
	engine := usecase.NewLedgerEngine(store, logger, metrics.NewLedger(prometheus.NewRegistry()))
	users := usecase.NewUserUseCase(store, store, issuer, logger)
	return NewBankServer(engine, users, logger), issuer
}

// register 建立使用者並回傳已帶身份的 context 與帳號
func register(t *testing.T, s *BankServer, email string) (context.Context, *pb.RegisterResponse) {
	t.Helper()
	resp, err := s.Register(context.Background(), &pb.RegisterRequest{
		Email:    email,
		Password: "s3cret",
		Name:     "tester",
	})
	require.NoError(t, err)
	return ContextWithUserID(context.Background(), resp.UserId), resp
}

func TestRegisterAndLoginRPC(t *testing.T) {
	s, issuer := newTestServer(t)

	_, resp := register(t, s, "alice@bank.dev")
	assert.Len(t, resp.AccountNumber, 10)
	assert.NotEmpty(t, resp.Token)

	claims, err := issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.UserId, claims.UserID)

	login, err := s.Login(context.Background(), &pb.LoginRequest{Email: "alice@bank.dev", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, resp.UserId, login.UserId)

	// 缺欄位
	_, err = s.Register(context.Background(), &pb.RegisterRequest{Email: "x@y.z"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// 重複註冊
	_, err = s.Register(context.Background(), &pb.RegisterRequest{Email: "alice@bank.dev", Password: "p", Name: "n"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	// 密碼錯誤
	_, err = s.Login(context.Background(), &pb.LoginRequest{Email: "alice@bank.dev", Password: "wrong"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestDepositAndTransferRPC(t *testing.T) {
	s, _ := newTestServer(t)

	aliceCtx, alice := register(t, s, "alice@bank.dev")
	bobCtx, bob := register(t, s, "bob@bank.dev")

	view, err := s.Deposit(aliceCtx, &pb.DepositRequest{Amount: 1000, Description: "seed"})
	require.NoError(t, err)
	assert.Equal(t, pb.TransactionType_DEPOSIT, view.Type)
	assert.Equal(t, pb.Direction_IN, view.Direction)
	assert.NotEmpty(t, view.RefId)

	view, err = s.Transfer(aliceCtx, &pb.TransferRequest{
		ToAccountNumber: bob.AccountNumber,
		Amount:          400,
	})
	require.NoError(t, err)
	assert.Equal(t, pb.Direction_OUT, view.Direction)
	assert.Equal(t, bob.AccountNumber, view.ToAccountNumber)

	balance, err := s.GetBalance(aliceCtx, &pb.GetBalanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Balance)
	assert.Equal(t, alice.AccountNumber, balance.AccountNumber)

	// bob 視角的同一筆轉帳是 IN
	history, err := s.GetTransactions(bobCtx, &pb.GetTransactionsRequest{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, pb.Direction_IN, history.Transactions[0].Direction)
}

func TestRPCErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)

	aliceCtx, alice := register(t, s, "alice@bank.dev")

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"未帶身份", func() error {
			_, err := s.GetBalance(context.Background(), &pb.GetBalanceRequest{})
			return err
		}, codes.Unauthenticated},
		{"金額非正數", func() error {
			_, err := s.Deposit(aliceCtx, &pb.DepositRequest{Amount: 0})
			return err
		}, codes.InvalidArgument},
		{"ref_id 格式錯誤", func() error {
			_, err := s.Deposit(aliceCtx, &pb.DepositRequest{RefId: "not-a-uuid", Amount: 10})
			return err
		}, codes.InvalidArgument},
		{"收款帳號不存在", func() error {
			_, err := s.Transfer(aliceCtx, &pb.TransferRequest{ToAccountNumber: "9999999999", Amount: 10})
			return err
		}, codes.NotFound},
		{"轉給自己", func() error {
			_, err := s.Transfer(aliceCtx, &pb.TransferRequest{ToAccountNumber: alice.AccountNumber, Amount: 10})
			return err
		}, codes.InvalidArgument},
		{"餘額不足", func() error {
			_, bob := register(t, s, "bob@bank.dev")
			_, err := s.Transfer(aliceCtx, &pb.TransferRequest{ToAccountNumber: bob.AccountNumber, Amount: 10})
			return err
		}, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(tt.call()))
		})
	}
}

func TestStatusFromDomain(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrInvalidAmount, codes.InvalidArgument},
		{domain.ErrSelfTransfer, codes.InvalidArgument},
		{domain.ErrAccountNotFound, codes.NotFound},
		{domain.ErrSourceAccountNotFound, codes.NotFound},
		{domain.ErrRecipientAccountNotFound, codes.NotFound},
		{domain.ErrUserNotFound, codes.NotFound},
		{domain.ErrInsufficientBalance, codes.FailedPrecondition},
		{domain.ErrUserAlreadyExists, codes.AlreadyExists},
		{domain.ErrAccountAlreadyExists, codes.AlreadyExists},
		{domain.ErrInvalidPassword, codes.Unauthenticated},
		{domain.ErrWALWriteFailed, codes.Internal},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(statusFromDomain(tt.err)), "err=%v", tt.err)
	}
}

func TestAuthInterceptor(t *testing.T) {
	issuer := token.NewIssuer("test-secret", time.Hour)
	interceptor := AuthInterceptor(issuer)

	signed, err := issuer.Issue(7, "alice@bank.dev")
	require.NoError(t, err)

	passthrough := func(ctx context.Context, req any) (any, error) {
		userID, ok := UserIDFromContext(ctx)
		if !ok {
			return nil, errors.New("identity missing")
		}
		return userID, nil
	}

	t.Run("開放方法不驗證", func(t *testing.T) {
		called := false
		_, err := interceptor(context.Background(), nil,
			&grpc.UnaryServerInfo{FullMethod: pb.BankService_Register_FullMethodName},
			func(ctx context.Context, req any) (any, error) {
				called = true
				return nil, nil
			})
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("有效權杖注入身份", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("authorization", "Bearer "+signed))
		got, err := interceptor(ctx, nil,
			&grpc.UnaryServerInfo{FullMethod: pb.BankService_Deposit_FullMethodName}, passthrough)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
	})

	t.Run("缺權杖", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
		_, err := interceptor(ctx, nil,
			&grpc.UnaryServerInfo{FullMethod: pb.BankService_Deposit_FullMethodName}, passthrough)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("權杖無效", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("authorization", "Bearer garbage"))
		_, err := interceptor(ctx, nil,
			&grpc.UnaryServerInfo{FullMethod: pb.BankService_Deposit_FullMethodName}, passthrough)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}
