// Package grpc 是對外的 driving adapter：
// 解析請求、呼叫 usecase、把領域錯誤對應到 status code
package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

type BankServer struct {
	pb.UnimplementedBankServiceServer
	ledger *usecase.LedgerEngine
	users  *usecase.UserUseCase
	logger *zap.Logger
}

func NewBankServer(ledger *usecase.LedgerEngine, users *usecase.UserUseCase, logger *zap.Logger) *BankServer {
	return &BankServer{
		ledger: ledger,
		users:  users,
		logger: logger,
	}
}

func (s *BankServer) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "email, password and name are required")
	}

	user, account, signed, err := s.users.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, statusFromDomain(err)
	}

	return &pb.RegisterResponse{
		UserId:        user.ID,
		AccountId:     account.ID,
		AccountNumber: account.Number,
		Token:         signed,
	}, nil
}

func (s *BankServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	user, signed, err := s.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, statusFromDomain(err)
	}

	return &pb.LoginResponse{
		UserId: user.ID,
		Token:  signed,
	}, nil
}

func (s *BankServer) Deposit(ctx context.Context, req *pb.DepositRequest) (*pb.TransactionView, error) {
	account, err := s.callerAccount(ctx)
	if err != nil {
		return nil, err
	}

	refID, err := parseRefID(req.RefId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid ref_id: "+err.Error())
	}

	view, err := s.ledger.Deposit(ctx, refID, account.ID, req.Amount, req.Description)
	if err != nil {
		return nil, statusFromDomain(err)
	}
	return toPBView(view), nil
}

func (s *BankServer) Transfer(ctx context.Context, req *pb.TransferRequest) (*pb.TransactionView, error) {
	account, err := s.callerAccount(ctx)
	if err != nil {
		return nil, err
	}
	if req.ToAccountNumber == "" {
		return nil, status.Error(codes.InvalidArgument, "to_account_number is required")
	}
	refID, err := parseRefID(req.RefId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid ref_id: "+err.Error())
	}

	view, err := s.ledger.Transfer(ctx, refID, account.ID, req.ToAccountNumber, req.Amount, req.Description, req.RecipientRef)
	if err != nil {
		return nil, statusFromDomain(err)
	}
	return toPBView(view), nil
}

func (s *BankServer) GetBalance(ctx context.Context, req *pb.GetBalanceRequest) (*pb.GetBalanceResponse, error) {
	account, err := s.callerAccount(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetAccountBalance(ctx, account.ID)
	if err != nil {
		return nil, statusFromDomain(err)
	}
	return &pb.GetBalanceResponse{
		AccountId:     account.ID,
		AccountNumber: account.Number,
		Balance:       balance,
	}, nil
}

func (s *BankServer) GetTransactions(ctx context.Context, req *pb.GetTransactionsRequest) (*pb.GetTransactionsResponse, error) {
	account, err := s.callerAccount(ctx)
	if err != nil {
		return nil, err
	}

	views, err := s.ledger.GetAccountTransactions(ctx, account.ID)
	if err != nil {
		return nil, statusFromDomain(err)
	}

	out := make([]*pb.TransactionView, 0, len(views))
	for _, view := range views {
		out = append(out, toPBView(view))
	}
	return &pb.GetTransactionsResponse{Transactions: out}, nil
}

// callerAccount 由 context 的身份解析呼叫者本人的帳戶
func (s *BankServer) callerAccount(ctx context.Context) (*domain.Account, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing caller identity")
	}
	account, err := s.ledger.GetOwnerAccount(ctx, userID)
	if err != nil {
		return nil, statusFromDomain(err)
	}
	return account, nil
}

// statusFromDomain 以 errors.Is 分辨錯誤種類，不比對錯誤字串
// 領域錯誤是呼叫端問題（4xx 等級），其餘一律視為儲存層故障
func statusFromDomain(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrSourceAccountNotFound),
		errors.Is(err, domain.ErrRecipientAccountNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrAccountAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvalidPassword):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func toPBView(view *domain.TransactionView) *pb.TransactionView {
	return &pb.TransactionView{
		Id:                view.ID,
		RefId:             view.RefID.String(),
		Type:              toPBType(view.Type),
		Amount:            view.Amount,
		FromAccountId:     view.From,
		ToAccountId:       view.To,
		FromAccountNumber: view.FromNumber,
		ToAccountNumber:   view.ToNumber,
		Description:       view.Description,
		RecipientRef:      view.RecipientRef,
		Status:            view.Status,
		CreatedAt:         view.CreatedAt,
		Direction:         toPBDirection(view.Direction),
	}
}

func toPBType(t domain.TransactionType) pb.TransactionType {
	switch t {
	case domain.TransactionTypeDeposit:
		return pb.TransactionType_DEPOSIT
	case domain.TransactionTypeTransfer:
		return pb.TransactionType_TRANSFER
	default:
		return pb.TransactionType_TRANSACTION_TYPE_UNSPECIFIED
	}
}

func toPBDirection(d domain.Direction) pb.Direction {
	switch d {
	case domain.DirectionIn:
		return pb.Direction_IN
	case domain.DirectionOut:
		return pb.Direction_OUT
	default:
		return pb.Direction_DIRECTION_UNSPECIFIED
	}
}

// parseRefID 解析呼叫端帶的外部追蹤號；空值由伺服器產生
func parseRefID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(raw)
}
