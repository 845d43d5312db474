package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	pb "github.com/JoeShih716/go-bank-ledger/proto"
	"github.com/JoeShih716/go-bank-ledger/pkg/token"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

// openMethods 不需權杖的 RPC
var openMethods = map[string]bool{
	pb.BankService_Register_FullMethodName: true,
	pb.BankService_Login_FullMethodName:    true,
}

// AuthInterceptor 驗證 metadata 內的 bearer token，並把呼叫者身份放進 context
// 引擎收到的是已驗證過的身份，授權之後的判斷回到儲存層資料
func AuthInterceptor(issuer *token.Issuer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if openMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization token")
		}
		raw := strings.TrimPrefix(values[0], "Bearer ")

		claims, err := issuer.Verify(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization token")
		}

		return handler(ContextWithUserID(ctx, claims.UserID), req)
	}
}

// ContextWithUserID 注入呼叫者身份（測試也會用到）
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext 取出呼叫者身份
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(int64)
	return id, ok
}
