package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

const (
	Target      = "localhost:50051"
	TotalCount  = 100000
	Concurrency = 200

	// 先存入足夠的餘額，避免轉帳全被餘額不足擋下
	SeedDeposit    = int64(1_000_000_000)
	TransferAmount = int64(100)
)

func main() {
	var bearer atomic.Value
	bearer.Store("")

	pool := grpcpool.NewPool(grpcpool.WithBearerToken(func() string {
		return bearer.Load().(string)
	}))
	defer pool.Close()

	conn, err := pool.GetConnection(Target)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := pb.NewBankServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
	defer cancel()

	// 建立兩個帳號：sender 打錢給 receiver
	suffix := uuid.New().String()[:8]
	sender, senderToken := register(ctx, c, "sender-"+suffix+"@loadgen.dev")
	receiver, _ := register(ctx, c, "receiver-"+suffix+"@loadgen.dev")
	log.Printf("sender account: %s, receiver account: %s", sender, receiver)

	bearer.Store(senderToken)
	if _, err := c.Deposit(ctx, &pb.DepositRequest{
		RefId:  uuid.New().String(),
		Amount: SeedDeposit,
	}); err != nil {
		log.Fatalf("seed deposit failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(TotalCount)
	sem := make(chan struct{}, Concurrency)

	var failed atomic.Int64
	startTime := time.Now()

	for i := 0; i < TotalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := c.Transfer(ctx, &pb.TransferRequest{
				RefId:           uuid.New().String(),
				ToAccountNumber: receiver,
				Amount:          TransferAmount,
			})
			if err != nil {
				failed.Add(1)
				if idx%10000 == 0 {
					log.Printf("Transfer %d failed: %v", idx, err)
				}
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v (%d failed)\n", TotalCount, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(TotalCount)/elapsed.Seconds())

	// 驗證總額守恆
	balance, err := c.GetBalance(ctx, &pb.GetBalanceRequest{})
	if err != nil {
		log.Fatalf("GetBalance failed: %v", err)
	}
	fmt.Printf("Sender balance after run: %d\n", balance.GetBalance())
}

func register(ctx context.Context, c pb.BankServiceClient, email string) (accountNumber, token string) {
	resp, err := c.Register(ctx, &pb.RegisterRequest{
		Email:    email,
		Password: "loadgen-secret",
		Name:     "loadgen",
	})
	if err != nil {
		log.Fatalf("Register %s failed: %v", email, err)
	}
	return resp.GetAccountNumber(), resp.GetToken()
}
