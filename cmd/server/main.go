package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"gopkg.in/yaml.v3"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/bank/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/bank/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/bank/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/metrics"
	"github.com/JoeShih716/go-bank-ledger/internal/app/bank/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/token"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

// 儲存後端:
//
//	mysql:  正式環境，原子性靠資料庫交易
//	memory: 開發 / 單機，Mutex 序列化 + WAL 持久化
const (
	ledgerModeMySQL  = "mysql"
	ledgerModeMemory = "memory"
)

type Config struct {
	Server struct {
		GRPCAddr    string `yaml:"grpc_addr"`
		MonitorAddr string `yaml:"monitor_addr"`
	} `yaml:"server"`
	Ledger struct {
		Mode    string `yaml:"mode"`
		WALPath string `yaml:"wal_path"`
	} `yaml:"ledger"`
	MySQL mysql.Config `yaml:"mysql"`
	Auth  struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Logging logging.Config `yaml:"logging"`
}

func main() {
	// 1. 載入設定
	cfg := loadConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. 初始化儲存後端
	var store usecase.Store
	switch cfg.Ledger.Mode {
	case ledgerModeMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL, logger)
		if err != nil {
			logger.Fatal("failed to connect to mysql", zap.Error(err))
		}
		defer dbClient.Close()

		mysqlStore := mysql_adapter.NewStore(dbClient)
		if err := mysqlStore.AutoMigrate(); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		store = mysqlStore
		logger.Info("mysql store ready")
	case ledgerModeMemory:
		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			logger.Fatal("failed to open wal", zap.Error(err))
		}
		defer walFile.Close()

		memStore, err := memory_adapter.NewStore(walFile)
		if err != nil {
			logger.Fatal("failed to recover memory store", zap.Error(err))
		}
		store = memStore
		logger.Info("memory store ready", zap.String("wal", cfg.Ledger.WALPath))
	default:
		logger.Fatal("invalid ledger mode", zap.String("mode", cfg.Ledger.Mode))
	}

	// 3. Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	ledgerMetrics := metrics.NewLedger(registry)

	// 4. 初始化 UseCase 與 driving adapter
	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	ledgerEngine := usecase.NewLedgerEngine(store, logger, ledgerMetrics)
	userUseCase := usecase.NewUserUseCase(store, store, issuer, logger)
	bankServer := grpc_adapter.NewBankServer(ledgerEngine, userUseCase, logger)

	// 5. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_adapter.AuthInterceptor(issuer)),
	)
	pb.RegisterBankServiceServer(s, bankServer)
	reflection.Register(s) // 方便 gRPC Client 測試

	go func() {
		logger.Info("grpc server started", zap.String("addr", cfg.Server.GRPCAddr))
		if err := s.Serve(lis); err != nil {
			logger.Fatal("grpc serve failed", zap.Error(err))
		}
	}()

	// 6. Monitoring listener: /metrics 與 /healthz
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	monitorServer := &http.Server{
		Addr:         cfg.Server.MonitorAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("monitoring server started", zap.String("addr", cfg.Server.MonitorAddr))
		if err := monitorServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("monitoring serve failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	s.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	monitorServer.Shutdown(shutdownCtx)
	logger.Info("server exited")
}

func loadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfgData, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置（如果 yaml 沒寫）
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = ":50051"
	}
	if cfg.Server.MonitorAddr == "" {
		cfg.Server.MonitorAddr = ":9090"
	}
	if cfg.Ledger.Mode == "" {
		cfg.Ledger.Mode = ledgerModeMemory
	}
	if cfg.Ledger.WALPath == "" {
		cfg.Ledger.WALPath = "wal.log"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	cfg.MySQL.ApplyDefaults()
	cfg.Logging.ApplyDefaults()
	return cfg
}
