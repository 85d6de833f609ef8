package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/internal/config"
	"github.com/nemonet1337/zaiStockLedger/internal/logging"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory/storage"
)

// backend is what the API needs from a storage implementation
type backend interface {
	inventory.Storage
	inventory.Catalog
}

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	store, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := inventory.NewMetrics(registry)

	// 在庫台帳の初期化（マネージャーと監査でロックを共有）
	locks := inventory.NewProductLocks()
	ledgerConfig := cfg.Ledger()
	publisher := inventory.NewLogPublisher(logger)

	manager := inventory.NewManager(store, publisher, logger, ledgerConfig,
		inventory.WithMetrics(metrics), inventory.WithProductLocks(locks))
	reporter := inventory.NewReporter(store, logger, ledgerConfig, inventory.WithMetrics(metrics))
	auditor := inventory.NewAuditor(store, logger, inventory.WithProductLocks(locks))

	// HTTPハンドラー設定
	handlers := NewHandlers(manager, reporter, auditor, store, store, logger, ledgerConfig)
	opts := RouterOptions{
		EnableCORS:     cfg.API.EnableCORS,
		RequestTimeout: cfg.API.RequestTimeout,
	}
	if cfg.API.EnableMetrics {
		opts.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}
	router := setupRouter(handlers, opts)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("在庫台帳APIサーバーを開始します",
			zap.Int("port", cfg.API.Port),
			zap.String("driver", cfg.Database.Driver),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// openStorage selects the backend named by the configuration
// 設定に応じてストレージを作成
func openStorage(cfg *config.Config, logger *zap.Logger) (backend, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("メモリストレージを使用します（再起動でデータは失われます）")
		return storage.NewMemoryStorage(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.RequestTimeout+cfg.API.ReadTimeout)
	defer cancel()

	pg, err := storage.NewPostgreSQLStorage(ctx, cfg.DSN(), cfg.Pool(), logger.Named("postgres"))
	if err != nil {
		return nil, err
	}
	return pg, nil
}
