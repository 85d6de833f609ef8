package main

import (
	"context"
	"flag"
	"io/fs"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/internal/config"
	"github.com/nemonet1337/zaiStockLedger/internal/logging"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory/storage"
)

func main() {
	dir := flag.String("dir", "", "外部マイグレーションディレクトリ（省略時は組み込みのスキーマ）")
	timeout := flag.Duration("timeout", 2*time.Minute, "マイグレーション全体のタイムアウト")
	flag.Parse()

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		panic("設定読み込みに失敗しました: " + err.Error())
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic("ログ初期化に失敗しました: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("zaiStockLedger マイグレーション実行ツール",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// ディレクトリ指定時は migrations/*.sql を含む親ディレクトリとして扱う
	var source fs.FS = storage.Migrations
	if *dir != "" {
		if _, err := os.Stat(*dir); os.IsNotExist(err) {
			logger.Fatal("マイグレーションディレクトリが見つかりません", zap.String("dir", *dir))
		}
		source = os.DirFS(*dir)
	}

	applied, err := storage.Migrate(ctx, db, source, logger)
	if err != nil {
		logger.Fatal("マイグレーション実行に失敗しました", zap.Error(err))
	}

	logger.Info("すべてのマイグレーションが完了しました", zap.Int("applied", applied))
}
