package storage

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migrations holds the schema files, applied in file name order
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Migrate applies every migration in fsys not yet recorded in schema_migrations.
// Each file runs in its own transaction together with its history row.
// 未実行のマイグレーションを順に実行
func Migrate(ctx context.Context, db *sqlx.DB, fsys fs.FS, logger *zap.Logger) (applied int, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := createMigrationTable(ctx, db); err != nil {
		return 0, err
	}

	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return 0, fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}
	sort.Strings(files)

	executed, err := executedMigrations(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return applied, fmt.Errorf("ファイル読み込みエラー %s: %w", file, err)
		}
		filename := file[len("migrations/"):]
		checksum := Checksum(content)

		if recorded, ok := executed[filename]; ok {
			if recorded != checksum {
				logger.Warn("実行済みマイグレーションの内容が変更されています", zap.String("filename", filename))
			}
			logger.Debug("スキップ (実行済み)", zap.String("filename", filename))
			continue
		}

		logger.Info("マイグレーション実行中", zap.String("filename", filename))
		if err := applyMigration(ctx, db, filename, string(content), checksum); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, filename, content, checksum string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始エラー %s: %w", filename, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("マイグレーション実行エラー %s: %w", filename, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
		filename, checksum,
	); err != nil {
		return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", filename, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションコミットエラー %s: %w", filename, err)
	}
	return nil
}

func createMigrationTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) NOT NULL UNIQUE,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}
	return nil
}

// executedMigrations maps filename to recorded checksum
func executedMigrations(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	var rows []struct {
		Filename string `db:"filename"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &rows, "SELECT filename, checksum FROM schema_migrations"); err != nil {
		return nil, err
	}
	executed := make(map[string]string, len(rows))
	for _, r := range rows {
		executed[r.Filename] = r.Checksum
	}
	return executed, nil
}

// Checksum returns the hex SHA-256 of a migration file
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
