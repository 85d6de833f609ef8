package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory/storage"
)

// Config holds application configuration
// アプリケーション設定を保持
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Inventory InventoryConfig `yaml:"inventory"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds database configuration
// データベース設定を保持
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres, memory
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// APIConfig holds API server configuration
// APIサーバー設定を保持
type APIConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	EnableMetrics   bool          `yaml:"enable_metrics"`
}

// InventoryConfig holds ledger engine configuration
// 在庫台帳の設定を保持
type InventoryConfig struct {
	DefaultMinStockLevel  int64         `yaml:"default_min_stock_level"`
	ReportRecentWindow    time.Duration `yaml:"report_recent_window"`
	DashboardRecentWindow time.Duration `yaml:"dashboard_recent_window"`
	TopCategoriesLimit    int           `yaml:"top_categories_limit"`
	PublishEvents         bool          `yaml:"publish_events"`
}

// LoggingConfig holds logging configuration
// ログ設定を保持
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, ファイルパス
}

// Default returns the built-in defaults
// デフォルト設定を返す
func Default() *Config {
	ledger := inventory.DefaultConfig()
	pool := storage.DefaultPoolConfig()
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "inventory",
			Password:        "password",
			DBName:          "inventory_db",
			SSLMode:         "disable",
			MaxOpenConns:    pool.MaxOpenConns,
			MaxIdleConns:    pool.MaxIdleConns,
			ConnMaxLifetime: pool.ConnMaxLifetime,
		},
		API: APIConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			EnableCORS:      true,
			EnableMetrics:   true,
		},
		Inventory: InventoryConfig{
			DefaultMinStockLevel:  ledger.DefaultMinStockLevel,
			ReportRecentWindow:    ledger.ReportRecentWindow,
			DashboardRecentWindow: ledger.DashboardRecentWindow,
			TopCategoriesLimit:    ledger.TopCategoriesLimit,
			PublishEvents:         ledger.PublishEvents,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration: defaults, then the YAML file named by CONFIG_FILE,
// then environment variables (a .env file is read first if present)
// 設定を読み込み（デフォルト → YAMLファイル → 環境変数）
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envファイルの読み込みに失敗しました: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}

	return cfg, nil
}

// LoadFile loads defaults overlaid with a YAML file, without environment overrides
// YAMLファイルから設定を読み込み
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}
	return nil
}

// applyEnv overrides fields whose environment variable is set
func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.API.Port = getEnvAsInt("API_PORT", c.API.Port)
	c.API.ReadTimeout = getEnvAsDuration("API_READ_TIMEOUT", c.API.ReadTimeout)
	c.API.WriteTimeout = getEnvAsDuration("API_WRITE_TIMEOUT", c.API.WriteTimeout)
	c.API.IdleTimeout = getEnvAsDuration("API_IDLE_TIMEOUT", c.API.IdleTimeout)
	c.API.RequestTimeout = getEnvAsDuration("API_REQUEST_TIMEOUT", c.API.RequestTimeout)
	c.API.ShutdownTimeout = getEnvAsDuration("API_SHUTDOWN_TIMEOUT", c.API.ShutdownTimeout)
	c.API.EnableCORS = getEnvAsBool("API_ENABLE_CORS", c.API.EnableCORS)
	c.API.EnableMetrics = getEnvAsBool("API_ENABLE_METRICS", c.API.EnableMetrics)

	c.Inventory.DefaultMinStockLevel = getEnvAsInt64("INVENTORY_DEFAULT_MIN_STOCK_LEVEL", c.Inventory.DefaultMinStockLevel)
	c.Inventory.ReportRecentWindow = getEnvAsDuration("INVENTORY_REPORT_RECENT_WINDOW", c.Inventory.ReportRecentWindow)
	c.Inventory.DashboardRecentWindow = getEnvAsDuration("INVENTORY_DASHBOARD_RECENT_WINDOW", c.Inventory.DashboardRecentWindow)
	c.Inventory.TopCategoriesLimit = getEnvAsInt("INVENTORY_TOP_CATEGORIES_LIMIT", c.Inventory.TopCategoriesLimit)
	c.Inventory.PublishEvents = getEnvAsBool("INVENTORY_PUBLISH_EVENTS", c.Inventory.PublishEvents)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
}

// Validate validates the configuration
// 設定をバリデーション
func (c *Config) Validate() error {
	// データベース設定チェック
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("データベースホストが指定されていません")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("無効なデータベースポート: %d", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("データベースユーザーが指定されていません")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("データベース名が指定されていません")
		}
	default:
		return fmt.Errorf("無効なデータベースドライバ: %s", c.Database.Driver)
	}

	// API設定チェック
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("無効なAPIポート: %d", c.API.Port)
	}
	if c.API.RequestTimeout < 0 {
		return fmt.Errorf("リクエストタイムアウトは0以上である必要があります")
	}

	// 在庫設定チェック
	if c.Inventory.DefaultMinStockLevel < 0 {
		return fmt.Errorf("最低在庫数は0以上である必要があります")
	}
	if c.Inventory.ReportRecentWindow <= 0 || c.Inventory.DashboardRecentWindow <= 0 {
		return fmt.Errorf("集計期間は正の値である必要があります")
	}
	if c.Inventory.TopCategoriesLimit <= 0 {
		return fmt.Errorf("上位カテゴリ件数は正の値である必要があります")
	}

	// ログ設定チェック
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("無効なログレベル: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("無効なログフォーマット: %s", c.Logging.Format)
	}

	return nil
}

// DSN generates PostgreSQL Data Source Name
// PostgreSQLデータソース名を生成
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// Pool returns the connection pool settings
func (c *Config) Pool() storage.PoolConfig {
	return storage.PoolConfig{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// Ledger converts the inventory section into the engine configuration
// 在庫台帳エンジンの設定に変換
func (c *Config) Ledger() *inventory.Config {
	return &inventory.Config{
		DefaultMinStockLevel:  c.Inventory.DefaultMinStockLevel,
		ReportRecentWindow:    c.Inventory.ReportRecentWindow,
		DashboardRecentWindow: c.Inventory.DashboardRecentWindow,
		TopCategoriesLimit:    c.Inventory.TopCategoriesLimit,
		PublishEvents:         c.Inventory.PublishEvents,
	}
}

// ヘルパー関数

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if int64Value, err := strconv.ParseInt(value, 10, 64); err == nil {
			return int64Value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
