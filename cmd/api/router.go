package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// RouterOptions controls optional middleware and endpoints
// ルーター設定
type RouterOptions struct {
	EnableCORS     bool
	MetricsHandler http.Handler  // nilの場合 /metrics は無効
	RequestTimeout time.Duration // 0の場合タイムアウトなし
}

// setupRouter sets up HTTP routes. CORS wraps the router so preflight
// requests are answered before route matching.
// HTTPルートを設定
func setupRouter(handlers *Handlers, opts RouterOptions) http.Handler {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// カタログ
	api.HandleFunc("/products", handlers.CreateProduct).Methods("POST")
	api.HandleFunc("/products/{productId}", handlers.GetProduct).Methods("GET")
	api.HandleFunc("/products/{productId}", handlers.UpdateProduct).Methods("PATCH")
	api.HandleFunc("/categories", handlers.CreateCategory).Methods("POST")
	api.HandleFunc("/suppliers", handlers.CreateSupplier).Methods("POST")

	// 在庫変動
	api.HandleFunc("/products/{productId}/stock", handlers.UpdateStock).Methods("POST")
	api.HandleFunc("/stock/batch", handlers.BatchUpdateStock).Methods("POST")

	// 台帳
	api.HandleFunc("/products/{productId}/stock-logs", handlers.GetProductStockLogs).Methods("GET")
	api.HandleFunc("/products/{productId}/replay", handlers.ReplayLedger).Methods("GET")
	api.HandleFunc("/products/{productId}/average-cost", handlers.GetAverageCost).Methods("GET")
	api.HandleFunc("/stock-logs", handlers.ListStockLogs).Methods("GET")

	// レポート
	api.HandleFunc("/reports/low-stock", handlers.LowStockProducts).Methods("GET")
	api.HandleFunc("/reports/inventory", handlers.InventoryReport).Methods("GET")
	api.HandleFunc("/reports/dashboard", handlers.DashboardStats).Methods("GET")
	api.HandleFunc("/reports/stock-health", handlers.StockHealth).Methods("GET")
	api.HandleFunc("/reports/top-categories", handlers.TopCategories).Methods("GET")

	router.Use(requestIDMiddleware)
	router.Use(actorMiddleware)
	if opts.RequestTimeout > 0 {
		router.Use(timeoutMiddleware(opts.RequestTimeout))
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	if opts.EnableCORS {
		return corsMiddleware(router)
	}
	return router
}

// corsMiddleware adds permissive CORS headers (development use)
// CORS設定（開発用）
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-User-Name, X-User-Role, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware propagates or assigns a request id
// リクエストIDを付与するミドルウェア
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// actorMiddleware reads the authenticated user headers set by the gateway
// 認証ゲートウェイが設定したユーザーヘッダーから実行者を取得
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, APIResponse{Success: false, Error: "無効なユーザーIDです"})
			return
		}
		actor := &inventory.Actor{
			ID:       id,
			Username: r.Header.Get("X-User-Name"),
			Role:     r.Header.Get("X-User-Role"),
			IsActive: true,
		}
		next.ServeHTTP(w, r.WithContext(inventory.WithActor(r.Context(), actor)))
	})
}

// timeoutMiddleware bounds each request's context
func timeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// リクエスト処理
			next.ServeHTTP(rec, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
