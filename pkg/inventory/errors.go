package inventory

import (
	"errors"
	"fmt"
)

// Ledger engine errors
// 在庫台帳エンジンのエラー定義

var (
	// ErrProductNotFound is returned when the id does not resolve to an active product
	// 商品が存在しないか無効化されている場合のエラー
	ErrProductNotFound = errors.New("商品が見つからないか、無効化されています")

	// ErrInvalidAction is returned for an action outside the fixed enumeration
	// 無効な在庫変動種別の場合のエラー
	ErrInvalidAction = errors.New("無効な在庫変動種別です")

	// ErrInvalidDelta is returned when the quantity change is zero
	// 増減数が0の場合のエラー
	ErrInvalidDelta = errors.New("増減数を0にすることはできません")

	// ErrInsufficientStock is returned when the result would be negative
	// 在庫不足の場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrStorageFailure is returned when persistence is unavailable
	// ストレージ障害時のエラー
	ErrStorageFailure = errors.New("ストレージ処理に失敗しました")

	// ErrInvalidInput is returned for other malformed input
	// その他の入力不正エラー
	ErrInvalidInput = errors.New("入力値が不正です")

	// ErrCategoryNotFound is returned when a referenced category doesn't exist
	// カテゴリが存在しない場合のエラー
	ErrCategoryNotFound = errors.New("カテゴリが見つかりません")

	// ErrSupplierNotFound is returned when a referenced supplier doesn't exist
	// 仕入先が存在しない場合のエラー
	ErrSupplierNotFound = errors.New("仕入先が見つかりません")

	// ErrDuplicateSKU is returned when creating a product with an existing SKU
	// SKUが重複している場合のエラー
	ErrDuplicateSKU = errors.New("SKUは既に存在します")

	// ErrDuplicateName is returned when a category or supplier name already exists
	// 名前が重複している場合のエラー
	ErrDuplicateName = errors.New("名前は既に存在します")

	// ErrNoCostData is returned when no restock entry carries a unit cost
	// 平均原価計算用のデータが不足している場合のエラー
	ErrNoCostData = errors.New("平均原価計算用のデータが不足しています")

	// ErrTxDone is returned when a finished unit of work is used again
	// 終了済みトランザクションを再利用した場合のエラー
	ErrTxDone = errors.New("トランザクションは既に終了しています")
)

// InsufficientStockError carries the context needed for a user-facing message
// 在庫不足エラー（現在数量と要求増減数を保持）
type InsufficientStockError struct {
	ProductID int64 `json:"product_id"`
	Current   int64 `json:"current"`
	Requested int64 `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("在庫を0未満にすることはできません。現在の在庫: %d, 要求された増減: %d", e.Current, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) succeed
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
	Kind    error  `json:"-"`       // 分類用のセンチネルエラー
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	if e.Kind == nil {
		return ErrInvalidInput
	}
	return e.Kind
}

// BusinessRuleError represents a business rule violation
// ビジネスルール違反を表現
type BusinessRuleError struct {
	Rule    string `json:"rule"`    // ルール名
	Message string `json:"message"` // エラーメッセージ
	Context string `json:"context"` // コンテキスト情報
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("ビジネスルール違反 [%s]: %s (コンテキスト: %s)", e.Rule, e.Message, e.Context)
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrStorageFailure) succeed
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// newKindValidationError creates a validation error classified under kind
func newKindValidationError(kind error, field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Kind:    kind,
	}
}

// NewBusinessRuleError creates a new business rule error
// 新しいビジネスルールエラーを作成
func NewBusinessRuleError(rule, message, context string) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// wrapStorage wraps cause as a StorageError unless it is already a domain error
func wrapStorage(operation, message string, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrProductNotFound) ||
		errors.Is(cause, ErrCategoryNotFound) ||
		errors.Is(cause, ErrSupplierNotFound) ||
		errors.Is(cause, ErrStorageFailure) {
		return cause
	}
	return NewStorageError(operation, message, cause)
}
