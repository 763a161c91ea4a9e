// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, book, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeBookNotFound     = "BOOK_NOT_FOUND"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNoValidFields    = "NO_VALID_FIELDS"
	ErrCodeBackend          = "BACKEND_ERROR"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeCSRFInvalid      = "CSRF_TOKEN_INVALID"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewBookNotFoundError は本が見つからない場合のエラーを生成する。
// 他ユーザーの本へのアクセスも同じエラーになる。
func NewBookNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("Book not found: %s", bookID),
		Category: "book",
		Action:   "本のIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析に失敗した場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid request body",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError は入力値の検証に失敗した場合のエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewNoValidFieldsError は更新対象のフィールドがない場合のエラーを生成する。
func NewNoValidFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoValidFields,
		Message:  "No valid fields to update",
		Category: "validation",
		Action:   "title、author、status のいずれかを指定してください。",
	}
}

// NewBackendError はデータベース操作の失敗を表すエラーを生成する。
// メッセージにはバックエンドのエラー内容をそのまま含める。
func NewBackendError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeBackend,
		Message:  err.Error(),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
