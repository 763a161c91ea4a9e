// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"

	"github.com/hitoshi/booklog/internal/auth"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// callerContextKey はリクエストコンテキストに呼び出し元を格納するためのキー。
var callerContextKey = contextKey("caller")

// errNoCaller はコンテキストに呼び出し元がないことを表す。
var errNoCaller = errors.New("caller not found in context")

// ContextWithCaller はコンテキストに呼び出し元を注入する。
// Gatekeeperが解決結果を後続のハンドラーに渡すために使う。
func ContextWithCaller(ctx context.Context, caller *auth.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext はリクエストコンテキストから呼び出し元を取得する。
// Gatekeeperを通過していない、または未認証の場合はnilを返す。
func CallerFromContext(ctx context.Context) *auth.Caller {
	caller, _ := ctx.Value(callerContextKey).(*auth.Caller)
	return caller
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	caller := CallerFromContext(ctx)
	if caller == nil || caller.UserID == "" {
		return "", errNoCaller
	}
	return caller.UserID, nil
}

// ContextWithUserID はユーザーIDだけを持つ呼び出し元をコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithCaller(ctx, &auth.Caller{UserID: userID})
}
