// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は本のタイトルや著者名などのプレーンテキスト入力から
// HTMLタグを取り除き、保存前に正規化する。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/atom"
)

// TextSanitizerService はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// script、styleタグは中身ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// tagOpenPattern はタグの開始に見える "<name" または "</name" に一致する。
var tagOpenPattern = regexp.MustCompile(`</?([A-Za-z][A-Za-z0-9-]*)`)

// maxSanitizePasses は多重エスケープされた入力に対する除去の繰り返し上限。
const maxSanitizePasses = 4

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// タグを一切許可しないbluemondayのStrictPolicyを使う。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したテキストを返す。
// bluemondayはエンティティをエスケープして返すため、保存用に元の文字へ戻す。
// 表示側はhtml/templateとJSONエンコーダーで改めてエスケープされる。
func (s *textSanitizer) Sanitize(raw string) string {
	v := raw
	// エスケープされたタグは戻した後に再びタグとして除去する
	for range maxSanitizePasses {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(escapeUnknownTags(v))))
		if next == v {
			break
		}
		v = next
	}
	return v
}

// escapeUnknownTags はHTML要素名ではない "<Deluxe>" のような括弧書きを
// テキストとして残すため、その "<" をエスケープする。既知の要素名はそのまま残し、
// 後段のStrictPolicyで除去させる。
func escapeUnknownTags(s string) string {
	return tagOpenPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimPrefix(m[1:], "/")
		if atom.Lookup([]byte(strings.ToLower(name))) != 0 {
			return m
		}
		return "&lt;" + m[1:]
	})
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
