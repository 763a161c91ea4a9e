// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Book はユーザーが所有する本の記録を表す。
// UserIDとCreatedAtは作成後に変更されない。
type Book struct {
	ID        string
	UserID    string
	Title     string
	Author    string
	Status    BookStatus
	CreatedAt time.Time
}

// BookStatus は本の読書状態を表す。
type BookStatus string

const (
	// BookStatusReading は読書中。
	BookStatusReading BookStatus = "reading"
	// BookStatusCompleted は読了。
	BookStatusCompleted BookStatus = "completed"
	// BookStatusWishlist は読みたい本。
	BookStatusWishlist BookStatus = "wishlist"
)

// BookStatuses は有効な読書状態の一覧。
var BookStatuses = []BookStatus{
	BookStatusReading,
	BookStatusCompleted,
	BookStatusWishlist,
}

// ParseBookStatus は文字列を読書状態に変換する。
// 3種類のいずれにも一致しない場合はfalseを返す。大文字小文字は区別する。
func ParseBookStatus(s string) (BookStatus, bool) {
	switch BookStatus(s) {
	case BookStatusReading, BookStatusCompleted, BookStatusWishlist:
		return BookStatus(s), true
	default:
		return "", false
	}
}

// Valid は読書状態が有効な値かどうかを返す。
func (s BookStatus) Valid() bool {
	_, ok := ParseBookStatus(string(s))
	return ok
}

// BookFilter は本一覧の絞り込み条件を表す。
// Statusが空の場合は状態で絞り込まない。Searchが空の場合は検索しない。
type BookFilter struct {
	Status BookStatus
	Search string
}

// NewBookFilter はクエリパラメータから絞り込み条件を生成する。
// 無効なstatusは黙って無視する（エラーにしない）。
func NewBookFilter(status, search string) BookFilter {
	var f BookFilter
	if st, ok := ParseBookStatus(status); ok {
		f.Status = st
	}
	f.Search = strings.TrimSpace(search)
	return f
}

// BookPatch は本の部分更新内容を表す。nilのフィールドは変更しない。
type BookPatch struct {
	Title  *string
	Author *string
	Status *BookStatus
}

// Empty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Status == nil
}

// Apply はパッチの内容を本に適用する。ID、UserID、CreatedAtには触れない。
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
}
