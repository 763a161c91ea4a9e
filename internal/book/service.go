// Package book は本の記録管理のドメインロジックを提供する。
// 全ての操作は呼び出し元を受け取り、access.Guardの判定を経てからリポジトリに到達する。
package book

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/booklog/internal/access"
	"github.com/hitoshi/booklog/internal/auth"
	"github.com/hitoshi/booklog/internal/model"
	"github.com/hitoshi/booklog/internal/repository"
	"github.com/hitoshi/booklog/internal/security"
)

// MaxTextLength はタイトルと著者名の最大文字数。
const MaxTextLength = 500

// 操作結果のラベル
const (
	ResultSuccess  = "success"
	ResultDenied   = "denied"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// OperationObserver は本に対する操作の結果を受け取る。
type OperationObserver interface {
	ObserveBookOperation(op, result string)
}

// CreateInput は本の作成リクエストの入力。
type CreateInput struct {
	Title  string
	Author string
	Status string
}

// UpdateInput は本の部分更新リクエストの入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title  *string
	Author *string
	Status *string
}

// Service は本の記録管理のサービス層。
type Service struct {
	repo      repository.BookRepository
	guard     *access.Guard
	sanitizer security.TextSanitizerService
	observer  OperationObserver
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。observerはnilでもよい。
func NewService(
	repo repository.BookRepository,
	guard *access.Guard,
	sanitizer security.TextSanitizerService,
	observer OperationObserver,
) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		sanitizer: sanitizer,
		observer:  observer,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// List は呼び出し元の本を絞り込み条件付きで新しい順に返す。
func (s *Service) List(ctx context.Context, caller *auth.Caller, filter model.BookFilter) ([]*model.Book, error) {
	if d := s.guard.Authorize(caller, access.OpList, nil); !d.Allowed {
		s.observe(access.OpList, ResultDenied)
		return nil, d.Err("")
	}

	scope := s.guard.Scope(caller)
	books, err := s.repo.List(ctx, repository.BookQuery{OwnerID: scope.OwnerID, Filter: filter})
	if err != nil {
		s.observe(access.OpList, ResultError)
		return nil, model.NewBackendError(err)
	}

	s.observe(access.OpList, ResultSuccess)
	return books, nil
}

// Create は入力を検証してから呼び出し元を所有者とする本を作成する。
func (s *Service) Create(ctx context.Context, caller *auth.Caller, in CreateInput) (*model.Book, error) {
	title, err := s.requireText("title", in.Title)
	if err != nil {
		s.observe(access.OpCreate, ResultInvalid)
		return nil, err
	}
	author, err := s.requireText("author", in.Author)
	if err != nil {
		s.observe(access.OpCreate, ResultInvalid)
		return nil, err
	}
	status, ok := model.ParseBookStatus(in.Status)
	if !ok {
		s.observe(access.OpCreate, ResultInvalid)
		return nil, invalidStatusError()
	}

	if d := s.guard.Authorize(caller, access.OpCreate, nil); !d.Allowed {
		s.observe(access.OpCreate, ResultDenied)
		return nil, d.Err("")
	}

	b := &model.Book{
		ID:        s.newID(),
		Title:     title,
		Author:    author,
		Status:    status,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond), // PostgreSQLのtimestamptz精度に揃える
	}
	s.guard.StampOwner(caller, b)

	if err := s.repo.Create(ctx, b); err != nil {
		s.observe(access.OpCreate, ResultError)
		return nil, model.NewBackendError(err)
	}

	s.observe(access.OpCreate, ResultSuccess)
	return b, nil
}

// Update は指定フィールドだけを部分更新する。
// 所有者を確認してから、所有者条件付きの更新クエリを発行する。
func (s *Service) Update(ctx context.Context, caller *auth.Caller, id string, in UpdateInput) (*model.Book, error) {
	patch, err := s.buildPatch(in)
	if err != nil {
		s.observe(access.OpUpdate, ResultInvalid)
		return nil, err
	}

	if caller == nil {
		s.observe(access.OpUpdate, ResultDenied)
		return nil, model.NewUnauthorizedError()
	}

	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.observe(access.OpUpdate, ResultError)
		return nil, model.NewBackendError(err)
	}
	if d := s.guard.Authorize(caller, access.OpUpdate, target); !d.Allowed {
		s.observe(access.OpUpdate, ResultNotFound)
		return nil, d.Err(id)
	}

	updated, err := s.repo.UpdateOwned(ctx, id, caller.UserID, patch)
	if err != nil {
		s.observe(access.OpUpdate, ResultError)
		return nil, model.NewBackendError(err)
	}
	if updated == nil {
		// 確認後に削除された
		s.observe(access.OpUpdate, ResultNotFound)
		return nil, model.NewBookNotFoundError(id)
	}

	s.observe(access.OpUpdate, ResultSuccess)
	return updated, nil
}

// Delete は所有者を確認してから本を削除する（2クエリ）。
// 存在しない本と他人の本はどちらもBOOK_NOT_FOUNDになる。
func (s *Service) Delete(ctx context.Context, caller *auth.Caller, id string) error {
	if caller == nil {
		s.observe(access.OpDelete, ResultDenied)
		return model.NewUnauthorizedError()
	}

	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.observe(access.OpDelete, ResultError)
		return model.NewBackendError(err)
	}
	if d := s.guard.Authorize(caller, access.OpDelete, target); !d.Allowed {
		s.observe(access.OpDelete, ResultNotFound)
		return d.Err(id)
	}

	return s.deleteOwned(ctx, caller, id)
}

// DeleteScoped はIDと所有者の両方を条件にした1クエリで本を削除する。
// 外部から見た結果はDeleteと同じ。
func (s *Service) DeleteScoped(ctx context.Context, caller *auth.Caller, id string) error {
	if caller == nil {
		s.observe(access.OpDelete, ResultDenied)
		return model.NewUnauthorizedError()
	}
	return s.deleteOwned(ctx, caller, id)
}

func (s *Service) deleteOwned(ctx context.Context, caller *auth.Caller, id string) error {
	deleted, err := s.repo.DeleteOwned(ctx, id, s.guard.Scope(caller).OwnerID)
	if err != nil {
		s.observe(access.OpDelete, ResultError)
		return model.NewBackendError(err)
	}
	if !deleted {
		s.observe(access.OpDelete, ResultNotFound)
		return model.NewBookNotFoundError(id)
	}

	s.observe(access.OpDelete, ResultSuccess)
	return nil
}

// buildPatch は更新入力を検証して部分更新内容に変換する。
func (s *Service) buildPatch(in UpdateInput) (model.BookPatch, error) {
	var patch model.BookPatch

	if in.Title != nil {
		title, err := s.requireText("title", *in.Title)
		if err != nil {
			return patch, err
		}
		patch.Title = &title
	}
	if in.Author != nil {
		author, err := s.requireText("author", *in.Author)
		if err != nil {
			return patch, err
		}
		patch.Author = &author
	}
	if in.Status != nil {
		status, ok := model.ParseBookStatus(*in.Status)
		if !ok {
			return patch, invalidStatusError()
		}
		patch.Status = &status
	}

	if patch.Empty() {
		return patch, model.NewNoValidFieldsError()
	}
	return patch, nil
}

// requireText はサニタイズ後のテキストが空でなく、最大文字数以内であることを検証する。
func (s *Service) requireText(field, raw string) (string, error) {
	v := s.sanitizer.Sanitize(raw)
	if v == "" {
		return "", model.NewValidationError(fmt.Sprintf("%s is required", field))
	}
	if utf8.RuneCountInString(v) > MaxTextLength {
		return "", model.NewValidationError(fmt.Sprintf("%s must be at most %d characters", field, MaxTextLength))
	}
	return v, nil
}

func invalidStatusError() error {
	return model.NewValidationError("status must be one of: reading, completed, wishlist")
}

func (s *Service) observe(op access.Op, result string) {
	if s.observer != nil {
		s.observer.ObserveBookOperation(op.String(), result)
	}
}
