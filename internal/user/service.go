// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/booklog/internal/model"
	"github.com/hitoshi/booklog/internal/repository"
)

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Withdraw はユーザーの退会処理を実行する。
// 本、セッション、ユーザー（+ CASCADE: identities）をリポジトリ側の1トランザクションで削除する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}

	slog.Info("withdrawal started", slog.String("user_id", userID))

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to withdraw user: %w", err)
	}

	slog.Info("withdrawal completed", slog.String("user_id", userID))
	return nil
}
