// Package auth はOAuth認証フロー、セッション管理、リクエストごとの呼び出し元解決を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/booklog/internal/model"
	"github.com/hitoshi/booklog/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // リフレッシュセッション有効期間（秒）
}

// LoginResult はログイン成功時に発行される認証情報。
type LoginResult struct {
	Session         *model.Session
	AccessToken     string
	AccessExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	tokens      *TokenIssuer
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	tokens *TokenIssuer,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		tokens:      tokens,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、リフレッシュセッションとアクセストークンを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*LoginResult, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	userID, err := s.findOrCreateUser(ctx, userInfo)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(userID, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &LoginResult{
		Session:         session,
		AccessToken:     token,
		AccessExpiresAt: expiresAt,
	}, nil
}

func (s *Service) findOrCreateUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", info.Provider),
		)
		return identity.UserID, nil
	}

	now := s.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, user, newIdentity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user.ID, nil
}

// Logout はリフレッシュセッションを破棄する。
// 発行済みのアクセストークンは有効期限まで残るが、以後の再発行はできなくなる。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser は呼び出し元のユーザー情報を取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewBackendError(err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// createSession はリフレッシュセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
