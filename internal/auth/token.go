package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はアクセストークンの検証に失敗したことを表す。
// 署名不一致、期限切れ、形式不正のいずれも同じエラーになる。
var ErrInvalidToken = errors.New("invalid access token")

// minSecretLength はHS256の署名鍵として受け付ける最小バイト数。
const minSecretLength = 32

// AccessClaims はアクセストークンのクレーム。
// SubjectにユーザーID、sidに発行元のリフレッシュセッションIDを持つ。
type AccessClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer は短命のアクセストークン（HS256 JWT）を発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
// secretは32バイト以上でなければならない。
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// TTL はアクセストークンの有効期間を返す。
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue はユーザーとリフレッシュセッションに紐づくアクセストークンを発行する。
func (i *TokenIssuer) Issue(userID, sessionID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := AccessClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はアクセストークンを検証してクレームを返す。
// 検証に失敗した場合はErrInvalidTokenを返す。
func (i *TokenIssuer) Verify(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
