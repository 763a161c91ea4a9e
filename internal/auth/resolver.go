package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/booklog/internal/model"
)

// Cookie名
const (
	AccessTokenCookieName = "access_token"
	SessionCookieName     = "session_id"
)

// ErrIdentityBackend はセッションストアへの問い合わせに失敗したことを表す。
// 「セッションなし」とは区別して扱う。
var ErrIdentityBackend = errors.New("identity backend unavailable")

// リフレッシュ結果のラベル
const (
	RefreshResultRefreshed = "refreshed"
	RefreshResultMissing   = "missing"
	RefreshResultError     = "error"
)

// Caller はリクエストごとに解決された呼び出し元の認証情報。
// サーバー側には保存しない。
type Caller struct {
	UserID      string
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
}

// CookieSink は解決処理中に発生したCookieの書き込み先。
// 通常はレスポンスを包んだResponseCookieSinkを渡す。
type CookieSink interface {
	SetCookie(cookie *http.Cookie)
}

// ResponseCookieSink はhttp.ResponseWriterにSet-Cookieヘッダーを書き込む。
type ResponseCookieSink struct {
	W http.ResponseWriter
}

// SetCookie はレスポンスにCookieを追加する。
func (s ResponseCookieSink) SetCookie(cookie *http.Cookie) {
	http.SetCookie(s.W, cookie)
}

// CookieOptions は全ての認証Cookieに共通する属性。
type CookieOptions struct {
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions は既定のCookie属性を返す。
func DefaultCookieOptions(secure bool, domain string) CookieOptions {
	return CookieOptions{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCookie は属性を適用したCookieを生成する。maxAgeは秒数。
func (o CookieOptions) NewCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   o.Domain,
		Path:     o.Path,
		MaxAge:   maxAge,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}
}

// ExpireCookie は指定Cookieを削除するためのCookieを生成する。
func (o CookieOptions) ExpireCookie(name string) *http.Cookie {
	c := o.NewCookie(name, "", -1)
	c.Expires = time.Unix(0, 0)
	return c
}

// ClearAuthCookies はアクセストークンとリフレッシュセッションの両Cookieを削除する。
func (o CookieOptions) ClearAuthCookies(sink CookieSink) {
	sink.SetCookie(o.ExpireCookie(AccessTokenCookieName))
	sink.SetCookie(o.ExpireCookie(SessionCookieName))
}

// SessionFinder はリフレッシュセッションの検索インターフェース。
// 期限切れのセッションはnilとして返す。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// RefreshObserver はアクセストークンの再発行結果を受け取る。
type RefreshObserver interface {
	ObserveSessionRefresh(result string)
}

// Resolver はリクエストから呼び出し元を解決する。
// 認証情報は Authorization: Bearer、access_token Cookie、session_id Cookie の順に調べる。
type Resolver struct {
	tokens   *TokenIssuer
	sessions SessionFinder
	cookies  CookieOptions
	observer RefreshObserver
}

// NewResolver はResolverを生成する。observerはnilでもよい。
func NewResolver(tokens *TokenIssuer, sessions SessionFinder, cookies CookieOptions, observer RefreshObserver) *Resolver {
	return &Resolver{
		tokens:   tokens,
		sessions: sessions,
		cookies:  cookies,
		observer: observer,
	}
}

// Resolve はリクエストの呼び出し元を返す。
// セッションがない場合は(nil, nil)を返し、不正な認証情報でもエラーにしない。
// セッションストアの障害時のみErrIdentityBackendをラップしたエラーを返す。
// アクセストークンを再発行した場合や無効なCookieを削除する場合はsinkに書き込む。
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, sink CookieSink) (*Caller, error) {
	if token, ok := bearerToken(req); ok {
		// Bearerが不正でもCookieにはフォールバックしない
		caller := r.callerFromToken(token)
		if caller == nil {
			return nil, nil
		}
		return r.confirmSession(ctx, req, caller)
	}

	if c, err := req.Cookie(AccessTokenCookieName); err == nil && c.Value != "" {
		if caller := r.callerFromToken(c.Value); caller != nil {
			confirmed, err := r.confirmSession(ctx, req, caller)
			if err != nil {
				return nil, err
			}
			if confirmed == nil {
				r.cookies.ClearAuthCookies(sink)
			}
			return confirmed, nil
		}
	}

	c, err := req.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	return r.refresh(ctx, c.Value, sink)
}

// confirmSession は状態を変更するリクエストに限り、トークンの発行元セッションが
// まだ存在することを確認する。ログアウトや退会の後はアクセストークンの期限内でも書き込みを拒否する。
// 参照系のリクエストはトークンの検証だけで通す。
func (r *Resolver) confirmSession(ctx context.Context, req *http.Request, caller *Caller) (*Caller, error) {
	if isSafeMethod(req.Method) {
		return caller, nil
	}
	session, err := r.sessions.FindByID(ctx, caller.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityBackend, err)
	}
	if session == nil || session.UserID != caller.UserID {
		slog.Debug("access token rejected for revoked session",
			slog.String("user_id", caller.UserID),
		)
		return nil, nil
	}
	return caller, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// refresh はリフレッシュセッションから新しいアクセストークンを発行する。
func (r *Resolver) refresh(ctx context.Context, sessionID string, sink CookieSink) (*Caller, error) {
	session, err := r.sessions.FindByID(ctx, sessionID)
	if err != nil {
		r.observe(RefreshResultError)
		return nil, fmt.Errorf("%w: %w", ErrIdentityBackend, err)
	}
	if session == nil {
		r.observe(RefreshResultMissing)
		r.cookies.ClearAuthCookies(sink)
		return nil, nil
	}

	token, expiresAt, err := r.tokens.Issue(session.UserID, session.ID)
	if err != nil {
		r.observe(RefreshResultError)
		return nil, fmt.Errorf("%w: %w", ErrIdentityBackend, err)
	}
	sink.SetCookie(r.cookies.NewCookie(AccessTokenCookieName, token, int(r.tokens.TTL().Seconds())))
	r.observe(RefreshResultRefreshed)

	slog.Debug("access token refreshed",
		slog.String("user_id", session.UserID),
	)

	return &Caller{
		UserID:      session.UserID,
		SessionID:   session.ID,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (r *Resolver) callerFromToken(token string) *Caller {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil
	}
	return &Caller{
		UserID:      claims.Subject,
		SessionID:   claims.SessionID,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
}

func (r *Resolver) observe(result string) {
	if r.observer != nil {
		r.observer.ObserveSessionRefresh(result)
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func bearerToken(req *http.Request) (string, bool) {
	h := req.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IsBearerRequest はリクエストがBearerトークンで認証されているかを返す。
// CSRF検証の対象外判定に使う。
func IsBearerRequest(req *http.Request) bool {
	_, ok := bearerToken(req)
	return ok
}
