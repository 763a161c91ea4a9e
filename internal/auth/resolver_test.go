package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/booklog/internal/model"
)

// recordingSink は書き込まれたCookieを記録する。
type recordingSink struct {
	cookies []*http.Cookie
}

func (s *recordingSink) SetCookie(c *http.Cookie) {
	s.cookies = append(s.cookies, c)
}

func (s *recordingSink) find(name string) *http.Cookie {
	for _, c := range s.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type recordingObserver struct {
	results []string
}

func (o *recordingObserver) ObserveSessionRefresh(result string) {
	o.results = append(o.results, result)
}

func newTestResolver(t *testing.T, sessions SessionFinder, observer RefreshObserver) (*Resolver, *TokenIssuer) {
	t.Helper()
	issuer := newTestIssuer(t)
	return NewResolver(issuer, sessions, DefaultCookieOptions(true, ""), observer), issuer
}

func liveSessionRepo(userID string) *mockSessionRepo {
	return &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "refresh-1" {
				return nil, nil
			}
			return &model.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
}

func TestResolver_NoCredentials(t *testing.T) {
	resolver, _ := newTestResolver(t, liveSessionRepo("user-1"), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	sink := &recordingSink{}

	caller, err := resolver.Resolve(context.Background(), req, sink)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if caller != nil {
		t.Errorf("caller = %+v, want nil", caller)
	}
	if len(sink.cookies) != 0 {
		t.Errorf("no cookies should be written, got %d", len(sink.cookies))
	}
}

func TestResolver_BearerToken(t *testing.T) {
	resolver, issuer := newTestResolver(t, liveSessionRepo("user-1"), nil)
	token, _, _ := issuer.Issue("user-1", "refresh-1")

	for _, scheme := range []string{"Bearer", "bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
		req.Header.Set("Authorization", scheme+" "+token)

		caller, err := resolver.Resolve(context.Background(), req, &recordingSink{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if caller == nil || caller.UserID != "user-1" || caller.SessionID != "refresh-1" {
			t.Errorf("scheme %q: caller = %+v", scheme, caller)
		}
	}
}

func TestResolver_InvalidBearerDoesNotFallBackToCookies(t *testing.T) {
	resolver, issuer := newTestResolver(t, liveSessionRepo("user-1"), nil)
	token, _, _ := issuer.Issue("user-1", "refresh-1")

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: token})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "refresh-1"})

	caller, err := resolver.Resolve(context.Background(), req, &recordingSink{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if caller != nil {
		t.Errorf("caller = %+v, want nil", caller)
	}
}

func TestResolver_AccessCookie(t *testing.T) {
	resolver, issuer := newTestResolver(t, liveSessionRepo("user-1"), nil)
	token, _, _ := issuer.Issue("user-1", "refresh-1")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: token})
	sink := &recordingSink{}

	caller, err := resolver.Resolve(context.Background(), req, sink)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if caller == nil || caller.UserID != "user-1" || caller.AccessToken != token {
		t.Errorf("caller = %+v", caller)
	}
	if len(sink.cookies) != 0 {
		t.Errorf("valid access cookie should not trigger a refresh, got %d cookies", len(sink.cookies))
	}
}

func TestResolver_RefreshesExpiredAccessToken(t *testing.T) {
	observer := &recordingObserver{}
	resolver, issuer := newTestResolver(t, liveSessionRepo("user-1"), observer)

	stale := newTestIssuer(t)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, _ := stale.Issue("user-1", "refresh-1")

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: expired})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "refresh-1"})
	sink := &recordingSink{}

	caller, err := resolver.Resolve(context.Background(), req, sink)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if caller == nil || caller.UserID != "user-1" {
		t.Fatalf("caller = %+v, want user-1", caller)
	}

	c := sink.find(AccessTokenCookieName)
	if c == nil {
		t.Fatal("new access token cookie should be written")
	}
	if c.Value != caller.AccessToken || !c.HttpOnly || !c.Secure || c.Path != "/" || c.MaxAge <= 0 {
		t.Errorf("unexpected access cookie: %+v", c)
	}
	if _, err := issuer.Verify(c.Value); err != nil {
		t.Errorf("refreshed token should verify: %v", err)
	}
	if len(observer.results) != 1 || observer.results[0] != RefreshResultRefreshed {
		t.Errorf("observer results = %v", observer.results)
	}
}

func TestResolver_MissingRefreshSessionClearsCookies(t *testing.T) {
	observer := &recordingObserver{}
	resolver, _ := newTestResolver(t, liveSessionRepo("user-1"), observer)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "revoked"})
	sink := &recordingSink{}

	caller, err := resolver.Resolve(context.Background(), req, sink)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if caller != nil {
		t.Errorf("caller = %+v, want nil", caller)
	}

	for _, name := range []string{AccessTokenCookieName, SessionCookieName} {
		c := sink.find(name)
		if c == nil || c.MaxAge >= 0 || c.Value != "" {
			t.Errorf("cookie %s should be cleared, got %+v", name, c)
		}
	}
	if len(observer.results) != 1 || observer.results[0] != RefreshResultMissing {
		t.Errorf("observer results = %v", observer.results)
	}
}

func TestResolver_BackendErrorIsDistinguished(t *testing.T) {
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	resolver, _ := newTestResolver(t, repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "refresh-1"})

	caller, err := resolver.Resolve(context.Background(), req, &recordingSink{})
	if !errors.Is(err, ErrIdentityBackend) {
		t.Fatalf("error = %v, want ErrIdentityBackend", err)
	}
	if caller != nil {
		t.Errorf("caller = %+v, want nil", caller)
	}
}

func TestResolver_MutationWithRevokedSession(t *testing.T) {
	resolver, issuer := newTestResolver(t, liveSessionRepo("user-1"), nil)
	live, _, _ := issuer.Issue("user-1", "refresh-1")
	revoked, _, _ := issuer.Issue("user-1", "logged-out")

	tests := []struct {
		name       string
		method     string
		token      string
		viaCookie  bool
		wantCaller bool
	}{
		{"bearer read with revoked session", http.MethodGet, revoked, false, true},
		{"bearer write with revoked session", http.MethodPost, revoked, false, false},
		{"bearer write with live session", http.MethodPatch, live, false, true},
		{"cookie write with revoked session", http.MethodDelete, revoked, true, false},
		{"cookie write with live session", http.MethodDelete, live, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/books", nil)
			if tt.viaCookie {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: tt.token})
			} else {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			sink := &recordingSink{}

			caller, err := resolver.Resolve(context.Background(), req, sink)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if (caller != nil) != tt.wantCaller {
				t.Fatalf("caller = %+v, wantCaller %v", caller, tt.wantCaller)
			}
			if tt.viaCookie && !tt.wantCaller {
				if c := sink.find(AccessTokenCookieName); c == nil || c.MaxAge >= 0 {
					t.Errorf("access cookie should be cleared, got %+v", c)
				}
			}
		})
	}
}

func TestResolver_MutationSessionCheckBackendError(t *testing.T) {
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	resolver, issuer := newTestResolver(t, repo, nil)
	token, _, _ := issuer.Issue("user-1", "refresh-1")

	req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if _, err := resolver.Resolve(context.Background(), req, &recordingSink{}); !errors.Is(err, ErrIdentityBackend) {
		t.Fatalf("error = %v, want ErrIdentityBackend", err)
	}
}

func TestIsBearerRequest(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"Bearer abc", true},
		{"bearer abc", true},
		{"Bearer ", false},
		{"Basic dXNlcjpwYXNz", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := IsBearerRequest(req); got != tt.want {
			t.Errorf("IsBearerRequest(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
