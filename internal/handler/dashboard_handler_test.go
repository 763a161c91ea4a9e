package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/booklog/internal/middleware"
	"github.com/hitoshi/booklog/internal/model"
)

func TestDashboardHandler_Dashboard_ListsStatuses(t *testing.T) {
	h := NewDashboardHandler(&mockAuthService{
		getCurrentUserFn: func(ctx context.Context, userID string) (*model.User, error) {
			return &model.User{ID: userID, Name: "Alice"}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "alice"))
	w := httptest.NewRecorder()

	h.Dashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Alice") {
		t.Error("dashboard should show the user name")
	}
	for _, s := range model.BookStatuses {
		if !strings.Contains(body, `value="`+string(s)+`"`) {
			t.Errorf("dashboard should offer status %q", s)
		}
	}
}

func TestDashboardHandler_Dashboard_NoCaller_Redirects(t *testing.T) {
	h := NewDashboardHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.Dashboard(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/auth/login" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestDashboardHandler_Dashboard_UserLookupFails_Returns500(t *testing.T) {
	h := NewDashboardHandler(&mockAuthService{
		getCurrentUserFn: func(ctx context.Context, userID string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "alice"))
	w := httptest.NewRecorder()

	h.Dashboard(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Error("error details should not be rendered")
	}
}
