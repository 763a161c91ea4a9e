package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/booklog/internal/auth"
	"github.com/hitoshi/booklog/internal/book"
	"github.com/hitoshi/booklog/internal/middleware"
	"github.com/hitoshi/booklog/internal/model"
)

// BookServiceInterface は本ハンドラーが必要とするサービスインターフェース。
// book.Serviceが実装する。呼び出し元がnilの場合はUNAUTHORIZEDを返す。
type BookServiceInterface interface {
	List(ctx context.Context, caller *auth.Caller, filter model.BookFilter) ([]*model.Book, error)
	Create(ctx context.Context, caller *auth.Caller, in book.CreateInput) (*model.Book, error)
	Update(ctx context.Context, caller *auth.Caller, id string, in book.UpdateInput) (*model.Book, error)
	Delete(ctx context.Context, caller *auth.Caller, id string) error
	DeleteScoped(ctx context.Context, caller *auth.Caller, id string) error
}

// BookHandler は本の記録管理のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// createBookRequest は本の作成リクエストのボディ。
// id、user_id、created_at はクライアントから受け付けない。
type createBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Status string `json:"status"`
}

// updateBookRequest は本の部分更新リクエストのボディ。
type updateBookRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Status *string `json:"status"`
}

// bookResponse は本のAPIレスポンス。
type bookResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type bookListResponse struct {
	Books []bookResponse `json:"books"`
}

type bookEnvelope struct {
	Book bookResponse `json:"book"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Title:     b.Title,
		Author:    b.Author,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
	}
}

// List は呼び出し元の本一覧を返す。
// GET /api/books?status=&search=
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.NewBookFilter(q.Get("status"), q.Get("search"))

	books, err := h.service.List(r.Context(), middleware.CallerFromContext(r.Context()), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := bookListResponse{Books: make([]bookResponse, 0, len(books))}
	for _, b := range books {
		resp.Books = append(resp.Books, toBookResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create は本を作成する。
// POST /api/books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	created, err := h.service.Create(r.Context(), middleware.CallerFromContext(r.Context()), book.CreateInput{
		Title:  req.Title,
		Author: req.Author,
		Status: req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookEnvelope{Book: toBookResponse(created)})
}

// Update は本を部分更新する。
// PATCH /api/books/{id}
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	updated, err := h.service.Update(r.Context(), middleware.CallerFromContext(r.Context()), id, book.UpdateInput{
		Title:  req.Title,
		Author: req.Author,
		Status: req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookEnvelope{Book: toBookResponse(updated)})
}

// Delete は所有者を確認してから本を削除する。
// DELETE /api/books/{id}
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "Book deleted"})
}

// DeleteByQuery はIDと所有者を条件にした1クエリで本を削除する。
// DELETE /api/books?id=
func (h *BookHandler) DeleteByQuery(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("id is required"))
		return
	}

	if err := h.service.DeleteScoped(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "Book deleted"})
}

// compile-time interface check
var _ BookServiceInterface = (*book.Service)(nil)
