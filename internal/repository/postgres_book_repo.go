package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/booklog/internal/model"
)

// errInvalidID はIDがUUIDとして解釈できなかったことを表す。
// 呼び出し側には「見つからない」として扱わせる。
var errInvalidID = errors.New("invalid id")

// PostgresBookRepo はPostgreSQLを使用した本リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(s rowScanner) (*model.Book, error) {
	b := &model.Book{}
	if err := s.Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.Status, &b.CreatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

// List は所有者の本を絞り込み条件付きで作成日時の降順に返す。
func (r *PostgresBookRepo) List(ctx context.Context, q BookQuery) ([]*model.Book, error) {
	query, args := q.Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", mapPQError(err))
	}
	defer rows.Close()

	books := []*model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// FindByID は指定IDの本を取得する。見つからない場合やIDの形式が不正な場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if errors.Is(mapPQError(err), errInvalidID) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return b, nil
}

// Create は本を作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, user_id, title, author, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		book.ID, book.UserID, book.Title, book.Author, string(book.Status), book.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", mapPQError(err))
	}
	return nil
}

// UpdateOwned は所有者が一致する本だけを部分更新し、更新後の本を返す。
// nilのフィールドはCOALESCEで既存値を維持する。
func (r *PostgresBookRepo) UpdateOwned(ctx context.Context, id, ownerID string, patch model.BookPatch) (*model.Book, error) {
	var title, author, status sql.NullString
	if patch.Title != nil {
		title = sql.NullString{String: *patch.Title, Valid: true}
	}
	if patch.Author != nil {
		author = sql.NullString{String: *patch.Author, Valid: true}
	}
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}

	b, err := scanBook(r.db.QueryRowContext(ctx,
		`UPDATE books
		 SET title = COALESCE($3, title),
		     author = COALESCE($4, author),
		     status = COALESCE($5, status)
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+bookColumns,
		id, ownerID, title, author, status,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if errors.Is(mapPQError(err), errInvalidID) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return b, nil
}

// DeleteOwned は所有者が一致する本だけを削除する。
func (r *PostgresBookRepo) DeleteOwned(ctx context.Context, id, ownerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM books WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		if errors.Is(mapPQError(err), errInvalidID) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete book: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// mapPQError はPostgreSQLのエラーコードをリポジトリのエラーに変換する。
// 対応しないエラーはそのまま返す。
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case pgerrcode.InvalidTextRepresentation:
		return fmt.Errorf("%w: %s", errInvalidID, pqErr.Message)
	case pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint violation: %s: %w", pqErr.Constraint, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("foreign key violation: %s: %w", pqErr.Constraint, err)
	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)
	default:
		return err
	}
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
