// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/booklog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID はユーザーの本、セッション、ユーザー自身を同一トランザクションで削除する。
	// 関連するidentitiesはCASCADE削除される。存在しない場合はUSER_NOT_FOUNDを返す。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はリフレッシュセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// BookRepository は本の永続化インターフェース。
// 更新系のメソッドは必ず所有者IDを条件に含め、IDだけでの更新・削除は提供しない。
type BookRepository interface {
	// List は所有者の本を絞り込み条件付きで作成日時の降順に返す。
	List(ctx context.Context, q BookQuery) ([]*model.Book, error)

	// FindByID は指定IDの本を取得する。見つからない場合やIDの形式が不正な場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// Create は本を作成する。IDとCreatedAtは呼び出し側で設定する。
	Create(ctx context.Context, book *model.Book) error

	// UpdateOwned は所有者が一致する本だけを部分更新し、更新後の本を返す。
	// 該当行がない場合はnilを返す。
	UpdateOwned(ctx context.Context, id, ownerID string, patch model.BookPatch) (*model.Book, error)

	// DeleteOwned は所有者が一致する本だけを削除する。
	// 該当行がない場合はfalseを返す。
	DeleteOwned(ctx context.Context, id, ownerID string) (bool, error)
}
