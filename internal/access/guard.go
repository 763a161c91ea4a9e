// Package access は本の記録に対する所有者ベースの認可判定を提供する。
package access

import (
	"github.com/hitoshi/booklog/internal/auth"
	"github.com/hitoshi/booklog/internal/model"
)

// Op は本に対する操作の種類。
type Op int

const (
	OpCreate Op = iota
	OpList
	OpRead
	OpUpdate
	OpDelete
)

// String は操作名を返す。ログとメトリクスのラベルに使う。
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpList:
		return "list"
	case OpRead:
		return "read"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Reason は拒否理由。
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonUnauthenticated は呼び出し元が解決できなかった。
	ReasonUnauthenticated
	// ReasonNotFound は対象が存在しないか、他人の所有物である。
	// 外部からは両者を区別できない。
	ReasonNotFound
)

// Decision は認可判定の結果。
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err は拒否理由に対応するAPIエラーを返す。許可された場合はnil。
func (d Decision) Err(bookID string) error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return model.NewUnauthorizedError()
	default:
		return model.NewBookNotFoundError(bookID)
	}
}

// Scope は読み取りクエリに必ず付与する所有者条件。
type Scope struct {
	OwnerID string
}

// Guard は呼び出し元と対象の本から操作可否を判定する。
// 状態を持たないため、ゼロ値のまま複数のリクエストで共有できる。
type Guard struct{}

// NewGuard はGuardを生成する。
func NewGuard() *Guard {
	return &Guard{}
}

// Authorize は操作の可否を判定する。
// OpCreate、OpList、OpReadは呼び出し元がいれば許可する（読み取りはScopeで絞り込む）。
// OpUpdate、OpDeleteは対象が存在し、所有者が呼び出し元と一致する場合のみ許可する。
func (g *Guard) Authorize(caller *auth.Caller, op Op, target *model.Book) Decision {
	if caller == nil || caller.UserID == "" {
		return Decision{Reason: ReasonUnauthenticated}
	}

	switch op {
	case OpCreate, OpList, OpRead:
		if op == OpRead && target != nil && target.UserID != caller.UserID {
			return Decision{Reason: ReasonNotFound}
		}
		return Decision{Allowed: true}
	case OpUpdate, OpDelete:
		if target == nil || target.UserID != caller.UserID {
			return Decision{Reason: ReasonNotFound}
		}
		return Decision{Allowed: true}
	default:
		return Decision{Reason: ReasonNotFound}
	}
}

// StampOwner は新規作成する本の所有者を呼び出し元に固定する。
// クライアントが送ったuser_idは常に上書きされる。
func (g *Guard) StampOwner(caller *auth.Caller, book *model.Book) {
	book.UserID = caller.UserID
}

// Scope は呼び出し元の所有者条件を返す。
func (g *Guard) Scope(caller *auth.Caller) Scope {
	return Scope{OwnerID: caller.UserID}
}
