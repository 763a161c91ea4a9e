package repository

import (
	"strconv"
	"strings"

	"github.com/hitoshi/booklog/internal/model"
)

// bookColumns は本のSELECT列。scanBookの引数順と一致させる。
const bookColumns = `id, user_id, title, author, status, created_at`

// BookQuery は本一覧の検索条件。
// OwnerIDは必須で、生成されるSQLは常に user_id で絞り込む。
type BookQuery struct {
	OwnerID string
	Filter  model.BookFilter
}

// Build はSELECT文とプレースホルダ引数を生成する。
//
//	WHERE user_id = $1 [AND status = $n] [AND (title ILIKE $n OR author ILIKE $n)]
//	ORDER BY created_at DESC, id DESC
//
// 無効なstatusは条件に含めない。searchはLIKEのメタ文字をエスケープした部分一致になる。
func (q BookQuery) Build() (string, []any) {
	var sb strings.Builder
	args := []any{q.OwnerID}

	sb.WriteString(`SELECT ` + bookColumns + ` FROM books WHERE user_id = $1`)

	if q.Filter.Status.Valid() {
		args = append(args, string(q.Filter.Status))
		sb.WriteString(` AND status = $` + strconv.Itoa(len(args)))
	}

	if search := strings.TrimSpace(q.Filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := strconv.Itoa(len(args))
		sb.WriteString(` AND (title ILIKE $` + n + ` OR author ILIKE $` + n + `)`)
	}

	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	return sb.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike はLIKEパターン中の \ % _ をリテラルとして扱うようにエスケープする。
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
