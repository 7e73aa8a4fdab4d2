// Package security は出品データのサニタイズとURL検証を提供する。
//
// ListingSanitizer はストア名や出品タイトルなどのユーザー入力からHTMLを除去し、
// 説明文には最低限の書式タグのみを許可する。
// bluemondayライブラリを使用した許可リストベースのポリシーを用いる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ListingSanitizer は出品・ストアのテキスト入力をサニタイズする。
type ListingSanitizer interface {
	// PlainText は全てのタグを除去し、前後の空白を取り除いたテキストを返す。
	// 名前やタイトルなど1行のフィールドに使用する。
	PlainText(s string) string

	// Description は許可タグ（p, br, ul, ol, li, strong, em）のみを残した説明文を返す。
	// script, iframe, style, a, imgおよびon*イベント属性は除去される。
	Description(s string) string
}

// listingSanitizer はListingSanitizerの実装。
// bluemondayのポリシーはゴルーチンセーフなので共有して使う。
type listingSanitizer struct {
	strict      *bluemonday.Policy
	description *bluemonday.Policy
}

// NewListingSanitizer はListingSanitizerの新しいインスタンスを生成する。
func NewListingSanitizer() *listingSanitizer {
	desc := bluemonday.NewPolicy()
	// リンクと画像は説明文に含めない。画像は images フィールドで個別に検証する。
	desc.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	return &listingSanitizer{
		strict:      bluemonday.StrictPolicy(),
		description: desc,
	}
}

// plainTextMaxPasses は文字参照の多重エンコードを展開する最大回数。
const plainTextMaxPasses = 8

// PlainText は全てのタグを除去したテキストを返す。
// bluemondayがエスケープした文字参照は元の文字に戻す（JSONとして返すため）。
// 戻した結果にタグが現れることがあるため、出力が変化しなくなるまで繰り返す。
// 戻り値に対して再度PlainTextを適用しても同じ文字列になる。
func (s *listingSanitizer) PlainText(raw string) string {
	current := raw
	for i := 0; i < plainTextMaxPasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(current)))
		if next == current {
			return next
		}
		current = next
	}
	// 収束しない入力は空として扱い、必須チェックで弾く。
	return ""
}

// Description は許可タグのみを残した説明文を返す。
func (s *listingSanitizer) Description(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.description.Sanitize(raw))
}

var _ ListingSanitizer = (*listingSanitizer)(nil)
