package security

import "github.com/microcosm-cc/bluemonday"

// TextSanitizerService はプレーンテキスト向けのサニタイズ機能のインターフェースを定義する。
// 字幕配信や生成文章など、HTMLタグを一切残したくない出力に使用する。
type TextSanitizerService interface {
	// SanitizeText は入力から全てのHTMLタグを除去したテキストを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力から全てのHTMLタグを除去したテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	return s.policy.Sanitize(raw)
}
