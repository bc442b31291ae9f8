package model

import "time"

// RefreshToken は長期有効な不透明トークンのレコードを表す。
// トークン値そのものが主キーであり、ローテーション時は旧レコードを
// revoked=true にした上で新レコードを発行する。物理削除は期限切れ
// レコードのクリーンアップジョブでのみ行う。
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Expired は現在時刻を基準にトークンが期限切れかを返す。
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Valid はトークンが失効も期限切れもしていないことを返す。
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}
