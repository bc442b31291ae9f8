// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "USER"
	// RoleAdmin は管理者。ユーザー管理と試合データ管理の操作が許可される。
	RoleAdmin Role = "ADMIN"
)

// IsValid はRoleが定義済みの値であるかを返す。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// ソーシャルログインのみで作成されたユーザーはPasswordHashが空になる。
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Role              Role
	IsActive          bool
	SocialProvider    string // "google", "apple"。ローカル認証のみの場合は空。
	SocialID          string // 外部IdPが発行したユーザーID。
	ProfilePictureURL string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullName は表示用の氏名を返す。LastNameが空の場合はFirstNameのみを返す。
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
