// Package password はパスワードのハッシュ化と検証を提供する。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost はbcryptのコストパラメータ。
const hashCost = 10

// Hash は平文パスワードをbcryptでハッシュ化する。
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードとハッシュが一致するかを返す。
// タイミング攻撃への耐性はbcrypt.CompareHashAndPasswordに依存する。
func Verify(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
