// Package token はアクセストークン（JWT）とリフレッシュトークンの発行・検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/matchside/internal/model"
)

// ErrInvalidToken は署名不正・期限切れ・形式不正のアクセストークンを表す。
var ErrInvalidToken = errors.New("invalid access token")

// Claims はアクセストークンのクレームを表す。
// subにユーザーID、email・roleを独自クレームとして持つ。
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer はHS256署名のアクセストークンを発行・検証する。
type Issuer struct {
	secret []byte
	ttl    time.Duration

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewIssuer はIssuerを生成する。
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue は指定ユーザーのアクセストークンを発行する。
func (i *Issuer) Issue(userID, email string, role model.Role) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify はアクセストークンを検証し、クレームを返す。
// 署名不正・期限切れ・HS256以外の署名方式はErrInvalidTokenを返す。
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(i.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
