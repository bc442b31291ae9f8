package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/repository"
)

// RefreshManager は不透明リフレッシュトークンの発行・検証・ローテーションを管理する。
// トークン文字列自体に情報は載せず、DB上のレコードを正とする。
type RefreshManager struct {
	repo repository.RefreshTokenRepository
	ttl  time.Duration

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewRefreshManager はRefreshManagerを生成する。
func NewRefreshManager(repo repository.RefreshTokenRepository, ttl time.Duration) *RefreshManager {
	return &RefreshManager{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Issue は指定ユーザーの新しいリフレッシュトークンを発行して保存する。
func (m *RefreshManager) Issue(ctx context.Context, userID string) (*model.RefreshToken, error) {
	rt := m.newToken(userID)
	if err := m.repo.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return rt, nil
}

// Validate はトークン文字列を検証し、有効であればレコードを返す。
// 不存在・失効済み・期限切れはいずれもErrCodeInvalidRefreshTokenのAPIErrorを返す。
func (m *RefreshManager) Validate(ctx context.Context, tokenString string) (*model.RefreshToken, error) {
	rt, err := m.repo.FindByToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if rt == nil || !rt.Valid(m.now()) {
		return nil, model.NewInvalidRefreshTokenError()
	}
	return rt, nil
}

// Rotate は旧トークンを検証したうえで失効させ、同一ユーザーの新トークンを発行する。
// 失効と発行は同一トランザクションで行われ、旧トークンは再利用できない。
func (m *RefreshManager) Rotate(ctx context.Context, oldTokenString string) (*model.RefreshToken, error) {
	old, err := m.Validate(ctx, oldTokenString)
	if err != nil {
		return nil, err
	}

	rt := m.newToken(old.UserID)
	if err := m.repo.Rotate(ctx, old.Token, rt); err != nil {
		// 検証からローテーションまでの間に並行リクエストが先にローテーション
		// した場合もここに到達する。使用済みトークン扱いにする。
		return nil, model.NewInvalidRefreshTokenError()
	}
	return rt, nil
}

// Revoke は指定トークンを失効させる。存在しないトークンでもエラーにしない。
func (m *RefreshManager) Revoke(ctx context.Context, tokenString string) error {
	if err := m.repo.Revoke(ctx, tokenString); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll は指定ユーザーの全トークンを失効させる。
func (m *RefreshManager) RevokeAll(ctx context.Context, userID string) error {
	if err := m.repo.RevokeAllByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

func (m *RefreshManager) newToken(userID string) *model.RefreshToken {
	now := m.now()
	return &model.RefreshToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		Revoked:   false,
		CreatedAt: now,
	}
}
