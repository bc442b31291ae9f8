package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/matchside/internal/model"
)

// PostgresRefreshTokenRepo はPostgreSQLを使用したリフレッシュトークンリポジトリ。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Create はリフレッシュトークンを保存する。
func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.Token, token.UserID, token.ExpiresAt, token.Revoked, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

// FindByToken はトークン文字列でリフレッシュトークンを取得する。
// 見つからない場合はnilを返す。失効・期限切れの判定は呼び出し側で行う。
func (r *PostgresRefreshTokenRepo) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	rt := &model.RefreshToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE token = $1`,
		token,
	).Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.Revoked, &rt.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return rt, nil
}

// Rotate は旧トークンの失効と新トークンの保存を同一トランザクションで行う。
// 片方だけが反映された状態を残さない。
func (r *PostgresRefreshTokenRepo) Rotate(ctx context.Context, oldToken string, newToken *model.RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 旧トークンを失効させる
	result, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE token = $1 AND revoked = false`,
		oldToken,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke old refresh token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 既に失効済みのトークンでのローテーションは並行リクエストの競合を意味する
		return fmt.Errorf("refresh token already revoked or missing: %s", oldToken)
	}

	// 新トークンを保存する
	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		newToken.Token, newToken.UserID, newToken.ExpiresAt, newToken.Revoked, newToken.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert new refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Revoke は指定トークンを失効させる。
func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllByUserID は指定ユーザーの全トークンを失効させる。
func (r *PostgresRefreshTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens for user: %w", err)
	}
	return nil
}

// DeleteExpiredBefore は期限がcutoffより前のトークンを削除し、削除件数を返す。
func (r *PostgresRefreshTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
