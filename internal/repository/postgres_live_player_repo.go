package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/matchside/internal/model"
)

// PostgresLivePlayerRepo はPostgreSQLを使用したライブ出演情報リポジトリ。
type PostgresLivePlayerRepo struct {
	db *sql.DB
}

// NewPostgresLivePlayerRepo はPostgresLivePlayerRepoを生成する。
func NewPostgresLivePlayerRepo(db *sql.DB) *PostgresLivePlayerRepo {
	return &PostgresLivePlayerRepo{db: db}
}

const livePlayerColumns = `id, player_id, COALESCE(image_url, ''), COALESCE(video_url, ''), is_active, coordinates, last_seen, created_at, updated_at`

func scanLivePlayer(scan func(dest ...any) error) (*model.LivePlayer, error) {
	lp := &model.LivePlayer{}
	var coords []byte
	if err := scan(&lp.ID, &lp.PlayerID, &lp.ImageURL, &lp.VideoURL, &lp.IsActive,
		&coords, &lp.LastSeen, &lp.CreatedAt, &lp.UpdatedAt); err != nil {
		return nil, err
	}
	lp.Coordinates = coords
	return lp, nil
}

// FindByID は指定IDのライブ出演情報を取得する。見つからない場合はnilを返す。
func (r *PostgresLivePlayerRepo) FindByID(ctx context.Context, id string) (*model.LivePlayer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+livePlayerColumns+` FROM live_players WHERE id = $1`,
		id,
	)
	lp, err := scanLivePlayer(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	return lp, nil
}

// FindByPlayerID は選手IDでライブ出演情報を取得する。見つからない場合はnilを返す。
func (r *PostgresLivePlayerRepo) FindByPlayerID(ctx context.Context, playerID string) (*model.LivePlayer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+livePlayerColumns+` FROM live_players WHERE player_id = $1`,
		playerID,
	)
	lp, err := scanLivePlayer(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	return lp, nil
}

// List は全ライブ出演情報を最終検出時刻降順で返す。
func (r *PostgresLivePlayerRepo) List(ctx context.Context) ([]*model.LivePlayer, error) {
	return r.list(ctx,
		`SELECT `+livePlayerColumns+` FROM live_players ORDER BY last_seen DESC`)
}

// ListActive は出演中のレコードのみを最終検出時刻降順で返す。
func (r *PostgresLivePlayerRepo) ListActive(ctx context.Context) ([]*model.LivePlayer, error) {
	return r.list(ctx,
		`SELECT `+livePlayerColumns+` FROM live_players WHERE is_active = TRUE ORDER BY last_seen DESC`)
}

func (r *PostgresLivePlayerRepo) list(ctx context.Context, query string) ([]*model.LivePlayer, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var players []*model.LivePlayer
	for rows.Next() {
		lp, err := scanLivePlayer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ライブ出演情報行の読み取りに失敗しました: %w", err)
		}
		players = append(players, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ライブ出演情報一覧の走査に失敗しました: %w", err)
	}
	return players, nil
}

// Create はライブ出演情報を作成する。
func (r *PostgresLivePlayerRepo) Create(ctx context.Context, lp *model.LivePlayer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO live_players
		     (id, player_id, image_url, video_url, is_active, coordinates, last_seen, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lp.ID, lp.PlayerID, nullString(lp.ImageURL), nullString(lp.VideoURL),
		lp.IsActive, nullJSON(lp.Coordinates), lp.LastSeen, lp.CreatedAt, lp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ライブ出演情報の作成に失敗しました: %w", err)
	}
	return nil
}

// Update はライブ出演情報を更新する。
func (r *PostgresLivePlayerRepo) Update(ctx context.Context, lp *model.LivePlayer) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE live_players
		 SET image_url = $2, video_url = $3, is_active = $4, coordinates = $5,
		     last_seen = $6, updated_at = $7
		 WHERE id = $1`,
		lp.ID, nullString(lp.ImageURL), nullString(lp.VideoURL), lp.IsActive,
		nullJSON(lp.Coordinates), lp.LastSeen, lp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ライブ出演情報の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("live player not found: %s", lp.ID)
	}
	return nil
}

// DeleteByID は指定IDのライブ出演情報を削除する。
func (r *PostgresLivePlayerRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM live_players WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ライブ出演情報の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("live player not found: %s", id)
	}
	return nil
}

// nullJSON は空のJSONをNULLとして保存するためのヘルパー。
func nullJSON(j []byte) any {
	if len(j) == 0 {
		return nil
	}
	return j
}

// compile-time interface check
var _ LivePlayerRepository = (*PostgresLivePlayerRepo)(nil)
