package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/matchside/internal/model"
)

// PostgresMatchRepo はPostgreSQLを使用した試合リポジトリ。
type PostgresMatchRepo struct {
	db *sql.DB
}

// NewPostgresMatchRepo はPostgresMatchRepoを生成する。
func NewPostgresMatchRepo(db *sql.DB) *PostgresMatchRepo {
	return &PostgresMatchRepo{db: db}
}

const matchColumns = `id, stadium, date, home_team, away_team, home_score, away_score,
	 status, COALESCE(image_url, ''), created_at, updated_at`

// FindByID は指定IDの試合を取得する。見つからない場合はnilを返す。
func (r *PostgresMatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	match := &model.Match{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`,
		id,
	).Scan(&match.ID, &match.Stadium, &match.Date, &match.HomeTeam, &match.AwayTeam,
		&match.HomeScore, &match.AwayScore, &match.Status, &match.ImageURL,
		&match.CreatedAt, &match.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	return match, nil
}

// FindLive はライブ中の試合を1件取得する。複数ある場合は開始日時が最新のもの。
// 見つからない場合はnilを返す。
func (r *PostgresMatchRepo) FindLive(ctx context.Context) (*model.Match, error) {
	match := &model.Match{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE status = 'LIVE'
		 ORDER BY date DESC LIMIT 1`,
	).Scan(&match.ID, &match.Stadium, &match.Date, &match.HomeTeam, &match.AwayTeam,
		&match.HomeScore, &match.AwayScore, &match.Status, &match.ImageURL,
		&match.CreatedAt, &match.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ライブ試合の取得に失敗しました: %w", err)
	}
	return match, nil
}

// List は全試合を開催日時降順で返す。
func (r *PostgresMatchRepo) List(ctx context.Context) ([]*model.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("試合一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		match := &model.Match{}
		if err := rows.Scan(&match.ID, &match.Stadium, &match.Date, &match.HomeTeam,
			&match.AwayTeam, &match.HomeScore, &match.AwayScore, &match.Status,
			&match.ImageURL, &match.CreatedAt, &match.UpdatedAt); err != nil {
			return nil, fmt.Errorf("試合行の読み取りに失敗しました: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("試合一覧の走査に失敗しました: %w", err)
	}
	return matches, nil
}

// Create は試合を作成する。
func (r *PostgresMatchRepo) Create(ctx context.Context, match *model.Match) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO matches (id, stadium, date, home_team, away_team, home_score, away_score,
		     status, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		match.ID, match.Stadium, match.Date, match.HomeTeam, match.AwayTeam,
		match.HomeScore, match.AwayScore, match.Status, nullString(match.ImageURL),
		match.CreatedAt, match.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("試合の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は試合情報（スコア・状態含む）を更新する。
func (r *PostgresMatchRepo) Update(ctx context.Context, match *model.Match) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches
		 SET stadium = $2, date = $3, home_team = $4, away_team = $5, home_score = $6,
		     away_score = $7, status = $8, image_url = $9, updated_at = $10
		 WHERE id = $1`,
		match.ID, match.Stadium, match.Date, match.HomeTeam, match.AwayTeam,
		match.HomeScore, match.AwayScore, match.Status, nullString(match.ImageURL),
		match.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("試合の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("match not found: %s", match.ID)
	}
	return nil
}

// DeleteByID は指定IDの試合を削除する。
// 関連するmatch_events、player_performancesはCASCADE削除される。
func (r *PostgresMatchRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM matches WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("試合の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("match not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ MatchRepository = (*PostgresMatchRepo)(nil)

// PostgresMatchEventRepo はPostgreSQLを使用した試合イベントリポジトリ。
type PostgresMatchEventRepo struct {
	db *sql.DB
}

// NewPostgresMatchEventRepo はPostgresMatchEventRepoを生成する。
func NewPostgresMatchEventRepo(db *sql.DB) *PostgresMatchEventRepo {
	return &PostgresMatchEventRepo{db: db}
}

// ListByMatchID は指定試合のイベントを発生時刻順で返す。
func (r *PostgresMatchEventRepo) ListByMatchID(ctx context.Context, matchID string) ([]*model.MatchEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, match_id, minute, type, COALESCE(team, ''), COALESCE(player_name, ''),
		     COALESCE(description, ''), created_at
		 FROM match_events WHERE match_id = $1 ORDER BY minute ASC, created_at ASC`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("試合イベントの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []*model.MatchEvent
	for rows.Next() {
		event := &model.MatchEvent{}
		if err := rows.Scan(&event.ID, &event.MatchID, &event.Minute, &event.Type,
			&event.Team, &event.PlayerName, &event.Description, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("試合イベント行の読み取りに失敗しました: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("試合イベントの走査に失敗しました: %w", err)
	}
	return events, nil
}

// Create は試合イベントを追加する。
func (r *PostgresMatchEventRepo) Create(ctx context.Context, event *model.MatchEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_events (id, match_id, minute, type, team, player_name, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.MatchID, event.Minute, event.Type, nullString(event.Team),
		nullString(event.PlayerName), nullString(event.Description), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("試合イベントの作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MatchEventRepository = (*PostgresMatchEventRepo)(nil)
