package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/matchside/internal/model"
)

// PostgresPlayerRepo はPostgreSQLを使用した選手リポジトリ。
type PostgresPlayerRepo struct {
	db *sql.DB
}

// NewPostgresPlayerRepo はPostgresPlayerRepoを生成する。
func NewPostgresPlayerRepo(db *sql.DB) *PostgresPlayerRepo {
	return &PostgresPlayerRepo{db: db}
}

const playerColumns = `id, name, number, position, team, COALESCE(image_url, ''), created_at, updated_at`

// FindByID は指定IDの選手を取得する。見つからない場合はnilを返す。
func (r *PostgresPlayerRepo) FindByID(ctx context.Context, id string) (*model.Player, error) {
	player := &model.Player{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`,
		id,
	).Scan(&player.ID, &player.Name, &player.Number, &player.Position, &player.Team,
		&player.ImageURL, &player.CreatedAt, &player.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	return player, nil
}

// FindByTeamAndNumber はチーム名と背番号で選手を検索する。
// 画像解析結果からの逆引きに使用する。見つからない場合はnilを返す。
func (r *PostgresPlayerRepo) FindByTeamAndNumber(ctx context.Context, team string, number int) (*model.Player, error) {
	player := &model.Player{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE team = $1 AND number = $2`,
		team, number,
	).Scan(&player.ID, &player.Name, &player.Number, &player.Position, &player.Team,
		&player.ImageURL, &player.CreatedAt, &player.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("選手の逆引きに失敗しました: %w", err)
	}
	return player, nil
}

// List は全選手をチーム名・背番号順で返す。
func (r *PostgresPlayerRepo) List(ctx context.Context) ([]*model.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players ORDER BY team ASC, number ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("選手一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		player := &model.Player{}
		if err := rows.Scan(&player.ID, &player.Name, &player.Number, &player.Position,
			&player.Team, &player.ImageURL, &player.CreatedAt, &player.UpdatedAt); err != nil {
			return nil, fmt.Errorf("選手行の読み取りに失敗しました: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("選手一覧の走査に失敗しました: %w", err)
	}
	return players, nil
}

// Create は選手を作成する。
func (r *PostgresPlayerRepo) Create(ctx context.Context, player *model.Player) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO players (id, name, number, position, team, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		player.ID, player.Name, player.Number, player.Position, player.Team,
		nullString(player.ImageURL), player.CreatedAt, player.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("選手の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は選手情報を更新する。
func (r *PostgresPlayerRepo) Update(ctx context.Context, player *model.Player) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players
		 SET name = $2, number = $3, position = $4, team = $5, image_url = $6, updated_at = $7
		 WHERE id = $1`,
		player.ID, player.Name, player.Number, player.Position, player.Team,
		nullString(player.ImageURL), player.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("選手の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("player not found: %s", player.ID)
	}
	return nil
}

// DeleteByID は指定IDの選手を削除する。
// 関連するplayer_performancesはCASCADE削除される。
func (r *PostgresPlayerRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM players WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("選手の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("player not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ PlayerRepository = (*PostgresPlayerRepo)(nil)

// PostgresPerformanceRepo はPostgreSQLを使用したパフォーマンス記録リポジトリ。
type PostgresPerformanceRepo struct {
	db *sql.DB
}

// NewPostgresPerformanceRepo はPostgresPerformanceRepoを生成する。
func NewPostgresPerformanceRepo(db *sql.DB) *PostgresPerformanceRepo {
	return &PostgresPerformanceRepo{db: db}
}

const performanceColumns = `id, player_id, match_id, goals, assists, rating, energy, speed, performance, created_at`

// ListByPlayerID は指定選手のパフォーマンス記録を作成日時降順で返す。
func (r *PostgresPerformanceRepo) ListByPlayerID(ctx context.Context, playerID string) ([]*model.PlayerPerformance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+performanceColumns+` FROM player_performances
		 WHERE player_id = $1 ORDER BY created_at DESC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("パフォーマンス記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var perfs []*model.PlayerPerformance
	for rows.Next() {
		perf := &model.PlayerPerformance{}
		if err := rows.Scan(&perf.ID, &perf.PlayerID, &perf.MatchID, &perf.Goals, &perf.Assists,
			&perf.Rating, &perf.Energy, &perf.Speed, &perf.Performance, &perf.CreatedAt); err != nil {
			return nil, fmt.Errorf("パフォーマンス行の読み取りに失敗しました: %w", err)
		}
		perfs = append(perfs, perf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("パフォーマンス記録の走査に失敗しました: %w", err)
	}
	return perfs, nil
}

// FindByPlayerAndMatch は選手IDと試合IDでパフォーマンス記録を取得する。
// 見つからない場合はnilを返す。
func (r *PostgresPerformanceRepo) FindByPlayerAndMatch(ctx context.Context, playerID, matchID string) (*model.PlayerPerformance, error) {
	perf := &model.PlayerPerformance{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+performanceColumns+` FROM player_performances
		 WHERE player_id = $1 AND match_id = $2`,
		playerID, matchID,
	).Scan(&perf.ID, &perf.PlayerID, &perf.MatchID, &perf.Goals, &perf.Assists,
		&perf.Rating, &perf.Energy, &perf.Speed, &perf.Performance, &perf.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("パフォーマンス記録の取得に失敗しました: %w", err)
	}
	return perf, nil
}

// Upsert はパフォーマンス記録を冪等にUPSERTする。
// (player_id, match_id) が既存の場合は上書き更新する。
func (r *PostgresPerformanceRepo) Upsert(ctx context.Context, perf *model.PlayerPerformance) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO player_performances
		     (id, player_id, match_id, goals, assists, rating, energy, speed, performance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (player_id, match_id) DO UPDATE
		 SET goals = EXCLUDED.goals, assists = EXCLUDED.assists, rating = EXCLUDED.rating,
		     energy = EXCLUDED.energy, speed = EXCLUDED.speed, performance = EXCLUDED.performance`,
		perf.ID, perf.PlayerID, perf.MatchID, perf.Goals, perf.Assists,
		perf.Rating, perf.Energy, perf.Speed, perf.Performance, perf.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("パフォーマンス記録のUPSERTに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PerformanceRepository = (*PostgresPerformanceRepo)(nil)
