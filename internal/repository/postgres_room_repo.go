package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/matchside/internal/model"
)

// PostgresRoomRepo はPostgreSQLを使用したライブルームリポジトリ。
type PostgresRoomRepo struct {
	db *sql.DB
}

// NewPostgresRoomRepo はPostgresRoomRepoを生成する。
func NewPostgresRoomRepo(db *sql.DB) *PostgresRoomRepo {
	return &PostgresRoomRepo{db: db}
}

// FindByRoomID は正規化済みルームIDでルームを取得する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByRoomID(ctx context.Context, roomID string) (*model.LiveRoom, error) {
	room := &model.LiveRoom{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, room_id, status, created_at, updated_at
		 FROM live_rooms WHERE room_id = $1`,
		roomID,
	).Scan(&room.ID, &room.Name, &room.RoomID, &room.Status, &room.CreatedAt, &room.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	return room, nil
}

// Create はルームを作成する。
func (r *PostgresRoomRepo) Create(ctx context.Context, room *model.LiveRoom) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO live_rooms (id, name, room_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		room.ID, room.Name, room.RoomID, room.Status, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ルームの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus はルームの状態を更新する。
func (r *PostgresRoomRepo) UpdateStatus(ctx context.Context, roomID string, status model.RoomStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE live_rooms SET status = $2, updated_at = now() WHERE room_id = $1`,
		roomID, status,
	)
	if err != nil {
		return fmt.Errorf("ルーム状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("room not found: %s", roomID)
	}
	return nil
}

// List は全ルームを作成日時降順で返す。
func (r *PostgresRoomRepo) List(ctx context.Context) ([]*model.LiveRoom, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, room_id, status, created_at, updated_at
		 FROM live_rooms ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ルーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var rooms []*model.LiveRoom
	for rows.Next() {
		room := &model.LiveRoom{}
		if err := rows.Scan(&room.ID, &room.Name, &room.RoomID, &room.Status,
			&room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ルーム行の読み取りに失敗しました: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ルーム一覧の走査に失敗しました: %w", err)
	}
	return rooms, nil
}

// DeleteEndedBefore は終了済みかつ更新日時がcutoffより前のルームを削除し、削除件数を返す。
func (r *PostgresRoomRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM live_rooms WHERE status = 'ENDED' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("終了済みルームの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ RoomRepository = (*PostgresRoomRepo)(nil)
