// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/matchside/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindBySocialIdentity はソーシャルプロバイダーとプロバイダー側IDでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindBySocialIdentity(ctx context.Context, provider, socialID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザー情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時降順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するrefresh_tokensはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンを保存する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// FindByToken はトークン文字列でリフレッシュトークンを取得する。
	// 見つからない場合はnilを返す。失効・期限切れの判定は呼び出し側で行う。
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)

	// Rotate は旧トークンの失効と新トークンの保存を同一トランザクションで行う。
	// 片方だけが反映された状態を残さない。
	Rotate(ctx context.Context, oldToken string, newToken *model.RefreshToken) error

	// Revoke は指定トークンを失効させる。
	Revoke(ctx context.Context, token string) error

	// RevokeAllByUserID は指定ユーザーの全トークンを失効させる。
	RevokeAllByUserID(ctx context.Context, userID string) error

	// DeleteExpiredBefore は期限がcutoffより前のトークンを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PlayerRepository は選手データの永続化インターフェース。
type PlayerRepository interface {
	// FindByID は指定IDの選手を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Player, error)

	// FindByTeamAndNumber はチーム名と背番号で選手を検索する。
	// 画像解析結果からの逆引きに使用する。見つからない場合はnilを返す。
	FindByTeamAndNumber(ctx context.Context, team string, number int) (*model.Player, error)

	// List は全選手をチーム名・背番号順で返す。
	List(ctx context.Context) ([]*model.Player, error)

	// Create は選手を作成する。
	Create(ctx context.Context, player *model.Player) error

	// Update は選手情報を更新する。
	Update(ctx context.Context, player *model.Player) error

	// DeleteByID は指定IDの選手を削除する。
	// 関連するplayer_performancesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// PerformanceRepository は選手パフォーマンス記録の永続化インターフェース。
type PerformanceRepository interface {
	// ListByPlayerID は指定選手のパフォーマンス記録を作成日時降順で返す。
	ListByPlayerID(ctx context.Context, playerID string) ([]*model.PlayerPerformance, error)

	// FindByPlayerAndMatch は選手IDと試合IDでパフォーマンス記録を取得する。
	// 見つからない場合はnilを返す。
	FindByPlayerAndMatch(ctx context.Context, playerID, matchID string) (*model.PlayerPerformance, error)

	// Upsert はパフォーマンス記録を冪等にUPSERTする。
	// (player_id, match_id) が既存の場合は上書き更新する。
	Upsert(ctx context.Context, perf *model.PlayerPerformance) error
}

// LivePlayerRepository は選手のライブ出演状態の永続化インターフェース。
type LivePlayerRepository interface {
	// FindByID は指定IDのライブ出演情報を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.LivePlayer, error)

	// FindByPlayerID は選手IDでライブ出演情報を取得する。
	// 1選手につき1レコード。見つからない場合はnilを返す。
	FindByPlayerID(ctx context.Context, playerID string) (*model.LivePlayer, error)

	// List は全ライブ出演情報を最終検出時刻降順で返す。
	List(ctx context.Context) ([]*model.LivePlayer, error)

	// ListActive は出演中のレコードのみを最終検出時刻降順で返す。
	ListActive(ctx context.Context) ([]*model.LivePlayer, error)

	// Create はライブ出演情報を作成する。
	Create(ctx context.Context, lp *model.LivePlayer) error

	// Update はライブ出演情報（座標・最終検出時刻含む）を更新する。
	Update(ctx context.Context, lp *model.LivePlayer) error

	// DeleteByID は指定IDのライブ出演情報を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// MatchRepository は試合データの永続化インターフェース。
type MatchRepository interface {
	// FindByID は指定IDの試合を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Match, error)

	// FindLive はライブ中の試合を1件取得する。複数ある場合は開始日時が最新のもの。
	// 見つからない場合はnilを返す。
	FindLive(ctx context.Context) (*model.Match, error)

	// List は全試合を開催日時降順で返す。
	List(ctx context.Context) ([]*model.Match, error)

	// Create は試合を作成する。
	Create(ctx context.Context, match *model.Match) error

	// Update は試合情報（スコア・状態含む）を更新する。
	Update(ctx context.Context, match *model.Match) error

	// DeleteByID は指定IDの試合を削除する。
	// 関連するmatch_events、player_performancesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// MatchEventRepository は試合イベントの永続化インターフェース。
type MatchEventRepository interface {
	// ListByMatchID は指定試合のイベントを発生時刻順で返す。
	ListByMatchID(ctx context.Context, matchID string) ([]*model.MatchEvent, error)

	// Create は試合イベントを追加する。
	Create(ctx context.Context, event *model.MatchEvent) error
}

// RoomRepository はライブルームの永続化インターフェース。
type RoomRepository interface {
	// FindByRoomID は正規化済みルームIDでルームを取得する。見つからない場合はnilを返す。
	FindByRoomID(ctx context.Context, roomID string) (*model.LiveRoom, error)

	// Create はルームを作成する。
	Create(ctx context.Context, room *model.LiveRoom) error

	// UpdateStatus はルームの状態を更新する。
	UpdateStatus(ctx context.Context, roomID string, status model.RoomStatus) error

	// List は全ルームを作成日時降順で返す。
	List(ctx context.Context) ([]*model.LiveRoom, error)

	// DeleteEndedBefore は終了済みかつ更新日時がcutoffより前のルームを削除し、削除件数を返す。
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
