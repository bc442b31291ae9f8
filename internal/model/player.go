package model

import "time"

// Player は選手のマスタデータを表す。
// チーム名と背番号の組で一意に特定できることを前提とする
// （画像解析の結果から選手を逆引きするため）。
type Player struct {
	ID        string
	Name      string
	Number    int
	Position  string
	Team      string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayerPerformance は選手のパフォーマンス記録を表す。
// 1選手につき試合ごとに1レコードを想定する。
type PlayerPerformance struct {
	ID          string
	PlayerID    string
	MatchID     string
	Goals       int
	Assists     int
	Rating      float64 // 10点満点の総合評価
	Energy      int     // スタミナ残量（%）
	Speed       float64 // 最高速度（km/h）
	Performance int     // パフォーマンス指数（%）
	CreatedAt   time.Time
}
