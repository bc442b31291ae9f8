package model

import "time"

// MatchStatus は試合の進行状態を表す。
type MatchStatus string

const (
	// MatchStatusScheduled は開始前の試合。
	MatchStatusScheduled MatchStatus = "SCHEDULED"
	// MatchStatusLive は進行中の試合。ライブ情報・解析のコンテキストになる。
	MatchStatusLive MatchStatus = "LIVE"
	// MatchStatusEnded は終了した試合。
	MatchStatusEnded MatchStatus = "ENDED"
)

// IsValid はMatchStatusが定義済みの値であるかを返す。
func (s MatchStatus) IsValid() bool {
	return s == MatchStatusScheduled || s == MatchStatusLive || s == MatchStatusEnded
}

// Match は試合を表す。
type Match struct {
	ID        string
	Stadium   string
	Date      time.Time
	HomeTeam  string
	AwayTeam  string
	HomeScore int
	AwayScore int
	Status    MatchStatus
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchEvent は試合中に発生したイベント（得点、カード等）を表す。
type MatchEvent struct {
	ID          string
	MatchID     string
	Minute      int
	Type        string // "GOAL", "YELLOW_CARD", "RED_CARD", "SUBSTITUTION" 等
	Team        string
	PlayerName  string
	Description string
	CreatedAt   time.Time
}

// GameInfo はライブ画面向けの現在試合サマリを表す。
type GameInfo struct {
	HomeTeam    string
	AwayTeam    string
	HomeScore   int
	AwayScore   int
	CurrentTime string // "78:24" 形式の経過時間
	MatchPhase  string // 前半・後半等の局面表示
}

// ReplayMomentType はリプレイ推薦の種別を表す。
type ReplayMomentType string

const (
	ReplayMomentGoal   ReplayMomentType = "goal"
	ReplayMomentChance ReplayMomentType = "chance"
	ReplayMomentSave   ReplayMomentType = "save"
	ReplayMomentFoul   ReplayMomentType = "foul"
)

// ReplayMoment はライブ画面で提示するリプレイ候補を表す。
type ReplayMoment struct {
	ID       string
	Type     ReplayMomentType
	Minute   string // "63:12" 形式の発生時刻
	Title    string
	VideoURL string
}
