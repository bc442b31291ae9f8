package model

import "time"

// AnalysisStatus は画像解析結果の確度を表す。
type AnalysisStatus string

const (
	// AnalysisStatusSuccess は背番号・チームの両方を特定できた状態。
	AnalysisStatusSuccess AnalysisStatus = "success"
	// AnalysisStatusPartial はどちらか一方のみ特定できた状態。
	AnalysisStatusPartial AnalysisStatus = "partial"
	// AnalysisStatusFailed はどちらも特定できなかった状態。
	AnalysisStatusFailed AnalysisStatus = "failed"
)

// MatchContext は画像解析に渡す試合コンテキストを表す。
type MatchContext struct {
	Status   string
	HomeTeam string
	AwayTeam string
	Stadium  string
}

// AnalysisResult は選手特定の解析結果を表す。
// 特定できなかったフィールドはnilになる。
type AnalysisResult struct {
	PlayerNumber *int
	Team         *string
	Status       AnalysisStatus
	Message      string
}

// AnalysisRecord はデバッグ・監査用に保持する解析履歴の1件を表す。
type AnalysisRecord struct {
	Timestamp time.Time
	Match     MatchContext
	Result    AnalysisResult
}

// PostMood は投稿生成のトーン指定を表す。
type PostMood string

const (
	PostMoodProfessional PostMood = "professional"
	PostMoodExcited      PostMood = "excited"
	PostMoodFunny        PostMood = "funny"
	PostMoodAnalytical   PostMood = "analytical"
)

// IsValid はPostMoodが定義済みの値であるかを返す。
func (m PostMood) IsValid() bool {
	switch m {
	case PostMoodProfessional, PostMoodExcited, PostMoodFunny, PostMoodAnalytical:
		return true
	}
	return false
}

// GeneratedPost はAIが生成したSNS投稿を表す。
type GeneratedPost struct {
	Post     string
	Hashtags []string
}
