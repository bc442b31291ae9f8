// Package match は試合情報とライブ画面向けデータのドメインロジックを提供する。
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/repository"
)

// 前後半の表示切り替えに使う定数。
const (
	halfDuration     = 45 * time.Minute
	halftimeDuration = 15 * time.Minute
)

// CreateInput は試合登録の入力。
type CreateInput struct {
	Stadium  string
	Date     time.Time
	HomeTeam string
	AwayTeam string
	Status   model.MatchStatus
	ImageURL string
}

// UpdateInput は試合更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Stadium   *string
	Date      *time.Time
	HomeScore *int
	AwayScore *int
	Status    *model.MatchStatus
	ImageURL  *string
}

// EventInput は試合イベント登録の入力。
type EventInput struct {
	Minute      int
	Type        string
	Team        string
	PlayerName  string
	Description string
}

// Service は試合管理のサービス層。
type Service struct {
	matchRepo repository.MatchRepository
	eventRepo repository.MatchEventRepository
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(matchRepo repository.MatchRepository, eventRepo repository.MatchEventRepository) *Service {
	return &Service{
		matchRepo: matchRepo,
		eventRepo: eventRepo,
		now:       time.Now,
	}
}

// Get はIDで試合を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Match, error) {
	match, err := s.matchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewMatchNotFoundError(id)
	}
	return match, nil
}

// List は全試合を返す。
func (s *Service) List(ctx context.Context) ([]*model.Match, error) {
	matches, err := s.matchRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("試合一覧の取得に失敗しました: %w", err)
	}
	return matches, nil
}

// GetLive は進行中の試合を返す。ライブ中の試合がない場合はNO_LIVE_MATCHエラー。
func (s *Service) GetLive(ctx context.Context) (*model.Match, error) {
	match, err := s.matchRepo.FindLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ライブ試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewNoLiveMatchError()
	}
	return match, nil
}

// Create は試合を登録する。ステータス未指定の場合はSCHEDULEDになる。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Match, error) {
	if input.HomeTeam == "" || input.AwayTeam == "" {
		return nil, model.NewValidationError("ホームチームとアウェイチームは必須です")
	}
	if input.Date.IsZero() {
		return nil, model.NewValidationError("試合日時は必須です")
	}
	status := input.Status
	if status == "" {
		status = model.MatchStatusScheduled
	}
	if !status.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正な試合ステータスです: %s", status))
	}

	now := s.now()
	match := &model.Match{
		ID:        uuid.New().String(),
		Stadium:   input.Stadium,
		Date:      input.Date,
		HomeTeam:  input.HomeTeam,
		AwayTeam:  input.AwayTeam,
		Status:    status,
		ImageURL:  input.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("試合の登録に失敗しました: %w", err)
	}

	slog.Info("試合を登録しました",
		slog.String("match_id", match.ID),
		slog.String("home", match.HomeTeam),
		slog.String("away", match.AwayTeam),
	)

	return match, nil
}

// Update は試合を部分更新する。スコア更新・ステータス遷移もここで行う。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*model.Match, error) {
	match, err := s.matchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewMatchNotFoundError(id)
	}

	if input.Stadium != nil {
		match.Stadium = *input.Stadium
	}
	if input.Date != nil {
		match.Date = *input.Date
	}
	if input.HomeScore != nil {
		if *input.HomeScore < 0 {
			return nil, model.NewValidationError("スコアは0以上で指定してください")
		}
		match.HomeScore = *input.HomeScore
	}
	if input.AwayScore != nil {
		if *input.AwayScore < 0 {
			return nil, model.NewValidationError("スコアは0以上で指定してください")
		}
		match.AwayScore = *input.AwayScore
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, model.NewValidationError(fmt.Sprintf("不正な試合ステータスです: %s", *input.Status))
		}
		match.Status = *input.Status
	}
	if input.ImageURL != nil {
		match.ImageURL = *input.ImageURL
	}

	match.UpdatedAt = s.now()
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("試合の更新に失敗しました: %w", err)
	}

	return match, nil
}

// Delete は試合を削除する。イベントはFK CASCADEで同時に削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	match, err := s.matchRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return model.NewMatchNotFoundError(id)
	}

	if err := s.matchRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("試合の削除に失敗しました: %w", err)
	}

	slog.Info("試合を削除しました", slog.String("match_id", id))
	return nil
}

// ListEvents は試合のイベントタイムラインを返す。
func (s *Service) ListEvents(ctx context.Context, matchID string) ([]*model.MatchEvent, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewMatchNotFoundError(matchID)
	}

	events, err := s.eventRepo.ListByMatchID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("試合イベントの取得に失敗しました: %w", err)
	}
	return events, nil
}

// AddEvent は試合にイベントを追加する。
func (s *Service) AddEvent(ctx context.Context, matchID string, input EventInput) (*model.MatchEvent, error) {
	if input.Type == "" {
		return nil, model.NewValidationError("イベント種別は必須です")
	}
	if input.Minute < 0 {
		return nil, model.NewValidationError("経過分は0以上で指定してください")
	}

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewMatchNotFoundError(matchID)
	}

	event := &model.MatchEvent{
		ID:          uuid.New().String(),
		MatchID:     matchID,
		Minute:      input.Minute,
		Type:        input.Type,
		Team:        input.Team,
		PlayerName:  input.PlayerName,
		Description: input.Description,
		CreatedAt:   s.now(),
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("試合イベントの登録に失敗しました: %w", err)
	}

	return event, nil
}

// GetGameInfo はライブ画面向けの現在試合サマリを返す。
// 経過時間は試合開始時刻からの実時間で算出する。
func (s *Service) GetGameInfo(ctx context.Context) (*model.GameInfo, error) {
	match, err := s.GetLive(ctx)
	if err != nil {
		return nil, err
	}

	elapsed := s.now().Sub(match.Date)
	return &model.GameInfo{
		HomeTeam:    match.HomeTeam,
		AwayTeam:    match.AwayTeam,
		HomeScore:   match.HomeScore,
		AwayScore:   match.AwayScore,
		CurrentTime: formatElapsed(elapsed),
		MatchPhase:  matchPhase(elapsed),
	}, nil
}

// ListReplayMoments はライブ画面で提示するリプレイ候補を返す。
// 試合イベントから直近の見どころを組み立てる。イベントがない場合は空を返す。
func (s *Service) ListReplayMoments(ctx context.Context) ([]*model.ReplayMoment, error) {
	match, err := s.GetLive(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.eventRepo.ListByMatchID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("試合イベントの取得に失敗しました: %w", err)
	}

	moments := make([]*model.ReplayMoment, 0, len(events))
	for _, ev := range events {
		momentType, ok := replayMomentType(ev.Type)
		if !ok {
			continue
		}
		title := ev.Description
		if title == "" {
			title = fmt.Sprintf("%s %s", ev.Team, ev.Type)
		}
		moments = append(moments, &model.ReplayMoment{
			ID:     ev.ID,
			Type:   momentType,
			Minute: fmt.Sprintf("%02d:00", ev.Minute),
			Title:  title,
		})
	}
	return moments, nil
}

// formatElapsed は経過時間を "78:24" 形式の文字列にする。負値は "00:00" に丸める。
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// matchPhase は経過時間から試合の局面表示を返す。
func matchPhase(elapsed time.Duration) string {
	switch {
	case elapsed < 0:
		return "キックオフ前"
	case elapsed < halfDuration:
		return "前半"
	case elapsed < halfDuration+halftimeDuration:
		return "ハーフタイム"
	case elapsed < 2*halfDuration+halftimeDuration:
		return "後半"
	default:
		return "終盤"
	}
}

// replayMomentType はイベント種別をリプレイ候補の種別に対応付ける。
func replayMomentType(eventType string) (model.ReplayMomentType, bool) {
	switch eventType {
	case "GOAL":
		return model.ReplayMomentGoal, true
	case "CHANCE":
		return model.ReplayMomentChance, true
	case "SAVE":
		return model.ReplayMomentSave, true
	case "FOUL", "YELLOW_CARD", "RED_CARD":
		return model.ReplayMomentFoul, true
	}
	return "", false
}
