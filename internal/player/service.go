// Package player は選手マスタとパフォーマンス記録のドメインロジックを提供する。
package player

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/repository"
)

// CreateInput は選手登録の入力。
type CreateInput struct {
	Name     string
	Number   int
	Position string
	Team     string
	ImageURL string
}

// UpdateInput は選手更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name     *string
	Number   *int
	Position *string
	Team     *string
	ImageURL *string
}

// PerformanceInput はパフォーマンス記録の入力。
type PerformanceInput struct {
	MatchID     string
	Goals       int
	Assists     int
	Rating      float64
	Energy      int
	Speed       float64
	Performance int
}

// Service は選手管理のサービス層。
type Service struct {
	playerRepo repository.PlayerRepository
	perfRepo   repository.PerformanceRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(playerRepo repository.PlayerRepository, perfRepo repository.PerformanceRepository) *Service {
	return &Service{
		playerRepo: playerRepo,
		perfRepo:   perfRepo,
	}
}

// Get はIDで選手を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Player, error) {
	player, err := s.playerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(id)
	}
	return player, nil
}

// List は全選手を返す。
func (s *Service) List(ctx context.Context) ([]*model.Player, error) {
	players, err := s.playerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("選手一覧の取得に失敗しました: %w", err)
	}
	return players, nil
}

// FindByTeamAndNumber はチーム名と背番号で選手を逆引きする。
// 画像解析の結果から選手を特定するために使う。
func (s *Service) FindByTeamAndNumber(ctx context.Context, team string, number int) (*model.Player, error) {
	player, err := s.playerRepo.FindByTeamAndNumber(ctx, team, number)
	if err != nil {
		return nil, fmt.Errorf("選手の逆引きに失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(fmt.Sprintf("%s #%d", team, number))
	}
	return player, nil
}

// Create は選手を登録する。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Player, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	// 同一チーム・同一背番号の重複登録を防ぐ
	existing, err := s.playerRepo.FindByTeamAndNumber(ctx, input.Team, input.Number)
	if err != nil {
		return nil, fmt.Errorf("選手の逆引きに失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewValidationError(
			fmt.Sprintf("%sの背番号%dは既に登録されています", input.Team, input.Number))
	}

	now := time.Now()
	player := &model.Player{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Number:    input.Number,
		Position:  input.Position,
		Team:      input.Team,
		ImageURL:  input.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, fmt.Errorf("選手の登録に失敗しました: %w", err)
	}

	slog.Info("選手を登録しました",
		slog.String("player_id", player.ID),
		slog.String("team", player.Team),
		slog.Int("number", player.Number),
	)

	return player, nil
}

// Update は選手の属性を部分更新する。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*model.Player, error) {
	player, err := s.playerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(id)
	}

	if input.Name != nil {
		player.Name = *input.Name
	}
	if input.Number != nil {
		if *input.Number < 0 {
			return nil, model.NewValidationError("背番号は0以上で指定してください")
		}
		player.Number = *input.Number
	}
	if input.Position != nil {
		player.Position = *input.Position
	}
	if input.Team != nil {
		if *input.Team == "" {
			return nil, model.NewValidationError("チーム名は必須です")
		}
		player.Team = *input.Team
	}
	if input.ImageURL != nil {
		player.ImageURL = *input.ImageURL
	}

	player.UpdatedAt = time.Now()
	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, fmt.Errorf("選手の更新に失敗しました: %w", err)
	}

	return player, nil
}

// Delete は選手を削除する。
// パフォーマンス記録はFK CASCADEで同時に削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	player, err := s.playerRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	if player == nil {
		return model.NewPlayerNotFoundError(id)
	}

	if err := s.playerRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("選手の削除に失敗しました: %w", err)
	}

	slog.Info("選手を削除しました", slog.String("player_id", id))
	return nil
}

// ListPerformances は選手のパフォーマンス記録一覧を返す。
func (s *Service) ListPerformances(ctx context.Context, playerID string) ([]*model.PlayerPerformance, error) {
	player, err := s.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(playerID)
	}

	perfs, err := s.perfRepo.ListByPlayerID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("パフォーマンス記録の取得に失敗しました: %w", err)
	}
	return perfs, nil
}

// RecordPerformance は選手の試合別パフォーマンス記録を登録・更新する。
// 同一選手・同一試合の既存レコードは上書きされる。
func (s *Service) RecordPerformance(ctx context.Context, playerID string, input PerformanceInput) (*model.PlayerPerformance, error) {
	if input.MatchID == "" {
		return nil, model.NewValidationError("試合IDは必須です")
	}
	if input.Rating < 0 || input.Rating > 10 {
		return nil, model.NewValidationError("評価は0〜10の範囲で指定してください")
	}

	player, err := s.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(playerID)
	}

	perf := &model.PlayerPerformance{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		MatchID:     input.MatchID,
		Goals:       input.Goals,
		Assists:     input.Assists,
		Rating:      input.Rating,
		Energy:      input.Energy,
		Speed:       input.Speed,
		Performance: input.Performance,
		CreatedAt:   time.Now(),
	}
	if err := s.perfRepo.Upsert(ctx, perf); err != nil {
		return nil, fmt.Errorf("パフォーマンス記録の保存に失敗しました: %w", err)
	}

	return perf, nil
}

// validateCreateInput は選手登録の入力を検証する。
func validateCreateInput(input CreateInput) error {
	if input.Name == "" {
		return model.NewValidationError("選手名は必須です")
	}
	if input.Team == "" {
		return model.NewValidationError("チーム名は必須です")
	}
	if input.Number < 0 {
		return model.NewValidationError("背番号は0以上で指定してください")
	}
	return nil
}
