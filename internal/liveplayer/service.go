// Package liveplayer は配信中の選手のライブ出演状態を管理するドメインロジックを提供する。
// 映像トラッキングが検出した選手の画像・映像URLと座標を保持し、
// 出演中の選手一覧をクライアントに提供する。
package liveplayer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/repository"
)

// UpsertInput はライブ出演情報の登録・更新の入力。
// 同一選手のレコードが既にある場合は更新として扱う。
type UpsertInput struct {
	PlayerID    string
	ImageURL    string
	VideoURL    string
	IsActive    *bool // 未指定はtrue
	Coordinates json.RawMessage
}

// UpdateInput はライブ出演情報更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	ImageURL    *string
	VideoURL    *string
	IsActive    *bool
	Coordinates json.RawMessage
}

// Service はライブ出演情報のサービス層。
type Service struct {
	liveRepo   repository.LivePlayerRepository
	playerRepo repository.PlayerRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(liveRepo repository.LivePlayerRepository, playerRepo repository.PlayerRepository) *Service {
	return &Service{
		liveRepo:   liveRepo,
		playerRepo: playerRepo,
	}
}

// Get はIDでライブ出演情報を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.LivePlayer, error) {
	lp, err := s.liveRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	if lp == nil {
		return nil, model.NewLivePlayerNotFoundError(id)
	}
	return lp, nil
}

// GetByPlayerID は選手IDでライブ出演情報を取得する。
func (s *Service) GetByPlayerID(ctx context.Context, playerID string) (*model.LivePlayer, error) {
	lp, err := s.liveRepo.FindByPlayerID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	if lp == nil {
		return nil, model.NewLivePlayerNotFoundError(playerID)
	}
	return lp, nil
}

// List は全ライブ出演情報を返す。
func (s *Service) List(ctx context.Context) ([]*model.LivePlayer, error) {
	players, err := s.liveRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報一覧の取得に失敗しました: %w", err)
	}
	return players, nil
}

// ListActive は出演中の選手のライブ出演情報のみを返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.LivePlayer, error) {
	players, err := s.liveRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報一覧の取得に失敗しました: %w", err)
	}
	return players, nil
}

// Upsert はライブ出演情報を登録する。
// 対象の選手が存在しない場合はエラー。同一選手のレコードが既にある場合は
// 新規作成せず既存レコードを更新する（1選手1レコード）。
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (*model.LivePlayer, error) {
	if input.PlayerID == "" {
		return nil, model.NewValidationError("選手IDは必須です")
	}
	if err := validateCoordinates(input.Coordinates); err != nil {
		return nil, err
	}

	player, err := s.playerRepo.FindByID(ctx, input.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("選手の取得に失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(input.PlayerID)
	}

	existing, err := s.liveRepo.FindByPlayerID(ctx, input.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	if existing != nil {
		// 未指定のURLは既存の値を保持する
		update := UpdateInput{
			IsActive:    input.IsActive,
			Coordinates: input.Coordinates,
		}
		if input.ImageURL != "" {
			update.ImageURL = &input.ImageURL
		}
		if input.VideoURL != "" {
			update.VideoURL = &input.VideoURL
		}
		return s.Update(ctx, existing.ID, update)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	now := time.Now()
	lp := &model.LivePlayer{
		ID:          uuid.New().String(),
		PlayerID:    input.PlayerID,
		ImageURL:    input.ImageURL,
		VideoURL:    input.VideoURL,
		IsActive:    active,
		Coordinates: input.Coordinates,
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.liveRepo.Create(ctx, lp); err != nil {
		return nil, fmt.Errorf("ライブ出演情報の作成に失敗しました: %w", err)
	}

	slog.Info("ライブ出演情報を登録しました",
		slog.String("live_player_id", lp.ID),
		slog.String("player_id", lp.PlayerID),
	)

	return lp, nil
}

// Update はライブ出演情報を部分更新する。
// 更新のたびに最終検出時刻を現在時刻に進める。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*model.LivePlayer, error) {
	if err := validateCoordinates(input.Coordinates); err != nil {
		return nil, err
	}

	lp, err := s.liveRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	if lp == nil {
		return nil, model.NewLivePlayerNotFoundError(id)
	}

	if input.ImageURL != nil {
		lp.ImageURL = *input.ImageURL
	}
	if input.VideoURL != nil {
		lp.VideoURL = *input.VideoURL
	}
	if input.IsActive != nil {
		lp.IsActive = *input.IsActive
	}
	if input.Coordinates != nil {
		lp.Coordinates = input.Coordinates
	}

	now := time.Now()
	lp.LastSeen = now
	lp.UpdatedAt = now
	if err := s.liveRepo.Update(ctx, lp); err != nil {
		return nil, fmt.Errorf("ライブ出演情報の更新に失敗しました: %w", err)
	}

	return lp, nil
}

// UpdateCoordinates はトラッキング座標のみを更新する。
// 座標が届いたこと自体が検出なので、最終検出時刻も進める。
func (s *Service) UpdateCoordinates(ctx context.Context, id string, coordinates json.RawMessage) (*model.LivePlayer, error) {
	if len(coordinates) == 0 {
		return nil, model.NewValidationError("座標データは必須です")
	}
	return s.Update(ctx, id, UpdateInput{Coordinates: coordinates})
}

// Delete はライブ出演情報を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	lp, err := s.liveRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ライブ出演情報の取得に失敗しました: %w", err)
	}
	if lp == nil {
		return model.NewLivePlayerNotFoundError(id)
	}

	if err := s.liveRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("ライブ出演情報の削除に失敗しました: %w", err)
	}

	slog.Info("ライブ出演情報を削除しました", slog.String("live_player_id", id))
	return nil
}

// validateCoordinates は座標がJSONオブジェクトとして正しいことを検証する。
// 座標未指定（nil）は許容する。
func validateCoordinates(coordinates json.RawMessage) error {
	if coordinates == nil {
		return nil
	}
	if !json.Valid(coordinates) {
		return model.NewValidationError("座標データが正しいJSONではありません")
	}
	return nil
}
