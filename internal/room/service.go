// Package room はライブ配信ルームの管理と参加トークン発行を提供する。
//
// ルームの実体は外部のメディアプロバイダ上にあり、このパッケージは
// ルーム名の正規化・状態管理・参加トークン（HS256 JWT）の発行・
// データAPI経由の字幕配信を担う。
package room

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/repository"
)

// TextSanitizer は字幕テキストのサニタイズに使うインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// JoinGrant は参加トークン発行の結果。
type JoinGrant struct {
	Room  *model.LiveRoom
	Token string
}

// Service はライブルーム管理のサービス層。
type Service struct {
	roomRepo  repository.RoomRepository
	minter    *TokenMinter
	captions  CaptionSender
	sanitizer TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(roomRepo repository.RoomRepository, minter *TokenMinter, captions CaptionSender, sanitizer TextSanitizer) *Service {
	return &Service{
		roomRepo:  roomRepo,
		minter:    minter,
		captions:  captions,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// CreateOrGet はルーム名からルームを取得し、なければACTIVEで作成する。
// 同じ名前は常に同じルームに解決される（正規化は冪等）。
func (s *Service) CreateOrGet(ctx context.Context, name string) (*model.LiveRoom, error) {
	roomID := NormalizeRoomID(name)
	if roomID == "" {
		return nil, model.NewValidationError("ルーム名は必須です")
	}

	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	if room != nil {
		return room, nil
	}

	now := s.now()
	room = &model.LiveRoom{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		RoomID:    roomID,
		Status:    model.RoomStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("ルームの作成に失敗しました: %w", err)
	}

	slog.Info("ライブルームを作成しました",
		slog.String("room_id", room.RoomID),
		slog.String("name", room.Name),
	)

	return room, nil
}

// List は全ルームを返す。
func (s *Service) List(ctx context.Context) ([]*model.LiveRoom, error) {
	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ルーム一覧の取得に失敗しました: %w", err)
	}
	return rooms, nil
}

// ListActive は参加可能なルームのみを返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.LiveRoom, error) {
	rooms, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*model.LiveRoom, 0, len(rooms))
	for _, r := range rooms {
		if r.Status == model.RoomStatusActive {
			active = append(active, r)
		}
	}
	return active, nil
}

// UpdateStatus はルームの状態を更新する。
func (s *Service) UpdateStatus(ctx context.Context, roomID string, status model.RoomStatus) (*model.LiveRoom, error) {
	if !status.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正なルーム状態です: %s", status))
	}

	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	if room == nil {
		return nil, model.NewRoomNotFoundError(roomID)
	}

	if err := s.roomRepo.UpdateStatus(ctx, roomID, status); err != nil {
		return nil, fmt.Errorf("ルーム状態の更新に失敗しました: %w", err)
	}
	room.Status = status
	room.UpdatedAt = s.now()

	slog.Info("ルーム状態を更新しました",
		slog.String("room_id", roomID),
		slog.String("status", string(status)),
	)

	return room, nil
}

// JoinAsSubscriber はルームを必要なら作成し、視聴用の参加トークンを発行する。
func (s *Service) JoinAsSubscriber(ctx context.Context, name, userID string) (*JoinGrant, error) {
	return s.join(ctx, name, userID, false)
}

// JoinAsPublisher はルームを必要なら作成し、配信用の参加トークンを発行する。
func (s *Service) JoinAsPublisher(ctx context.Context, name, userID string) (*JoinGrant, error) {
	return s.join(ctx, name, userID, true)
}

func (s *Service) join(ctx context.Context, name, userID string, publisher bool) (*JoinGrant, error) {
	if userID == "" {
		return nil, model.NewValidationError("ユーザーIDは必須です")
	}

	room, err := s.CreateOrGet(ctx, name)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomStatusActive {
		return nil, model.NewRoomNotFoundError(room.RoomID)
	}

	var token string
	if publisher {
		token, err = s.minter.MintPublisherToken(room.RoomID, userID)
	} else {
		token, err = s.minter.MintSubscriberToken(room.RoomID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("参加トークンの発行に失敗しました: %w", err)
	}

	return &JoinGrant{Room: room, Token: token}, nil
}

// SendCaption は指定ルームの参加者に字幕を配信する。
// テキストはサニタイズしてから送信する。
func (s *Service) SendCaption(ctx context.Context, roomID, text string) error {
	sanitized := strings.TrimSpace(s.sanitizer.SanitizeText(text))
	if sanitized == "" {
		return model.NewValidationError("字幕テキストは必須です")
	}

	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("ルームの取得に失敗しました: %w", err)
	}
	if room == nil || room.Status != model.RoomStatusActive {
		return model.NewRoomNotFoundError(roomID)
	}

	if err := s.captions.Send(ctx, room.RoomID, sanitized); err != nil {
		return fmt.Errorf("字幕の配信に失敗しました: %w", err)
	}
	return nil
}

// roomIDPattern はルームIDに残す文字。それ以外はハイフンに置換する。
var roomIDPattern = regexp.MustCompile(`[^a-z0-9-]+`)

// hyphenRuns は連続するハイフンをまとめるためのパターン。
var hyphenRuns = regexp.MustCompile(`-{2,}`)

// NormalizeRoomID はルーム名を正規化して安定したルームIDにする。
// 前後空白の除去→小文字化→非英数字のハイフン置換→ハイフンの圧縮、の順で
// 変換するため、正規化済みの値を再度渡しても同じ値になる。
func NormalizeRoomID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = roomIDPattern.ReplaceAllString(id, "-")
	id = hyphenRuns.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}
