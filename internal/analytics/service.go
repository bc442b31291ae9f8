// Package analytics は試合フレーム画像の外部解析サービスへの転送を提供する。
// アップロードされたフレームとライブ試合のコンテキストをWebhookに転送し、
// 返却された背番号・チームを選手マスタに突き合わせて解決する。
package analytics

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/repository"
	"github.com/hitoshi/matchside/internal/vision"
)

// webhookRequest は解析Webhookへのリクエストボディ。
type webhookRequest struct {
	Image string          `json:"image"`
	Match webhookMatchCtx `json:"match"`
}

type webhookMatchCtx struct {
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
	Status   string `json:"status"`
	Stadium  string `json:"stadium"`
}

// webhookResponse は解析Webhookのレスポンスボディ。
type webhookResponse struct {
	PlayerNumber *int    `json:"playerNumber"`
	Team         *string `json:"team"`
}

// Service はフレーム解析転送のサービス層。
type Service struct {
	matchRepo  repository.MatchRepository
	playerRepo repository.PlayerRepository
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(matchRepo repository.MatchRepository, playerRepo repository.PlayerRepository, webhookURL string, httpClient *http.Client, logger *slog.Logger) *Service {
	return &Service{
		matchRepo:  matchRepo,
		playerRepo: playerRepo,
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// UploadFrame はフレーム画像をライブ試合のコンテキスト付きでWebhookに転送し、
// 特定された選手を返す。ライブ試合がない場合はNO_LIVE_MATCH、
// 選手を解決できない場合はPLAYER_NOT_FOUNDエラーになる。
func (s *Service) UploadFrame(ctx context.Context, frame []byte) (*model.Player, error) {
	// 1. 画像形式の検証
	mimeType, err := vision.ValidateImageBytes(frame)
	if err != nil {
		return nil, err
	}

	// 2. ライブ試合の取得
	match, err := s.matchRepo.FindLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ライブ試合の取得に失敗しました: %w", err)
	}
	if match == nil {
		return nil, model.NewNoLiveMatchError()
	}

	// 3. Webhookへの転送
	if s.webhookURL == "" {
		return nil, model.NewAnalysisFailedError("解析Webhookが設定されていません")
	}
	result, err := s.forward(ctx, frame, mimeType, match)
	if err != nil {
		s.logger.Error("解析Webhookの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewAnalysisFailedError("フレームの解析に失敗しました")
	}

	// 4. 選手マスタとの突き合わせ
	if result.PlayerNumber == nil || result.Team == nil {
		return nil, model.NewPlayerNotFoundError("解析結果から選手を特定できませんでした")
	}
	player, err := s.playerRepo.FindByTeamAndNumber(ctx, *result.Team, *result.PlayerNumber)
	if err != nil {
		return nil, fmt.Errorf("選手の逆引きに失敗しました: %w", err)
	}
	if player == nil {
		return nil, model.NewPlayerNotFoundError(
			fmt.Sprintf("%s #%d", *result.Team, *result.PlayerNumber))
	}

	s.logger.Info("フレーム解析で選手を特定しました",
		slog.String("player_id", player.ID),
		slog.String("team", player.Team),
		slog.Int("number", player.Number),
	)

	return player, nil
}

func (s *Service) forward(ctx context.Context, frame []byte, mimeType string, match *model.Match) (*webhookResponse, error) {
	payload, err := json.Marshal(webhookRequest{
		Image: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(frame)),
		Match: webhookMatchCtx{
			HomeTeam: match.HomeTeam,
			AwayTeam: match.AwayTeam,
			Status:   string(match.Status),
			Stadium:  match.Stadium,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("解析Webhookがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed webhookResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &parsed, nil
}
