package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/matchside/internal/model"
)

// Completer はチャット補完の実行インターフェース。テストでの差し替え用。
type Completer interface {
	Complete(ctx context.Context, messages []chatMessage, jsonOnly bool) (string, error)
}

// ImageInput は解析対象の画像。いずれか1つのフィールドを指定する。
type ImageInput struct {
	// DataURI はbase64エンコードのdata URI（data:image/png;base64,...）。
	DataURI string
	// URL は外部画像のURL。SSRF防止クライアント経由で取得する。
	URL string
	// Bytes はアップロードされた画像のバイト列。
	Bytes []byte
}

// structuredResult はVLMの2段階目が返す構造化JSON。
type structuredResult struct {
	PlayerNumber *int    `json:"playerNumber"`
	Team         *string `json:"team"`
	Status       string  `json:"status"`
	Message      string  `json:"message"`
}

// Service は画像解析のサービス層。
type Service struct {
	client  Completer
	fetcher *ImageFetcher
	memory  *Memory
	logger  *slog.Logger
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client Completer, fetcher *ImageFetcher, memory *Memory, logger *slog.Logger) *Service {
	return &Service{
		client:  client,
		fetcher: fetcher,
		memory:  memory,
		logger:  logger,
		now:     time.Now,
	}
}

// AnalyzeImage は試合画像から選手の背番号とチームを特定する。
// 1段階目でユニフォームの特徴を言語化し、2段階目で構造化JSONに変換する。
// 結果は成否を問わず監査用メモリに記録される。
func (s *Service) AnalyzeImage(ctx context.Context, input ImageInput, matchCtx model.MatchContext) (*model.AnalysisResult, error) {
	// 1. 画像をdata URIに解決（形式検証込み）
	dataURI, err := s.resolveImage(ctx, input)
	if err != nil {
		return nil, err
	}

	// 2. 1段階目: 画像の記述
	description, err := s.client.Complete(ctx, describeMessages(dataURI, matchCtx), false)
	if err != nil {
		s.record(matchCtx, failedResult("画像の解析に失敗しました"))
		return nil, model.NewAnalysisFailedError("画像の解析に失敗しました")
	}

	// 3. 2段階目: 構造化JSONへの変換
	raw, err := s.client.Complete(ctx, structureMessages(description, matchCtx), true)
	if err != nil {
		s.record(matchCtx, failedResult("解析結果の構造化に失敗しました"))
		return nil, model.NewAnalysisFailedError("解析結果の構造化に失敗しました")
	}

	var parsed structuredResult
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), &parsed); err != nil {
		s.logger.Error("構造化レスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		s.record(matchCtx, failedResult("解析結果の形式が不正です"))
		return nil, model.NewAnalysisFailedError("解析結果の形式が不正です")
	}

	// 4. 結果の組み立て。statusが欠けている場合は特定できたフィールドから導出する。
	result := model.AnalysisResult{
		PlayerNumber: parsed.PlayerNumber,
		Team:         parsed.Team,
		Status:       deriveStatus(parsed),
		Message:      parsed.Message,
	}
	s.record(matchCtx, result)

	s.logger.Info("画像解析が完了しました",
		slog.String("status", string(result.Status)),
	)

	return &result, nil
}

// ListMemory は解析履歴を新しい順で返す。
func (s *Service) ListMemory() []model.AnalysisRecord {
	return s.memory.List()
}

// resolveImage は入力形式に応じて画像をdata URIに変換する。
func (s *Service) resolveImage(ctx context.Context, input ImageInput) (string, error) {
	switch {
	case input.DataURI != "":
		data, mimeType, err := DecodeDataURI(input.DataURI)
		if err != nil {
			return "", err
		}
		return EncodeDataURI(data, mimeType), nil
	case input.URL != "":
		data, mimeType, err := s.fetcher.Fetch(ctx, input.URL)
		if err != nil {
			return "", err
		}
		return EncodeDataURI(data, mimeType), nil
	case len(input.Bytes) > 0:
		mimeType, err := ValidateImageBytes(input.Bytes)
		if err != nil {
			return "", err
		}
		return EncodeDataURI(input.Bytes, mimeType), nil
	}
	return "", model.NewValidationError("画像は必須です")
}

func (s *Service) record(matchCtx model.MatchContext, result model.AnalysisResult) {
	s.memory.Append(model.AnalysisRecord{
		Timestamp: s.now(),
		Match:     matchCtx,
		Result:    result,
	})
}

// describeMessages は1段階目（画像記述）のプロンプトを組み立てる。
func describeMessages(dataURI string, matchCtx model.MatchContext) []chatMessage {
	prompt := fmt.Sprintf(
		"この試合画像に最も目立って写っている選手について、ユニフォームの色・柄と背番号を説明してください。"+
			"対戦カード: %s vs %s。読み取れない場合はその旨を述べてください。",
		matchCtx.HomeTeam, matchCtx.AwayTeam)
	return []chatMessage{
		{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			},
		},
	}
}

// structureMessages は2段階目（構造化）のプロンプトを組み立てる。
func structureMessages(description string, matchCtx model.MatchContext) []chatMessage {
	prompt := fmt.Sprintf(
		"次の画像説明から選手情報をJSONで抽出してください。"+
			"形式: {\"playerNumber\": 数値または null, \"team\": チーム名または null, \"status\": \"success\"|\"partial\"|\"failed\", \"message\": 説明}。"+
			"チーム名は %q か %q のいずれかに正規化してください。判別できない場合はnullにしてください。\n\n画像説明:\n%s",
		matchCtx.HomeTeam, matchCtx.AwayTeam, description)
	return []chatMessage{
		{Role: "user", Content: prompt},
	}
}

// deriveStatus はstatusの欠落・不正時に特定できたフィールド数から状態を導出する。
func deriveStatus(parsed structuredResult) model.AnalysisStatus {
	switch model.AnalysisStatus(parsed.Status) {
	case model.AnalysisStatusSuccess, model.AnalysisStatusPartial, model.AnalysisStatusFailed:
		return model.AnalysisStatus(parsed.Status)
	}
	switch {
	case parsed.PlayerNumber != nil && parsed.Team != nil:
		return model.AnalysisStatusSuccess
	case parsed.PlayerNumber != nil || parsed.Team != nil:
		return model.AnalysisStatusPartial
	}
	return model.AnalysisStatusFailed
}

func failedResult(message string) model.AnalysisResult {
	return model.AnalysisResult{Status: model.AnalysisStatusFailed, Message: message}
}

// stripJSONFence はモデルがコードフェンスで囲んで返した場合にフェンスを剥がす。
func stripJSONFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
