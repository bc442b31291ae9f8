// Package post は試合画像からのSNS投稿文生成機能を提供する。
package post

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/vision"
)

// Completer は投稿生成に使うチャット補完のインターフェース。
type Completer interface {
	CompleteVision(ctx context.Context, prompt, imageDataURI string) (string, error)
	CompleteText(ctx context.Context, prompt string, jsonOnly bool) (string, error)
}

// TextSanitizer は生成文のサニタイズに使うインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// GenerateInput は投稿生成の入力。
type GenerateInput struct {
	// ImageDataURI はbase64エンコードのdata URI。ImageBytesとどちらか一方を指定する。
	ImageDataURI string
	// ImageBytes はアップロードされた画像のバイト列。
	ImageBytes []byte
	// Hints は投稿に織り込む補足情報（試合状況、選手名など）。任意。
	Hints string
	// Mood は投稿のトーン。未指定の場合はprofessionalになる。
	Mood model.PostMood
}

// generatedJSON はVLMの2段階目が返す構造化JSON。
type generatedJSON struct {
	Post     string   `json:"post"`
	Hashtags []string `json:"hashtags"`
}

// moodDirectives はトーンごとのプロンプト指示。
var moodDirectives = map[model.PostMood]string{
	model.PostMoodProfessional: "スポーツ記者のような簡潔で正確なトーン",
	model.PostMoodExcited:      "熱狂したファンのような高揚感のあるトーン",
	model.PostMoodFunny:        "ユーモアを交えた軽快なトーン",
	model.PostMoodAnalytical:   "戦術や数字に踏み込む分析的なトーン",
}

// Service は投稿生成のサービス層。
type Service struct {
	client    Completer
	sanitizer TextSanitizer
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client Completer, sanitizer TextSanitizer, logger *slog.Logger) *Service {
	return &Service{
		client:    client,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Generate は試合画像からSNS投稿文とハッシュタグを生成する。
// 1段階目で画像のシーンを言語化し、2段階目で投稿文に仕立てる。
// 生成文はサニタイズ済みのプレーンテキストで返す。
func (s *Service) Generate(ctx context.Context, input GenerateInput) (*model.GeneratedPost, error) {
	// 1. トーンの決定
	mood := input.Mood
	if mood == "" {
		mood = model.PostMoodProfessional
	}
	if !mood.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正なトーン指定です: %s", mood))
	}

	// 2. 画像をdata URIに解決（形式検証込み）
	dataURI, err := s.resolveImage(input)
	if err != nil {
		return nil, err
	}

	// 3. 1段階目: シーンの言語化
	scene, err := s.client.CompleteVision(ctx, scenePrompt(input.Hints), dataURI)
	if err != nil {
		return nil, model.NewAnalysisFailedError("投稿の生成に失敗しました")
	}

	// 4. 2段階目: 投稿文への仕立て
	raw, err := s.client.CompleteText(ctx, composePrompt(scene, input.Hints, mood), true)
	if err != nil {
		return nil, model.NewAnalysisFailedError("投稿の生成に失敗しました")
	}

	var parsed generatedJSON
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		s.logger.Error("生成レスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewAnalysisFailedError("生成結果の形式が不正です")
	}

	// 5. サニタイズと整形
	text := strings.TrimSpace(s.sanitizer.SanitizeText(parsed.Post))
	if text == "" {
		return nil, model.NewAnalysisFailedError("投稿文が生成されませんでした")
	}

	hashtags := make([]string, 0, len(parsed.Hashtags))
	for _, tag := range parsed.Hashtags {
		if normalized := normalizeHashtag(s.sanitizer.SanitizeText(tag)); normalized != "" {
			hashtags = append(hashtags, normalized)
		}
	}

	s.logger.Info("SNS投稿を生成しました",
		slog.String("mood", string(mood)),
		slog.Int("hashtag_count", len(hashtags)),
	)

	return &model.GeneratedPost{Post: text, Hashtags: hashtags}, nil
}

func (s *Service) resolveImage(input GenerateInput) (string, error) {
	switch {
	case input.ImageDataURI != "":
		data, mimeType, err := vision.DecodeDataURI(input.ImageDataURI)
		if err != nil {
			return "", err
		}
		return vision.EncodeDataURI(data, mimeType), nil
	case len(input.ImageBytes) > 0:
		mimeType, err := vision.ValidateImageBytes(input.ImageBytes)
		if err != nil {
			return "", err
		}
		return vision.EncodeDataURI(input.ImageBytes, mimeType), nil
	}
	return "", model.NewValidationError("画像は必須です")
}

// scenePrompt は1段階目（シーン記述）のプロンプトを組み立てる。
func scenePrompt(hints string) string {
	prompt := "この試合画像のシーンを説明してください。何が起きているか、どの選手が目立つか、観客や雰囲気も含めてください。"
	if hints != "" {
		prompt += "\n補足情報: " + hints
	}
	return prompt
}

// composePrompt は2段階目（投稿文生成）のプロンプトを組み立てる。
func composePrompt(scene, hints string, mood model.PostMood) string {
	var b strings.Builder
	b.WriteString("次のシーン説明からSNS投稿を作成してください。")
	b.WriteString(moodDirectives[mood])
	b.WriteString("で、280文字以内に収めてください。")
	b.WriteString(`JSON形式で返してください: {"post": 投稿文, "hashtags": [ハッシュタグの配列]}`)
	if hints != "" {
		b.WriteString("\n補足情報: ")
		b.WriteString(hints)
	}
	b.WriteString("\n\nシーン説明:\n")
	b.WriteString(scene)
	return b.String()
}

// normalizeHashtag はハッシュタグの空白を除去し、#始まりに揃える。
func normalizeHashtag(tag string) string {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), " ", "")
	tag = strings.TrimPrefix(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// stripFence はモデルがコードフェンスで囲んで返した場合にフェンスを剥がす。
func stripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
