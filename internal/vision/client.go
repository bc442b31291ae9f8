// Package vision は視覚言語モデル（VLM）による試合画像の解析機能を提供する。
// 画像から選手の背番号とチームを特定する2段階の解析フローと、
// 監査用の解析履歴リングメモリを含む。
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// chatMessage はチャット補完APIのメッセージ。
// Contentはテキストのみの場合string、画像付きの場合[]contentPartになる。
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// contentPart はマルチモーダルメッセージの1要素。
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatRequest はチャット補完APIのリクエストボディ。
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse はチャット補完APIのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client は視覚言語モデルのチャット補完APIクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
	model      string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey, model string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}
}

// CompleteVision は画像付きプロンプトのチャット補完を実行する。
func (c *Client) CompleteVision(ctx context.Context, prompt, imageDataURI string) (string, error) {
	messages := []chatMessage{
		{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURI}},
			},
		},
	}
	return c.Complete(ctx, messages, false)
}

// CompleteText はテキストのみのチャット補完を実行する。
func (c *Client) CompleteText(ctx context.Context, prompt string, jsonOnly bool) (string, error) {
	return c.Complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, jsonOnly)
}

// Complete はチャット補完を実行し、先頭choiceのテキストを返す。
// jsonOnlyを指定するとJSONオブジェクトのみを返すようモデルに強制する。
func (c *Client) Complete(ctx context.Context, messages []chatMessage, jsonOnly bool) (string, error) {
	// 1. リクエストボディ構築
	reqBody := chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: 500,
	}
	if jsonOnly {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	// 2. HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	// 3. HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("VLM APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// 4. ステータス・レスポンス検証
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("VLM APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("VLM APIがステータス %d を返しました", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("VLM APIがエラーを返しました: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("VLM APIのレスポンスにchoiceがありません")
	}

	return parsed.Choices[0].Message.Content, nil
}
