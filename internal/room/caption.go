package room

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CaptionSender はルーム参加者への字幕配信インターフェース。
type CaptionSender interface {
	// Send は指定ルームの全参加者に字幕テキストを配信する。
	Send(ctx context.Context, roomID, text string) error
}

// captionPayload は参加者に届くデータメッセージの中身。
type captionPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// sendDataRequest はプロバイダのデータAPIへのリクエストボディ。
type sendDataRequest struct {
	Room string `json:"room"`
	Data string `json:"data"`
	Kind string `json:"kind"`
}

// CaptionBroadcaster はメディアプロバイダのデータAPI経由で字幕を配信する。
type CaptionBroadcaster struct {
	endpoint   string
	minter     *TokenMinter
	httpClient *http.Client
}

// NewCaptionBroadcaster はCaptionBroadcasterを生成する。
// hostはプロバイダのWebSocketホスト（wss://... または ws://...）。
// データAPIは同一ホストのHTTPエンドポイントを使う。
func NewCaptionBroadcaster(host string, minter *TokenMinter) *CaptionBroadcaster {
	return &CaptionBroadcaster{
		endpoint:   dataAPIEndpoint(host),
		minter:     minter,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send は指定ルームの全参加者に字幕テキストを配信する。
func (b *CaptionBroadcaster) Send(ctx context.Context, roomID, text string) error {
	payload, err := json.Marshal(captionPayload{Type: "caption", Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode caption payload: %w", err)
	}

	body, err := json.Marshal(sendDataRequest{
		Room: roomID,
		Data: base64.StdEncoding.EncodeToString(payload),
		Kind: "RELIABLE",
	})
	if err != nil {
		return fmt.Errorf("failed to encode data API request: %w", err)
	}

	token, err := b.minter.mintServiceToken(roomID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build data API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call room data API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("room data API returned status %d", resp.StatusCode)
	}
	return nil
}

// dataAPIEndpoint はWebSocketホストからデータAPIのURLを組み立てる。
// wss://host → https://host/twirp/livekit.RoomService/SendData
func dataAPIEndpoint(host string) string {
	base := host
	switch {
	case strings.HasPrefix(base, "wss://"):
		base = "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		base = "http://" + strings.TrimPrefix(base, "ws://")
	}
	return strings.TrimSuffix(base, "/") + "/twirp/livekit.RoomService/SendData"
}
