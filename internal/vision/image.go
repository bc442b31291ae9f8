package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/security"
)

// allowedImageTypes は解析対象として受け付ける画像のMIMEタイプ。
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageFetcher は外部URLから画像を取得する。
// SSRF防止のためsafeurlのHTTPクライアント経由でのみアクセスする。
type ImageFetcher struct {
	httpClient *http.Client
	guard      security.SSRFGuardService
	maxBytes   int64
}

// NewImageFetcher はImageFetcherの新しいインスタンスを生成する。
func NewImageFetcher(guard security.SSRFGuardService, timeout time.Duration, maxBytes int64) *ImageFetcher {
	return &ImageFetcher{
		httpClient: guard.NewSafeClient(timeout, maxBytes),
		guard:      guard,
		maxBytes:   maxBytes,
	}
}

// Fetch はURLから画像を取得し、バイト列とMIMEタイプを返す。
// プライベートIP等への接続はIMAGE_FETCH_BLOCKEDエラーになる。
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	// 1. DNS解決前の静的検証
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, "", model.NewImageFetchBlockedError()
	}

	// 2. SSRF防止クライアントで取得
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", model.NewValidationError(fmt.Sprintf("不正な画像URLです: %s", rawURL))
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		// safeurlのDialer検証で弾かれた場合もここに来る
		return nil, "", model.NewImageFetchBlockedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("画像の取得に失敗しました: ステータス %d", resp.StatusCode)
	}

	// 3. サイズ上限付きで読み取り
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("画像の読み取りに失敗しました: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", model.NewValidationError(
			fmt.Sprintf("画像サイズが上限を超えています: %dバイトまで", f.maxBytes))
	}

	mimeType := sniffImageType(data)
	if !allowedImageTypes[mimeType] {
		return nil, "", model.NewUnsupportedImageError()
	}
	return data, mimeType, nil
}

// EncodeDataURI は画像バイト列をdata URIにエンコードする。
func EncodeDataURI(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI はdata URI形式の画像をデコードし、バイト列とMIMEタイプを返す。
// 宣言されたMIMEタイプではなく実際のバイト列から判定した形式を検証する。
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", model.NewValidationError("data URI形式ではありません")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", model.NewValidationError("data URIの形式が不正です")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", model.NewValidationError("base64エンコードのdata URIのみ受け付けます")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", model.NewValidationError("base64のデコードに失敗しました")
	}

	mimeType := sniffImageType(data)
	if !allowedImageTypes[mimeType] {
		return nil, "", model.NewUnsupportedImageError()
	}
	return data, mimeType, nil
}

// ValidateImageBytes はアップロードされた画像バイト列の形式を検証する。
func ValidateImageBytes(data []byte) (string, error) {
	mimeType := sniffImageType(data)
	if !allowedImageTypes[mimeType] {
		return "", model.NewUnsupportedImageError()
	}
	return mimeType, nil
}

// sniffImageType はバイト列の先頭から画像MIMEタイプを判定する。
func sniffImageType(data []byte) string {
	return http.DetectContentType(data)
}
