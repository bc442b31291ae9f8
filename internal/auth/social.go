package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SocialUserInfo はソーシャルプロバイダーのIDトークンから取得したユーザー情報を表す。
type SocialUserInfo struct {
	Provider   string // "google", "apple"
	SocialID   string
	Email      string
	FirstName  string
	LastName   string
	PictureURL string
}

// SocialVerifier はソーシャルログインのIDトークン検証インターフェース。
type SocialVerifier interface {
	// VerifyIDToken はIDトークンを検証し、ユーザー情報を返す。
	VerifyIDToken(ctx context.Context, idToken string) (*SocialUserInfo, error)
}

// GoogleVerifierConfig はGoogleVerifierの設定。
type GoogleVerifierConfig struct {
	// TokenInfoURL はGoogleのtokeninfoエンドポイント。テスト用にオーバーライド可能。
	TokenInfoURL string

	// ClientID が設定されている場合、audクレームとの一致を検証する。
	ClientID string
}

// GoogleVerifier はGoogleのtokeninfoエンドポイントでIDトークンを検証する。
// 署名検証はGoogle側で行われるため、レスポンスの内容を信頼できる。
type GoogleVerifier struct {
	config GoogleVerifierConfig
	client *http.Client
}

// NewGoogleVerifier はGoogleVerifierを生成する。
func NewGoogleVerifier(config GoogleVerifierConfig) *GoogleVerifier {
	return &GoogleVerifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// googleTokenInfo はtokeninfoエンドポイントのレスポンス。
type googleTokenInfo struct {
	Aud        string `json:"aud"`
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// VerifyIDToken はGoogleのIDトークンを検証し、ユーザー情報を返す。
func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, idToken string) (*SocialUserInfo, error) {
	reqURL := v.config.TokenInfoURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokeninfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo rejected token with status %d: %s", resp.StatusCode, string(body))
	}

	var info googleTokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse tokeninfo response: %w", err)
	}

	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in tokeninfo response")
	}
	if v.config.ClientID != "" && info.Aud != v.config.ClientID {
		return nil, fmt.Errorf("audience mismatch in Google ID token")
	}

	return &SocialUserInfo{
		Provider:   "google",
		SocialID:   info.Sub,
		Email:      info.Email,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
		PictureURL: info.Picture,
	}, nil
}

// compile-time interface check
var _ SocialVerifier = (*GoogleVerifier)(nil)

// AppleVerifierConfig はAppleVerifierの設定。
type AppleVerifierConfig struct {
	// KeysURL はAppleのJWKSエンドポイント。テスト用にオーバーライド可能。
	KeysURL string

	// ClientID が設定されている場合、audクレームとの一致を検証する。
	ClientID string
}

// AppleVerifier はAppleのJWKS公開鍵でIDトークンの署名を検証する。
// 公開鍵はkidごとにキャッシュし、未知のkidに遭遇したときだけ再取得する。
type AppleVerifier struct {
	config AppleVerifierConfig
	client *http.Client

	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

// NewAppleVerifier はAppleVerifierを生成する。
func NewAppleVerifier(config AppleVerifierConfig) *AppleVerifier {
	return &AppleVerifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// appleClaims はAppleのIDトークンのクレーム。
type appleClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

const appleIssuer = "https://appleid.apple.com"

// VerifyIDToken はAppleのIDトークンを検証し、ユーザー情報を返す。
// Appleは名前をIDトークンに含めないため、FirstName/LastNameは常に空になる。
func (v *AppleVerifier) VerifyIDToken(ctx context.Context, idToken string) (*SocialUserInfo, error) {
	claims := &appleClaims{}
	tok, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid in token header")
		}
		return v.publicKey(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuer(appleIssuer))
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("failed to verify Apple ID token: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("empty sub in Apple ID token")
	}
	if v.config.ClientID != "" {
		var audMatch bool
		for _, aud := range claims.Audience {
			if aud == v.config.ClientID {
				audMatch = true
				break
			}
		}
		if !audMatch {
			return nil, fmt.Errorf("audience mismatch in Apple ID token")
		}
	}

	return &SocialUserInfo{
		Provider: "apple",
		SocialID: claims.Subject,
		Email:    claims.Email,
	}, nil
}

// publicKey はkidに対応するRSA公開鍵を返す。キャッシュにない場合はJWKSを再取得する。
func (v *AppleVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	key, ok := v.keys[kid]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.Lock()
	key, ok = v.keys[kid]
	v.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown kid in Apple ID token: %s", kid)
	}
	return key, nil
}

// appleJWKS はAppleのJWKSエンドポイントのレスポンス。
type appleJWKS struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// refreshKeys はJWKSエンドポイントから公開鍵一覧を取得してキャッシュを入れ替える。
func (v *AppleVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.KeysURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("JWKS request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var jwks appleJWKS
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("failed to parse JWKS key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return nil
}

// parseRSAKey はbase64url形式のモジュラスと指数からRSA公開鍵を組み立てる。
func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	eInt := 0
	for _, b := range eBytes {
		eInt = eInt<<8 | int(b)
	}
	if eInt == 0 {
		return nil, fmt.Errorf("zero exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: eInt,
	}, nil
}

// compile-time interface check
var _ SocialVerifier = (*AppleVerifier)(nil)
