package room

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// videoGrant はメディアプロバイダが解釈するルーム参加権限。
type videoGrant struct {
	RoomJoin       bool   `json:"roomJoin"`
	Room           string `json:"room"`
	CanSubscribe   bool   `json:"canSubscribe"`
	CanPublish     bool   `json:"canPublish"`
	CanPublishData bool   `json:"canPublishData"`
}

// joinClaims はルーム参加トークンのクレーム。
// issにはプロバイダのAPIキー、subには参加者のアイデンティティを入れる。
type joinClaims struct {
	Video videoGrant `json:"video"`
	jwt.RegisteredClaims
}

// TokenMinter はメディアプロバイダ向けのルーム参加トークン（HS256 JWT）を発行する。
type TokenMinter struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewTokenMinter はTokenMinterを生成する。
func NewTokenMinter(apiKey, apiSecret string, ttl time.Duration) *TokenMinter {
	return &TokenMinter{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// MintSubscriberToken は視聴専用の参加トークンを発行する。
// 映像音声の購読とデータ受信のみ可能で、配信はできない。
func (m *TokenMinter) MintSubscriberToken(roomID, userID string) (string, error) {
	return m.mint(roomID, viewerIdentity(userID), false)
}

// MintPublisherToken は配信可能な参加トークンを発行する。
func (m *TokenMinter) MintPublisherToken(roomID, userID string) (string, error) {
	return m.mint(roomID, viewerIdentity(userID), true)
}

// mintServiceToken はサーバー自身がデータAPIを叩くためのトークンを発行する。
func (m *TokenMinter) mintServiceToken(roomID string) (string, error) {
	return m.mint(roomID, "server", true)
}

func (m *TokenMinter) mint(roomID, identity string, publisher bool) (string, error) {
	now := m.now()
	claims := joinClaims{
		Video: videoGrant{
			RoomJoin:       true,
			Room:           roomID,
			CanSubscribe:   true,
			CanPublish:     publisher,
			CanPublishData: publisher,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.apiSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign room join token: %w", err)
	}
	return signed, nil
}

// identityPattern はアイデンティティに残す文字。それ以外はハイフンに置換する。
var identityPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// viewerIdentity はユーザーIDからプロバイダ上のアイデンティティを組み立てる。
func viewerIdentity(userID string) string {
	sanitized := identityPattern.ReplaceAllString(strings.TrimSpace(userID), "-")
	return "user-" + sanitized
}
