package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// --- GoogleVerifier ---

func TestGoogleVerifier_ValidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id_token"); got != "valid-token" {
			t.Errorf("id_token = %q, want %q", got, "valid-token")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"aud":         "client-123",
			"sub":         "google-user-1",
			"email":       "taro@example.com",
			"given_name":  "Taro",
			"family_name": "Yamada",
			"picture":     "https://example.com/taro.jpg",
		})
	}))
	defer server.Close()

	verifier := NewGoogleVerifier(GoogleVerifierConfig{TokenInfoURL: server.URL, ClientID: "client-123"})

	info, err := verifier.VerifyIDToken(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("VerifyIDToken returned unexpected error: %v", err)
	}
	if info.Provider != "google" {
		t.Errorf("Provider = %q, want %q", info.Provider, "google")
	}
	if info.SocialID != "google-user-1" {
		t.Errorf("SocialID = %q, want %q", info.SocialID, "google-user-1")
	}
	if info.Email != "taro@example.com" {
		t.Errorf("Email = %q, want %q", info.Email, "taro@example.com")
	}
	if info.FirstName != "Taro" || info.LastName != "Yamada" {
		t.Errorf("name = (%q, %q), want (Taro, Yamada)", info.FirstName, info.LastName)
	}
	if info.PictureURL != "https://example.com/taro.jpg" {
		t.Errorf("PictureURL = %q", info.PictureURL)
	}
}

func TestGoogleVerifier_RejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_token"})
	}))
	defer server.Close()

	verifier := NewGoogleVerifier(GoogleVerifierConfig{TokenInfoURL: server.URL})

	if _, err := verifier.VerifyIDToken(context.Background(), "bad-token"); err == nil {
		t.Error("expected error for rejected token")
	}
}

func TestGoogleVerifier_AudienceMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"aud": "someone-elses-client",
			"sub": "google-user-1",
		})
	}))
	defer server.Close()

	verifier := NewGoogleVerifier(GoogleVerifierConfig{TokenInfoURL: server.URL, ClientID: "client-123"})

	if _, err := verifier.VerifyIDToken(context.Background(), "token"); err == nil {
		t.Error("expected error for audience mismatch")
	}
}

func TestGoogleVerifier_EmptySub(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"email": "taro@example.com"})
	}))
	defer server.Close()

	verifier := NewGoogleVerifier(GoogleVerifierConfig{TokenInfoURL: server.URL})

	if _, err := verifier.VerifyIDToken(context.Background(), "token"); err == nil {
		t.Error("expected error for response without sub")
	}
}

// --- AppleVerifier ---

// newAppleTestSetup はテスト用のRSA鍵・JWKSサーバー・署名済みトークン生成器を用意する。
func newAppleTestSetup(t *testing.T) (*rsa.PrivateKey, *httptest.Server) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	jwks := map[string]any{
		"keys": []map[string]string{
			{
				"kty": "RSA",
				"kid": "test-kid",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return key, server
}

func signAppleToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAppleVerifier_ValidToken(t *testing.T) {
	key, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL, ClientID: "com.example.app"})

	signed := signAppleToken(t, key, "test-kid", jwt.MapClaims{
		"iss":   "https://appleid.apple.com",
		"aud":   "com.example.app",
		"sub":   "apple-user-1",
		"email": "taro@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})

	info, err := verifier.VerifyIDToken(context.Background(), signed)
	if err != nil {
		t.Fatalf("VerifyIDToken returned unexpected error: %v", err)
	}
	if info.Provider != "apple" {
		t.Errorf("Provider = %q, want %q", info.Provider, "apple")
	}
	if info.SocialID != "apple-user-1" {
		t.Errorf("SocialID = %q, want %q", info.SocialID, "apple-user-1")
	}
	if info.Email != "taro@example.com" {
		t.Errorf("Email = %q, want %q", info.Email, "taro@example.com")
	}
}

func TestAppleVerifier_WrongIssuer(t *testing.T) {
	key, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL})

	signed := signAppleToken(t, key, "test-kid", jwt.MapClaims{
		"iss": "https://evil.example.com",
		"sub": "apple-user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.VerifyIDToken(context.Background(), signed); err == nil {
		t.Error("expected error for wrong issuer")
	}
}

func TestAppleVerifier_ExpiredToken(t *testing.T) {
	key, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL})

	signed := signAppleToken(t, key, "test-kid", jwt.MapClaims{
		"iss": "https://appleid.apple.com",
		"sub": "apple-user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := verifier.VerifyIDToken(context.Background(), signed); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestAppleVerifier_WrongKey(t *testing.T) {
	_, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL})

	// JWKSにない別鍵で署名されたトークンは検証に失敗する
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	signed := signAppleToken(t, otherKey, "test-kid", jwt.MapClaims{
		"iss": "https://appleid.apple.com",
		"sub": "apple-user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.VerifyIDToken(context.Background(), signed); err == nil {
		t.Error("expected error for signature by unknown key")
	}
}

func TestAppleVerifier_UnknownKid(t *testing.T) {
	key, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL})

	signed := signAppleToken(t, key, "other-kid", jwt.MapClaims{
		"iss": "https://appleid.apple.com",
		"sub": "apple-user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.VerifyIDToken(context.Background(), signed); err == nil {
		t.Error("expected error for unknown kid")
	}
}

func TestAppleVerifier_EmptySub(t *testing.T) {
	key, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL})

	signed := signAppleToken(t, key, "test-kid", jwt.MapClaims{
		"iss":   "https://appleid.apple.com",
		"email": "taro@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.VerifyIDToken(context.Background(), signed); err == nil {
		t.Error("expected error for token without sub")
	}
}

func TestAppleVerifier_AudienceMismatch(t *testing.T) {
	key, server := newAppleTestSetup(t)
	verifier := NewAppleVerifier(AppleVerifierConfig{KeysURL: server.URL, ClientID: "com.example.app"})

	signed := signAppleToken(t, key, "test-kid", jwt.MapClaims{
		"iss": "https://appleid.apple.com",
		"aud": "com.other.app",
		"sub": "apple-user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.VerifyIDToken(context.Background(), signed); err == nil {
		t.Error("expected error for audience mismatch")
	}
}

func TestParseRSAKey_InvalidInput(t *testing.T) {
	if _, err := parseRSAKey("!!not-base64!!", "AQAB"); err == nil {
		t.Error("expected error for invalid modulus")
	}
	if _, err := parseRSAKey("AQAB", "!!not-base64!!"); err == nil {
		t.Error("expected error for invalid exponent")
	}
	if _, err := parseRSAKey("AQAB", ""); err == nil {
		t.Error("expected error for zero exponent")
	}
}
