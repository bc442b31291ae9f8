package room

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCaptionBroadcaster_PostsToDataAPI(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotBody   sendDataRequest
		gotCalled bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCalled = true
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	minter := NewTokenMinter("api-key", "api-secret", time.Hour)
	broadcaster := NewCaptionBroadcaster(server.URL, minter)

	if err := broadcaster.Send(context.Background(), "stadium-arena", "ゴール！"); err != nil {
		t.Fatalf("Send returned unexpected error: %v", err)
	}

	if !gotCalled {
		t.Fatal("data API was not called")
	}
	if gotPath != "/twirp/livekit.RoomService/SendData" {
		t.Errorf("path = %q, want %q", gotPath, "/twirp/livekit.RoomService/SendData")
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Errorf("Authorization = %q, want Bearer token", gotAuth)
	}
	if gotBody.Room != "stadium-arena" {
		t.Errorf("room = %q, want %q", gotBody.Room, "stadium-arena")
	}
	if gotBody.Kind != "RELIABLE" {
		t.Errorf("kind = %q, want %q", gotBody.Kind, "RELIABLE")
	}

	raw, err := base64.StdEncoding.DecodeString(gotBody.Data)
	if err != nil {
		t.Fatalf("data is not valid base64: %v", err)
	}
	var payload captionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("data payload is not valid JSON: %v", err)
	}
	if payload.Type != "caption" {
		t.Errorf("payload type = %q, want %q", payload.Type, "caption")
	}
	if payload.Text != "ゴール！" {
		t.Errorf("payload text = %q, want %q", payload.Text, "ゴール！")
	}
}

func TestCaptionBroadcaster_NonOKStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	minter := NewTokenMinter("api-key", "api-secret", time.Hour)
	broadcaster := NewCaptionBroadcaster(server.URL, minter)

	if err := broadcaster.Send(context.Background(), "stadium-arena", "text"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestDataAPIEndpoint_ConvertsWebSocketScheme(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "wss://media.example.com", want: "https://media.example.com/twirp/livekit.RoomService/SendData"},
		{host: "ws://localhost:7880", want: "http://localhost:7880/twirp/livekit.RoomService/SendData"},
		{host: "https://media.example.com/", want: "https://media.example.com/twirp/livekit.RoomService/SendData"},
	}
	for _, tt := range tests {
		if got := dataAPIEndpoint(tt.host); got != tt.want {
			t.Errorf("dataAPIEndpoint(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
