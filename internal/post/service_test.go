package post

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/security"
)

// pngBytes はPNGシグネチャで始まる最小のバイト列。
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func pngDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

type mockCompleter struct {
	visionFn func(ctx context.Context, prompt, imageDataURI string) (string, error)
	textFn   func(ctx context.Context, prompt string, jsonOnly bool) (string, error)

	visionPrompt string
	textPrompt   string
}

func (m *mockCompleter) CompleteVision(ctx context.Context, prompt, imageDataURI string) (string, error) {
	m.visionPrompt = prompt
	if m.visionFn != nil {
		return m.visionFn(ctx, prompt, imageDataURI)
	}
	return "ゴールシーンの説明", nil
}

func (m *mockCompleter) CompleteText(ctx context.Context, prompt string, jsonOnly bool) (string, error) {
	m.textPrompt = prompt
	if m.textFn != nil {
		return m.textFn(ctx, prompt, jsonOnly)
	}
	return `{"post": "劇的なゴール！", "hashtags": ["#サッカー", "#ゴール"]}`, nil
}

func newTestPostService(completer *mockCompleter) *Service {
	return NewService(completer, security.NewTextSanitizer(), slog.Default())
}

func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}

func TestGenerate_ReturnsPostAndHashtags(t *testing.T) {
	completer := &mockCompleter{}
	svc := newTestPostService(completer)

	post, err := svc.Generate(context.Background(), GenerateInput{ImageDataURI: pngDataURI()})
	if err != nil {
		t.Fatalf("Generate returned unexpected error: %v", err)
	}
	if post.Post != "劇的なゴール！" {
		t.Errorf("Post = %q, want %q", post.Post, "劇的なゴール！")
	}
	if len(post.Hashtags) != 2 {
		t.Fatalf("len(Hashtags) = %d, want 2", len(post.Hashtags))
	}
	if post.Hashtags[0] != "#サッカー" {
		t.Errorf("Hashtags[0] = %q, want %q", post.Hashtags[0], "#サッカー")
	}
}

func TestGenerate_DefaultMoodIsProfessional(t *testing.T) {
	completer := &mockCompleter{}
	svc := newTestPostService(completer)

	if _, err := svc.Generate(context.Background(), GenerateInput{ImageDataURI: pngDataURI()}); err != nil {
		t.Fatalf("Generate returned unexpected error: %v", err)
	}
	if !strings.Contains(completer.textPrompt, moodDirectives[model.PostMoodProfessional]) {
		t.Errorf("prompt should carry the professional directive, got: %q", completer.textPrompt)
	}
}

func TestGenerate_MoodDirectiveFollowsInput(t *testing.T) {
	completer := &mockCompleter{}
	svc := newTestPostService(completer)

	_, err := svc.Generate(context.Background(), GenerateInput{
		ImageDataURI: pngDataURI(),
		Mood:         model.PostMoodExcited,
	})
	if err != nil {
		t.Fatalf("Generate returned unexpected error: %v", err)
	}
	if !strings.Contains(completer.textPrompt, moodDirectives[model.PostMoodExcited]) {
		t.Errorf("prompt should carry the excited directive, got: %q", completer.textPrompt)
	}
}

func TestGenerate_InvalidMood_ReturnsValidationError(t *testing.T) {
	svc := newTestPostService(&mockCompleter{})

	_, err := svc.Generate(context.Background(), GenerateInput{
		ImageDataURI: pngDataURI(),
		Mood:         model.PostMood("sarcastic"),
	})
	assertErrorCode(t, err, model.ErrCodeValidationFailed)
}

func TestGenerate_HintsAreWovenIntoPrompts(t *testing.T) {
	completer := &mockCompleter{}
	svc := newTestPostService(completer)

	_, err := svc.Generate(context.Background(), GenerateInput{
		ImageDataURI: pngDataURI(),
		Hints:        "後半ロスタイムの決勝点",
	})
	if err != nil {
		t.Fatalf("Generate returned unexpected error: %v", err)
	}
	if !strings.Contains(completer.visionPrompt, "後半ロスタイムの決勝点") {
		t.Error("scene prompt should contain the hints")
	}
	if !strings.Contains(completer.textPrompt, "後半ロスタイムの決勝点") {
		t.Error("compose prompt should contain the hints")
	}
}

func TestGenerate_SanitizesGeneratedText(t *testing.T) {
	completer := &mockCompleter{
		textFn: func(ctx context.Context, prompt string, jsonOnly bool) (string, error) {
			return `{"post": "<script>alert(1)</script>すごいゴール", "hashtags": ["<b>#tag</b>"]}`, nil
		},
	}
	svc := newTestPostService(completer)

	post, err := svc.Generate(context.Background(), GenerateInput{ImageDataURI: pngDataURI()})
	if err != nil {
		t.Fatalf("Generate returned unexpected error: %v", err)
	}
	if strings.Contains(post.Post, "<script>") {
		t.Errorf("post should be sanitized, got %q", post.Post)
	}
	if post.Post != "すごいゴール" {
		t.Errorf("Post = %q, want %q", post.Post, "すごいゴール")
	}
	for _, tag := range post.Hashtags {
		if strings.Contains(tag, "<") {
			t.Errorf("hashtag should be sanitized, got %q", tag)
		}
	}
}

func TestGenerate_FencedJSON_IsParsed(t *testing.T) {
	completer := &mockCompleter{
		textFn: func(ctx context.Context, prompt string, jsonOnly bool) (string, error) {
			return "```json\n{\"post\": \"いい試合\", \"hashtags\": []}\n```", nil
		},
	}
	svc := newTestPostService(completer)

	post, err := svc.Generate(context.Background(), GenerateInput{ImageDataURI: pngDataURI()})
	if err != nil {
		t.Fatalf("Generate returned unexpected error: %v", err)
	}
	if post.Post != "いい試合" {
		t.Errorf("Post = %q, want %q", post.Post, "いい試合")
	}
}

func TestGenerate_CompletionFailure_ReturnsAnalysisFailed(t *testing.T) {
	completer := &mockCompleter{
		visionFn: func(ctx context.Context, prompt, imageDataURI string) (string, error) {
			return "", errors.New("api down")
		},
	}
	svc := newTestPostService(completer)

	_, err := svc.Generate(context.Background(), GenerateInput{ImageDataURI: pngDataURI()})
	assertErrorCode(t, err, model.ErrCodeAnalysisFailed)
}

func TestGenerate_EmptyPostAfterSanitize_ReturnsAnalysisFailed(t *testing.T) {
	completer := &mockCompleter{
		textFn: func(ctx context.Context, prompt string, jsonOnly bool) (string, error) {
			return `{"post": "<script>only markup</script>", "hashtags": []}`, nil
		},
	}
	svc := newTestPostService(completer)

	_, err := svc.Generate(context.Background(), GenerateInput{ImageDataURI: pngDataURI()})
	assertErrorCode(t, err, model.ErrCodeAnalysisFailed)
}

func TestGenerate_NoImage_ReturnsValidationError(t *testing.T) {
	svc := newTestPostService(&mockCompleter{})

	_, err := svc.Generate(context.Background(), GenerateInput{})
	assertErrorCode(t, err, model.ErrCodeValidationFailed)
}

func TestGenerate_UnsupportedImage_ReturnsUnsupportedFormat(t *testing.T) {
	svc := newTestPostService(&mockCompleter{})

	_, err := svc.Generate(context.Background(), GenerateInput{ImageBytes: []byte("not an image")})
	assertErrorCode(t, err, model.ErrCodeUnsupportedImage)
}

func TestNormalizeHashtag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "#サッカー", want: "#サッカー"},
		{in: "サッカー", want: "#サッカー"},
		{in: "  # goal  ", want: "#goal"},
		{in: "", want: ""},
		{in: "#", want: ""},
	}
	for _, tt := range tests {
		if got := normalizeHashtag(tt.in); got != tt.want {
			t.Errorf("normalizeHashtag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
