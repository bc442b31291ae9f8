package vision

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hitoshi/matchside/internal/model"
)

// mockCompleter は呼び出しごとに用意した応答を順番に返す。
type mockCompleter struct {
	responses []string
	errs      []error
	calls     []bool // 各呼び出しのjsonOnlyフラグ
}

func (m *mockCompleter) Complete(ctx context.Context, messages []chatMessage, jsonOnly bool) (string, error) {
	idx := len(m.calls)
	m.calls = append(m.calls, jsonOnly)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return "", errors.New("no scripted response")
}

func newTestVisionService(completer *mockCompleter) *Service {
	return NewService(completer, nil, NewMemory(50), slog.Default())
}

func testMatchContext() model.MatchContext {
	return model.MatchContext{
		Status:   "LIVE",
		HomeTeam: "FC Tokyo",
		AwayTeam: "Kawasaki",
		Stadium:  "Ajinomoto Stadium",
	}
}

func TestAnalyzeImage_TwoStepFlow_ReturnsResult(t *testing.T) {
	completer := &mockCompleter{
		responses: []string{
			"赤いユニフォームで背番号10の選手が写っています。",
			`{"playerNumber": 10, "team": "FC Tokyo", "status": "success", "message": "背番号10を特定"}`,
		},
	}
	svc := newTestVisionService(completer)

	result, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, testMatchContext())
	if err != nil {
		t.Fatalf("AnalyzeImage returned unexpected error: %v", err)
	}

	if len(completer.calls) != 2 {
		t.Fatalf("Complete called %d times, want 2", len(completer.calls))
	}
	// 1段階目は自由記述、2段階目はJSON強制
	if completer.calls[0] {
		t.Error("first call should not be jsonOnly")
	}
	if !completer.calls[1] {
		t.Error("second call should be jsonOnly")
	}

	if result.PlayerNumber == nil || *result.PlayerNumber != 10 {
		t.Errorf("PlayerNumber = %v, want 10", result.PlayerNumber)
	}
	if result.Team == nil || *result.Team != "FC Tokyo" {
		t.Errorf("Team = %v, want FC Tokyo", result.Team)
	}
	if result.Status != model.AnalysisStatusSuccess {
		t.Errorf("Status = %q, want success", result.Status)
	}
}

func TestAnalyzeImage_FencedJSON_IsParsed(t *testing.T) {
	completer := &mockCompleter{
		responses: []string{
			"説明",
			"```json\n{\"playerNumber\": 7, \"team\": null, \"status\": \"partial\", \"message\": \"\"}\n```",
		},
	}
	svc := newTestVisionService(completer)

	result, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, testMatchContext())
	if err != nil {
		t.Fatalf("AnalyzeImage returned unexpected error: %v", err)
	}
	if result.PlayerNumber == nil || *result.PlayerNumber != 7 {
		t.Errorf("PlayerNumber = %v, want 7", result.PlayerNumber)
	}
	if result.Status != model.AnalysisStatusPartial {
		t.Errorf("Status = %q, want partial", result.Status)
	}
}

func TestAnalyzeImage_MissingStatus_IsDerived(t *testing.T) {
	tests := []struct {
		name string
		json string
		want model.AnalysisStatus
	}{
		{
			name: "両方特定 → success",
			json: `{"playerNumber": 10, "team": "FC Tokyo", "message": ""}`,
			want: model.AnalysisStatusSuccess,
		},
		{
			name: "背番号のみ → partial",
			json: `{"playerNumber": 10, "team": null, "message": ""}`,
			want: model.AnalysisStatusPartial,
		},
		{
			name: "チームのみ → partial",
			json: `{"playerNumber": null, "team": "Kawasaki", "message": ""}`,
			want: model.AnalysisStatusPartial,
		},
		{
			name: "どちらもnull → failed",
			json: `{"playerNumber": null, "team": null, "message": "判別不能"}`,
			want: model.AnalysisStatusFailed,
		},
		{
			name: "未知のstatus値も導出で上書き",
			json: `{"playerNumber": 10, "team": "FC Tokyo", "status": "ok", "message": ""}`,
			want: model.AnalysisStatusSuccess,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &mockCompleter{responses: []string{"説明", tt.json}}
			svc := newTestVisionService(completer)

			result, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, testMatchContext())
			if err != nil {
				t.Fatalf("AnalyzeImage returned unexpected error: %v", err)
			}
			if result.Status != tt.want {
				t.Errorf("Status = %q, want %q", result.Status, tt.want)
			}
		})
	}
}

func TestAnalyzeImage_CompletionFailure_ReturnsAnalysisFailed(t *testing.T) {
	completer := &mockCompleter{errs: []error{errors.New("api down")}}
	svc := newTestVisionService(completer)

	_, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, testMatchContext())
	assertImageErrorCode(t, err, model.ErrCodeAnalysisFailed)

	// 失敗もメモリに記録される
	records := svc.ListMemory()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Result.Status != model.AnalysisStatusFailed {
		t.Errorf("recorded status = %q, want failed", records[0].Result.Status)
	}
}

func TestAnalyzeImage_MalformedJSON_ReturnsAnalysisFailed(t *testing.T) {
	completer := &mockCompleter{responses: []string{"説明", "これはJSONではありません"}}
	svc := newTestVisionService(completer)

	_, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, testMatchContext())
	assertImageErrorCode(t, err, model.ErrCodeAnalysisFailed)
}

func TestAnalyzeImage_UnsupportedImage_IsRejectedBeforeVLM(t *testing.T) {
	completer := &mockCompleter{}
	svc := newTestVisionService(completer)

	_, err := svc.AnalyzeImage(context.Background(), ImageInput{Bytes: []byte("not an image")}, testMatchContext())
	assertImageErrorCode(t, err, model.ErrCodeUnsupportedImage)
	if len(completer.calls) != 0 {
		t.Error("VLM should not be called for an unsupported image")
	}
}

func TestAnalyzeImage_NoImage_ReturnsValidationError(t *testing.T) {
	svc := newTestVisionService(&mockCompleter{})

	_, err := svc.AnalyzeImage(context.Background(), ImageInput{}, testMatchContext())
	assertImageErrorCode(t, err, model.ErrCodeValidationFailed)
}

func TestAnalyzeImage_RecordsHistory(t *testing.T) {
	completer := &mockCompleter{
		responses: []string{
			"説明1", `{"playerNumber": 10, "team": "FC Tokyo", "status": "success", "message": ""}`,
			"説明2", `{"playerNumber": null, "team": null, "status": "failed", "message": "不明"}`,
		},
	}
	svc := newTestVisionService(completer)
	matchCtx := testMatchContext()

	if _, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, matchCtx); err != nil {
		t.Fatalf("first AnalyzeImage returned unexpected error: %v", err)
	}
	if _, err := svc.AnalyzeImage(context.Background(), ImageInput{DataURI: pngDataURI()}, matchCtx); err != nil {
		t.Fatalf("second AnalyzeImage returned unexpected error: %v", err)
	}

	records := svc.ListMemory()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	// 新しい順
	if records[0].Result.Status != model.AnalysisStatusFailed {
		t.Errorf("records[0].Status = %q, want failed", records[0].Result.Status)
	}
	if records[1].Result.Status != model.AnalysisStatusSuccess {
		t.Errorf("records[1].Status = %q, want success", records[1].Result.Status)
	}
	if records[0].Match.HomeTeam != "FC Tokyo" {
		t.Errorf("records[0].Match.HomeTeam = %q, want FC Tokyo", records[0].Match.HomeTeam)
	}
}
