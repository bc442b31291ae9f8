package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/matchside/internal/model"
)

// --- モック ---

type mockMatchRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Match, error)
	findLiveFn   func(ctx context.Context) (*model.Match, error)
	listFn       func(ctx context.Context) ([]*model.Match, error)
	createFn     func(ctx context.Context, match *model.Match) error
	updateFn     func(ctx context.Context, match *model.Match) error
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockMatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockMatchRepo) FindLive(ctx context.Context) (*model.Match, error) {
	if m.findLiveFn != nil {
		return m.findLiveFn(ctx)
	}
	return nil, nil
}

func (m *mockMatchRepo) List(ctx context.Context) ([]*model.Match, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockMatchRepo) Create(ctx context.Context, match *model.Match) error {
	if m.createFn != nil {
		return m.createFn(ctx, match)
	}
	return nil
}

func (m *mockMatchRepo) Update(ctx context.Context, match *model.Match) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, match)
	}
	return nil
}

func (m *mockMatchRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockEventRepo struct {
	listByMatchIDFn func(ctx context.Context, matchID string) ([]*model.MatchEvent, error)
	createFn        func(ctx context.Context, event *model.MatchEvent) error
}

func (m *mockEventRepo) ListByMatchID(ctx context.Context, matchID string) ([]*model.MatchEvent, error) {
	if m.listByMatchIDFn != nil {
		return m.listByMatchIDFn(ctx, matchID)
	}
	return nil, nil
}

func (m *mockEventRepo) Create(ctx context.Context, event *model.MatchEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
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

// --- Create ---

func TestCreate_ValidInput_CreatesMatch(t *testing.T) {
	var created *model.Match
	repo := &mockMatchRepo{
		createFn: func(ctx context.Context, match *model.Match) error {
			created = match
			return nil
		},
	}
	svc := NewService(repo, &mockEventRepo{})

	match, err := svc.Create(context.Background(), CreateInput{
		Stadium:  "National Stadium",
		Date:     time.Date(2026, 9, 5, 19, 0, 0, 0, time.UTC),
		HomeTeam: "Tokyo FC",
		AwayTeam: "Osaka United",
	})
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected match to be created")
	}
	if match.Status != model.MatchStatusScheduled {
		t.Errorf("Status = %q, want %q", match.Status, model.MatchStatusScheduled)
	}
}

func TestCreate_InvalidInput_ReturnsValidationError(t *testing.T) {
	svc := NewService(&mockMatchRepo{}, &mockEventRepo{})

	date := time.Date(2026, 9, 5, 19, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "チーム名なし", input: CreateInput{Date: date, HomeTeam: "Tokyo FC"}},
		{name: "日時なし", input: CreateInput{HomeTeam: "Tokyo FC", AwayTeam: "Osaka United"}},
		{name: "不正なステータス", input: CreateInput{Date: date, HomeTeam: "Tokyo FC", AwayTeam: "Osaka United", Status: "PAUSED"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assertErrorCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

// --- GetLive ---

func TestGetLive_LiveMatchExists_ReturnsMatch(t *testing.T) {
	repo := &mockMatchRepo{
		findLiveFn: func(ctx context.Context) (*model.Match, error) {
			return &model.Match{ID: "m-1", Status: model.MatchStatusLive}, nil
		},
	}
	svc := NewService(repo, &mockEventRepo{})

	match, err := svc.GetLive(context.Background())
	if err != nil {
		t.Fatalf("GetLive returned unexpected error: %v", err)
	}
	if match.ID != "m-1" {
		t.Errorf("ID = %q, want %q", match.ID, "m-1")
	}
}

func TestGetLive_NoLiveMatch_ReturnsError(t *testing.T) {
	svc := NewService(&mockMatchRepo{}, &mockEventRepo{})

	_, err := svc.GetLive(context.Background())
	assertErrorCode(t, err, model.ErrCodeNoLiveMatch)
}

// --- Update ---

func TestUpdate_ScoreAndStatus_Updates(t *testing.T) {
	repo := &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) {
			return &model.Match{
				ID:       id,
				HomeTeam: "Tokyo FC",
				AwayTeam: "Osaka United",
				Status:   model.MatchStatusScheduled,
			}, nil
		},
	}
	svc := NewService(repo, &mockEventRepo{})

	homeScore := 2
	live := model.MatchStatusLive
	match, err := svc.Update(context.Background(), "m-1", UpdateInput{
		HomeScore: &homeScore,
		Status:    &live,
	})
	if err != nil {
		t.Fatalf("Update returned unexpected error: %v", err)
	}
	if match.HomeScore != 2 {
		t.Errorf("HomeScore = %d, want 2", match.HomeScore)
	}
	if match.Status != model.MatchStatusLive {
		t.Errorf("Status = %q, want %q", match.Status, model.MatchStatusLive)
	}
	// 指定しなかったフィールドは据え置き
	if match.AwayScore != 0 {
		t.Errorf("AwayScore = %d, want 0", match.AwayScore)
	}
}

func TestUpdate_NegativeScore_ReturnsValidationError(t *testing.T) {
	repo := &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) {
			return &model.Match{ID: id}, nil
		},
	}
	svc := NewService(repo, &mockEventRepo{})

	negative := -1
	_, err := svc.Update(context.Background(), "m-1", UpdateInput{HomeScore: &negative})
	assertErrorCode(t, err, model.ErrCodeValidationFailed)
}

func TestUpdate_UnknownMatch_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockMatchRepo{}, &mockEventRepo{})

	score := 1
	_, err := svc.Update(context.Background(), "missing", UpdateInput{HomeScore: &score})
	assertErrorCode(t, err, model.ErrCodeMatchNotFound)
}

// --- Events ---

func TestAddEvent_ValidInput_CreatesEvent(t *testing.T) {
	var created *model.MatchEvent
	repo := &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) {
			return &model.Match{ID: id}, nil
		},
	}
	eventRepo := &mockEventRepo{
		createFn: func(ctx context.Context, event *model.MatchEvent) error {
			created = event
			return nil
		},
	}
	svc := NewService(repo, eventRepo)

	event, err := svc.AddEvent(context.Background(), "m-1", EventInput{
		Minute:     63,
		Type:       "GOAL",
		Team:       "Tokyo FC",
		PlayerName: "Mitoma",
	})
	if err != nil {
		t.Fatalf("AddEvent returned unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected event to be created")
	}
	if event.MatchID != "m-1" || event.Type != "GOAL" || event.Minute != 63 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestAddEvent_InvalidInput_ReturnsValidationError(t *testing.T) {
	repo := &mockMatchRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Match, error) {
			return &model.Match{ID: id}, nil
		},
	}
	svc := NewService(repo, &mockEventRepo{})

	if _, err := svc.AddEvent(context.Background(), "m-1", EventInput{Minute: 10}); err == nil {
		t.Error("expected error for missing event type")
	}
	if _, err := svc.AddEvent(context.Background(), "m-1", EventInput{Type: "GOAL", Minute: -1}); err == nil {
		t.Error("expected error for negative minute")
	}
}

func TestListEvents_UnknownMatch_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockMatchRepo{}, &mockEventRepo{})

	_, err := svc.ListEvents(context.Background(), "missing")
	assertErrorCode(t, err, model.ErrCodeMatchNotFound)
}

// --- GameInfo ---

func TestGetGameInfo_LiveMatch_ReturnsSummary(t *testing.T) {
	kickoff := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	repo := &mockMatchRepo{
		findLiveFn: func(ctx context.Context) (*model.Match, error) {
			return &model.Match{
				ID:        "m-1",
				HomeTeam:  "Tokyo FC",
				AwayTeam:  "Osaka United",
				HomeScore: 2,
				AwayScore: 1,
				Date:      kickoff,
				Status:    model.MatchStatusLive,
			}, nil
		},
	}
	svc := NewService(repo, &mockEventRepo{})
	// キックオフから78分24秒後に固定
	svc.now = func() time.Time { return kickoff.Add(78*time.Minute + 24*time.Second) }

	info, err := svc.GetGameInfo(context.Background())
	if err != nil {
		t.Fatalf("GetGameInfo returned unexpected error: %v", err)
	}
	if info.HomeTeam != "Tokyo FC" || info.AwayTeam != "Osaka United" {
		t.Errorf("teams = (%q, %q)", info.HomeTeam, info.AwayTeam)
	}
	if info.HomeScore != 2 || info.AwayScore != 1 {
		t.Errorf("score = %d-%d, want 2-1", info.HomeScore, info.AwayScore)
	}
	if info.CurrentTime != "78:24" {
		t.Errorf("CurrentTime = %q, want %q", info.CurrentTime, "78:24")
	}
	if info.MatchPhase != "後半" {
		t.Errorf("MatchPhase = %q, want %q", info.MatchPhase, "後半")
	}
}

func TestGetGameInfo_NoLiveMatch_ReturnsError(t *testing.T) {
	svc := NewService(&mockMatchRepo{}, &mockEventRepo{})

	_, err := svc.GetGameInfo(context.Background())
	assertErrorCode(t, err, model.ErrCodeNoLiveMatch)
}

func TestMatchPhase_Boundaries(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{-5 * time.Minute, "キックオフ前"},
		{10 * time.Minute, "前半"},
		{50 * time.Minute, "ハーフタイム"},
		{70 * time.Minute, "後半"},
		{110 * time.Minute, "終盤"},
	}
	for _, tt := range tests {
		if got := matchPhase(tt.elapsed); got != tt.want {
			t.Errorf("matchPhase(%v) = %q, want %q", tt.elapsed, got, tt.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Minute, "00:00"},
		{78*time.Minute + 24*time.Second, "78:24"},
		{100 * time.Minute, "100:00"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// --- ReplayMoments ---

func TestListReplayMoments_BuildsFromEvents(t *testing.T) {
	repo := &mockMatchRepo{
		findLiveFn: func(ctx context.Context) (*model.Match, error) {
			return &model.Match{ID: "m-1", Status: model.MatchStatusLive}, nil
		},
	}
	eventRepo := &mockEventRepo{
		listByMatchIDFn: func(ctx context.Context, matchID string) ([]*model.MatchEvent, error) {
			return []*model.MatchEvent{
				{ID: "e-1", MatchID: matchID, Minute: 63, Type: "GOAL", Team: "Tokyo FC", Description: "Beautiful strike"},
				{ID: "e-2", MatchID: matchID, Minute: 70, Type: "YELLOW_CARD", Team: "Osaka United"},
				{ID: "e-3", MatchID: matchID, Minute: 75, Type: "SUBSTITUTION", Team: "Tokyo FC"},
			}, nil
		},
	}
	svc := NewService(repo, eventRepo)

	moments, err := svc.ListReplayMoments(context.Background())
	if err != nil {
		t.Fatalf("ListReplayMoments returned unexpected error: %v", err)
	}
	// SUBSTITUTIONはリプレイ候補にならない
	if len(moments) != 2 {
		t.Fatalf("len(moments) = %d, want 2", len(moments))
	}
	if moments[0].Type != model.ReplayMomentGoal {
		t.Errorf("moments[0].Type = %q, want %q", moments[0].Type, model.ReplayMomentGoal)
	}
	if moments[0].Title != "Beautiful strike" {
		t.Errorf("moments[0].Title = %q", moments[0].Title)
	}
	if moments[0].Minute != "63:00" {
		t.Errorf("moments[0].Minute = %q, want %q", moments[0].Minute, "63:00")
	}
	if moments[1].Type != model.ReplayMomentFoul {
		t.Errorf("moments[1].Type = %q, want %q", moments[1].Type, model.ReplayMomentFoul)
	}
}
