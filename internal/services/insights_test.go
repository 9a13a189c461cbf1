package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/repos/testutil"
	"github.com/yungbote/lifeos-backend/internal/types"
)

func newInsightsService(t *testing.T) (*insightsService, repos.VideoRepo) {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	videos := repos.NewVideoRepo(db, log)
	svc := NewInsightsService(log, videos).(*insightsService)
	return svc, videos
}

func seedVideoAt(t *testing.T, videos repos.VideoRepo, userID uuid.UUID, at time.Time, summary string) {
	t.Helper()
	row := &types.Video{
		VideoID:         uuid.New(),
		UserID:          userID,
		Timestamp:       at,
		Datetime:        at,
		DetailedSummary: summary,
		ProcessedAt:     at,
	}
	if _, err := videos.Create(context.Background(), nil, []*types.Video{row}); err != nil {
		t.Fatalf("seed video: %v", err)
	}
}

func TestRecentEmpty(t *testing.T) {
	svc, _ := newInsightsService(t)

	got, err := svc.Recent(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got.Message != "No recent events found" {
		t.Fatalf("message: got=%q", got.Message)
	}
	if got.Summary != "No activities recorded recently." {
		t.Fatalf("summary: got=%q", got.Summary)
	}
	if len(got.RecentEvents) != 0 {
		t.Fatalf("events: got=%d", len(got.RecentEvents))
	}
}

func TestRecentCapsAtFive(t *testing.T) {
	svc, videos := newInsightsService(t)
	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		seedVideoAt(t, videos, userID, base.Add(time.Duration(i)*time.Minute), "walking the dog")
	}

	got, err := svc.Recent(context.Background(), userID)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got.RecentEvents) != 5 {
		t.Fatalf("events: want=5 got=%d", len(got.RecentEvents))
	}
	if got.Message != "Found 5 recent events" {
		t.Fatalf("message: got=%q", got.Message)
	}
	if !strings.HasPrefix(got.Summary, "Recent activity summary (5 events):") {
		t.Fatalf("summary: got=%q", got.Summary)
	}
}

func TestDailySummaryEmpty(t *testing.T) {
	svc, _ := newInsightsService(t)
	fixed := time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.DailySummary(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if got.Date != "2026-08-19" {
		t.Fatalf("date: got=%q", got.Date)
	}
	if got.EventsCount != 0 {
		t.Fatalf("events_count: got=%d", got.EventsCount)
	}
	if !strings.Contains(got.DailyRecap, "It was a quiet day!") {
		t.Fatalf("recap: got=%q", got.DailyRecap)
	}
}

func TestDailySummaryTiers(t *testing.T) {
	cases := []struct {
		count int
		want  string
	}{
		{3, "It was a relatively quiet day."},
		{6, "You had a moderately active day."},
		{11, "It was quite a busy day with lots of activities!"},
	}
	for _, tc := range cases {
		svc, videos := newInsightsService(t)
		fixed := time.Date(2026, 8, 19, 20, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return fixed }

		userID := uuid.New()
		for i := 0; i < tc.count; i++ {
			seedVideoAt(t, videos, userID, fixed.Add(-time.Duration(i+1)*time.Minute), "doing things")
		}
		// Yesterday's event must not count toward today's recap.
		seedVideoAt(t, videos, userID, fixed.Add(-30*time.Hour), "old event")

		got, err := svc.DailySummary(context.Background(), userID)
		if err != nil {
			t.Fatalf("DailySummary: %v", err)
		}
		if got.EventsCount != tc.count {
			t.Fatalf("count=%d: events_count got=%d", tc.count, got.EventsCount)
		}
		if !strings.Contains(got.DailyRecap, tc.want) {
			t.Fatalf("count=%d: recap missing %q in %q", tc.count, tc.want, got.DailyRecap)
		}
	}
}
