package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const recentEventsLimit = 5

type RecentInsights struct {
	Message      string         `json:"message"`
	RecentEvents []*types.Video `json:"recent_events"`
	Summary      string         `json:"summary"`
}

type DailyRecap struct {
	Date        string         `json:"date"`
	Message     string         `json:"message"`
	EventsCount int            `json:"events_count"`
	Events      []*types.Video `json:"events"`
	DailyRecap  string         `json:"daily_recap"`
}

type InsightsService interface {
	Recent(ctx context.Context, userID uuid.UUID) (*RecentInsights, error)
	DailySummary(ctx context.Context, userID uuid.UUID) (*DailyRecap, error)
}

type insightsService struct {
	log    *logger.Logger
	videos repos.VideoRepo
	now    func() time.Time
}

func NewInsightsService(log *logger.Logger, videos repos.VideoRepo) InsightsService {
	return &insightsService{
		log:    log.With("service", "InsightsService"),
		videos: videos,
		now:    time.Now,
	}
}

func (s *insightsService) Recent(ctx context.Context, userID uuid.UUID) (*RecentInsights, error) {
	rows, err := s.videos.ListByUser(ctx, nil, userID, recentEventsLimit, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &RecentInsights{
			Message:      "No recent events found",
			RecentEvents: []*types.Video{},
			Summary:      "No activities recorded recently.",
		}, nil
	}

	var parts []string
	for i, row := range rows {
		if row.DetailedSummary == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d. %s: %s...",
			i+1,
			row.Timestamp.Format(time.RFC3339),
			truncateSummary(row.DetailedSummary, 100),
		))
	}
	summary := fmt.Sprintf("Recent activity summary (%d events):\n%s", len(rows), strings.Join(parts, "\n"))

	return &RecentInsights{
		Message:      fmt.Sprintf("Found %d recent events", len(rows)),
		RecentEvents: rows,
		Summary:      summary,
	}, nil
}

func (s *insightsService) DailySummary(ctx context.Context, userID uuid.UUID) (*DailyRecap, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24*time.Hour - time.Nanosecond)

	rows, err := s.videos.ListByUserBetween(ctx, nil, userID, startOfDay, endOfDay)
	if err != nil {
		return nil, err
	}
	date := startOfDay.Format("2006-01-02")
	if len(rows) == 0 {
		return &DailyRecap{
			Date:        date,
			Message:     "No events recorded today",
			EventsCount: 0,
			Events:      []*types.Video{},
			DailyRecap: fmt.Sprintf("No activities were recorded for %s. It was a quiet day!",
				startOfDay.Format("January 2, 2006")),
		}, nil
	}

	recap := []string{
		fmt.Sprintf("Daily Recap for %s:", startOfDay.Format("January 2, 2006")),
		fmt.Sprintf("Total events recorded: %d", len(rows)),
		"",
		"Event Timeline:",
	}
	for _, row := range rows {
		summary := row.DetailedSummary
		if summary == "" {
			summary = "No summary available"
		}
		recap = append(recap, fmt.Sprintf("%s: %s", row.Timestamp.Format("3:04 PM"), summary))
	}
	recap = append(recap,
		"",
		"Day Summary:",
		fmt.Sprintf("You had %d recorded activities today. ", len(rows)),
	)
	switch {
	case len(rows) >= 10:
		recap = append(recap, "It was quite a busy day with lots of activities!")
	case len(rows) >= 5:
		recap = append(recap, "You had a moderately active day.")
	default:
		recap = append(recap, "It was a relatively quiet day.")
	}

	return &DailyRecap{
		Date:        date,
		Message:     fmt.Sprintf("Found %d events for today", len(rows)),
		EventsCount: len(rows),
		Events:      rows,
		DailyRecap:  strings.Join(recap, "\n"),
	}, nil
}

func truncateSummary(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
