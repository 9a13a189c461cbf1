package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/repos/testutil"
)

func newChatbotService(t *testing.T, llm *stubLLM) (ChatbotService, repos.VideoRepo, *stubVectors) {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	videos := repos.NewVideoRepo(db, log)
	vectors := &stubVectors{}
	return NewChatbotService(log, llm, &stubTL{}, vectors, videos), videos, vectors
}

func TestChatbotEmptyCorpus(t *testing.T) {
	llm := &stubLLM{textResp: "yesterday activities"}
	svc, _, vectors := newChatbotService(t, llm)

	resp, err := svc.Ask(context.Background(), uuid.New(), "what did I do yesterday?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.VideoFound {
		t.Fatal("video_found should be false")
	}
	if resp.AIResponse != noVideosResponse {
		t.Fatalf("ai_response: got=%q", resp.AIResponse)
	}
	if resp.RefinedQuery != "yesterday activities" {
		t.Fatalf("refined_query: got=%q", resp.RefinedQuery)
	}
	if resp.OriginalInput != "what did I do yesterday?" {
		t.Fatalf("original_input: got=%q", resp.OriginalInput)
	}
	if resp.ProcessingTimeMS <= 0 {
		t.Fatalf("processing_time_ms: got=%v", resp.ProcessingTimeMS)
	}
	if vectors.lastQuery.Limit != chatbotTopK {
		t.Fatalf("limit: want=%d got=%d", chatbotTopK, vectors.lastQuery.Limit)
	}
	if vectors.lastQuery.ScoreThreshold != defaultScoreThreshold {
		t.Fatalf("threshold: got=%v", vectors.lastQuery.ScoreThreshold)
	}
}

func TestChatbotRefineFailureFallsBackToRawInput(t *testing.T) {
	llm := &stubLLM{textErr: errors.New("rate limited")}
	svc, _, _ := newChatbotService(t, llm)

	resp, err := svc.Ask(context.Background(), uuid.New(), "show me cooking", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.RefinedQuery != "show me cooking" {
		t.Fatalf("refined_query fallback: got=%q", resp.RefinedQuery)
	}
}

func TestChatbotAnswersFromTopHit(t *testing.T) {
	llm := &stubLLM{textResp: "You were cooking pasta around noon."}
	svc, videos, vectors := newChatbotService(t, llm)
	userID := uuid.New()
	row := seedVideo(t, videos, userID, nil)

	ts := row.Timestamp.Format(time.RFC3339)
	vectors.matches = []qdrant.MemoryMatch{
		{ID: row.VideoID, Score: 0.87, Payload: map[string]any{"timestamp": ts, "user_id": userID.String()}},
	}

	resp, err := svc.Ask(context.Background(), userID, "when was I cooking?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !resp.VideoFound {
		t.Fatal("video_found should be true")
	}
	if resp.AIResponse != llm.textResp {
		t.Fatalf("ai_response: got=%q", resp.AIResponse)
	}
	if resp.VideoID == nil || *resp.VideoID != row.VideoID.String() {
		t.Fatalf("video_id: got=%v", resp.VideoID)
	}
	if resp.ConfidenceScore == nil || *resp.ConfidenceScore != 0.87 {
		t.Fatalf("confidence_score: got=%v", resp.ConfidenceScore)
	}
	if resp.Summary == nil || *resp.Summary != row.DetailedSummary {
		t.Fatalf("summary: got=%v", resp.Summary)
	}
}

func TestChatbotConfidenceThresholdOverride(t *testing.T) {
	llm := &stubLLM{textResp: "q"}
	svc, _, vectors := newChatbotService(t, llm)
	threshold := 0.5

	if _, err := svc.Ask(context.Background(), uuid.New(), "anything", &threshold); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if vectors.lastQuery.ScoreThreshold != 0.5 {
		t.Fatalf("threshold: want=0.5 got=%v", vectors.lastQuery.ScoreThreshold)
	}
}

func TestChatbotMatchWithoutRowFallsBackToCanned(t *testing.T) {
	llm := &stubLLM{textResp: "q"}
	svc, _, vectors := newChatbotService(t, llm)
	vectors.matches = []qdrant.MemoryMatch{
		{ID: uuid.New(), Score: 0.9, Payload: map[string]any{}},
	}

	resp, err := svc.Ask(context.Background(), uuid.New(), "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.VideoFound {
		t.Fatal("video_found should be false when no context could be built")
	}
	if resp.AIResponse != noVideosResponse {
		t.Fatalf("ai_response: got=%q", resp.AIResponse)
	}
}
