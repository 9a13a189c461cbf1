package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/clients/openai"
	"github.com/yungbote/lifeos-backend/internal/clients/twelvelabs"
	"github.com/yungbote/lifeos-backend/internal/platform/apierr"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
	"github.com/yungbote/lifeos-backend/internal/repos"
)

const chatbotTopK = 10

const noVideosResponse = "I couldn't find any relevant videos to answer your question."

const refineSystemPrompt = `You are a query refinement assistant for a video memory system.
Your job is to take a user's question or input and convert it into
a clear, searchable query that would help find relevant video content.

Rules:
1. Keep the refined query concise but descriptive
2. Focus on key concepts, actions, or objects mentioned
3. Use natural language that would match video content descriptions
4. If the input is already a good search query, return it as-is
5. Remove unnecessary words but keep the core meaning

Examples:
- "What was I doing yesterday?" -> "yesterday activities"
- "Show me when I was cooking" -> "cooking"
- "Find videos of me working on my computer" -> "working on computer"
- "When did I last exercise?" -> "exercise workout"`

const answerSystemPrompt = `You are a helpful assistant answering questions about a user's recorded video memories.
You are given the user's question and a list of video summaries with timestamps.
Answer the question using only the provided summaries. Refer to when things
happened using the timestamps. If the summaries do not contain the answer,
say so plainly. Do not invent events that are not in the summaries.`

type ChatbotContext struct {
	Timestamp       string  `json:"timestamp"`
	Summary         string  `json:"summary"`
	ConfidenceScore float64 `json:"confidence_score"`
	VideoID         string  `json:"video_id"`
}

type ChatbotResponse struct {
	OriginalInput    string   `json:"original_input"`
	RefinedQuery     string   `json:"refined_query"`
	VideoFound       bool     `json:"video_found"`
	AIResponse       string   `json:"ai_response"`
	VideoID          *string  `json:"video_id,omitempty"`
	Timestamp        *string  `json:"timestamp,omitempty"`
	Summary          *string  `json:"summary,omitempty"`
	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
	ProcessingTimeMS float64  `json:"processing_time_ms"`
}

type ChatbotService interface {
	Ask(ctx context.Context, userID uuid.UUID, userInput string, confidenceThreshold *float64) (*ChatbotResponse, error)
}

type chatbotService struct {
	log     *logger.Logger
	llm     openai.Client
	tl      twelvelabs.Client
	vectors qdrant.VectorStore
	videos  repos.VideoRepo
}

func NewChatbotService(log *logger.Logger, llm openai.Client, tl twelvelabs.Client, vectors qdrant.VectorStore, videos repos.VideoRepo) ChatbotService {
	return &chatbotService{
		log:     log.With("service", "ChatbotService"),
		llm:     llm,
		tl:      tl,
		vectors: vectors,
		videos:  videos,
	}
}

// Ask rewrites the question into a search query, retrieves the closest video
// memories and answers the original question grounded on those summaries.
func (s *chatbotService) Ask(ctx context.Context, userID uuid.UUID, userInput string, confidenceThreshold *float64) (*ChatbotResponse, error) {
	start := time.Now()

	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return nil, apierr.New(http.StatusBadRequest, "user_input is required", nil)
	}

	refined := s.refineQuery(ctx, userInput)

	vector, err := s.tl.EmbedText(ctx, refined)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "Failed to generate query embedding", err)
	}

	threshold := defaultScoreThreshold
	if confidenceThreshold != nil {
		threshold = *confidenceThreshold
	}
	matches, err := s.vectors.Search(ctx, qdrant.SearchQuery{
		UserID:         userID,
		Vector:         vector,
		Limit:          chatbotTopK,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	resp := &ChatbotResponse{
		OriginalInput: userInput,
		RefinedQuery:  refined,
	}
	if len(matches) == 0 {
		resp.AIResponse = noVideosResponse
		resp.ProcessingTimeMS = elapsedMS(start)
		return resp, nil
	}

	contexts := s.assembleContexts(ctx, matches)
	if len(contexts) == 0 {
		resp.AIResponse = noVideosResponse
		resp.ProcessingTimeMS = elapsedMS(start)
		return resp, nil
	}

	answer, err := s.llm.GenerateText(ctx, answerSystemPrompt, answerUserPrompt(userInput, contexts))
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "Failed to generate response", err)
	}

	top := contexts[0]
	resp.VideoFound = true
	resp.AIResponse = answer
	resp.VideoID = &top.VideoID
	resp.Timestamp = &top.Timestamp
	resp.Summary = &top.Summary
	resp.ConfidenceScore = &top.ConfidenceScore
	resp.ProcessingTimeMS = elapsedMS(start)
	return resp, nil
}

// refineQuery falls back to the raw input whenever the rewrite fails.
func (s *chatbotService) refineQuery(ctx context.Context, userInput string) string {
	if s.llm == nil {
		return userInput
	}
	refined, err := s.llm.GenerateText(ctx, refineSystemPrompt, "Refine this input into a search query: "+userInput)
	if err != nil {
		s.log.Warn("Query refinement failed, using raw input", "error", err)
		return userInput
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return userInput
	}
	s.log.Info("Query refined", "original", userInput, "refined", refined)
	return refined
}

func (s *chatbotService) assembleContexts(ctx context.Context, matches []qdrant.MemoryMatch) []ChatbotContext {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	rows, err := s.videos.GetByIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("Context enrichment failed", "error", err)
		return nil
	}
	byID := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		byID[row.VideoID] = row.DetailedSummary
	}

	contexts := make([]ChatbotContext, 0, len(matches))
	for _, m := range matches {
		summary, ok := byID[m.ID]
		if !ok || summary == "" {
			continue
		}
		timestamp := ""
		if ts, tsOK := m.Payload["timestamp"].(string); tsOK {
			timestamp = ts
		}
		contexts = append(contexts, ChatbotContext{
			Timestamp:       timestamp,
			Summary:         summary,
			ConfidenceScore: m.Score,
			VideoID:         m.ID.String(),
		})
	}
	return contexts
}

func answerUserPrompt(question string, contexts []ChatbotContext) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nVideo memories:\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "%d. [%s] (confidence %.2f) %s\n", i+1, c.Timestamp, c.ConfidenceScore, c.Summary)
	}
	return b.String()
}

func elapsedMS(start time.Time) float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	if ms <= 0 {
		ms = 0.001
	}
	return ms
}
