package automations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/lifeos-backend/internal/clients/openai"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const (
	AutomationCalendar   = "calendar"
	AutomationHighlights = "highlights"
)

const classifierSystemPrompt = "You are an AI assistant that analyzes video summaries to determine which automations should be triggered. Always respond with valid JSON."

const classifierPromptTemplate = `Analyze the following video summary and determine which automations should be triggered.

Video Summary: %q

Please respond with a JSON object containing:
- "triggered_automations": array of strings (can include "calendar", "highlights", or both, or neither)
- "confidence_scores": object with confidence scores (0.0-1.0) for each automation type
- "reasoning": brief explanation of why each automation was/wasn't triggered
- "summary_classification": general category of the content

Guidelines:
- "calendar" should be triggered for: meetings, appointments, deadlines, scheduled events, reminders
- "highlights" should be triggered for: moments you'd want to take photos/videos of - fun experiences, memorable moments, achievements, celebrations, special occasions, interesting discoveries, beautiful scenes, social gatherings, personal milestones, funny incidents, travel moments, creative work, or anything that would make a good story or memory

Think of highlights as "life moments worth capturing" - not just important business events, but also joyful, fun, interesting, or memorable personal experiences.

Respond only with valid JSON.`

var calendarKeywords = []string{
	"meeting", "appointment", "schedule", "call", "conference",
	"deadline", "due date", "reminder", "event", "presentation",
}

var highlightsKeywords = []string{
	"important", "significant", "breakthrough", "achievement",
	"milestone", "success", "discovery", "insight", "memorable",
}

type Analysis struct {
	TriggeredAutomations  []string           `json:"triggered_automations"`
	ConfidenceScores      map[string]float64 `json:"confidence_scores"`
	Reasoning             string             `json:"reasoning"`
	SummaryClassification string             `json:"summary_classification"`
}

// Classifier decides which automations a summary should trigger. It never
// fails; a broken LLM response degrades to the keyword heuristic.
type Classifier interface {
	Classify(ctx context.Context, summary string) Analysis
}

type llmClassifier struct {
	log *logger.Logger
	llm openai.Client
}

func NewClassifier(log *logger.Logger, llm openai.Client) Classifier {
	return &llmClassifier{
		log: log.With("service", "SummaryClassifier"),
		llm: llm,
	}
}

func (c *llmClassifier) Classify(ctx context.Context, summary string) Analysis {
	if c.llm != nil {
		raw, err := c.llm.GenerateJSON(ctx, classifierSystemPrompt, fmt.Sprintf(classifierPromptTemplate, summary))
		if err == nil {
			var analysis Analysis
			if uErr := json.Unmarshal(raw, &analysis); uErr == nil {
				analysis.TriggeredAutomations = filterLabels(analysis.TriggeredAutomations)
				return analysis
			}
			c.log.Warn("Classifier returned unparseable JSON, using keyword fallback", "raw", string(raw))
		} else {
			c.log.Warn("Classifier LLM call failed, using keyword fallback", "error", err)
		}
	}
	return keywordAnalysis(summary)
}

// filterLabels keeps only the labels the controller knows how to dispatch.
func filterLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case AutomationCalendar:
			out = append(out, AutomationCalendar)
		case AutomationHighlights:
			out = append(out, AutomationHighlights)
		}
	}
	return out
}

func keywordAnalysis(summary string) Analysis {
	lower := strings.ToLower(summary)

	triggered := []string{}
	if containsAny(lower, calendarKeywords) {
		triggered = append(triggered, AutomationCalendar)
	}
	if containsAny(lower, highlightsKeywords) {
		triggered = append(triggered, AutomationHighlights)
	}

	return Analysis{
		TriggeredAutomations:  triggered,
		ConfidenceScores:      map[string]float64{AutomationCalendar: 0.0, AutomationHighlights: 0.0},
		Reasoning:             "Fallback analysis used due to API error",
		SummaryClassification: "general",
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
