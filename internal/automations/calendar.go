package automations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/yungbote/lifeos-backend/internal/clients/openai"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const calendarTimezone = "America/New_York"

const extractionSystemPrompt = "You are an AI assistant that extracts calendar events from text. Always respond with valid JSON."

const extractionPromptTemplate = `Analyze the following video summary and extract any calendar events mentioned.

Video Summary: %q

Please respond with a JSON object containing:
- "events": array of event objects, each with:
  - "title": descriptive title for the event
  - "date": extracted date (ISO format YYYY-MM-DD or relative like "tomorrow", "next week")
  - "time": extracted time (24-hour format HH:MM or descriptive like "morning", "afternoon")
  - "description": brief description of the event
  - "location": location if mentioned
  - "duration": estimated duration in minutes
  - "type": event type (meeting, appointment, deadline, reminder, etc.)

Only extract events that have a clear date or time reference. Examples:
- "Meeting tomorrow at 3 PM"
- "Deadline next Friday"
- "Call scheduled for Monday morning"
- "Appointment on January 15th at 2:30"

If no calendar events are found, return an empty events array.

Respond only with valid JSON.`

var (
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	clockRe   = regexp.MustCompile(`(\d{1,2}):?(\d{0,2})\s*(am|pm)?`)
	clock24Re = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

type rawCalendarEvent struct {
	Title       string      `json:"title"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Duration    json.Number `json:"duration"`
	Type        string      `json:"type"`
}

type extractedEvent struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	EventType       string     `json:"event_type"`
	RawDate         string     `json:"raw_date"`
	RawTime         string     `json:"raw_time"`
}

type calendarAutomation struct {
	log        *logger.Logger
	llm        openai.Client
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	now        func() time.Time
}

// NewCalendarAutomation wires the extractor and, when credentials are
// configured, the Google Calendar API. Without credentials events are
// simulated and only logged.
func NewCalendarAutomation(ctx context.Context, log *logger.Logger, llm openai.Client) (Automation, error) {
	alog := log.With("service", "CalendarAutomation")

	loc, err := time.LoadLocation(calendarTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", calendarTimezone, err)
	}

	calendarID := strings.TrimSpace(os.Getenv("GOOGLE_CALENDAR_ID"))
	if calendarID == "" {
		calendarID = "primary"
	}

	var svc *gcal.Service
	credsPath := strings.TrimSpace(os.Getenv("GOOGLE_CALENDAR_CREDENTIALS_PATH"))
	if credsPath != "" {
		if _, statErr := os.Stat(credsPath); statErr == nil {
			svc, err = gcal.NewService(ctx,
				option.WithCredentialsFile(credsPath),
				option.WithScopes(gcal.CalendarScope),
			)
			if err != nil {
				alog.Error("Google Calendar service init failed, events will be simulated", "error", err)
				svc = nil
			} else {
				alog.Info("Google Calendar service initialized", "calendar_id", calendarID)
			}
		} else {
			alog.Warn("Google Calendar credentials file not found, events will be simulated", "path", credsPath)
		}
	} else {
		alog.Info("Google Calendar credentials not configured, events will be simulated")
	}

	return &calendarAutomation{
		log:        alog,
		llm:        llm,
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		now:        time.Now,
	}, nil
}

func (a *calendarAutomation) Type() string { return AutomationCalendar }

func (a *calendarAutomation) Run(ctx context.Context, summary string, meta Metadata) Result {
	events, err := a.extractEvents(ctx, summary)
	if err != nil {
		return Result{
			Type:   AutomationCalendar,
			Status: ResultStatusFailed,
			Error:  err.Error(),
			Result: map[string]any{
				"calendar_automation_triggered": false,
				"extracted_events":              []extractedEvent{},
				"created_events":                []map[string]any{},
			},
		}
	}

	created := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		if rec := a.createEvent(ctx, ev, meta); rec != nil {
			created = append(created, rec)
		}
	}

	return Result{
		Type:   AutomationCalendar,
		Status: ResultStatusCompleted,
		Result: map[string]any{
			"calendar_automation_triggered": true,
			"processing_timestamp":          a.now().Format(time.RFC3339),
			"extracted_events":              events,
			"created_events":                created,
			"events_count":                  len(created),
			"message":                       fmt.Sprintf("Processed %d calendar events", len(created)),
		},
	}
}

// extractEvents returns the validated events found in the summary. An empty
// summary short-circuits without an LLM call.
func (a *calendarAutomation) extractEvents(ctx context.Context, summary string) ([]extractedEvent, error) {
	if strings.TrimSpace(summary) == "" {
		return []extractedEvent{}, nil
	}
	if a.llm == nil {
		return []extractedEvent{}, nil
	}

	raw, err := a.llm.GenerateJSON(ctx, extractionSystemPrompt, fmt.Sprintf(extractionPromptTemplate, summary))
	if err != nil {
		return nil, fmt.Errorf("event extraction: %w", err)
	}

	var parsed struct {
		Events []rawCalendarEvent `json:"events"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		a.log.Warn("Event extraction returned unparseable JSON", "raw", string(raw))
		return []extractedEvent{}, nil
	}

	base := midnightIn(a.now(), a.loc)
	out := make([]extractedEvent, 0, len(parsed.Events))
	for _, ev := range parsed.Events {
		if processed := processExtractedEvent(ev, base); processed != nil {
			out = append(out, *processed)
		}
	}
	a.log.Info("Calendar events extracted", "count", len(out))
	return out, nil
}

func (a *calendarAutomation) createEvent(ctx context.Context, ev extractedEvent, meta Metadata) map[string]any {
	title := ev.Title
	if title == "" {
		title = "Event from LifeOS"
	}

	if a.svc != nil && ev.StartTime != nil {
		end := ev.EndTime
		if end == nil {
			e := ev.StartTime.Add(time.Hour)
			end = &e
		}
		googleEvent := &gcal.Event{
			Summary:     title,
			Description: fmt.Sprintf("%s\n\nCreated from LifeOS video analysis\nVideo ID: %s", ev.Description, meta.VideoID),
			Location:    ev.Location,
			Start: &gcal.EventDateTime{
				DateTime: ev.StartTime.Format(time.RFC3339),
				TimeZone: calendarTimezone,
			},
			End: &gcal.EventDateTime{
				DateTime: end.Format(time.RFC3339),
				TimeZone: calendarTimezone,
			},
		}
		createdEvent, err := a.svc.Events.Insert(a.calendarID, googleEvent).Context(ctx).Do()
		if err == nil {
			a.log.Info("Created Google Calendar event", "title", title, "event_id", createdEvent.Id)
			return map[string]any{
				"id":                   createdEvent.Id,
				"title":                title,
				"description":          ev.Description,
				"start_time":           ev.StartTime.Format(time.RFC3339),
				"end_time":             end.Format(time.RFC3339),
				"location":             ev.Location,
				"source":               "LifeOS",
				"video_id":             meta.VideoID.String(),
				"created_at":           a.now().Format(time.RFC3339),
				"google_calendar_link": createdEvent.HtmlLink,
				"calendar_id":          a.calendarID,
				"api_created":          true,
			}
		}
		a.log.Error("Google Calendar insert failed, simulating event", "title", title, "error", err)
	}

	simulated := map[string]any{
		"id":          fmt.Sprintf("lifeos_event_%d", a.now().UnixMilli()),
		"title":       title,
		"description": ev.Description + "\n\nCreated from LifeOS video analysis",
		"location":    ev.Location,
		"source":      "LifeOS",
		"video_id":    meta.VideoID.String(),
		"created_at":  a.now().Format(time.RFC3339),
		"api_created": false,
		"note":        "Simulated event - Google Calendar not configured",
	}
	if ev.StartTime != nil {
		simulated["start_time"] = ev.StartTime.Format(time.RFC3339)
	}
	if ev.EndTime != nil {
		simulated["end_time"] = ev.EndTime.Format(time.RFC3339)
	}
	a.log.Info("Simulated calendar event", "title", title)
	return simulated
}

// processExtractedEvent validates one raw event and resolves its schedule
// against base, the current midnight in the calendar timezone.
func processExtractedEvent(ev rawCalendarEvent, base time.Time) *extractedEvent {
	title := strings.TrimSpace(ev.Title)
	if title == "" {
		return nil
	}
	if strings.TrimSpace(ev.Date) == "" && strings.TrimSpace(ev.Time) == "" {
		return nil
	}

	duration := 60
	if n, err := ev.Duration.Int64(); err == nil && n > 0 {
		duration = int(n)
	}
	eventType := strings.TrimSpace(ev.Type)
	if eventType == "" {
		eventType = "event"
	}

	out := &extractedEvent{
		Title:           title,
		Description:     strings.TrimSpace(ev.Description),
		Location:        strings.TrimSpace(ev.Location),
		DurationMinutes: duration,
		EventType:       eventType,
		RawDate:         ev.Date,
		RawTime:         ev.Time,
	}

	if start := parseEventDateTime(ev.Date, ev.Time, base); start != nil {
		out.StartTime = start
		end := start.Add(time.Duration(duration) * time.Minute)
		out.EndTime = &end
	}
	return out
}

// parseEventDateTime resolves relative and absolute date/time phrases. base
// must be midnight in the calendar timezone.
func parseEventDateTime(dateStr, timeStr string, base time.Time) *time.Time {
	target := base
	hourSet := false

	if d := strings.ToLower(strings.TrimSpace(dateStr)); d != "" {
		switch {
		case strings.Contains(d, "today"):
			target = base
		case strings.Contains(d, "tomorrow"):
			target = base.AddDate(0, 0, 1)
		case strings.Contains(d, "next week"):
			target = base.AddDate(0, 0, 7)
		case strings.Contains(d, "next month"):
			target = base.AddDate(0, 0, 30)
		default:
			if idx, ok := weekdayIndex(d); ok {
				// Next occurrence strictly in the future; a matching
				// today advances a full week.
				daysAhead := idx - mondayBasedWeekday(base)
				if daysAhead <= 0 {
					daysAhead += 7
				}
				target = base.AddDate(0, 0, daysAhead)
			} else if isoDateRe.MatchString(strings.TrimSpace(dateStr)) {
				parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateStr)[:10], base.Location())
				if err == nil {
					// Years before the current one are assumed typos.
					if parsed.Year() < base.Year() {
						parsed = time.Date(base.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, base.Location())
					}
					target = parsed
				}
			}
		}
	}

	if t := strings.ToLower(strings.TrimSpace(timeStr)); t != "" {
		switch {
		case strings.Contains(t, "morning"):
			target = withClock(target, 9, 0)
			hourSet = true
		case strings.Contains(t, "afternoon"):
			target = withClock(target, 14, 0)
			hourSet = true
		case strings.Contains(t, "evening"):
			target = withClock(target, 18, 0)
			hourSet = true
		case strings.Contains(t, "night"):
			target = withClock(target, 20, 0)
			hourSet = true
		default:
			if m := clockRe.FindStringSubmatch(t); m != nil {
				hour, _ := strconv.Atoi(m[1])
				minute := 0
				if m[2] != "" {
					minute, _ = strconv.Atoi(m[2])
				}
				switch m[3] {
				case "pm":
					if hour != 12 {
						hour += 12
					}
				case "am":
					if hour == 12 {
						hour = 0
					}
				}
				if hour < 24 && minute < 60 {
					target = withClock(target, hour, minute)
					hourSet = true
				}
			} else if m := clock24Re.FindStringSubmatch(timeStr); m != nil {
				hour, _ := strconv.Atoi(m[1])
				minute, _ := strconv.Atoi(m[2])
				if hour < 24 && minute < 60 {
					target = withClock(target, hour, minute)
					hourSet = true
				}
			}
		}
		// A time was mentioned but nothing parsed: default to 10:00.
		if !hourSet && target.Hour() == 0 {
			target = withClock(target, 10, 0)
		}
	}

	return &target
}

func weekdayIndex(s string) (int, bool) {
	for i, name := range weekdayNames {
		if strings.Contains(s, name) {
			return i, true
		}
	}
	return 0, false
}

// mondayBasedWeekday maps Monday to 0 through Sunday to 6.
func mondayBasedWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func withClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

func midnightIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
