package automations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/types"
)

type highlightsAutomation struct {
	log        *logger.Logger
	highlights repos.HighlightRepo
}

func NewHighlightsAutomation(log *logger.Logger, highlights repos.HighlightRepo) Automation {
	return &highlightsAutomation{
		log:        log.With("service", "HighlightsAutomation"),
		highlights: highlights,
	}
}

func (a *highlightsAutomation) Type() string { return AutomationHighlights }

// Run flags the video as worth remembering. A missing user id skips the
// insert; ownership is never guessed.
func (a *highlightsAutomation) Run(ctx context.Context, summary string, meta Metadata) Result {
	if meta.UserID == uuid.Nil {
		return Result{
			Type:   AutomationHighlights,
			Status: ResultStatusSkipped,
			Result: map[string]any{
				"triggered": false,
				"reason":    "No user_id provided",
			},
		}
	}

	highlight := &types.Highlight{
		HighlightID: uuid.New(),
		UserID:      meta.UserID,
		VideoID:     meta.VideoID,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := a.highlights.Create(ctx, nil, []*types.Highlight{highlight}); err != nil {
		return Result{
			Type:   AutomationHighlights,
			Status: ResultStatusFailed,
			Error:  err.Error(),
		}
	}

	a.log.Info("Highlight recorded", "video_id", meta.VideoID, "user_id", meta.UserID, "highlight_id", highlight.HighlightID)
	return Result{
		Type:   AutomationHighlights,
		Status: ResultStatusCompleted,
		Result: map[string]any{
			"triggered":    true,
			"highlight_id": highlight.HighlightID.String(),
			"video_id":     meta.VideoID.String(),
		},
	}
}
