package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const muxTimeout = 15 * time.Second

// Frame is one sub-sampled camera frame, already JPEG-encoded.
type Frame struct {
	JPEG       []byte
	CapturedAt time.Time
}

type BuilderConfig struct {
	FPS             int
	SegmentDuration int
	Resolution      [2]int
	SampleRate      int
	Channels        int
	OutDir          string
	FFmpegPath      string
}

// Builder turns one capture window into a playable mp4 plus its metadata.
// Any failure drops the segment; the next window proceeds untouched.
type Builder struct {
	log *logger.Logger
	cfg BuilderConfig
}

func NewBuilder(log *logger.Logger, cfg BuilderConfig) (*Builder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 10
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 10
	}
	if cfg.Resolution == [2]int{} {
		cfg.Resolution = [2]int{1280, 720}
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.OutDir == "" {
		cfg.OutDir = filepath.Join(os.TempDir(), "lifeos-segments")
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	return &Builder{
		log: log.With("service", "SegmentBuilder"),
		cfg: cfg,
	}, nil
}

// Build encodes the window into <out_dir>/segment_<id>_<unix>.mp4 and
// returns the job ready for enqueueing. Empty windows return (nil, nil).
func (b *Builder) Build(ctx context.Context, segmentID int, frames []Frame, audio [][]byte, userID uuid.UUID) (*types.SegmentJob, error) {
	if len(frames) == 0 {
		b.log.Warn("Segment window had no frames, dropping", "segment_id", segmentID)
		return nil, nil
	}

	target := b.cfg.FPS * b.cfg.SegmentDuration
	frames = padFrames(frames, target)

	workDir, err := os.MkdirTemp("", fmt.Sprintf("segment_%d_", segmentID))
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	for i, f := range frames {
		framePath := filepath.Join(workDir, fmt.Sprintf("frame_%06d.jpg", i))
		if err := os.WriteFile(framePath, f.JPEG, 0o644); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", i, err)
		}
	}

	outPath := filepath.Join(b.cfg.OutDir, fmt.Sprintf("segment_%d_%d.mp4", segmentID, time.Now().Unix()))
	videoOnly := filepath.Join(workDir, "video.mp4")
	if err := b.encodeVideo(ctx, workDir, videoOnly); err != nil {
		return nil, err
	}

	hasAudio := false
	if pcm := flattenAudio(audio); len(pcm) > 0 {
		wavPath := filepath.Join(workDir, "audio.wav")
		if err := writeWAV(wavPath, pcm, b.cfg.SampleRate, b.cfg.Channels); err != nil {
			b.log.Warn("WAV write failed, keeping video-only segment", "segment_id", segmentID, "error", err)
		} else if err := b.muxAudio(ctx, videoOnly, wavPath, outPath); err != nil {
			b.log.Warn("Audio mux failed, keeping video-only segment", "segment_id", segmentID, "error", err)
		} else {
			hasAudio = true
		}
	}
	if !hasAudio {
		if err := copyFile(videoOnly, outPath); err != nil {
			return nil, fmt.Errorf("move video-only segment: %w", err)
		}
	}

	capturedAt := frames[0].CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	return &types.SegmentJob{
		VideoPath: outPath,
		Metadata: types.SegmentMetadata{
			SegmentID:       segmentID,
			FPS:             b.cfg.FPS,
			Resolution:      b.cfg.Resolution,
			FrameCount:      len(frames),
			DurationSeconds: float64(len(frames)) / float64(b.cfg.FPS),
			HasAudio:        hasAudio,
			CapturedAt:      capturedAt,
			UserID:          userID,
		},
	}, nil
}

func (b *Builder) encodeVideo(ctx context.Context, frameDir, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.cfg.FFmpegPath,
		"-y",
		"-framerate", strconv.Itoa(b.cfg.FPS),
		"-i", filepath.Join(frameDir, "frame_%06d.jpg"),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "28",
		"-pix_fmt", "yuv420p",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg encode failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("encoded segment missing at %s", outPath)
	}
	return nil
}

func (b *Builder) muxAudio(ctx context.Context, videoPath, wavPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.cfg.FFmpegPath,
		"-y",
		"-i", videoPath,
		"-i", wavPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("muxed segment missing at %s", outPath)
	}
	return nil
}

// padFrames duplicates the last frame until the window holds exactly target
// frames. Downstream ingestion rejects clips shorter than 4 seconds, so
// short windows are stretched rather than dropped.
func padFrames(frames []Frame, target int) []Frame {
	if len(frames) == 0 || target <= 0 {
		return frames
	}
	if len(frames) >= target {
		return frames[:target]
	}
	out := make([]Frame, 0, target)
	out = append(out, frames...)
	last := frames[len(frames)-1]
	for len(out) < target {
		out = append(out, last)
	}
	return out
}

func flattenAudio(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return nil
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
