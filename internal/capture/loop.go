package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/clients/redis"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const (
	defaultFrameBufferSize = 100
	defaultAudioBufferSize = 200
)

// FrameSource yields camera frames at the device's native rate. ReadFrame
// blocks until a frame is available or the context ends.
type FrameSource interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// AudioSource yields fixed-size PCM chunks from the microphone.
type AudioSource interface {
	ReadChunk(ctx context.Context) ([]byte, error)
	Close() error
}

type LoopConfig struct {
	FPS             int
	SegmentDuration int
	FrameBufferSize int
	AudioBufferSize int
	UserID          uuid.UUID
}

// Loop owns the camera and microphone exclusively. Frames are sub-sampled to
// the configured fps, windows close on the wall clock, and finished segments
// are handed to the work queue. Workers never touch the devices.
type Loop struct {
	log     *logger.Logger
	cfg     LoopConfig
	frames  *Buffer[Frame]
	audio   *Buffer[[]byte]
	video   FrameSource
	mic     AudioSource
	builder *Builder
	queue   redis.VideoQueue

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	pendingMu sync.Mutex
	pending   []*types.SegmentJob
}

func NewLoop(log *logger.Logger, cfg LoopConfig, video FrameSource, mic AudioSource, builder *Builder, queue redis.VideoQueue) (*Loop, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if video == nil {
		return nil, fmt.Errorf("frame source required")
	}
	if builder == nil {
		return nil, fmt.Errorf("builder required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 10
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 10
	}
	if cfg.FrameBufferSize <= 0 {
		cfg.FrameBufferSize = defaultFrameBufferSize
	}
	if cfg.AudioBufferSize <= 0 {
		cfg.AudioBufferSize = defaultAudioBufferSize
	}
	return &Loop{
		log:     log.With("service", "CaptureLoop"),
		cfg:     cfg,
		frames:  NewBuffer[Frame](cfg.FrameBufferSize),
		audio:   NewBuffer[[]byte](cfg.AudioBufferSize),
		video:   video,
		mic:     mic,
		builder: builder,
		queue:   queue,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// Run blocks until ctx is cancelled. In-flight segment builds are drained
// before returning.
func (l *Loop) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.readFrames(ctx)
	}()

	if l.mic != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.readAudio(ctx)
		}()
	}

	l.assembleWindows(ctx, &wg)
	wg.Wait()

	if err := l.video.Close(); err != nil {
		l.log.Warn("Frame source close failed", "error", err)
	}
	if l.mic != nil {
		if err := l.mic.Close(); err != nil {
			l.log.Warn("Audio source close failed", "error", err)
		}
	}
	return nil
}

// readFrames pulls at device rate and keeps only frames that pass the fps
// gate. Buffer overflow drops the oldest frame, never the camera thread.
func (l *Loop) readFrames(ctx context.Context) {
	gate := newFrameGate(l.cfg.FPS, l.now)
	for {
		frame, err := l.video.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			l.log.Warn("Frame read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if frame.CapturedAt.IsZero() {
			frame.CapturedAt = l.now()
		}
		if !gate.admit(frame.CapturedAt) {
			continue
		}
		if l.frames.Put(frame) {
			l.log.Debug("Frame buffer full, dropped oldest")
		}
	}
}

func (l *Loop) readAudio(ctx context.Context) {
	for {
		chunk, err := l.mic.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			l.log.Warn("Audio read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if len(chunk) == 0 {
			continue
		}
		if l.audio.Put(chunk) {
			l.log.Debug("Audio buffer full, dropped oldest chunk")
		}
	}
}

// assembleWindows closes each window on the wall clock, independent of how
// many frames arrived.
func (l *Loop) assembleWindows(ctx context.Context, wg *sync.WaitGroup) {
	windowLen := time.Duration(l.cfg.SegmentDuration) * time.Second
	segmentID := 0
	windowStart := l.now()

	for {
		deadline := windowStart.Add(windowLen)
		wait := deadline.Sub(l.now())
		if wait < 0 {
			wait = 0
		}
		if err := l.sleep(ctx, wait); err != nil {
			return
		}

		frames := l.frames.Drain()
		audio := l.audio.Drain()
		id := segmentID
		segmentID++
		windowStart = deadline

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.buildAndEnqueue(ctx, id, frames, audio)
		}()
	}
}

func (l *Loop) buildAndEnqueue(ctx context.Context, segmentID int, frames []Frame, audio [][]byte) {
	job, err := l.builder.Build(ctx, segmentID, frames, audio, l.cfg.UserID)
	if err != nil {
		l.log.Error("Segment build failed, dropping window", "segment_id", segmentID, "error", err)
		return
	}
	if job == nil {
		return
	}
	l.enqueue(ctx, segmentID, job)
}

// enqueue pushes the finished segment. Segments a previous broker failure
// left behind ride along in one pipelined batch, so at-least-once delivery
// holds across transient redis outages.
func (l *Loop) enqueue(ctx context.Context, segmentID int, job *types.SegmentJob) {
	l.pendingMu.Lock()
	batch := append(l.pending, job)
	l.pending = nil
	l.pendingMu.Unlock()

	var (
		pushed int
		err    error
	)
	if len(batch) == 1 {
		if err = l.queue.Push(ctx, batch[0]); err == nil {
			pushed = 1
		}
	} else {
		pushed, err = l.queue.PushBatch(ctx, batch)
	}
	if err != nil {
		l.pendingMu.Lock()
		l.pending = append(batch[pushed:], l.pending...)
		backlog := len(l.pending)
		l.pendingMu.Unlock()
		l.log.Error("Segment enqueue failed, holding for next window",
			"segment_id", segmentID,
			"video_path", job.VideoPath,
			"backlog", backlog,
			"error", err,
		)
		return
	}
	l.log.Info("Segment enqueued",
		"segment_id", segmentID,
		"frame_count", job.Metadata.FrameCount,
		"has_audio", job.Metadata.HasAudio,
		"duration_seconds", job.Metadata.DurationSeconds,
		"batch_size", pushed,
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// frameGate admits frames so the output rate matches the target fps even
// when the device delivers faster.
type frameGate struct {
	interval time.Duration
	nextEmit time.Time
	now      func() time.Time
}

func newFrameGate(fps int, now func() time.Time) *frameGate {
	return &frameGate{
		interval: time.Second / time.Duration(fps),
		now:      now,
	}
}

func (g *frameGate) admit(ts time.Time) bool {
	if g.nextEmit.IsZero() {
		g.nextEmit = ts.Add(g.interval)
		return true
	}
	if ts.Before(g.nextEmit) {
		return false
	}
	g.nextEmit = g.nextEmit.Add(g.interval)
	// Re-home the gate after a stall so it does not burst-admit.
	if ts.After(g.nextEmit) {
		g.nextEmit = ts.Add(g.interval)
	}
	return true
}
