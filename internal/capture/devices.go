package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const (
	jpegSOI = "\xff\xd8"
	jpegEOI = "\xff\xd9"

	audioChunkBytes = 4096
)

type DeviceConfig struct {
	FFmpegPath  string
	VideoInput  string
	VideoFormat string
	AudioInput  string
	AudioFormat string
	Resolution  [2]int
	SampleRate  int
	Channels    int
}

func (c *DeviceConfig) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Resolution == [2]int{} {
		c.Resolution = [2]int{1280, 720}
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.VideoFormat == "" || c.AudioFormat == "" {
		vf, af, vi, ai := platformDefaults()
		if c.VideoFormat == "" {
			c.VideoFormat = vf
		}
		if c.AudioFormat == "" {
			c.AudioFormat = af
		}
		if c.VideoInput == "" {
			c.VideoInput = vi
		}
		if c.AudioInput == "" {
			c.AudioInput = ai
		}
	}
}

func platformDefaults() (videoFormat, audioFormat, videoInput, audioInput string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", "avfoundation", "0", ":0"
	default:
		return "v4l2", "alsa", "/dev/video0", "default"
	}
}

// FFmpegCamera shells out to ffmpeg and scans the resulting MJPEG stream for
// frame boundaries. One process per camera; Close kills it.
type FFmpegCamera struct {
	log    *logger.Logger
	cmd    *exec.Cmd
	reader *bufio.Reader
	cancel context.CancelFunc
}

func NewFFmpegCamera(log *logger.Logger, cfg DeviceConfig) (*FFmpegCamera, error) {
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", cfg.VideoFormat,
		"-i", cfg.VideoInput,
		"-vf", fmt.Sprintf("scale=%d:%d", cfg.Resolution[0], cfg.Resolution[1]),
		"-q:v", "5",
		"-f", "mjpeg",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("camera stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start camera ffmpeg: %w", err)
	}
	return &FFmpegCamera{
		log:    log.With("service", "FFmpegCamera"),
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		cancel: cancel,
	}, nil
}

// ReadFrame scans for the next SOI..EOI pair. ffmpeg emits frames at device
// rate; the loop's gate downstream handles fps.
func (c *FFmpegCamera) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	var buf bytes.Buffer
	inFrame := false
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if !inFrame {
			if b != jpegSOI[0] {
				continue
			}
			next, err := c.reader.ReadByte()
			if err != nil {
				return Frame{}, err
			}
			if next != jpegSOI[1] {
				if next == jpegSOI[0] {
					_ = c.reader.UnreadByte()
				}
				continue
			}
			buf.Reset()
			buf.WriteString(jpegSOI)
			inFrame = true
			continue
		}
		buf.WriteByte(b)
		if b == jpegEOI[1] && buf.Len() >= 4 {
			data := buf.Bytes()
			if data[len(data)-2] == jpegEOI[0] {
				out := make([]byte, len(data))
				copy(out, data)
				return Frame{JPEG: out, CapturedAt: time.Now()}, nil
			}
		}
	}
}

func (c *FFmpegCamera) Close() error {
	c.cancel()
	if err := c.cmd.Wait(); err != nil && !isExpectedExit(err) {
		return err
	}
	return nil
}

// FFmpegMicrophone reads raw s16le PCM in fixed chunks.
type FFmpegMicrophone struct {
	log    *logger.Logger
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
}

func NewFFmpegMicrophone(log *logger.Logger, cfg DeviceConfig) (*FFmpegMicrophone, error) {
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", cfg.AudioFormat,
		"-i", cfg.AudioInput,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("microphone stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start microphone ffmpeg: %w", err)
	}
	return &FFmpegMicrophone{
		log:    log.With("service", "FFmpegMicrophone"),
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
	}, nil
}

func (m *FFmpegMicrophone) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk := make([]byte, audioChunkBytes)
	n, err := io.ReadFull(m.stdout, chunk)
	if err == io.ErrUnexpectedEOF && n > 0 {
		return chunk[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (m *FFmpegMicrophone) Close() error {
	m.cancel()
	if err := m.cmd.Wait(); err != nil && !isExpectedExit(err) {
		return err
	}
	return nil
}

// ffmpeg killed by our cancel reports a non-zero exit; that is shutdown,
// not failure.
func isExpectedExit(err error) bool {
	_, ok := err.(*exec.ExitError)
	return ok
}
