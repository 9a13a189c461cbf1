package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/automations"
	"github.com/yungbote/lifeos-backend/internal/clients/twelvelabs"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/repos/testutil"
	"github.com/yungbote/lifeos-backend/internal/types"
)

// scriptedTL plays back a fixed GetTask status sequence; the last status
// repeats once the script runs out.
type scriptedTL struct {
	mu sync.Mutex

	taskStatuses []string
	taskVideoID  string
	getTaskErrs  int
	summary      string
	summaryFails int
	embedStatus  string
	vector       []float32

	getTaskCalls  int
	generateCalls int
	createCalls   int
	embedCalls    int
}

func newScriptedTL() *scriptedTL {
	return &scriptedTL{taskStatuses: []string{"ready"}, taskVideoID: "tl_opaque"}
}

func (f *scriptedTL) EnsureIndex(ctx context.Context) (string, error) { return "idx_1", nil }

func (f *scriptedTL) CreateIndexTask(ctx context.Context, indexID, filePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return "task_ingest_1", nil
}

func (f *scriptedTL) GetTask(ctx context.Context, taskID string) (*twelvelabs.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTaskCalls < f.getTaskErrs {
		f.getTaskCalls++
		return nil, errors.New("connection reset")
	}
	idx := f.getTaskCalls - f.getTaskErrs
	f.getTaskCalls++
	if idx >= len(f.taskStatuses) {
		idx = len(f.taskStatuses) - 1
	}
	return &twelvelabs.TaskStatus{Status: f.taskStatuses[idx], VideoID: f.taskVideoID}, nil
}

func (f *scriptedTL) GenerateText(ctx context.Context, videoID, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateCalls <= f.summaryFails {
		return "", errors.New("generate unavailable")
	}
	return f.summary, nil
}

func (f *scriptedTL) CreateEmbeddingTask(ctx context.Context, filePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	return "task_embed_1", nil
}

func (f *scriptedTL) GetEmbeddingTaskStatus(ctx context.Context, taskID string) (string, error) {
	if f.embedStatus == "" {
		return "ready", nil
	}
	return f.embedStatus, nil
}

func (f *scriptedTL) RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error) {
	if f.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.vector, nil
}

func (f *scriptedTL) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeBlob struct {
	mu      sync.Mutex
	err     error
	uploads int
}

func (f *fakeBlob) UploadSegment(ctx context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.err != nil {
		return "", f.err
	}
	return "https://bucket.s3.us-east-1.amazonaws.com/video_segments/" + filepath.Base(localPath), nil
}

func (f *fakeBlob) PresignURL(ctx context.Context, objectURL string, ttl time.Duration) (string, error) {
	return objectURL + "?sig=1", nil
}

func (f *fakeBlob) DeleteObject(ctx context.Context, objectURL string) error { return nil }

type fakeVectors struct {
	mu         sync.Mutex
	upsertErrs int
	attempts   int
	points     []qdrant.MemoryPoint
}

func (f *fakeVectors) EnsureCollection(ctx context.Context) error { return nil }

func (f *fakeVectors) Upsert(ctx context.Context, point qdrant.MemoryPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.upsertErrs {
		return errors.New("qdrant unavailable")
	}
	f.points = append(f.points, point)
	return nil
}

func (f *fakeVectors) Search(ctx context.Context, q qdrant.SearchQuery) ([]qdrant.MemoryMatch, error) {
	return nil, nil
}

func (f *fakeVectors) Retrieve(ctx context.Context, ids []uuid.UUID) ([]qdrant.MemoryMatch, error) {
	return nil, nil
}

func (f *fakeVectors) Delete(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, []uuid.UUID, error) {
	return ids, nil, nil
}

func (f *fakeVectors) Stats(ctx context.Context) (qdrant.CollectionStats, error) {
	return qdrant.CollectionStats{}, nil
}

func (f *fakeVectors) pointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

type fakeAutomations struct {
	mu    sync.Mutex
	calls []automations.Metadata
}

func (f *fakeAutomations) Process(ctx context.Context, summary string, meta automations.Metadata) []automations.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, meta)
	return nil
}

func (f *fakeAutomations) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeSegmentFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment_1_1700000000.mp4")
	if err := os.WriteFile(path, []byte("not really mp4"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	return path
}

func newHarness(t *testing.T, tl *scriptedTL, blob *fakeBlob) (*Worker, *fakeVectors, repos.VideoRepo, *fakeAutomations) {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	videos := repos.NewVideoRepo(db, log)
	vectors := &fakeVectors{}
	auto := &fakeAutomations{}
	w := NewWorker(log, 1, WorkerDeps{
		TwelveLabs:  tl,
		Blob:        blob,
		Vectors:     vectors,
		Videos:      videos,
		Automations: auto,
		Tasks:       NewTaskGroup(log, 4),
	})
	return w, vectors, videos, auto
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestProcessHappyPath(t *testing.T) {
	tl := newScriptedTL()
	tl.taskVideoID = "tl_opaque_1"
	tl.summary = "Two people discussing a project deadline."
	blob := &fakeBlob{}
	w, vectors, videos, auto := newHarness(t, tl, blob)

	path := writeSegmentFile(t)
	userID := uuid.New()
	job := &types.SegmentJob{
		VideoPath: path,
		Metadata: types.SegmentMetadata{
			SegmentID:  1,
			UserID:     userID,
			CapturedAt: time.Now().UTC(),
		},
	}

	if err := w.process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := w.Processed(); got != 1 {
		t.Fatalf("processed count: want=1 got=%d", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("segment file should be removed, stat err=%v", err)
	}

	rows, err := videos.ListByUser(context.Background(), nil, userID, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: want=1 got=%d", len(rows))
	}
	row := rows[0]
	if row.S3Link == nil {
		t.Fatal("s3_link should be set")
	}
	if row.DetailedSummary != tl.summary {
		t.Fatalf("summary: got=%q", row.DetailedSummary)
	}
	if row.TwelveLabsVideoID == nil || *row.TwelveLabsVideoID != "tl_opaque_1" {
		t.Fatalf("twelvelabs_video_id: got=%v", row.TwelveLabsVideoID)
	}
	if row.VideoID.String() == *row.TwelveLabsVideoID {
		t.Fatal("video_id must not be derived from the ingest task id")
	}

	waitUntil(t, 5*time.Second, func() bool { return vectors.pointCount() == 1 && auto.callCount() == 1 })
	vectors.mu.Lock()
	point := vectors.points[0]
	vectors.mu.Unlock()
	if point.ID != row.VideoID {
		t.Fatalf("vector point id: want=%s got=%s", row.VideoID, point.ID)
	}
	if point.UserID != userID {
		t.Fatalf("vector point user: want=%s got=%s", userID, point.UserID)
	}

	waitUntil(t, 5*time.Second, func() bool {
		rows, err := videos.GetByIDs(context.Background(), nil, []uuid.UUID{row.VideoID})
		if err != nil || len(rows) != 1 || rows[0].VectorStatus == nil {
			return false
		}
		return *rows[0].VectorStatus == types.VectorStatusCompleted
	})
}

func TestProcessBlobOutageCommitsWithoutLink(t *testing.T) {
	tl := newScriptedTL()
	tl.summary = "A quiet room."
	blob := &fakeBlob{err: errors.New("503 slow down")}
	w, vectors, videos, _ := newHarness(t, tl, blob)

	path := writeSegmentFile(t)
	userID := uuid.New()
	job := &types.SegmentJob{
		VideoPath: path,
		Metadata:  types.SegmentMetadata{UserID: userID, CapturedAt: time.Now().UTC()},
	}

	if err := w.process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if blob.uploads != 1 {
		t.Fatalf("blob upload attempts: want=1 got=%d", blob.uploads)
	}

	rows, err := videos.ListByUser(context.Background(), nil, userID, 10, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows: err=%v len=%d", err, len(rows))
	}
	if rows[0].S3Link != nil {
		t.Fatalf("s3_link: want=nil got=%q", *rows[0].S3Link)
	}

	waitUntil(t, 5*time.Second, func() bool { return vectors.pointCount() == 1 })
}

func TestProcessIngestTerminalFailureAbandonsJob(t *testing.T) {
	tl := newScriptedTL()
	tl.taskStatuses = []string{"failed"}
	w, vectors, videos, auto := newHarness(t, tl, &fakeBlob{})

	path := writeSegmentFile(t)
	userID := uuid.New()
	job := &types.SegmentJob{
		VideoPath: path,
		Metadata:  types.SegmentMetadata{UserID: userID, CapturedAt: time.Now().UTC()},
	}

	if err := w.process(context.Background(), job); err == nil {
		t.Fatal("expected terminal ingest failure")
	}
	if got := w.Processed(); got != 0 {
		t.Fatalf("processed count: want=0 got=%d", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("segment file should be released, stat err=%v", err)
	}
	rows, err := videos.ListByUser(context.Background(), nil, userID, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows: want=0 got=%d", len(rows))
	}
	if tl.generateCalls != 0 {
		t.Fatalf("summary calls: want=0 got=%d", tl.generateCalls)
	}
	if vectors.pointCount() != 0 || auto.callCount() != 0 {
		t.Fatalf("no fan-out expected, vectors=%d automations=%d", vectors.pointCount(), auto.callCount())
	}
}

func TestProcessMissingFileStructuredError(t *testing.T) {
	tl := newScriptedTL()
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})

	job := &types.SegmentJob{
		VideoPath: filepath.Join(t.TempDir(), "gone.mp4"),
		Metadata:  types.SegmentMetadata{UserID: uuid.New()},
	}
	err := w.process(context.Background(), job)
	if err == nil {
		t.Fatal("expected missing-file error")
	}
	if tl.createCalls != 0 || tl.embedCalls != 0 {
		t.Fatalf("no external calls expected, ingest=%d embed=%d", tl.createCalls, tl.embedCalls)
	}
}

func TestGenerateSummaryRetriesWithLinearBackoff(t *testing.T) {
	tl := newScriptedTL()
	tl.summary = "recovered"
	tl.summaryFails = 2
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})

	var sleeps []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	got, err := w.generateSummary(context.Background(), "tl_vid")
	if err != nil {
		t.Fatalf("generateSummary: %v", err)
	}
	if got != "recovered" {
		t.Fatalf("summary: got=%q", got)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
		}
	}
}

func TestGenerateSummaryExhaustsRetries(t *testing.T) {
	tl := newScriptedTL()
	tl.summaryFails = 10
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})
	w.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	if _, err := w.generateSummary(context.Background(), "tl_vid"); err == nil {
		t.Fatal("expected failure after retries")
	}
	if tl.generateCalls != summaryAttempts {
		t.Fatalf("attempts: want=%d got=%d", summaryAttempts, tl.generateCalls)
	}
}

func TestVectorUpsertRetriesWithBackoff(t *testing.T) {
	tl := newScriptedTL()
	w, vectors, _, _ := newHarness(t, tl, &fakeBlob{})
	vectors.upsertErrs = 2

	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	w.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return nil
	}

	videoID := uuid.New()
	meta := automations.Metadata{VideoID: videoID, UserID: uuid.New(), Timestamp: time.Now().UTC()}
	if err := w.finalizeEmbedding(context.Background(), "task_embed_1", videoID, meta); err != nil {
		t.Fatalf("finalizeEmbedding: %v", err)
	}
	if vectors.pointCount() != 1 {
		t.Fatalf("points: want=1 got=%d", vectors.pointCount())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	mu.Lock()
	defer mu.Unlock()
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleeps: want=%v got=%v", want, sleeps)
		}
	}
}

// fakeClock drives waitForReady deterministically: sleeping advances the
// clock instead of blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) install(w *Worker) {
	w.now = func() time.Time { return c.now }
	w.sleep = func(ctx context.Context, d time.Duration) error {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestWaitForReadyAdaptiveIntervals(t *testing.T) {
	tl := newScriptedTL()
	tl.taskStatuses = []string{"pending", "pending", "pending", "processing", "ready"}
	tl.taskVideoID = "tl_vid"
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	clock.install(w)

	got, err := w.waitForReady(context.Background(), "task_ingest_1")
	if err != nil {
		t.Fatalf("waitForReady: %v", err)
	}
	if got != "tl_vid" {
		t.Fatalf("video id: got=%q", got)
	}

	// Pending grows 0.5s by 1.2x each poll; processing clamps back to 0.5s.
	want := []time.Duration{
		600 * time.Millisecond,
		720 * time.Millisecond,
		864 * time.Millisecond,
		500 * time.Millisecond,
	}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, clock.sleeps)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Fatalf("sleep %d: want=%v got=%v", i, want[i], clock.sleeps[i])
		}
	}
}

func TestWaitForReadyIntervalCapsAtTwoSeconds(t *testing.T) {
	tl := newScriptedTL()
	statuses := make([]string, 20)
	for i := range statuses {
		statuses[i] = "pending"
	}
	statuses[len(statuses)-1] = "ready"
	tl.taskStatuses = statuses
	tl.taskVideoID = "tl_vid"
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	clock.install(w)

	if _, err := w.waitForReady(context.Background(), "task_ingest_1"); err != nil {
		t.Fatalf("waitForReady: %v", err)
	}
	for i, d := range clock.sleeps {
		if d > pollMaxInterval {
			t.Fatalf("sleep %d exceeds cap: %v", i, d)
		}
	}
	last := clock.sleeps[len(clock.sleeps)-1]
	if last != pollMaxInterval {
		t.Fatalf("interval should have reached cap, last=%v", last)
	}
}

func TestWaitForReadyTransportBackoffResetsOnSuccess(t *testing.T) {
	tl := newScriptedTL()
	tl.getTaskErrs = 3
	tl.taskStatuses = []string{"ready"}
	tl.taskVideoID = "tl_vid"
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	clock.install(w)

	if _, err := w.waitForReady(context.Background(), "task_ingest_1"); err != nil {
		t.Fatalf("waitForReady: %v", err)
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps: want=%v got=%v", want, clock.sleeps)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Fatalf("sleep %d: want=%v got=%v", i, want[i], clock.sleeps[i])
		}
	}
}

func TestWaitForReadyHardCap(t *testing.T) {
	tl := newScriptedTL()
	tl.taskStatuses = []string{"pending"}
	w, _, _, _ := newHarness(t, tl, &fakeBlob{})
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	clock.install(w)

	start := clock.now
	if _, err := w.waitForReady(context.Background(), "task_ingest_1"); err == nil {
		t.Fatal("expected hard-cap timeout")
	}
	if elapsed := clock.now.Sub(start); elapsed < ingestWaitCap || elapsed > ingestWaitCap+2*pollMaxInterval {
		t.Fatalf("elapsed: got=%v", elapsed)
	}
}
