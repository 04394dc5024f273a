package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/codebuildervaibhav/video-captioning/internal/render"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

type fakeRenderer struct {
	frames int
	err    error
	panics bool
	block  bool
}

func (r *fakeRenderer) Format() string { return render.FormatWebM }

func (r *fakeRenderer) Export(ctx context.Context, job types.ExportJob, input, output string, progress render.ProgressFunc) error {
	if r.panics {
		panic("decoder exploded")
	}
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	for i := 1; i <= r.frames; i++ {
		progress(i, r.frames)
	}
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(output, []byte("video"), 0644)
}

type dirOutputs struct{ dir string }

func (d dirOutputs) OutputPath(jobID, format string, now time.Time) (string, error) {
	return filepath.Join(d.dir, jobID+"."+format), nil
}

type fakeStore struct {
	mu      sync.Mutex
	history map[string][]string
	records map[string]types.ExportRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{history: map[string][]string{}, records: map[string]types.ExportRecord{}}
}

func (s *fakeStore) MarkProcessing(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[jobID] = append(s.history[jobID], types.StatusProcessing)
	return nil
}

func (s *fakeStore) MarkCompleted(jobID, outputPath, gdriveURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[jobID] = append(s.history[jobID], types.StatusCompleted)
	s.records[jobID] = types.ExportRecord{JobID: jobID, OutputPath: outputPath, GDriveURL: gdriveURL}
	return nil
}

func (s *fakeStore) MarkFailed(jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[jobID] = append(s.history[jobID], types.StatusFailed)
	s.records[jobID] = types.ExportRecord{JobID: jobID, Error: message}
	return nil
}

func (s *fakeStore) get(jobID string) ([]string, types.ExportRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history[jobID]...), s.records[jobID]
}

type flakyUploader struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (u *flakyUploader) UploadVideo(ctx context.Context, localPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.calls <= u.failures {
		return "", errors.New("drive unavailable")
	}
	return "https://drive.google.com/file/d/" + filepath.Base(localPath) + "/view", nil
}

func newPool(t *testing.T, r Renderer, up Uploader, store StatusStore) *WorkerPool {
	t.Helper()
	wp := NewWorkerPool(2, r, dirOutputs{t.TempDir()}, up, store, nil)
	wp.Backoff = func(int) time.Duration { return 0 }
	wp.Start()
	t.Cleanup(wp.Stop)
	return wp
}

func exportJob(id string) *Job {
	return NewJob(types.ExportJob{
		ID:       id,
		VideoURL: "/media/in.mp4",
		Captions: []types.Caption{{Text: "hi", StartTime: 0, EndTime: 1}},
	}, "in.mp4")
}

// waitTerminal collects events until COMPLETED or FAILED
func waitTerminal(t *testing.T, events <-chan types.Progress) []types.Progress {
	t.Helper()
	var got []types.Progress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p, ok := <-events:
			if !ok {
				t.Fatal("subscription closed before a terminal event")
			}
			got = append(got, p)
			if IsTerminal(p.Status) {
				return got
			}
		case <-timeout:
			t.Fatalf("no terminal event, got %+v", got)
		}
	}
}

func TestWorkerPoolCompletesExport(t *testing.T) {
	store := newFakeStore()
	up := &flakyUploader{failures: 2}
	wp := newPool(t, &fakeRenderer{frames: 10}, up, store)

	events, unsubscribe := wp.Hub().Subscribe("job-1")
	defer unsubscribe()

	if err := wp.EnqueueJob(exportJob("job-1")); err != nil {
		t.Fatalf("EnqueueJob() error = %v", err)
	}

	got := waitTerminal(t, events)
	final := got[len(got)-1]
	if final.Status != types.StatusCompleted || final.Percent != 100 {
		t.Fatalf("final event = %+v", final)
	}

	sawProgress := false
	lastPercent := -1.0
	for _, p := range got[:len(got)-1] {
		if p.Frame > 0 {
			sawProgress = true
			if p.Percent < lastPercent || p.Percent > 99 {
				t.Errorf("progress went %v -> %v", lastPercent, p.Percent)
			}
			lastPercent = p.Percent
		}
	}
	if !sawProgress {
		t.Error("no frame progress events published")
	}

	history, rec := store.get("job-1")
	if len(history) != 2 || history[0] != types.StatusProcessing || history[1] != types.StatusCompleted {
		t.Errorf("status history = %v", history)
	}
	if rec.GDriveURL == "" || up.calls != 3 {
		t.Errorf("upload calls = %d, record = %+v", up.calls, rec)
	}
	if _, err := os.Stat(rec.OutputPath); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestWorkerPoolUploadGivesUp(t *testing.T) {
	store := newFakeStore()
	up := &flakyUploader{failures: 10}
	wp := newPool(t, &fakeRenderer{frames: 1}, up, store)

	events, unsubscribe := wp.Hub().Subscribe("job-1")
	defer unsubscribe()
	wp.EnqueueJob(exportJob("job-1"))

	got := waitTerminal(t, events)
	if got[len(got)-1].Status != types.StatusCompleted {
		t.Fatalf("upload failure should not fail the export: %+v", got[len(got)-1])
	}
	if _, rec := store.get("job-1"); rec.GDriveURL != "" || up.calls != uploadAttempts {
		t.Errorf("calls = %d, record = %+v", up.calls, rec)
	}
}

func TestWorkerPoolRenderFailure(t *testing.T) {
	store := newFakeStore()
	wp := newPool(t, &fakeRenderer{frames: 3, err: errors.New("encoder unavailable")}, nil, store)

	events, unsubscribe := wp.Hub().Subscribe("job-1")
	defer unsubscribe()
	wp.EnqueueJob(exportJob("job-1"))

	got := waitTerminal(t, events)
	final := got[len(got)-1]
	if final.Status != types.StatusFailed || final.Error != "encoder unavailable" {
		t.Fatalf("final event = %+v", final)
	}
	if history, rec := store.get("job-1"); history[len(history)-1] != types.StatusFailed || rec.Error != "encoder unavailable" {
		t.Errorf("history = %v, record = %+v", history, rec)
	}
}

func TestWorkerPoolRecoversFromPanic(t *testing.T) {
	store := newFakeStore()
	wp := newPool(t, &fakeRenderer{panics: true}, nil, store)

	for _, id := range []string{"a", "b", "c"} {
		events, unsubscribe := wp.Hub().Subscribe(id)
		if err := wp.EnqueueJob(exportJob(id)); err != nil {
			t.Fatal(err)
		}
		got := waitTerminal(t, events)
		unsubscribe()
		if final := got[len(got)-1]; final.Status != types.StatusFailed {
			t.Errorf("job %s final = %+v", id, final)
		}
	}
}

func TestWorkerPoolStopCancelsRender(t *testing.T) {
	wp := NewWorkerPool(1, &fakeRenderer{block: true}, dirOutputs{t.TempDir()}, nil, nil, nil)
	wp.Start()

	events, unsubscribe := wp.Hub().Subscribe("job-1")
	defer unsubscribe()
	wp.EnqueueJob(exportJob("job-1"))

	for p := range events {
		if p.Status == types.StatusProcessing {
			break
		}
	}

	done := make(chan struct{})
	go func() {
		wp.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not cancel the running render")
	}

	if last, _ := wp.Hub().Last("job-1"); last.Status != types.StatusFailed {
		t.Errorf("last event = %+v", last)
	}
	if err := wp.EnqueueJob(exportJob("job-2")); !errors.Is(err, ErrStopped) {
		t.Errorf("EnqueueJob() after Stop error = %v", err)
	}
}

func TestHubReplaysLastAndDropsForSlowSubscribers(t *testing.T) {
	h := NewHub()
	h.Publish(types.Progress{JobID: "x", Status: types.StatusProcessing, Percent: 5})

	events, unsubscribe := h.Subscribe("x")
	defer unsubscribe()

	if p := <-events; p.Percent != 5 {
		t.Fatalf("replayed event = %+v", p)
	}

	// nobody reads while the buffer overflows
	for i := 0; i < subscriberBuffer*3; i++ {
		h.Publish(types.Progress{JobID: "x", Status: types.StatusProcessing, Frame: i})
	}
	h.Publish(types.Progress{JobID: "x", Status: types.StatusCompleted, Percent: 100})

	var last types.Progress
	n := 0
	for len(events) > 0 {
		last = <-events
		n++
	}
	if n > subscriberBuffer {
		t.Errorf("received %d events, buffer is %d", n, subscriberBuffer)
	}
	if last.Status != types.StatusCompleted {
		t.Errorf("terminal event dropped, last = %+v", last)
	}

	other, unsubscribeOther := h.Subscribe("y")
	unsubscribeOther()
	if _, ok := <-other; ok {
		t.Error("unsubscribed channel still open")
	}
}

func TestHubForgetsFinishedJobs(t *testing.T) {
	h := NewHub()
	h.Retention = 20 * time.Millisecond

	h.Publish(types.Progress{JobID: "done", Status: types.StatusProcessing, Percent: 50})
	h.Publish(types.Progress{JobID: "done", Status: types.StatusCompleted, Percent: 100})
	h.Publish(types.Progress{JobID: "running", Status: types.StatusProcessing, Percent: 10})

	if p, ok := h.Last("done"); !ok || p.Status != types.StatusCompleted {
		t.Fatalf("terminal event not kept: %+v, %v", p, ok)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := h.Last("done"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished job never forgotten")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := h.Last("running"); !ok {
		t.Error("running job forgotten")
	}
}
