package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-captioning/internal/render"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

var (
	// ErrQueueFull is returned when the job buffer is at capacity
	ErrQueueFull = errors.New("export queue is full")
	// ErrStopped is returned when enqueueing after Stop
	ErrStopped = errors.New("export queue is stopped")
)

const (
	queueBuffer    = 100
	uploadAttempts = 3
)

// Renderer burns captions into a video
type Renderer interface {
	Export(ctx context.Context, job types.ExportJob, input, output string, progress render.ProgressFunc) error
	Format() string
}

// OutputLocator allocates the path a rendered video is written to
type OutputLocator interface {
	OutputPath(jobID, format string, now time.Time) (string, error)
}

// Uploader publishes a finished export and returns a shareable link
type Uploader interface {
	UploadVideo(ctx context.Context, localPath string) (string, error)
}

// StatusStore persists export status transitions
type StatusStore interface {
	MarkProcessing(jobID string) error
	MarkCompleted(jobID, outputPath, gdriveURL string) error
	MarkFailed(jobID, message string) error
}

// WorkerPool manages a pool of workers rendering export jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	renderer    Renderer
	outputs     OutputLocator
	uploader    Uploader
	db          StatusStore
	hub         *Hub

	// JobTimeout bounds a single render; zero means no limit
	JobTimeout time.Duration
	// Backoff returns the delay before upload retry attempt n (1-based)
	Backoff func(attempt int) time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool; uploader and db may be nil
func NewWorkerPool(
	workerCount int,
	renderer Renderer,
	outputs OutputLocator,
	uploader Uploader,
	db StatusStore,
	hub *Hub,
) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if hub == nil {
		hub = NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueBuffer),
		workerCount: workerCount,
		renderer:    renderer,
		outputs:     outputs,
		uploader:    uploader,
		db:          db,
		hub:         hub,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub returns the progress hub jobs publish to
func (wp *WorkerPool) Hub() *Hub {
	return wp.hub
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	log.Printf("Starting render worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels running renders and waits for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.cancel()
	wp.wg.Wait()
	log.Println("Render worker pool stopped")
}

// EnqueueJob adds a job to the queue without blocking
func (wp *WorkerPool) EnqueueJob(job *Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	job.Status = types.StatusQueued
	job.CreatedAt = time.Now()

	// QUEUED must be published before a worker can receive the job
	wp.hub.Publish(types.Progress{JobID: job.ID(), Status: types.StatusQueued})

	select {
	case wp.jobQueue <- job:
	default:
		wp.hub.Publish(types.Progress{JobID: job.ID(), Status: types.StatusFailed, Error: ErrQueueFull.Error()})
		return ErrQueueFull
	}

	log.Printf("Export %s enqueued (video: %s, preset: %s, captions: %d)",
		job.ID(), job.Export.VideoURL, job.Export.Preset.ID, len(job.Export.Captions))
	return nil
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log.Printf("Worker %d started", id)

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker %d: PANIC processing export %s: %v\n%s",
						id, job.ID(), r, string(debug.Stack()))
					wp.fail(job, fmt.Errorf("worker panic: %v", r))
				}
			}()

			wp.processJob(id, job)
		}()
	}
}

// processJob renders, uploads and records one export
func (wp *WorkerPool) processJob(workerID int, job *Job) {
	log.Printf("Worker %d: Processing export %s", workerID, job.ID())
	job.Status = types.StatusProcessing
	wp.hub.Publish(types.Progress{JobID: job.ID(), Status: types.StatusProcessing})
	if wp.db != nil {
		if err := wp.db.MarkProcessing(job.ID()); err != nil {
			log.Printf("Worker %d: Database update failed: %v", workerID, err)
		}
	}

	// Step 1: Allocate output
	output, err := wp.outputs.OutputPath(job.ID(), wp.renderer.Format(), time.Now())
	if err != nil {
		wp.fail(job, fmt.Errorf("failed to prepare output: %w", err))
		return
	}

	// Step 2: Render
	ctx := wp.ctx
	if wp.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.JobTimeout)
		defer cancel()
	}

	started := time.Now()
	if err := wp.renderer.Export(ctx, job.Export, job.InputPath, output, wp.progressFunc(job.ID())); err != nil {
		log.Printf("Worker %d: Render failed for export %s: %v", workerID, job.ID(), err)
		wp.fail(job, err)
		return
	}
	job.OutputPath = output
	log.Printf("Worker %d: Rendered export %s in %s", workerID, job.ID(), time.Since(started).Round(time.Millisecond))

	// Step 3: Upload to Google Drive (with retry)
	if wp.uploader != nil {
		job.GDriveURL = wp.upload(workerID, output)
	}

	// Step 4: Record completion
	if wp.db != nil {
		if err := wp.db.MarkCompleted(job.ID(), output, job.GDriveURL); err != nil {
			log.Printf("Worker %d: Database update failed: %v", workerID, err)
		}
	}

	job.Status = types.StatusCompleted
	wp.hub.Publish(types.Progress{JobID: job.ID(), Status: types.StatusCompleted, Percent: 100})
	log.Printf("Worker %d: Export %s completed successfully (local: %s, gdrive: %s)",
		workerID, job.ID(), output, job.GDriveURL)
}

func (wp *WorkerPool) upload(workerID int, output string) string {
	var err error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		var url string
		url, err = wp.uploader.UploadVideo(wp.ctx, output)
		if err == nil {
			return url
		}
		log.Printf("Worker %d: Google Drive upload attempt %d/%d failed: %v", workerID, attempt, uploadAttempts, err)
		if attempt < uploadAttempts {
			select {
			case <-time.After(wp.Backoff(attempt)):
			case <-wp.ctx.Done():
				return ""
			}
		}
	}
	log.Printf("Worker %d: WARNING - Google Drive upload failed after %d attempts, keeping local export only", workerID, uploadAttempts)
	return ""
}

// progressFunc publishes whole-percent changes; without a frame estimate it publishes every 30 frames
func (wp *WorkerPool) progressFunc(jobID string) render.ProgressFunc {
	lastPercent := -1.0
	return func(frame, total int) {
		percent := 0.0
		if total > 0 {
			percent = float64(int(float64(frame) / float64(total) * 100))
			if percent > 99 {
				percent = 99
			}
			if percent == lastPercent {
				return
			}
		} else if frame%30 != 1 {
			return
		}
		lastPercent = percent
		wp.hub.Publish(types.Progress{
			JobID:       jobID,
			Status:      types.StatusProcessing,
			Frame:       frame,
			TotalFrames: total,
			Percent:     percent,
		})
	}
}

func (wp *WorkerPool) fail(job *Job, err error) {
	job.Status = types.StatusFailed
	job.Error = err
	if wp.db != nil {
		if dbErr := wp.db.MarkFailed(job.ID(), err.Error()); dbErr != nil {
			log.Printf("Database update failed for export %s: %v", job.ID(), dbErr)
		}
	}
	wp.hub.Publish(types.Progress{JobID: job.ID(), Status: types.StatusFailed, Error: err.Error()})
}
