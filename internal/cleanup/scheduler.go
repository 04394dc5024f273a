package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scheduler periodically deletes stale files from the temp and media directories
type Scheduler struct {
	dirs     []string
	interval time.Duration
	maxAge   time.Duration
	stopChan chan struct{}
	now      func() time.Time
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(dirs []string, intervalMinutes, maxAgeHours int) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	return &Scheduler{
		dirs:     dirs,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the cleanup scheduler
func (s *Scheduler) Start() {
	log.Println("Running initial stale file cleanup...")
	s.Sweep()

	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Cleanup scheduler started (interval: %s, max age: %s, dirs: %v)",
		s.interval, s.maxAge, s.dirs)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	log.Println("Cleanup scheduler stopped")
}

// Sweep removes files older than the max age and returns how many were deleted
func (s *Scheduler) Sweep() int {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	for _, dir := range s.dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // Skip files we can't access
			}

			if info.IsDir() {
				return nil
			}

			age := now.Sub(info.ModTime())
			if age <= s.maxAge {
				return nil
			}

			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to delete old file %s: %v", path, err)
				return nil
			}
			deletedCount++
			deletedSize += size
			log.Printf("Deleted stale file: %s (age: %s, size: %dKB)",
				filepath.Base(path), age.Round(time.Hour), size/1024)
			return nil
		})

		if err != nil {
			log.Printf("Error during cleanup of %s: %v", dir, err)
		}
	}

	if deletedCount > 0 {
		log.Printf("Cleanup complete: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
	return deletedCount
}

// EnsureDirs creates the given directories if they don't exist
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		log.Printf("Directory ready: %s", dir)
	}
	return nil
}
