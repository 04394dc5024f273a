package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/cleanup"
	"github.com/codebuildervaibhav/video-captioning/internal/config"
	"github.com/codebuildervaibhav/video-captioning/internal/handlers"
	"github.com/codebuildervaibhav/video-captioning/internal/queue"
	"github.com/codebuildervaibhav/video-captioning/internal/render"
	"github.com/codebuildervaibhav/video-captioning/internal/storage"
	"github.com/codebuildervaibhav/video-captioning/internal/transcription"
)

const configPath = "config/config.yaml"

func main() {
	// Keys live in .env.local / .env next to the binary
	config.LoadEnvFiles(".")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Custom logger setup
	logBuffer := NewLogBuffer(1000)
	log.SetOutput(io.MultiWriter(os.Stdout, logBuffer))

	// Ensure directories exist
	if err := cleanup.EnsureDirs(cfg.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir, cfg.Storage.MediaDir, cfg.Storage.ExportDir)
	if err := localStorage.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create storage directories: %v", err)
	}

	log.Println("Initializing components...")

	captioner := newCaptioner(cfg)

	// Render pipeline
	ffmpeg := render.NewFFmpeg(cfg.Render.FFmpegPath, cfg.Render.FFprobePath)
	driver := render.NewDriver(ffmpeg, cfg.Render.Format)
	log.Printf("Exports render to %s via %s", driver.Format(), cfg.Render.FFmpegPath)

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	var uploader queue.Uploader
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			context.Background(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Exports will only be saved locally")
			driveClient = nil
		} else {
			log.Println("Google Drive integration enabled")
			uploader = driveClient
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Database
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Worker pool
	hub := queue.NewHub()
	workerPool := queue.NewWorkerPool(
		cfg.Workers.Count,
		driver,
		localStorage,
		uploader,
		db,
		hub,
	)
	workerPool.JobTimeout = cfg.JobTimeout()
	workerPool.Start()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		[]string{cfg.Storage.TempDir, cfg.Storage.MediaDir, cfg.Storage.ExportDir},
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	importer := storage.NewImporter(localStorage, driveClient, nil, cfg.MaxFileSize())

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxFileSize()),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	captionsHandler := handlers.NewCaptionsHandler(captioner, localStorage, cfg.Limits.MaxFileSizeMB, cfg.TranscriptionTimeout())
	exportHandler := handlers.NewExportHandler(localStorage, db, workerPool, cfg.Limits.MaxCaptions)
	exportsHandler := handlers.NewExportsHandler(db, hub)
	previewHandler := handlers.NewPreviewHandler(driver, localStorage)
	importHandler := handlers.NewImportHandler(importer)
	streamHandler := handlers.NewStreamHandler(hub)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Static("/media", localStorage.MediaDir())

	api := app.Group("/api")
	api.Post("/generate-captions", captionsHandler.Handle)
	api.Post("/export-video", exportHandler.Handle)
	api.Post("/preview", previewHandler.Handle)
	api.Post("/videos/import", importHandler.Handle)
	api.Get("/presets", handlers.ListPresets)
	api.Post("/captions/edit", handlers.EditCaptions)
	api.Post("/captions/srt", handlers.ExportSRT)
	api.Get("/exports", exportsHandler.List)
	api.Get("/exports/:id", exportsHandler.Get)
	api.Get("/exports/:id/download", exportsHandler.Download)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/exports/:id", websocket.New(streamHandler.Handle))

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	addr := cfg.Addr()
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /api/generate-captions   - Upload video and generate captions")
	log.Println("   POST /api/export-video        - Queue captioned video export")
	log.Println("   POST /api/preview             - Render one captioned frame")
	log.Println("   POST /api/videos/import       - Import Google Drive or direct video link")
	log.Println("   GET  /api/presets             - List caption presets")
	log.Println("   POST /api/captions/edit       - Edit, add or delete a caption")
	log.Println("   POST /api/captions/srt        - Download captions as SRT")
	log.Println("   GET  /api/exports             - List exports")
	log.Println("   GET  /api/exports/:id         - Export status")
	log.Println("   GET  /api/exports/:id/download - Download rendered video")
	log.Println("   GET  /ws/exports/:id          - WebSocket export progress")
	log.Println("   GET  /logs                    - View server logs")
	log.Println("   GET  /health                  - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	workerPool.Stop()
	log.Println("Server stopped")
}

// newCaptioner builds the provider strategy from config
func newCaptioner(cfg *config.Config) *transcription.Captioner {
	httpClient := &http.Client{Timeout: cfg.TranscriptionTimeout()}

	known := map[string]transcription.Provider{
		transcription.ProviderDeepgram: transcription.NewDeepgramProvider(transcription.DeepgramConfig{
			APIKey:  cfg.Transcription.Deepgram.APIKey,
			BaseURL: cfg.Transcription.Deepgram.BaseURL,
			Model:   cfg.Transcription.Deepgram.Model,
			Timeout: cfg.TranscriptionTimeout(),
		}, httpClient),
		transcription.ProviderOpenAI: transcription.NewOpenAIProvider(transcription.OpenAIConfig{
			APIKey:  cfg.Transcription.OpenAI.APIKey,
			BaseURL: cfg.Transcription.OpenAI.BaseURL,
			Model:   cfg.Transcription.OpenAI.Model,
		}, httpClient),
	}
	strategy := transcription.BuildStrategy(cfg.Transcription.Providers, known)

	var fallback transcription.Provider
	if lf := cfg.Transcription.LocalFallback; lf.Enabled {
		fallback = transcription.NewWhisperTranscriber(transcription.WhisperConfig{
			Model:      lf.Model,
			Language:   lf.Language,
			Python:     lf.Python,
			FFmpegPath: cfg.Render.FFmpegPath,
			TempDir:    cfg.Storage.TempDir,
		}, nil)
	}

	for _, p := range strategy {
		if p.Configured() {
			log.Printf("Speech-to-text provider: %s", p.Name())
			break
		}
	}
	return transcription.NewCaptioner(strategy, fallback)
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	max   int
	mu    sync.Mutex
}

// NewLogBuffer keeps the last limit lines
func NewLogBuffer(limit int) *LogBuffer {
	return &LogBuffer{
		lines: make([]string, 0, limit),
		max:   limit,
	}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}

	return len(p), nil
}

// GetLogs returns a copy of the buffered lines
func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
