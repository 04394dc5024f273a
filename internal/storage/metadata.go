package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// ErrExportNotFound is returned when no export record matches a job ID
var ErrExportNotFound = errors.New("export not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		video_url TEXT NOT NULL,
		preset_id TEXT NOT NULL DEFAULT '',
		caption_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		gdrive_url TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// CreateExport inserts a QUEUED record for a new export job
func (mdb *MetadataDB) CreateExport(job types.ExportJob) error {
	query := `
	INSERT INTO exports (job_id, video_url, preset_id, caption_count, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err := mdb.db.Exec(query, job.ID, job.VideoURL, job.Preset.ID, len(job.Captions),
		types.StatusQueued, now, now)
	if err != nil {
		return fmt.Errorf("failed to save export metadata: %v", err)
	}
	return nil
}

// MarkProcessing moves an export to PROCESSING
func (mdb *MetadataDB) MarkProcessing(jobID string) error {
	return mdb.update(jobID, `UPDATE exports SET status = ?, updated_at = ? WHERE job_id = ?`,
		types.StatusProcessing, time.Now().UTC(), jobID)
}

// MarkCompleted records the rendered output and optional Drive link
func (mdb *MetadataDB) MarkCompleted(jobID, outputPath, gdriveURL string) error {
	return mdb.update(jobID,
		`UPDATE exports SET status = ?, output_path = ?, gdrive_url = ?, error = '', updated_at = ? WHERE job_id = ?`,
		types.StatusCompleted, outputPath, gdriveURL, time.Now().UTC(), jobID)
}

// MarkFailed records the failure message
func (mdb *MetadataDB) MarkFailed(jobID, message string) error {
	return mdb.update(jobID, `UPDATE exports SET status = ?, error = ?, updated_at = ? WHERE job_id = ?`,
		types.StatusFailed, message, time.Now().UTC(), jobID)
}

func (mdb *MetadataDB) update(jobID, query string, args ...interface{}) error {
	res, err := mdb.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update export %s: %v", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrExportNotFound, jobID)
	}
	return nil
}

const exportColumns = `job_id, video_url, preset_id, caption_count, status, output_path, gdrive_url, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExport(row scanner) (*types.ExportRecord, error) {
	var rec types.ExportRecord
	err := row.Scan(&rec.JobID, &rec.VideoURL, &rec.PresetID, &rec.CaptionCount, &rec.Status,
		&rec.OutputPath, &rec.GDriveURL, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetExport retrieves an export record by job ID
func (mdb *MetadataDB) GetExport(jobID string) (*types.ExportRecord, error) {
	row := mdb.db.QueryRow(`SELECT `+exportColumns+` FROM exports WHERE job_id = ?`, jobID)

	rec, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %v", err)
	}
	return rec, nil
}

// ListExports returns the most recent exports first
func (mdb *MetadataDB) ListExports(limit int) ([]types.ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := mdb.db.Query(`SELECT `+exportColumns+` FROM exports ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %v", err)
	}
	defer rows.Close()

	exports := []types.ExportRecord{}
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read export row: %v", err)
		}
		exports = append(exports, *rec)
	}
	return exports, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
