// Package job tracks conversion jobs and their source uploads. Jobs move
// through pending -> processing -> completed or failed; every transition is
// persisted so state survives a restart.
package job

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Upload is one uploaded source file.
type Upload struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is one conversion of an upload by a named converter.
type Job struct {
	ID         string    `json:"id"`
	UploadID   string    `json:"upload_id"`
	Converter  string    `json:"converter"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Manager persists uploads and jobs.
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// generateID creates a random hex string for use as a unique identifier.
func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateUpload records a new source upload.
func (m *Manager) CreateUpload(filename string, size int64) (*Upload, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = m.db.Exec(
		`INSERT INTO uploads (id, filename, size, created_at) VALUES (?, ?, ?, ?)`,
		id, filename, size, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert upload: %w", err)
	}
	return &Upload{ID: id, Filename: filename, Size: size, CreatedAt: now}, nil
}

// GetUpload returns one upload by ID.
func (m *Manager) GetUpload(id string) (*Upload, error) {
	var u Upload
	var createdAt sql.NullTime
	err := m.db.QueryRow(
		`SELECT id, filename, size, created_at FROM uploads WHERE id = ?`, id,
	).Scan(&u.ID, &u.Filename, &u.Size, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("upload not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload: %w", err)
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	return &u, nil
}

// Create inserts a new pending job for the given upload and converter.
func (m *Manager) Create(uploadID, converter string) (*Job, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = m.db.Exec(
		`INSERT INTO jobs (id, upload_id, converter, status, progress, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		id, uploadID, converter, StatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return &Job{
		ID:        id,
		UploadID:  uploadID,
		Converter: converter,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// Get returns one job by ID.
func (m *Manager) Get(id string) (*Job, error) {
	row := m.db.QueryRow(
		`SELECT id, upload_id, converter, status, progress, output_path, error, created_at, finished_at
		 FROM jobs WHERE id = ?`, id,
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return j, nil
}

// List returns jobs ordered newest first, optionally filtered by status.
func (m *Manager) List(status string) ([]Job, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = m.db.Query(
			`SELECT id, upload_id, converter, status, progress, output_path, error, created_at, finished_at
			 FROM jobs ORDER BY created_at DESC`,
		)
	} else {
		rows, err = m.db.Query(
			`SELECT id, upload_id, converter, status, progress, output_path, error, created_at, finished_at
			 FROM jobs WHERE status = ? ORDER BY created_at DESC`, status,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves a pending job into the processing state.
func (m *Manager) MarkProcessing(id string) error {
	return m.transition(id, StatusPending, StatusProcessing)
}

// SetProgress updates a job's progress percentage (0-100).
func (m *Manager) SetProgress(id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := m.db.Exec(`UPDATE jobs SET progress = ? WHERE id = ?`, progress, id)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// Complete marks a job completed and records its output path.
func (m *Manager) Complete(id, outputPath string) error {
	res, err := m.db.Exec(
		`UPDATE jobs SET status = ?, progress = 100, output_path = ?, finished_at = ? WHERE id = ?`,
		StatusCompleted, outputPath, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return requireRow(res, id)
}

// Fail marks a job failed with the given error message.
func (m *Manager) Fail(id, errMsg string) error {
	res, err := m.db.Exec(
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return requireRow(res, id)
}

// Delete removes a job record. The upload record stays: other jobs may
// reference the same source. Callers that want the source gone too check
// HasJobsForUpload and call DeleteUpload once the last job is removed.
func (m *Manager) Delete(id string) error {
	res, err := m.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRow(res, id)
}

// HasJobsForUpload reports whether any job still references the upload.
func (m *Manager) HasJobsForUpload(uploadID string) (bool, error) {
	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE upload_id = ?`, uploadID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count jobs for upload: %w", err)
	}
	return n > 0, nil
}

// DeleteUpload removes an upload record. Fails while jobs still reference
// it (foreign key constraint).
func (m *Manager) DeleteUpload(id string) error {
	res, err := m.db.Exec(`DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return requireRow(res, id)
}

func (m *Manager) transition(id, from, to string) error {
	res, err := m.db.Exec(
		`UPDATE jobs SET status = ? WHERE id = ? AND status = ?`, to, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s is not in state %s", id, from)
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job not found: %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var outputPath, errMsg sql.NullString
	var createdAt, finishedAt sql.NullTime
	if err := row.Scan(
		&j.ID, &j.UploadID, &j.Converter, &j.Status, &j.Progress,
		&outputPath, &errMsg, &createdAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if outputPath.Valid {
		j.OutputPath = outputPath.String
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	if createdAt.Valid {
		j.CreatedAt = createdAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = finishedAt.Time
	}
	return &j, nil
}
