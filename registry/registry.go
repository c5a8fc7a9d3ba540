// Package registry tracks manuscripts and their processing services in
// SQLite. A service is one unit of pipeline work against one manuscript;
// its status walks queued → processing → complete or failed, and the row
// accumulates worker identity, artifact pointers, and operator notes as
// the run progresses.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prontopub/inkwell/dbopen"
	"github.com/prontopub/inkwell/idgen"
)

// Status is the lifecycle state of a service.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound is returned when a service or manuscript does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a status transition is not allowed from
	// the row's current state, e.g. claiming a service twice.
	ErrConflict = errors.New("status conflict")
)

// Manuscript is one uploaded source file.
type Manuscript struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UploadKey  string `json:"upload_key,omitempty"`
	UploadedAt int64  `json:"uploaded_at"`
	CreatedAt  int64  `json:"created_at"`
}

// Service is one processing job against a manuscript.
type Service struct {
	ID            string `json:"id"`
	ServiceType   string `json:"service_type"`
	ProjectID     string `json:"project_id,omitempty"`
	ManuscriptID  string `json:"manuscript_id"`
	Status        Status `json:"status"`
	StartedAt     int64  `json:"started_at,omitempty"`
	FinishedAt    int64  `json:"finished_at,omitempty"`
	WorkerVersion string `json:"worker_version,omitempty"`
	ArtifactURL   string `json:"artifact_url,omitempty"`
	ArtifactKey   string `json:"artifact_key,omitempty"`
	ArtifactType  string `json:"artifact_type,omitempty"`
	OperatorNotes string `json:"operator_notes,omitempty"`
	ErrorLog      string `json:"error_log,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Schema for the registry tables. Applied by New.
const Schema = `
CREATE TABLE IF NOT EXISTS manuscripts (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	upload_key  TEXT NOT NULL DEFAULT '',
	uploaded_at INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS services (
	id             TEXT PRIMARY KEY,
	service_type   TEXT NOT NULL,
	project_id     TEXT NOT NULL DEFAULT '',
	manuscript_id  TEXT NOT NULL REFERENCES manuscripts(id),
	status         TEXT NOT NULL DEFAULT 'queued',
	started_at     INTEGER NOT NULL DEFAULT 0,
	finished_at    INTEGER NOT NULL DEFAULT 0,
	worker_version TEXT NOT NULL DEFAULT '',
	artifact_url   TEXT NOT NULL DEFAULT '',
	artifact_key   TEXT NOT NULL DEFAULT '',
	artifact_type  TEXT NOT NULL DEFAULT '',
	operator_notes TEXT NOT NULL DEFAULT '',
	error_log      TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_services_status ON services(status, created_at);
CREATE INDEX IF NOT EXISTS idx_services_manuscript ON services(manuscript_id);
`

// Registry persists manuscripts and services.
type Registry struct {
	db            *sql.DB
	manuscriptIDs idgen.Generator
	serviceIDs    idgen.Generator
	now           func() time.Time
}

// New creates a Registry on the given database and applies the schema.
func New(db *sql.DB) (*Registry, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("registry schema: %w", err)
	}
	return &Registry{
		db:            db,
		manuscriptIDs: idgen.Prefixed("man_", idgen.Default),
		serviceIDs:    idgen.Prefixed("svc_", idgen.Default),
		now:           time.Now,
	}, nil
}

// CreateManuscript records an uploaded source file.
func (r *Registry) CreateManuscript(ctx context.Context, filename, uploadKey string) (*Manuscript, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	m := &Manuscript{
		ID:        r.manuscriptIDs(),
		Filename:  filename,
		UploadKey: uploadKey,
	}
	now := r.now().Unix()
	m.UploadedAt = now
	m.CreatedAt = now

	_, err := dbopen.Exec(ctx, r.db,
		`INSERT INTO manuscripts (id, filename, upload_key, uploaded_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Filename, m.UploadKey, m.UploadedAt, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create manuscript: %w", err)
	}
	return m, nil
}

// CreateService queues a processing job for a manuscript. The manuscript
// must exist; the foreign key rejects dangling references.
func (r *Registry) CreateService(ctx context.Context, serviceType, projectID, manuscriptID string) (*Service, error) {
	if serviceType == "" {
		return nil, fmt.Errorf("service type is required")
	}
	s := &Service{
		ID:           r.serviceIDs(),
		ServiceType:  serviceType,
		ProjectID:    projectID,
		ManuscriptID: manuscriptID,
		Status:       StatusQueued,
	}
	now := r.now().Unix()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := dbopen.Exec(ctx, r.db,
		`INSERT INTO services (id, service_type, project_id, manuscript_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ServiceType, s.ProjectID, s.ManuscriptID, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return s, nil
}

// GetManuscript fetches one manuscript by ID.
func (r *Registry) GetManuscript(ctx context.Context, id string) (*Manuscript, error) {
	m := &Manuscript{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, filename, upload_key, uploaded_at, created_at
		 FROM manuscripts WHERE id = ?`, id).
		Scan(&m.ID, &m.Filename, &m.UploadKey, &m.UploadedAt, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manuscript %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get manuscript %s: %w", id, err)
	}
	return m, nil
}

// GetService fetches one service by ID.
func (r *Registry) GetService(ctx context.Context, id string) (*Service, error) {
	return r.scanService(r.db.QueryRowContext(ctx, selectService+` WHERE id = ?`, id), id)
}

// NextQueued returns the oldest queued service, or ErrNotFound when the
// queue is empty.
func (r *Registry) NextQueued(ctx context.Context) (*Service, error) {
	row := r.db.QueryRowContext(ctx,
		selectService+` WHERE status = ? ORDER BY created_at, id LIMIT 1`, StatusQueued)
	svc, err := r.scanService(row, "queued")
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("no queued services: %w", ErrNotFound)
	}
	return svc, err
}

// Claim transitions a queued service to processing, recording the start
// time and worker version. Claiming a service in any other state returns
// ErrConflict, so two workers can race on NextQueued safely.
func (r *Registry) Claim(ctx context.Context, id, workerVersion string) (*Service, error) {
	now := r.now().Unix()
	res, err := dbopen.Exec(ctx, r.db,
		`UPDATE services SET status = ?, started_at = ?, worker_version = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		StatusProcessing, now, workerVersion, now, id, StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("claim service %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim service %s: %w", id, err)
	}
	if n == 0 {
		svc, err := r.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("service %s is %s, not %s: %w", id, svc.Status, StatusQueued, ErrConflict)
	}
	return r.GetService(ctx, id)
}

// Complete marks a service finished and stores the artifact pointers and
// the operator notes.
func (r *Registry) Complete(ctx context.Context, id, artifactURL, artifactKey, artifactType, operatorNotes string) error {
	now := r.now().Unix()
	res, err := dbopen.Exec(ctx, r.db,
		`UPDATE services SET status = ?, finished_at = ?, artifact_url = ?, artifact_key = ?,
		 artifact_type = ?, operator_notes = ?, updated_at = ? WHERE id = ?`,
		StatusComplete, now, artifactURL, artifactKey, artifactType, operatorNotes, now, id)
	if err != nil {
		return fmt.Errorf("complete service %s: %w", id, err)
	}
	return requireRow(res, id)
}

// Fail marks a service failed and stores the error log. The finish time
// is recorded so failed runs still show their duration.
func (r *Registry) Fail(ctx context.Context, id, errorLog string) error {
	now := r.now().Unix()
	res, err := dbopen.Exec(ctx, r.db,
		`UPDATE services SET status = ?, finished_at = ?, error_log = ?, updated_at = ?
		 WHERE id = ?`,
		StatusFailed, now, errorLog, now, id)
	if err != nil {
		return fmt.Errorf("fail service %s: %w", id, err)
	}
	return requireRow(res, id)
}

const selectService = `SELECT id, service_type, project_id, manuscript_id, status,
	started_at, finished_at, worker_version, artifact_url, artifact_key,
	artifact_type, operator_notes, error_log, created_at, updated_at FROM services`

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("service %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("service %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Registry) scanService(row *sql.Row, ref string) (*Service, error) {
	s := &Service{}
	err := row.Scan(&s.ID, &s.ServiceType, &s.ProjectID, &s.ManuscriptID, &s.Status,
		&s.StartedAt, &s.FinishedAt, &s.WorkerVersion, &s.ArtifactURL, &s.ArtifactKey,
		&s.ArtifactType, &s.OperatorNotes, &s.ErrorLog, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan service %s: %w", ref, err)
	}
	return s, nil
}
