// Package worker orchestrates manuscript processing services.
//
// A service run is claim → fetch → extract → analyze → assemble →
// validate → store → complete; any failing step marks the service failed
// with the error recorded on its row. The same pipeline is exposed for
// one-shot file processing and, via RegisterMCP, as MCP tools.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prontopub/inkwell/blobstore"
	"github.com/prontopub/inkwell/blockpipe"
	"github.com/prontopub/inkwell/canonhash"
	"github.com/prontopub/inkwell/fetch"
	"github.com/prontopub/inkwell/idgen"
	"github.com/prontopub/inkwell/manuscript"
	"github.com/prontopub/inkwell/quality"
	"github.com/prontopub/inkwell/registry"
	"github.com/prontopub/inkwell/runlog"
	"github.com/prontopub/inkwell/schema"
)

// Worker identity stamped into artifacts and service rows.
const (
	Name    = "manuscript_processor"
	Version = "4.1.0"
)

// ServiceType of the queue entries this worker claims.
const ServiceType = "manuscript_processing"

// recordArtifactType is stored on completed service rows.
const recordArtifactType = "manuscript_json"

// ArtifactKey returns the blob key under which a service's manuscript
// artifact is stored.
func ArtifactKey(serviceID string) string {
	return "services/" + serviceID + "/manuscript.v1.json"
}

// Worker drives the manuscript pipeline.
type Worker struct {
	cfg          *Config
	registry     *registry.Registry
	blobs        *blobstore.Store
	events       *runlog.Log
	fetcher      *fetch.Fetcher
	pipe         *blockpipe.Pipeline
	analyzer     *quality.Engine
	assembler    *manuscript.Assembler
	newServiceID idgen.Generator
	logger       *slog.Logger
}

// New creates a Worker. reg, blobs and events may be nil for one-shot
// file processing; the queue operations (Process, ProcessNext, Run)
// require reg, blobs and events to be set.
func New(cfg *Config, reg *registry.Registry, blobs *blobstore.Store, events *runlog.Log, logger *slog.Logger) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	var qopts []quality.Option
	if cfg.ExtendedChecks {
		qopts = append(qopts, quality.WithExtendedChecks())
	}
	if cfg.LegacySeverities {
		qopts = append(qopts, quality.WithLegacySeverities())
	}
	if cfg.AttachMatches {
		qopts = append(qopts, quality.WithMatches())
	}
	return &Worker{
		cfg:      cfg,
		registry: reg,
		blobs:    blobs,
		events:   events,
		fetcher: fetch.New(fetch.Config{
			MaxBytes:  cfg.MaxFileBytes(),
			TempDir:   cfg.TempDir,
			UserAgent: Name + "/" + Version,
		}),
		pipe: blockpipe.New(blockpipe.Config{
			MaxFileSize: cfg.MaxFileBytes(),
			Logger:      logger,
		}),
		analyzer:     quality.New(qopts...),
		assembler:    manuscript.NewAssembler(Name, Version),
		newServiceID: idgen.Prefixed("svc_", idgen.Default),
		logger:       logger,
	}
}

// Result summarizes one processing run.
type Result struct {
	Success       bool   `json:"success"`
	ServiceID     string `json:"service_id"`
	ArtifactURL   string `json:"artifact_url,omitempty"`
	ArtifactKey   string `json:"artifact_key,omitempty"`
	WarningsCount int    `json:"warnings_count"`
	BlocksCount   int    `json:"blocks_count"`
	Error         string `json:"error,omitempty"`
}

// Process claims and runs one queued service end to end. Pipeline
// failures are recorded on the service row and reported in the Result;
// the returned error covers claim problems only (unknown service, status
// conflict, missing collaborators).
func (w *Worker) Process(ctx context.Context, serviceID string) (*Result, error) {
	if w.registry == nil || w.blobs == nil {
		return nil, fmt.Errorf("worker has no registry or blob store configured")
	}

	svc, err := w.registry.Claim(ctx, serviceID, Version)
	if err != nil {
		return nil, err
	}
	w.record(svc.ID, runlog.StageClaimed, map[string]string{"worker_version": Version})
	w.logger.Info("service claimed", "service_id", svc.ID, "manuscript_id", svc.ManuscriptID)

	res, err := w.run(ctx, svc)
	if err != nil {
		w.logger.Error("service failed", "service_id", svc.ID, "error", err)
		w.record(svc.ID, runlog.StageFailed, map[string]string{"error": err.Error()})
		if ferr := w.registry.Fail(ctx, svc.ID, err.Error()); ferr != nil {
			w.logger.Error("record failure", "service_id", svc.ID, "error", ferr)
		}
		return &Result{ServiceID: svc.ID, Error: err.Error()}, nil
	}
	return res, nil
}

// ProcessNext claims and runs the oldest queued service. Returns
// registry.ErrNotFound when the queue is empty.
func (w *Worker) ProcessNext(ctx context.Context) (*Result, error) {
	if w.registry == nil {
		return nil, fmt.Errorf("worker has no registry configured")
	}
	svc, err := w.registry.NextQueued(ctx)
	if err != nil {
		return nil, err
	}
	return w.Process(ctx, svc.ID)
}

// Run polls the queue until ctx is cancelled. The queue is drained
// back-to-back; the poll interval applies only while it is empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"worker", Name, "version", Version, "poll_interval", w.cfg.PollInterval())
	for {
		_, err := w.ProcessNext(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, registry.ErrConflict):
			// raced with another worker; the queue may hold more
			continue
		case errors.Is(err, registry.ErrNotFound):
			// queue empty
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			w.logger.Error("process next", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.PollInterval()):
		}
	}
}

func (w *Worker) run(ctx context.Context, svc *registry.Service) (*Result, error) {
	man, err := w.registry.GetManuscript(ctx, svc.ManuscriptID)
	if err != nil {
		return nil, err
	}
	if man.UploadKey == "" {
		return nil, fmt.Errorf("manuscript %s has no upload reference", man.ID)
	}

	local, cleanup, err := w.fetcher.Fetch(ctx, man.UploadKey)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var ingested time.Time
	if man.UploadedAt > 0 {
		ingested = time.Unix(man.UploadedAt, 0)
	}
	art, err := w.assemble(ctx, local, man.Filename, svc.ID, svc.ProjectID, ingested)
	if err != nil {
		return nil, err
	}

	put, err := w.blobs.PutJSON(ctx, ArtifactKey(svc.ID), art)
	if err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}
	w.record(svc.ID, runlog.StageStored, map[string]any{"key": put.Key, "size_bytes": put.Size})

	warnings := art.Analysis.Warnings
	if err := w.registry.Complete(ctx, svc.ID, put.URL, put.Key, recordArtifactType, operatorNotes(warnings)); err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}
	w.record(svc.ID, runlog.StageCompleted, nil)
	w.logger.Info("service complete", "service_id", svc.ID,
		"blocks", art.Content.Stats.BlockCount, "warnings", len(warnings))

	return &Result{
		Success:       true,
		ServiceID:     svc.ID,
		ArtifactURL:   put.URL,
		ArtifactKey:   put.Key,
		WarningsCount: len(warnings),
		BlocksCount:   art.Content.Stats.BlockCount,
	}, nil
}

// assemble runs extraction, analysis, assembly and schema validation on
// one local file. filename overrides the file's basename in the artifact
// source when non-empty; downloads land in temp files whose names mean
// nothing to readers.
func (w *Worker) assemble(ctx context.Context, local, filename, serviceID, projectID string, ingested time.Time) (*manuscript.Artifact, error) {
	res, err := w.pipe.Process(ctx, local)
	if err != nil {
		return nil, err
	}
	if filename != "" {
		res.Meta.OriginalFilename = filename
	}
	w.record(serviceID, runlog.StageExtracted, map[string]any{
		"format": res.Meta.OriginalFormat,
		"blocks": len(res.Blocks),
	})

	warnings := w.analyzer.Analyze(res.Blocks, res.Meta)
	w.record(serviceID, runlog.StageAnalyzed, map[string]any{"warnings": len(warnings)})

	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", local, err)
	}
	sourceHash, err := canonhash.HashFile(local, canonhash.SHA256)
	if err != nil {
		return nil, fmt.Errorf("hash source: %w", err)
	}

	art := w.assembler.Build(manuscript.BuildInput{
		Blocks:         res.Blocks,
		Warnings:       warnings,
		Source:         res.Meta,
		ServiceID:      serviceID,
		ProjectID:      projectID,
		FileSizeBytes:  info.Size(),
		FileHashSHA256: sourceHash,
		IngestedAt:     ingested,
	})

	// An artifact that fails its own schema must never reach the store.
	vres, err := schema.Validate(art, art.ArtifactType, art.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("validate artifact: %w", err)
	}
	if !vres.Valid {
		return nil, fmt.Errorf("artifact failed schema validation: %s", strings.Join(vres.Errors, "; "))
	}
	return art, nil
}

// FileRequest describes a one-shot processing run outside the service
// queue.
type FileRequest struct {
	Path      string // local path, file:// or http(s):// reference
	Filename  string // artifact original_filename; derived from Path when empty
	ServiceID string // synthesized when empty
	ProjectID string
	Store     bool // persist the artifact to the blob store
}

// ProcessFile runs the full pipeline on one manuscript without touching
// the service queue. The artifact is returned in memory; with req.Store
// it is also persisted under the standard service key.
func (w *Worker) ProcessFile(ctx context.Context, req FileRequest) (*manuscript.Artifact, *Result, error) {
	serviceID := req.ServiceID
	if serviceID == "" {
		serviceID = w.newServiceID()
	}
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}

	local, cleanup, err := w.fetcher.Fetch(ctx, req.Path)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	art, err := w.assemble(ctx, local, filename, serviceID, req.ProjectID, time.Time{})
	if err != nil {
		return nil, nil, err
	}

	res := &Result{
		Success:       true,
		ServiceID:     serviceID,
		WarningsCount: len(art.Analysis.Warnings),
		BlocksCount:   art.Content.Stats.BlockCount,
	}
	if req.Store {
		if w.blobs == nil {
			return nil, nil, fmt.Errorf("worker has no blob store configured")
		}
		put, err := w.blobs.PutJSON(ctx, ArtifactKey(serviceID), art)
		if err != nil {
			return nil, nil, fmt.Errorf("store artifact: %w", err)
		}
		res.ArtifactURL = put.URL
		res.ArtifactKey = put.Key
	}
	return art, res, nil
}

// Detect reports the manuscript format for a path without processing it.
func (w *Worker) Detect(path string) (string, error) {
	format, err := w.pipe.Detect(path)
	if err != nil {
		return "", err
	}
	return string(format), nil
}

func (w *Worker) record(serviceID, stage string, detail any) {
	if w.events != nil {
		w.events.Record(serviceID, stage, detail)
	}
}

// operatorNotes renders the warning summary stored on completed service
// rows. Empty when the analysis found nothing, so clean runs leave the
// notes column blank.
func operatorNotes(warnings []manuscript.Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(manuscript.Summarize(warnings), "", "  ")
	if err != nil {
		return ""
	}
	return "Warnings: " + string(data)
}
