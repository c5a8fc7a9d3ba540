// Package main is the inkwell command: a manuscript structuring service
// and a one-shot artifact toolbox sharing the same pipeline.
//
// Usage:
//
//	inkwell serve [-config inkwell.yaml]
//	inkwell process [-config file] [-project id] [-store] [-o out.json] <path|url>
//	inkwell hash [-algo sha256] <artifact.json>
//	inkwell verify <artifact.json> <algorithm:digest>
//	inkwell lineage <artifact.json>
//
// serve reads its settings from the YAML config plus the environment
// (PORT, LOG_LEVEL, MCP_TRANSPORT=stdio). The one-shot commands run the
// pipeline without a service registry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/prontopub/inkwell/blobstore"
	"github.com/prontopub/inkwell/canonhash"
	"github.com/prontopub/inkwell/dbopen"
	"github.com/prontopub/inkwell/idgen"
	"github.com/prontopub/inkwell/lineage"
	"github.com/prontopub/inkwell/manuscript"
	"github.com/prontopub/inkwell/registry"
	"github.com/prontopub/inkwell/runlog"
	"github.com/prontopub/inkwell/worker"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "process":
		runProcess(os.Args[2:])
	case "hash":
		runHash(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "lineage":
		runLineage(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: inkwell <command> [flags] [args]

commands:
  serve     run the processing service (HTTP API + queue worker)
  process   process one manuscript and print the artifact JSON
  hash      print the canonical hash of an artifact JSON file
  verify    check an artifact JSON file against a declared hash
  lineage   print the provenance chain of an artifact JSON file
`)
}

// --- serve ---

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}

	logger := newLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	reg, err := registry.New(db)
	if err != nil {
		slog.Error("init registry", "error", err)
		os.Exit(1)
	}
	events, err := runlog.New(db)
	if err != nil {
		slog.Error("init run log", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	blobs := blobstore.New(cfg.BlobDir, cfg.BaseURL)
	wkr := worker.New(cfg, reg, blobs, events, logger)

	// Uploads live next to the database, outside the artifact store.
	uploadsDir := filepath.Join(filepath.Dir(cfg.DBPath), "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		slog.Error("create uploads dir", "path", uploadsDir, "error", err)
		os.Exit(1)
	}

	// Optional MCP tool surface on stdio alongside HTTP.
	if os.Getenv("MCP_TRANSPORT") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "inkwell", Version: worker.Version}, nil)
		wkr.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
		slog.Info("MCP tools on stdio")
	}

	// Background queue polling.
	go func() {
		if err := wkr.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker loop", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "version": worker.Version})
	})
	r.Post("/v1/manuscripts", uploadHandler(reg, wkr, cfg, uploadsDir))
	r.Get("/v1/services/{id}", serviceHandler(reg))
	r.Get("/v1/services/{id}/events", eventsHandler(events))
	r.Post("/v1/services/{id}/process", processHandler(wkr))
	r.Get("/v1/artifacts/*", artifactHandler(blobs))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "listen", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// uploadHandler receives a multipart manuscript upload, stores it under
// the uploads dir and queues a processing service for it.
func uploadHandler(reg *registry.Registry, wkr *worker.Worker, cfg *worker.Config, uploadsDir string) http.HandlerFunc {
	newUploadID := idgen.Prefixed("upl_", idgen.Default)
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(cfg.MaxFileBytes()); err != nil {
			writeError(w, 400, fmt.Errorf("parse form: %w", err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, 400, fmt.Errorf("missing file field: %w", err))
			return
		}
		defer file.Close()

		// Client filenames may carry paths; keep only the base name, and
		// reject formats the pipeline cannot process before writing bytes.
		filename := filepath.Base(header.Filename)
		if _, err := wkr.Detect(filename); err != nil {
			writeError(w, 400, err)
			return
		}

		dst := filepath.Join(uploadsDir, newUploadID()+strings.ToLower(filepath.Ext(filename)))
		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		n, err := io.Copy(out, io.LimitReader(file, cfg.MaxFileBytes()+1))
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
			writeError(w, 500, err)
			return
		}
		if n > cfg.MaxFileBytes() {
			os.Remove(dst)
			writeError(w, 413, fmt.Errorf("file exceeds max size (%d MB)", cfg.MaxFileMB))
			return
		}

		man, err := reg.CreateManuscript(r.Context(), filename, dst)
		if err != nil {
			os.Remove(dst)
			writeError(w, 500, err)
			return
		}
		svc, err := reg.CreateService(r.Context(), worker.ServiceType, r.FormValue("project_id"), man.ID)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 201, map[string]string{
			"manuscript_id": man.ID,
			"service_id":    svc.ID,
			"filename":      filename,
			"status":        string(svc.Status),
		})
	}
}

func serviceHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := reg.GetService(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, registry.ErrNotFound):
			writeError(w, 404, err)
		case err != nil:
			writeError(w, 500, err)
		default:
			writeJSON(w, 200, svc)
		}
	}
}

func eventsHandler(events *runlog.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := events.ListByService(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, entries)
	}
}

func processHandler(wkr *worker.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := wkr.Process(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, registry.ErrNotFound):
			writeError(w, 404, err)
		case errors.Is(err, registry.ErrConflict):
			writeError(w, 409, err)
		case err != nil:
			writeError(w, 500, err)
		default:
			writeJSON(w, 200, res)
		}
	}
}

func artifactHandler(blobs *blobstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := blobs.Get(chi.URLParam(r, "*"))
		switch {
		case errors.Is(err, blobstore.ErrNotFound):
			writeError(w, 404, err)
		case errors.Is(err, blobstore.ErrInvalidKey):
			writeError(w, 400, err)
		case err != nil:
			writeError(w, 500, err)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
		}
	}
}

// --- process ---

func runProcess(args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	outPath := fs.String("o", "", "write the artifact JSON to this file instead of stdout")
	project := fs.String("project", "", "project ID recorded in the artifact")
	store := fs.Bool("store", false, "also persist the artifact to the blob store")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inkwell process [flags] <path|url>")
		os.Exit(2)
	}

	cfg := loadConfig(*cfgPath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var blobs *blobstore.Store
	if *store {
		blobs = blobstore.New(cfg.BlobDir, cfg.BaseURL)
	}
	wkr := worker.New(cfg, nil, blobs, nil, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	art, res, err := wkr.ProcessFile(ctx, worker.FileRequest{
		Path:      fs.Arg(0),
		ProjectID: *project,
		Store:     *store,
	})
	if err != nil {
		fatal(err)
	}

	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		fatal(err)
	}
	data = append(data, '\n')
	if *outPath != "" {
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			fatal(err)
		}
	} else {
		os.Stdout.Write(data)
	}

	hashRef, err := canonhash.Compute(art, canonhash.DefaultAlgorithm)
	if err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "%d blocks, %d warnings, hash %s\n", res.BlocksCount, res.WarningsCount, hashRef)
	if res.ArtifactURL != "" {
		fmt.Fprintf(os.Stderr, "stored at %s\n", res.ArtifactURL)
	}
}

// --- hash / verify / lineage ---

func runHash(args []string) {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	algo := fs.String("algo", canonhash.DefaultAlgorithm, "hash algorithm (sha256, sha1, md5, blake3)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inkwell hash [-algo name] <artifact.json>")
		os.Exit(2)
	}

	v, err := readJSON(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	ref, err := canonhash.Compute(v, *algo)
	if err != nil {
		fatal(err)
	}
	fmt.Println(ref)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: inkwell verify <artifact.json> <algorithm:digest>")
		os.Exit(2)
	}

	v, err := readJSON(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	declared := fs.Arg(1)
	ok, err := canonhash.Verify(v, declared)
	if err != nil {
		fatal(err)
	}
	if !ok {
		algo, _ := canonhash.ExtractAlgorithm(declared)
		actual, _ := canonhash.Compute(v, algo)
		fmt.Fprintf(os.Stderr, "hash mismatch: artifact is %s\n", actual)
		os.Exit(1)
	}
	fmt.Println("valid")
}

func runLineage(args []string) {
	fs := flag.NewFlagSet("lineage", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inkwell lineage <artifact.json>")
		os.Exit(2)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	var art manuscript.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		fatal(fmt.Errorf("parse artifact: %w", err))
	}
	fmt.Println(lineage.FormatChain(lineage.BuildChain(&art, true)))
}

// --- helpers ---

func loadConfig(path string) *worker.Config {
	if path == "" {
		return worker.DefaultConfig()
	}
	cfg, err := worker.LoadConfig(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func newLogger(out io.Writer) *slog.Logger {
	var lvl slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}

func readJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
	os.Exit(1)
}
