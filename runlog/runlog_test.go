package runlog_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prontopub/inkwell/dbopen"
	"github.com/prontopub/inkwell/runlog"

	_ "modernc.org/sqlite"
)

func TestRecordAndList(t *testing.T) {
	db := dbopen.OpenMemory(t)
	log, err := runlog.New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Record("svc_1", runlog.StageClaimed, nil)
	log.Record("svc_1", runlog.StageExtracted, map[string]any{"format": "docx", "blocks": 12})
	log.Record("svc_1", runlog.StageCompleted, nil)

	// Close drains the channel and flushes everything.
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := log.ListByService(context.Background(), "svc_1")
	if err != nil {
		t.Fatalf("ListByService() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	wantStages := []string{runlog.StageClaimed, runlog.StageExtracted, runlog.StageCompleted}
	for i, want := range wantStages {
		if entries[i].Stage != want {
			t.Errorf("entries[%d].Stage = %q, want %q", i, entries[i].Stage, want)
		}
		if entries[i].ServiceID != "svc_1" {
			t.Errorf("entries[%d].ServiceID = %q", i, entries[i].ServiceID)
		}
		if entries[i].Timestamp == 0 {
			t.Errorf("entries[%d].Timestamp = 0", i)
		}
	}
	if entries[0].Detail != nil {
		t.Errorf("claimed detail = %s, want none", entries[0].Detail)
	}

	var detail map[string]any
	if err := json.Unmarshal(entries[1].Detail, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail["format"] != "docx" {
		t.Errorf("detail format = %v, want docx", detail["format"])
	}
}

func TestListFiltersByService(t *testing.T) {
	db := dbopen.OpenMemory(t)
	log, err := runlog.New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Record("svc_1", runlog.StageClaimed, nil)
	log.Record("svc_2", runlog.StageClaimed, nil)
	log.Record("svc_2", runlog.StageFailed, map[string]string{"error": "file corrupt"})
	log.Close()

	entries, err := log.ListByService(context.Background(), "svc_2")
	if err != nil {
		t.Fatalf("ListByService() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[1].Stage != runlog.StageFailed {
		t.Errorf("Stage = %q, want %q", entries[1].Stage, runlog.StageFailed)
	}
}

func TestListEmpty(t *testing.T) {
	db := dbopen.OpenMemory(t)
	log, err := runlog.New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer log.Close()

	entries, err := log.ListByService(context.Background(), "svc_none")
	if err != nil {
		t.Fatalf("ListByService() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
	if entries == nil {
		t.Error("entries = nil, want empty slice")
	}
}

func TestCloseIdempotent(t *testing.T) {
	db := dbopen.OpenMemory(t)
	log, err := runlog.New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
