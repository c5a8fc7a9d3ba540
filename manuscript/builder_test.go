package manuscript

import (
	"testing"
	"time"
)

func testAssembler() *Assembler {
	fixed := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	return NewAssembler("manuscript_processor", "4.1.0",
		WithRunID(func() string { return "run-0001" }),
		WithClock(func() time.Time { return fixed }),
	)
}

func TestBuildEnvelope(t *testing.T) {
	a := testAssembler()
	art := a.Build(BuildInput{
		Blocks: []Block{
			{ID: "blk_000001", Type: ChapterHeading, Text: "Chapter 1",
				Meta: &Meta{ChapterNumber: 1}},
			{ID: "blk_000002", Type: Paragraph, Text: "It was a dark and stormy night."},
			{ID: "blk_000003", Type: SceneBreak, Text: "***"},
		},
		Warnings: []Warning{
			{Code: WarnDetectedImages, Severity: SeverityHigh, Count: 1},
		},
		Source: SourceMeta{
			OriginalFilename: "novel.docx",
			OriginalFormat:   "docx",
		},
		ServiceID:      "svc-123",
		ProjectID:      "proj-9",
		FileSizeBytes:  2048,
		FileHashSHA256: "abc123",
		IngestedAt:     time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
	})

	if art.SchemaVersion != "1.0" || art.ArtifactType != "manuscript" || art.ArtifactVersion != "1" {
		t.Errorf("envelope = %s/%s/%s", art.SchemaVersion, art.ArtifactType, art.ArtifactVersion)
	}
	if art.Source.OriginalFilename != "novel.docx" || art.Source.OriginalFormat != "docx" {
		t.Errorf("source = %+v", art.Source)
	}
	if art.Source.OriginalFileSizeBytes != 2048 || art.Source.SourceHashSHA256 != "abc123" {
		t.Errorf("source = %+v", art.Source)
	}
	if art.Source.IngestedAt != "2026-08-23T09:00:00Z" {
		t.Errorf("IngestedAt = %q", art.Source.IngestedAt)
	}

	p := art.Processing
	if p.WorkerName != "manuscript_processor" || p.WorkerVersion != "4.1.0" {
		t.Errorf("processing = %+v", p)
	}
	if p.RunID != "run-0001" || p.ServiceID != "svc-123" || p.ProjectID != "proj-9" {
		t.Errorf("processing = %+v", p)
	}
	if p.ProcessedAt != "2026-08-23T10:30:00Z" {
		t.Errorf("ProcessedAt = %q", p.ProcessedAt)
	}

	c := art.Content
	if c.Language != "en" || c.ReadingDirection != "ltr" {
		t.Errorf("content = %s/%s", c.Language, c.ReadingDirection)
	}
	// "Chapter 1" (2) + 7 words + "***" (1).
	if c.Stats.WordCount != 10 {
		t.Errorf("WordCount = %d, want 10", c.Stats.WordCount)
	}
	if c.Stats.BlockCount != 3 || c.Stats.ChapterCount != 1 {
		t.Errorf("stats = %+v", c.Stats)
	}

	if len(art.Analysis.Warnings) != 1 {
		t.Errorf("warnings = %+v", art.Analysis.Warnings)
	}
	if art.Analysis.Quality.ChapterBoundaryConfidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", art.Analysis.Quality.ChapterBoundaryConfidence)
	}
	if art.Analysis.Quality.OCRUsed {
		t.Error("OCRUsed = true")
	}
	if art.Analysis.UnsupportedElements == nil || len(art.Analysis.UnsupportedElements) != 0 {
		t.Errorf("UnsupportedElements = %v", art.Analysis.UnsupportedElements)
	}
	if art.ParentArtifacts == nil || len(art.ParentArtifacts) != 0 {
		t.Errorf("ParentArtifacts = %v", art.ParentArtifacts)
	}
}

func TestBuildWordCountSpans(t *testing.T) {
	a := testAssembler()
	art := a.Build(BuildInput{
		Blocks: []Block{
			{ID: "blk_000001", Type: Paragraph, Spans: []Span{
				{Text: "The quick ", Marks: []Mark{}},
				{Text: "brown", Marks: []Mark{MarkItalic}},
				{Text: " fox.", Marks: []Mark{}},
			}},
		},
		Source:    SourceMeta{OriginalFilename: "a.docx", OriginalFormat: "docx"},
		ServiceID: "svc-1",
	})
	// Counted over the concatenated text, so the split word "brown" is not
	// double counted: "The quick brown fox." is 4 words.
	if art.Content.Stats.WordCount != 4 {
		t.Errorf("WordCount = %d, want 4", art.Content.Stats.WordCount)
	}
}

func TestBuildLowConfidenceCoupling(t *testing.T) {
	a := testAssembler()
	art := a.Build(BuildInput{
		Blocks: []Block{{ID: "blk_000001", Type: Paragraph, Text: "x"}},
		Warnings: []Warning{
			{Code: WarnLowChapterConfidence, Severity: SeverityMedium},
		},
		Source:    SourceMeta{OriginalFilename: "a.txt", OriginalFormat: "txt"},
		ServiceID: "svc-2",
	})
	if got := art.Analysis.Quality.ChapterBoundaryConfidence; got != 0.5 {
		t.Errorf("confidence = %v, want 0.5", got)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	a := testAssembler()
	art := a.Build(BuildInput{
		Source:    SourceMeta{OriginalFilename: "empty.txt", OriginalFormat: "txt"},
		ServiceID: "svc-3",
	})
	if art.Content.Blocks == nil {
		t.Error("Blocks is nil")
	}
	if art.Analysis.Warnings == nil {
		t.Error("Warnings is nil")
	}
	if art.ParentArtifacts == nil {
		t.Error("ParentArtifacts is nil")
	}
	if art.Content.Stats.WordCount != 0 || art.Content.Stats.BlockCount != 0 {
		t.Errorf("stats = %+v", art.Content.Stats)
	}
	if art.Source.IngestedAt != "" {
		t.Errorf("IngestedAt = %q, want empty", art.Source.IngestedAt)
	}
}

func TestBuildParents(t *testing.T) {
	a := testAssembler()
	key := "services/svc-0/manuscript.v1.json"
	hash := "sha256:deadbeef"
	art := a.Build(BuildInput{
		Blocks:    []Block{{ID: "blk_000001", Type: Paragraph, Text: "x"}},
		Source:    SourceMeta{OriginalFilename: "a.txt", OriginalFormat: "txt"},
		ServiceID: "svc-4",
		Parents: []LineageEntry{{
			ArtifactType:    "manuscript",
			ArtifactVersion: "1",
			ArtifactKey:     &key,
			ArtifactHash:    &hash,
			ProducedBy:      "manuscript_processor",
			ProducedAt:      "2026-08-20T08:00:00Z",
		}},
	})
	if len(art.ParentArtifacts) != 1 {
		t.Fatalf("ParentArtifacts = %v", art.ParentArtifacts)
	}
	if *art.ParentArtifacts[0].ArtifactKey != key {
		t.Errorf("parent key = %q", *art.ParentArtifacts[0].ArtifactKey)
	}
}
