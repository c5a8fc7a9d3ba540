package blockpipe

import (
	"context"
	"strings"
	"testing"

	"github.com/prontopub/inkwell/manuscript"
)

func TestDetect(t *testing.T) {
	pipe := New(Config{})

	tests := []struct {
		path   string
		format Format
	}{
		{"novel.docx", FormatDocx},
		{"novel.odt", FormatODT},
		{"novel.pdf", FormatPDF},
		{"novel.md", FormatMD},
		{"notes.markdown", FormatMD},
		{"novel.txt", FormatTXT},
		{"draft.text", FormatTXT},
		{"NOVEL.TXT", FormatTXT},
	}

	for _, tt := range tests {
		f, err := pipe.Detect(tt.path)
		if err != nil {
			t.Errorf("Detect(%q): %v", tt.path, err)
			continue
		}
		if f != tt.format {
			t.Errorf("Detect(%q) = %q, want %q", tt.path, f, tt.format)
		}
	}

	// Unsupported format.
	if _, err := pipe.Detect("file.xyz"); err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("Detect(file.xyz) err = %v", err)
	}
}

func TestProcessText(t *testing.T) {
	content := `Copyright 2026 Jane Doe

For my mother.

Chapter 1

Call me Ishmael.

* * *

The voyage began at dawn.

Chapter 2

The storm arrived without warning.

About the Author

Jane Doe lives by the sea.`
	path := writeTemp(t, "voyage.txt", content)

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	wantTypes := []manuscript.BlockType{
		manuscript.FrontMatterCopyright,
		manuscript.FrontMatterDedication,
		manuscript.ChapterHeading,
		manuscript.Paragraph,
		manuscript.SceneBreak,
		manuscript.Paragraph,
		manuscript.ChapterHeading,
		manuscript.Paragraph,
		manuscript.BackMatterAboutAuthor,
		manuscript.BackMatterAboutAuthor,
	}
	if len(res.Blocks) != len(wantTypes) {
		t.Fatalf("blocks = %d, want %d", len(res.Blocks), len(wantTypes))
	}
	for i, typ := range wantTypes {
		if res.Blocks[i].Type != typ {
			t.Errorf("blocks[%d].Type = %s, want %s", i, res.Blocks[i].Type, typ)
		}
	}

	if res.Blocks[0].ID != "blk_000001" {
		t.Errorf("blocks[0].ID = %s", res.Blocks[0].ID)
	}
	if res.Blocks[2].Meta.ChapterNumber != 1 || res.Blocks[6].Meta.ChapterNumber != 2 {
		t.Errorf("chapter numbers = %+v / %+v", res.Blocks[2].Meta, res.Blocks[6].Meta)
	}
	if res.Blocks[9].Loc == nil || res.Blocks[9].Loc.Line != 19 {
		t.Errorf("blocks[9].Loc = %+v, want line 19", res.Blocks[9].Loc)
	}

	meta := res.Meta
	if meta.OriginalFilename != "voyage.txt" {
		t.Errorf("OriginalFilename = %q", meta.OriginalFilename)
	}
	if meta.OriginalFormat != "txt" {
		t.Errorf("OriginalFormat = %q", meta.OriginalFormat)
	}
	if meta.TotalLines != 19 {
		t.Errorf("TotalLines = %d, want 19", meta.TotalLines)
	}
	if meta.DetectedChapters != 2 {
		t.Errorf("DetectedChapters = %d, want 2", meta.DetectedChapters)
	}
	if !meta.HasFrontMatter || !meta.HasBackMatter {
		t.Errorf("matter flags = %v / %v, want true / true", meta.HasFrontMatter, meta.HasBackMatter)
	}
}

func TestProcessMarkdown(t *testing.T) {
	path := writeTemp(t, "draft.md", "# Chapter 1\n\nIt began with rain.\n")

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(res.Blocks))
	}
	if res.Blocks[0].Type != manuscript.ChapterHeading {
		t.Errorf("blocks[0].Type = %s, want chapter_heading", res.Blocks[0].Type)
	}
	if res.Blocks[0].Text != "Chapter 1" {
		t.Errorf("blocks[0].Text = %q", res.Blocks[0].Text)
	}
	if res.Meta.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", res.Meta.TotalLines)
	}
}

func TestProcessDocx(t *testing.T) {
	path := writeDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Chapter 1</w:t></w:r></w:p>
<w:p><w:r><w:t>The house stood silent.</w:t></w:r></w:p>
</w:body>
</w:document>`)

	pipe := New(Config{})
	res, err := pipe.Process(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(res.Blocks))
	}
	if res.Blocks[0].Type != manuscript.ChapterHeading {
		t.Errorf("blocks[0].Type = %s", res.Blocks[0].Type)
	}
	if res.Meta.TotalParagraphs != 2 {
		t.Errorf("TotalParagraphs = %d, want 2", res.Meta.TotalParagraphs)
	}
	if res.Meta.TotalLines != 0 {
		t.Errorf("TotalLines = %d, want 0 for docx", res.Meta.TotalLines)
	}
	if res.Meta.DetectedChapters != 1 {
		t.Errorf("DetectedChapters = %d, want 1", res.Meta.DetectedChapters)
	}
}

func TestProcessFileTooLarge(t *testing.T) {
	path := writeTemp(t, "big.txt", strings.Repeat("word ", 100))

	pipe := New(Config{MaxFileSize: 16})
	_, err := pipe.Process(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for oversized file")
	}
	if !strings.Contains(err.Error(), "file too large") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcessMissingFile(t *testing.T) {
	pipe := New(Config{})
	if _, err := pipe.Process(context.Background(), "/nonexistent/path.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProcessUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "data.xyz", "payload")

	pipe := New(Config{})
	_, err := pipe.Process(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("err = %v, want unsupported format", err)
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 5 {
		t.Fatalf("expected 5 formats, got %d: %v", len(formats), formats)
	}
}
