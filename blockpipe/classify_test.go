package blockpipe

import (
	"testing"

	"github.com/prontopub/inkwell/manuscript"
)

func textUnits(texts ...string) []unit {
	units := make([]unit, len(texts))
	for i, t := range texts {
		units[i] = unit{text: t}
	}
	return units
}

func TestClassifyCoreSequence(t *testing.T) {
	blocks := classify(textUnits("***", "Chapter 1", "Hello world."))
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	if blocks[0].Type != manuscript.SceneBreak {
		t.Errorf("blocks[0].Type = %s, want scene_break", blocks[0].Type)
	}
	if blocks[0].ID != "blk_000001" {
		t.Errorf("blocks[0].ID = %s", blocks[0].ID)
	}
	if blocks[0].Meta == nil || blocks[0].Meta.Pattern != "***" {
		t.Errorf("blocks[0].Meta = %+v, want pattern ***", blocks[0].Meta)
	}

	if blocks[1].Type != manuscript.ChapterHeading {
		t.Errorf("blocks[1].Type = %s, want chapter_heading", blocks[1].Type)
	}
	if blocks[1].ID != "blk_000002" {
		t.Errorf("blocks[1].ID = %s", blocks[1].ID)
	}
	if blocks[1].Meta == nil || blocks[1].Meta.ChapterNumber != 1 {
		t.Errorf("blocks[1].Meta = %+v, want chapter_number 1", blocks[1].Meta)
	}

	if blocks[2].Type != manuscript.Paragraph {
		t.Errorf("blocks[2].Type = %s, want paragraph", blocks[2].Type)
	}
	if blocks[2].Meta != nil {
		t.Errorf("blocks[2].Meta = %+v, want nil", blocks[2].Meta)
	}
	if blocks[2].Text != "Hello world." {
		t.Errorf("blocks[2].Text = %q", blocks[2].Text)
	}
}

func TestClassifySceneBreakVariants(t *testing.T) {
	for _, text := range []string{"***", "* * *", "  * * *  ", "#", "~", "---", "------"} {
		blocks := classify(textUnits(text))
		if blocks[0].Type != manuscript.SceneBreak {
			t.Errorf("classify(%q) = %s, want scene_break", text, blocks[0].Type)
		}
	}

	// Two hyphens are an em-dash stand-in, not a separator.
	blocks := classify(textUnits("--"))
	if blocks[0].Type == manuscript.SceneBreak {
		t.Error("classify(--) should not be a scene break")
	}
}

func TestClassifyChapterNumbers(t *testing.T) {
	tests := []struct {
		text string
		num  int
	}{
		{"Chapter 1", 1},
		{"Chapter 7: The Storm", 7},
		{"CHAPTER 12", 12},
		{"Ch. 3", 3},
		{"12. The Long Night", 12},
		{"Part 2", 2},
	}
	for _, tt := range tests {
		blocks := classify(textUnits(tt.text))
		if blocks[0].Type != manuscript.ChapterHeading {
			t.Errorf("classify(%q) = %s, want chapter_heading", tt.text, blocks[0].Type)
			continue
		}
		if blocks[0].Meta.ChapterNumber != tt.num {
			t.Errorf("classify(%q) chapter_number = %d, want %d", tt.text, blocks[0].Meta.ChapterNumber, tt.num)
		}
	}
}

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		text    string
		typ     manuscript.BlockType
		keyword string
	}{
		{"Dedication", manuscript.FrontMatterDedication, "dedication"},
		{"Copyright 2026 Jane Doe", manuscript.FrontMatterCopyright, "copyright"},
		{"Title Page", manuscript.FrontMatterTitle, "title"},
		{"Table of Contents", manuscript.TOCMarker, "table of contents"},
		{"Contents", manuscript.TOCMarker, "contents"},
		{"About the Author", manuscript.BackMatterAboutAuthor, "about the author"},
		{"Also by Jane Doe", manuscript.BackMatterAlsoBy, "also by"},
	}
	for _, tt := range tests {
		blocks := classify(textUnits(tt.text))
		if blocks[0].Type != tt.typ {
			t.Errorf("classify(%q) = %s, want %s", tt.text, blocks[0].Type, tt.typ)
			continue
		}
		if blocks[0].Meta == nil || blocks[0].Meta.DetectedKeyword != tt.keyword {
			t.Errorf("classify(%q) keyword = %+v, want %q", tt.text, blocks[0].Meta, tt.keyword)
		}
	}
}

func TestClassifyRegionFallbacks(t *testing.T) {
	// Unrecognized text before any chapter falls into front matter; after
	// a back matter keyword it falls into back matter.
	blocks := classify(textUnits(
		"For my mother.",
		"Chapter 1",
		"The house stood silent.",
		"About the Author",
		"Jane Doe lives by the sea.",
	))

	want := []manuscript.BlockType{
		manuscript.FrontMatterDedication,
		manuscript.ChapterHeading,
		manuscript.Paragraph,
		manuscript.BackMatterAboutAuthor,
		manuscript.BackMatterAboutAuthor,
	}
	for i, typ := range want {
		if blocks[i].Type != typ {
			t.Errorf("blocks[%d].Type = %s, want %s", i, blocks[i].Type, typ)
		}
	}
	if blocks[4].Meta != nil {
		t.Errorf("fallback block carries meta: %+v", blocks[4].Meta)
	}
}

func TestClassifyHeadingStyleUpgrades(t *testing.T) {
	blocks := classify([]unit{
		{text: "A Note on the Text", style: "Heading2"},
		{text: "Chapter 1"},
		{text: "About the Author"},
		{text: "Acknowledgements", style: "Heading1"},
	})

	if blocks[0].Type != manuscript.FrontMatterHeading {
		t.Errorf("blocks[0].Type = %s, want front_matter_heading", blocks[0].Type)
	}
	if blocks[0].Meta == nil || blocks[0].Meta.StyleName != "Heading2" {
		t.Errorf("blocks[0].Meta = %+v, want style Heading2", blocks[0].Meta)
	}
	if blocks[3].Type != manuscript.BackMatterHeading {
		t.Errorf("blocks[3].Type = %s, want back_matter_heading", blocks[3].Type)
	}
}

func TestClassifyTitlePage(t *testing.T) {
	blocks := classify([]unit{
		{text: "Chapter 1"},
		{text: "The Wind Rises", style: "Title"},
		{text: "A very long opening line that runs on for more than ten words overall", style: "Title"},
	})

	if blocks[1].Type != manuscript.TitlePage {
		t.Errorf("blocks[1].Type = %s, want title_page", blocks[1].Type)
	}
	if blocks[1].Meta == nil || blocks[1].Meta.StyleName != "Title" {
		t.Errorf("blocks[1].Meta = %+v, want style Title", blocks[1].Meta)
	}
	// Title styling on long text reads as a paragraph.
	if blocks[2].Type != manuscript.Paragraph {
		t.Errorf("blocks[2].Type = %s, want paragraph", blocks[2].Type)
	}
}

func TestClassifyChapterRecoversFromBackMatter(t *testing.T) {
	// A chapter heading after back matter returns the region to the body.
	blocks := classify(textUnits(
		"About the Author",
		"Chapter 5",
		"The tale resumed.",
	))
	if blocks[1].Type != manuscript.ChapterHeading {
		t.Errorf("blocks[1].Type = %s, want chapter_heading", blocks[1].Type)
	}
	if blocks[1].Meta.ChapterNumber != 5 {
		t.Errorf("chapter_number = %d, want 5", blocks[1].Meta.ChapterNumber)
	}
	if blocks[2].Type != manuscript.Paragraph {
		t.Errorf("blocks[2].Type = %s, want paragraph", blocks[2].Type)
	}
}

func TestClassifySpansAndLocations(t *testing.T) {
	spans := []manuscript.Span{
		{Text: "Wind", Marks: []manuscript.Mark{manuscript.MarkItalic}},
		{Text: " rises", Marks: []manuscript.Mark{}},
	}
	blocks := classify([]unit{
		{text: "Chapter 1", loc: manuscript.SourceLoc{Line: 4}},
		{text: "Wind rises", spans: spans},
		{text: "No position recorded."},
	})

	if blocks[0].Loc == nil || blocks[0].Loc.Line != 4 {
		t.Errorf("blocks[0].Loc = %+v, want line 4", blocks[0].Loc)
	}

	if blocks[1].Text != "" {
		t.Errorf("span block has flat text: %q", blocks[1].Text)
	}
	if len(blocks[1].Spans) != 2 {
		t.Fatalf("blocks[1].Spans = %+v", blocks[1].Spans)
	}
	if got := blocks[1].PlainText(); got != "Wind rises" {
		t.Errorf("PlainText() = %q", got)
	}

	if blocks[2].Loc != nil {
		t.Errorf("blocks[2].Loc = %+v, want nil", blocks[2].Loc)
	}
}

func TestClassifyEmpty(t *testing.T) {
	blocks := classify(nil)
	if blocks == nil {
		t.Fatal("classify(nil) returned nil slice")
	}
	if len(blocks) != 0 {
		t.Fatalf("classify(nil) = %d blocks", len(blocks))
	}
}
