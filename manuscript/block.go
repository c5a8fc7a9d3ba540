package manuscript

import (
	"fmt"
	"strings"
)

// BlockType classifies a content block within the manuscript flow.
type BlockType string

const (
	TitlePage             BlockType = "title_page"
	FrontMatterTitle      BlockType = "front_matter_title"
	FrontMatterCopyright  BlockType = "front_matter_copyright"
	FrontMatterDedication BlockType = "front_matter_dedication"
	TOCMarker             BlockType = "toc_marker"
	FrontMatterHeading    BlockType = "front_matter_heading"
	FrontMatterText       BlockType = "front_matter_text"
	ChapterHeading        BlockType = "chapter_heading"
	Paragraph             BlockType = "paragraph"
	SceneBreak            BlockType = "scene_break"
	BackMatterHeading     BlockType = "back_matter_heading"
	BackMatterText        BlockType = "back_matter_text"
	BackMatterAboutAuthor BlockType = "back_matter_about_author"
	BackMatterAlsoBy      BlockType = "back_matter_also_by"
)

var validBlockTypes = map[BlockType]bool{
	TitlePage:             true,
	FrontMatterTitle:      true,
	FrontMatterCopyright:  true,
	FrontMatterDedication: true,
	TOCMarker:             true,
	FrontMatterHeading:    true,
	FrontMatterText:       true,
	ChapterHeading:        true,
	Paragraph:             true,
	SceneBreak:            true,
	BackMatterHeading:     true,
	BackMatterText:        true,
	BackMatterAboutAuthor: true,
	BackMatterAlsoBy:      true,
}

// IsValid reports whether t is one of the defined block types.
func (t BlockType) IsValid() bool { return validBlockTypes[t] }

// IsFrontMatter reports whether t belongs to the front matter family.
// TitlePage and TOCMarker sit outside both families.
func (t BlockType) IsFrontMatter() bool {
	return strings.HasPrefix(string(t), "front_matter_")
}

// IsBackMatter reports whether t belongs to the back matter family.
func (t BlockType) IsBackMatter() bool {
	return strings.HasPrefix(string(t), "back_matter_")
}

// Mark is an inline style applied to a span of text.
type Mark string

const (
	MarkItalic    Mark = "italic"
	MarkBold      Mark = "bold"
	MarkSmallCaps Mark = "smallcaps"
	MarkCode      Mark = "code"
)

// Span is a run of text carrying zero or more inline marks. Marks is always
// non-nil in extractor output so the JSON shape stays stable.
type Span struct {
	Text  string `json:"text"`
	Marks []Mark `json:"marks"`
}

// SourceLoc points back into the original file. Exactly one coordinate is
// set, chosen by the source format: Paragraph for word-processor documents,
// Page for PDFs, Line for plain text. Coordinates are 1-based.
type SourceLoc struct {
	Paragraph int `json:"paragraph,omitempty"`
	Page      int `json:"page,omitempty"`
	Line      int `json:"line,omitempty"`
}

// Meta carries classification details for blocks that have them.
type Meta struct {
	ChapterNumber   int    `json:"chapter_number,omitempty"`
	DetectedKeyword string `json:"detected_keyword,omitempty"`
	Pattern         string `json:"pattern,omitempty"`
	StyleName       string `json:"style_name,omitempty"`
}

// Block is one typed unit of manuscript content. A block holds its content
// either as plain Text or as a sequence of styled Spans, never both and
// never neither.
type Block struct {
	ID    string     `json:"id"`
	Type  BlockType  `json:"type"`
	Text  string     `json:"text,omitempty"`
	Spans []Span     `json:"spans,omitempty"`
	Meta  *Meta      `json:"meta,omitempty"`
	Loc   *SourceLoc `json:"source_loc,omitempty"`
}

// PlainText returns the block's text content. For span blocks it is the
// concatenation of all span texts in order.
func (b *Block) PlainText() string {
	if b.Spans == nil {
		return b.Text
	}
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Validate checks the block's structural invariants.
func (b *Block) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("block has no id")
	}
	if !b.Type.IsValid() {
		return fmt.Errorf("block %s: unknown type %q", b.ID, b.Type)
	}
	hasText := b.Text != ""
	hasSpans := b.Spans != nil
	if hasText && hasSpans {
		return fmt.Errorf("block %s: both text and spans set", b.ID)
	}
	if !hasText && !hasSpans {
		return fmt.Errorf("block %s: neither text nor spans set", b.ID)
	}
	return nil
}

// BlockID formats the stable identifier for the block at the given
// zero-based position: blk_000001 for the first block.
func BlockID(index int) string {
	return fmt.Sprintf("blk_%06d", index+1)
}

// SourceMeta summarises what extraction saw in the original file. Exactly
// one of the Total* counts is set, matching the coordinate family used in
// block source locations.
type SourceMeta struct {
	OriginalFilename string `json:"original_filename"`
	OriginalFormat   string `json:"original_format"`
	TotalParagraphs  int    `json:"total_paragraphs,omitempty"`
	TotalPages       int    `json:"total_pages,omitempty"`
	TotalLines       int    `json:"total_lines,omitempty"`
	DetectedChapters int    `json:"detected_chapters"`
	HasFrontMatter   bool   `json:"has_front_matter"`
	HasBackMatter    bool   `json:"has_back_matter"`
	ImageCount       int    `json:"image_count,omitempty"`
}
