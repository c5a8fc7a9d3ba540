package blockpipe

import "github.com/prontopub/inkwell/manuscript"

// Format identifies a source document type.
type Format string

const (
	FormatDocx Format = "docx"
	FormatODT  Format = "odt"
	FormatPDF  Format = "pdf"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
)

// unit is one trimmed, non-empty text unit in source read order, before
// classification. text always carries the logical text; spans is non-nil
// only when the source format exposed style runs and at least one mark
// survived normalization.
type unit struct {
	text  string
	spans []manuscript.Span
	style string // paragraph style hint, "" when the format has none
	loc   manuscript.SourceLoc
}

// extraction is raw adapter output before classification.
type extraction struct {
	units      []unit
	totalUnits int // every unit seen, blanks included
	pages      int // PDF only
	images     int // PDF only
}

// Result is the outcome of structuring one document.
type Result struct {
	Blocks []manuscript.Block    `json:"blocks"`
	Meta   manuscript.SourceMeta `json:"source_meta"`
}
