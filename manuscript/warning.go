package manuscript

// Severity ranks a warning's impact on downstream processing.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Legacy maps the severity to the older error/warning/info vocabulary some
// consumers still expect.
func (s Severity) Legacy() string {
	switch s {
	case SeverityHigh:
		return "error"
	case SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

// WarningCode identifies a detector finding.
type WarningCode string

const (
	WarnDetectedImages       WarningCode = "DETECTED_IMAGES"
	WarnDetectedTables       WarningCode = "DETECTED_TABLES"
	WarnDetectedFootnotes    WarningCode = "DETECTED_FOOTNOTES"
	WarnLowChapterConfidence WarningCode = "LOW_CHAPTER_CONFIDENCE"
	WarnPoemLikeBlocks       WarningCode = "POEM_LIKE_BLOCKS"
	WarnUnicodeRisk          WarningCode = "UNICODE_RISK"
	WarnHeavyCentering       WarningCode = "HEAVY_CENTERING"
	WarnOCRQualityIssues     WarningCode = "OCR_QUALITY_ISSUES"

	// Extended checks, off by default.
	WarnExcessiveWhitespace     WarningCode = "EXCESSIVE_WHITESPACE"
	WarnFormattingInconsistency WarningCode = "FORMATTING_INCONSISTENCY"
)

// WarningMatch locates one block that triggered a warning. Context is a
// short excerpt of the block text, capped at 100 runes.
type WarningMatch struct {
	BlockIndex int    `json:"block_index"`
	BlockID    string `json:"block_id,omitempty"`
	Context    string `json:"context,omitempty"`
}

// Warning is one aggregated detector finding across the whole manuscript.
// Count is the number of affected blocks, except for UNICODE_RISK where it
// counts the risky characters themselves.
type Warning struct {
	Code             WarningCode    `json:"code"`
	Severity         Severity       `json:"severity"`
	Message          string         `json:"message,omitempty"`
	Count            int            `json:"count,omitempty"`
	DetectedChapters *int           `json:"detected_chapters,omitempty"`
	TotalBlocks      int            `json:"total_blocks,omitempty"`
	Matches          []WarningMatch `json:"matches,omitempty"`
}

// WarningSummary aggregates warnings for operator-facing status notes.
type WarningSummary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByCode     map[string]int `json:"by_code"`
}

// Summarize counts warnings by severity and code.
func Summarize(warnings []Warning) WarningSummary {
	s := WarningSummary{
		Total:      len(warnings),
		BySeverity: map[string]int{},
		ByCode:     map[string]int{},
	}
	for _, w := range warnings {
		s.BySeverity[string(w.Severity)]++
		s.ByCode[string(w.Code)]++
	}
	return s
}
