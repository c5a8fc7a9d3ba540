package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/prontopub/inkwell/manuscript"
)

// Detector thresholds. Fractions are strict (the warning fires only when
// the observed ratio exceeds the threshold).
const (
	minBlocksForChapterCheck  = 50
	maxBlocksPerChapter       = 500
	shortTextLimit            = 50
	poemFraction              = 0.2
	centeringFraction         = 0.1
	maxOCRBlocks              = 5
	minHeadingsForFormatCheck = 3
	maxHeadingFormats         = 2
	headingPrefixLen          = 20
)

var imageKeywords = []string{"[image]", "[figure]", "[photo]", "[illustration]"}

var footnotePattern = regexp.MustCompile(`\[\d+\]|\(\d+\)|†|‡|§`)

// OCR artifact patterns: isolated ambiguous characters, unbroken runs of
// 20+ non-space characters, mid-word case switches, digit-letter glue.
var ocrPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[Il1]\b`),
	regexp.MustCompile(`[^\s]{20,}`),
	regexp.MustCompile(`[a-z][A-Z]`),
	regexp.MustCompile(`\d[a-z]`),
}

// Unicode ranges whose characters commonly break downstream typesetting:
// general punctuation, letterlike symbols, arrows, math operators, misc
// technical, box drawing, block elements, geometric shapes.
var riskyRanges = [][2]rune{
	{0x2000, 0x206F},
	{0x2100, 0x214F},
	{0x2190, 0x21FF},
	{0x2200, 0x22FF},
	{0x2300, 0x23FF},
	{0x2500, 0x257F},
	{0x2580, 0x259F},
	{0x25A0, 0x25FF},
}

func riskyRune(r rune) bool {
	for _, rr := range riskyRanges {
		if r >= rr[0] && r <= rr[1] {
			return true
		}
	}
	return false
}

func (e *Engine) checkImages(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	count := 0
	for i := range blocks {
		text := strings.ToLower(blocks[i].PlainText())
		for _, kw := range imageKeywords {
			if strings.Contains(text, kw) {
				count++
				matches = e.match(matches, i, &blocks[i])
				break
			}
		}
	}
	if count == 0 {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnDetectedImages,
		Severity: e.severity(manuscript.SeverityHigh),
		Message:  fmt.Sprintf("%d block(s) contain image placeholders", count),
		Count:    count,
		Matches:  matches,
	}
}

func (e *Engine) checkTables(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	count := 0
	for i := range blocks {
		text := blocks[i].PlainText()
		if strings.Count(text, "\t") >= 3 || strings.Count(text, "|") >= 3 {
			count++
			matches = e.match(matches, i, &blocks[i])
		}
	}
	if count == 0 {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnDetectedTables,
		Severity: e.severity(manuscript.SeverityHigh),
		Message:  fmt.Sprintf("%d block(s) contain table-like formatting", count),
		Count:    count,
		Matches:  matches,
	}
}

func (e *Engine) checkFootnotes(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	count := 0
	for i := range blocks {
		if footnotePattern.MatchString(blocks[i].PlainText()) {
			count++
			matches = e.match(matches, i, &blocks[i])
		}
	}
	if count == 0 {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnDetectedFootnotes,
		Severity: e.severity(manuscript.SeverityMedium),
		Message:  fmt.Sprintf("%d block(s) contain footnote markers", count),
		Count:    count,
		Matches:  matches,
	}
}

func (e *Engine) checkChapterConfidence(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	chapters := 0
	for i := range blocks {
		if blocks[i].Type == manuscript.ChapterHeading {
			chapters++
		}
	}
	total := len(blocks)

	if chapters == 0 && total > minBlocksForChapterCheck {
		zero := 0
		return &manuscript.Warning{
			Code:             manuscript.WarnLowChapterConfidence,
			Severity:         e.severity(manuscript.SeverityMedium),
			Message:          fmt.Sprintf("no chapter headings detected across %d blocks", total),
			DetectedChapters: &zero,
			TotalBlocks:      total,
		}
	}
	if chapters > 0 && float64(total)/float64(chapters) > maxBlocksPerChapter {
		return &manuscript.Warning{
			Code:             manuscript.WarnLowChapterConfidence,
			Severity:         e.severity(manuscript.SeverityLow),
			Message:          fmt.Sprintf("only %d chapter heading(s) across %d blocks", chapters, total),
			DetectedChapters: &chapters,
			TotalBlocks:      total,
		}
	}
	return nil
}

func (e *Engine) checkPoemLike(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	paragraphs, short := 0, 0
	for i := range blocks {
		if blocks[i].Type != manuscript.Paragraph {
			continue
		}
		paragraphs++
		if utf8.RuneCountInString(blocks[i].PlainText()) < shortTextLimit {
			short++
			matches = e.match(matches, i, &blocks[i])
		}
	}
	if paragraphs == 0 {
		return nil
	}
	frac := float64(short) / float64(paragraphs)
	if frac <= poemFraction {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnPoemLikeBlocks,
		Severity: e.severity(manuscript.SeverityMedium),
		Message: fmt.Sprintf("%.0f%% of paragraph blocks are shorter than %d characters",
			frac*100, shortTextLimit),
		Count:   short,
		Matches: matches,
	}
}

func (e *Engine) checkUnicodeRisk(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	chars := 0
	for i := range blocks {
		found := 0
		for _, r := range blocks[i].PlainText() {
			if riskyRune(r) {
				found++
			}
		}
		if found > 0 {
			chars += found
			matches = e.match(matches, i, &blocks[i])
		}
	}
	if chars == 0 {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnUnicodeRisk,
		Severity: e.severity(manuscript.SeverityLow),
		Message:  fmt.Sprintf("%d character(s) fall in Unicode ranges that may not survive conversion", chars),
		Count:    chars,
		Matches:  matches,
	}
}

func (e *Engine) checkCentering(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	if len(blocks) == 0 {
		return nil
	}
	var matches []manuscript.WarningMatch
	count := 0
	for i := range blocks {
		text := blocks[i].PlainText()
		if text != strings.TrimSpace(text) {
			count++
			matches = e.match(matches, i, &blocks[i])
		}
	}
	frac := float64(count) / float64(len(blocks))
	if frac <= centeringFraction {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnHeavyCentering,
		Severity: e.severity(manuscript.SeverityLow),
		Message: fmt.Sprintf("%.0f%% of blocks carry residual leading or trailing whitespace",
			frac*100),
		Count:   count,
		Matches: matches,
	}
}

func (e *Engine) checkOCR(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	count := 0
	for i := range blocks {
		text := blocks[i].PlainText()
		for _, p := range ocrPatterns {
			if p.MatchString(text) {
				count++
				matches = e.match(matches, i, &blocks[i])
				break
			}
		}
	}
	if count <= maxOCRBlocks {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnOCRQualityIssues,
		Severity: e.severity(manuscript.SeverityMedium),
		Message:  fmt.Sprintf("%d block(s) show OCR artifact patterns", count),
		Count:    count,
		Matches:  matches,
	}
}

func (e *Engine) checkWhitespace(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var matches []manuscript.WarningMatch
	count := 0
	for i := range blocks {
		if strings.Contains(blocks[i].PlainText(), "  ") {
			count++
			matches = e.match(matches, i, &blocks[i])
		}
	}
	if count == 0 {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnExcessiveWhitespace,
		Severity: e.severity(manuscript.SeverityLow),
		Message:  fmt.Sprintf("%d block(s) contain runs of multiple spaces", count),
		Count:    count,
		Matches:  matches,
	}
}

func (e *Engine) checkFormatting(blocks []manuscript.Block, _ manuscript.SourceMeta) *manuscript.Warning {
	var headings []string
	for i := range blocks {
		if blocks[i].Type == manuscript.ChapterHeading {
			headings = append(headings, blocks[i].PlainText())
		}
	}
	if len(headings) < minHeadingsForFormatCheck {
		return nil
	}
	prefixes := map[string]bool{}
	for _, h := range headings {
		prefixes[excerpt(h, headingPrefixLen)] = true
	}
	if len(prefixes) <= maxHeadingFormats {
		return nil
	}
	return &manuscript.Warning{
		Code:     manuscript.WarnFormattingInconsistency,
		Severity: e.severity(manuscript.SeverityLow),
		Message:  fmt.Sprintf("chapter headings use %d different formats", len(prefixes)),
		Count:    len(prefixes),
	}
}
