package blockpipe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/prontopub/inkwell/manuscript"
)

// region is the coarse document zone biasing fallback classification.
type region int

const (
	regionFront region = iota
	regionBody
	regionBack
)

// Scene break markers: a line of separator asterisks, a lone hash or
// tilde, or a run of three-plus hyphens.
var sceneBreakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\*\s*\*\s*\*\s*$`),
	regexp.MustCompile(`^\s*#\s*$`),
	regexp.MustCompile(`^\s*~\s*$`),
	regexp.MustCompile(`^\s*-{3,}\s*$`),
}

var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter\s+\d+`),
	regexp.MustCompile(`(?i)^ch\.\s+\d+`),
	regexp.MustCompile(`^\d+\.`),
	regexp.MustCompile(`(?i)^part\s+\d+`),
}

var digitsRe = regexp.MustCompile(`\d+`)

// matterKeywords maps case-insensitive substring keywords to specific
// block types. Checked in order, first match wins; "table of contents"
// precedes the bare "contents" so the specific keyword is recorded.
var matterKeywords = []struct {
	keyword string
	typ     manuscript.BlockType
	region  region
}{
	{"dedication", manuscript.FrontMatterDedication, regionFront},
	{"copyright", manuscript.FrontMatterCopyright, regionFront},
	{"title", manuscript.FrontMatterTitle, regionFront},
	{"table of contents", manuscript.TOCMarker, regionFront},
	{"contents", manuscript.TOCMarker, regionFront},
	{"about the author", manuscript.BackMatterAboutAuthor, regionBack},
	{"also by", manuscript.BackMatterAlsoBy, regionBack},
}

// classifierState is the accumulator threaded through one document pass.
type classifierState struct {
	region  region
	chapter int
}

// classify assigns every unit a block type in one left-to-right pass. No
// backtracking, no lookahead; every unit yields exactly one block.
func classify(units []unit) []manuscript.Block {
	blocks := make([]manuscript.Block, 0, len(units))
	st := classifierState{region: regionFront}
	for _, u := range units {
		typ, meta := st.classify(u)
		b := manuscript.Block{
			ID:   manuscript.BlockID(len(blocks)),
			Type: typ,
			Meta: meta,
		}
		if u.spans != nil {
			b.Spans = u.spans
		} else {
			b.Text = u.text
		}
		if u.loc != (manuscript.SourceLoc{}) {
			loc := u.loc
			b.Loc = &loc
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func (st *classifierState) classify(u unit) (manuscript.BlockType, *manuscript.Meta) {
	// 1. Scene break; region unchanged.
	for _, p := range sceneBreakPatterns {
		if p.MatchString(u.text) {
			return manuscript.SceneBreak, &manuscript.Meta{Pattern: u.text}
		}
	}

	// 2. Chapter heading: enters the body and advances the counter. The
	// chapter number is the first embedded integer if the heading carries
	// one, else the running counter.
	for _, p := range chapterPatterns {
		if p.MatchString(u.text) {
			st.chapter++
			st.region = regionBody
			num := st.chapter
			if n, ok := firstInt(u.text); ok {
				num = n
			}
			return manuscript.ChapterHeading, &manuscript.Meta{ChapterNumber: num}
		}
	}

	// 3. Matter keywords: specific type, and the region follows.
	lower := strings.ToLower(u.text)
	for _, kw := range matterKeywords {
		if strings.Contains(lower, kw.keyword) {
			st.region = kw.region
			return kw.typ, &manuscript.Meta{DetectedKeyword: kw.keyword}
		}
	}

	styleLower := strings.ToLower(u.style)

	// 4. Region fallback, with a style hint containing "heading"
	// upgrading to the region's heading variant.
	switch st.region {
	case regionFront:
		if strings.Contains(styleLower, "heading") {
			return manuscript.FrontMatterHeading, &manuscript.Meta{StyleName: u.style}
		}
		return manuscript.FrontMatterDedication, nil
	case regionBack:
		if strings.Contains(styleLower, "heading") {
			return manuscript.BackMatterHeading, &manuscript.Meta{StyleName: u.style}
		}
		return manuscript.BackMatterAboutAuthor, nil
	}

	// 5. Title page for short title-styled body units, else paragraph.
	if strings.Contains(styleLower, "title") && len(strings.Fields(u.text)) <= 10 {
		return manuscript.TitlePage, &manuscript.Meta{StyleName: u.style}
	}
	return manuscript.Paragraph, nil
}

// firstInt returns the first embedded integer in s.
func firstInt(s string) (int, bool) {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
