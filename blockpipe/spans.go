package blockpipe

import (
	"strings"
	"unicode"

	"github.com/prontopub/inkwell/manuscript"
)

// runMarks builds a mark set in the fixed emission order.
func runMarks(italic, bold, smallcaps, code bool) []manuscript.Mark {
	marks := []manuscript.Mark{}
	if italic {
		marks = append(marks, manuscript.MarkItalic)
	}
	if bold {
		marks = append(marks, manuscript.MarkBold)
	}
	if smallcaps {
		marks = append(marks, manuscript.MarkSmallCaps)
	}
	if code {
		marks = append(marks, manuscript.MarkCode)
	}
	return marks
}

// monoFont reports whether a font family name denotes a monospace face,
// by the substring convention.
func monoFont(name string) bool {
	return strings.Contains(strings.ToLower(name), "mono")
}

// normalizeSpans merges adjacent runs carrying identical mark sets, trims
// the sequence so the concatenation equals the paragraph's trimmed text,
// and decides the block representation: the logical text plus, when any
// mark survived, the span sequence (nil otherwise).
func normalizeSpans(raw []manuscript.Span) (string, []manuscript.Span) {
	spans := trimSpans(mergeSpans(raw))
	if len(spans) == 0 {
		return "", nil
	}
	if len(spans) == 1 && len(spans[0].Marks) == 0 {
		return spans[0].Text, nil
	}
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String(), spans
}

func mergeSpans(raw []manuscript.Span) []manuscript.Span {
	merged := make([]manuscript.Span, 0, len(raw))
	for _, s := range raw {
		if s.Text == "" {
			continue
		}
		if n := len(merged); n > 0 && sameMarks(merged[n-1].Marks, s.Marks) {
			merged[n-1].Text += s.Text
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// trimSpans strips leading and trailing whitespace across the sequence,
// dropping spans emptied in the process.
func trimSpans(spans []manuscript.Span) []manuscript.Span {
	for len(spans) > 0 {
		spans[0].Text = strings.TrimLeftFunc(spans[0].Text, unicode.IsSpace)
		if spans[0].Text != "" {
			break
		}
		spans = spans[1:]
	}
	for len(spans) > 0 {
		last := len(spans) - 1
		spans[last].Text = strings.TrimRightFunc(spans[last].Text, unicode.IsSpace)
		if spans[last].Text != "" {
			break
		}
		spans = spans[:last]
	}
	return spans
}

// sameMarks compares mark sets. Marks are always emitted in a fixed order,
// so slice equality is set equality.
func sameMarks(a, b []manuscript.Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
