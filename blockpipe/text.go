package blockpipe

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/prontopub/inkwell/manuscript"
)

// extractText reads a plain text file line by line. Each non-blank line
// becomes one unit; blank lines count toward the line total only.
func extractText(path string) (extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction{}, err
	}
	lines := splitLines(string(data))
	ex := extraction{totalUnits: len(lines)}
	for i, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		ex.units = append(ex.units, unit{
			text: text,
			loc:  manuscript.SourceLoc{Line: i + 1},
		})
	}
	return ex, nil
}

// mdHeadingRe matches ATX headings that carry text after the markers.
var mdHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// extractMarkdown reads a Markdown file line by line. ATX heading markers
// are stripped and surfaced as a heading style hint; a bare "#" line is
// left untouched so scene break detection still sees it.
func extractMarkdown(path string) (extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction{}, err
	}
	lines := splitLines(string(data))
	ex := extraction{totalUnits: len(lines)}
	for i, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		style := ""
		if m := mdHeadingRe.FindStringSubmatch(text); m != nil {
			heading := strings.TrimSpace(strings.TrimRight(m[2], "#"))
			if heading != "" {
				text = heading
				style = "Heading" + strconv.Itoa(len(m[1]))
			}
		}
		ex.units = append(ex.units, unit{
			text:  text,
			style: style,
			loc:   manuscript.SourceLoc{Line: i + 1},
		})
	}
	return ex, nil
}

// splitLines normalizes line endings and splits, without counting a
// trailing newline as an extra blank line.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
