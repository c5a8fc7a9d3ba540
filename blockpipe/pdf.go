package blockpipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/prontopub/inkwell/manuscript"
)

// extractPDF extracts text from a PDF using pdfcpu for structure-aware
// parsing. Each non-blank text line becomes one unit tagged with its page
// number; image objects are counted into the extraction summary.
func extractPDF(path string) (extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return extraction{}, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return extraction{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	ex := extraction{
		pages:  ctx.PageCount,
		images: countImageObjects(ctx),
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageText := extractPageText(ctx, pageNr)
		if pageText == "" {
			continue
		}
		for _, line := range strings.Split(pageText, "\n") {
			line = cleanPDFLine(line)
			if line == "" {
				continue
			}
			ex.units = append(ex.units, unit{
				text: line,
				loc:  manuscript.SourceLoc{Page: pageNr},
			})
		}
	}

	if len(ex.units) == 0 {
		return extraction{}, fmt.Errorf("no text content found in PDF")
	}
	return ex, nil
}

// extractPageText extracts text from a single page via the pdfcpu content
// stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// countImageObjects counts distinct image XObjects referenced by pages.
func countImageObjects(ctx *model.Context) int {
	seen := map[int]bool{}
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			for _, nr := range pdfcpu.ImageObjNrs(ctx, pageNr) {
				seen[nr] = true
			}
		}
	}
	if len(seen) > 0 {
		return len(seen)
	}
	// Fallback: scan the xref table for image stream objects.
	n := 0
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				n++
			}
		}
	}
	return n
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// extractTextFromStream walks content stream operators. Show operators
// (Tj, TJ, ') contribute text; positioning operators (Td, TD, Tm, T*)
// terminate the current line so the page keeps its line structure.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// Operators are scanned outside string literals so text content
		// cannot fake a reposition.
		if hasLineAdvance(pdfStringRe.ReplaceAll(line, nil)) {
			sb.WriteByte('\n')
		}

		// Tj operator: (text) Tj. TJ arrays: [(a) -120 (b)] TJ
		if bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteString(text)
				}
			}
		}

		// ' operator (move to next line and show text): (text) '
		if bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		}
	}

	return sb.String()
}

// hasLineAdvance reports whether an operator sequence repositions the
// text cursor, ending the current visual line.
func hasLineAdvance(ops []byte) bool {
	for _, op := range bytes.Fields(ops) {
		switch string(op) {
		case "Td", "TD", "Tm", "T*":
			return true
		}
	}
	return false
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '(':
				sb.WriteByte('(')
			case ')':
				sb.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// cleanPDFLine strips non-printable characters, keeping tabs, and trims.
// Interior spacing survives so table-like layout stays detectable.
func cleanPDFLine(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '\t' || unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
