package blockpipe

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/prontopub/inkwell/manuscript"
)

// maxXMLDepth bounds element nesting when streaming document XML, guarding
// against crafted deeply nested archives.
const maxXMLDepth = 256

// extractDocx parses a .docx file by reading word/document.xml from the
// ZIP archive. Paragraphs stream out as units; style runs inside each
// paragraph carry inline marks.
func extractDocx(path string) (extraction, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return extraction{}, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return extraction{}, fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return extraction{}, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var ex extraction
	var (
		depth          int
		inParagraph    bool
		paragraphStyle string
		runs           []manuscript.Span

		inRun, inText                 bool
		italic, bold, smallcaps, code bool
		runText                       strings.Builder
	)

	flushRun := func() {
		if runText.Len() > 0 {
			runs = append(runs, manuscript.Span{
				Text:  runText.String(),
				Marks: runMarks(italic, bold, smallcaps, code),
			})
		}
		runText.Reset()
		italic, bold, smallcaps, code = false, false, false, false
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return extraction{}, fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p":
				inParagraph = true
				paragraphStyle = ""
				runs = nil
			case "pStyle":
				if inParagraph {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							paragraphStyle = attr.Value
						}
					}
				}
			case "r":
				if inParagraph {
					inRun = true
				}
			case "i":
				if inRun {
					italic = onOff(t)
				}
			case "b":
				if inRun {
					bold = onOff(t)
				}
			case "smallCaps":
				if inRun {
					smallcaps = onOff(t)
				}
			case "rFonts":
				if inRun {
					for _, attr := range t.Attr {
						if attr.Name.Local == "ascii" && monoFont(attr.Value) {
							code = true
						}
					}
				}
			case "t":
				if inRun {
					inText = true
				}
			case "tab":
				if inRun {
					runText.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					runText.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText {
				runText.Write(t)
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if inRun {
					flushRun()
					inRun = false
				}
			case "p":
				if !inParagraph {
					continue
				}
				inParagraph = false
				ex.totalUnits++
				text, spans := normalizeSpans(runs)
				runs = nil
				if text == "" {
					continue
				}
				ex.units = append(ex.units, unit{
					text:  text,
					spans: spans,
					style: paragraphStyle,
					loc:   manuscript.SourceLoc{Paragraph: ex.totalUnits},
				})
			}
		}
	}

	return ex, nil
}

// onOff reads a WordprocessingML toggle property: presence means on
// unless the val attribute says otherwise.
func onOff(t xml.StartElement) bool {
	for _, attr := range t.Attr {
		if attr.Name.Local == "val" {
			switch strings.ToLower(attr.Value) {
			case "false", "0", "none", "off":
				return false
			}
		}
	}
	return true
}
