package blockpipe

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/prontopub/inkwell/manuscript"
)

// extractODT parses an .odt file by reading content.xml from the ZIP
// archive. Automatic text styles map span style names to inline marks;
// they precede the body in content.xml, so one streaming pass covers both.
func extractODT(path string) (extraction, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return extraction{}, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var contentFile *zip.File
	for _, f := range r.File {
		if f.Name == "content.xml" {
			contentFile = f
			break
		}
	}
	if contentFile == nil {
		return extraction{}, fmt.Errorf("content.xml not found in archive")
	}

	rc, err := contentFile.Open()
	if err != nil {
		return extraction{}, fmt.Errorf("open content.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var ex extraction

	styles := map[string][]manuscript.Mark{}
	var (
		depth       int
		curStyle    string
		inTextUnit  bool
		nestedUnits int
		unitStyle   string
		runs        []manuscript.Span
		markStack   [][]manuscript.Mark
	)

	curMarks := func() []manuscript.Mark {
		if len(markStack) == 0 || markStack[len(markStack)-1] == nil {
			return []manuscript.Mark{}
		}
		return markStack[len(markStack)-1]
	}

	appendText := func(s string) {
		if s == "" {
			return
		}
		runs = append(runs, manuscript.Span{Text: s, Marks: curMarks()})
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
			case "style": // <style:style style:name="T1">
				for _, attr := range t.Attr {
					if attr.Name.Local == "name" {
						curStyle = attr.Value
					}
				}
			case "text-properties":
				if curStyle != "" {
					styles[curStyle] = textPropMarks(t)
				}
			case "h", "p": // <text:h>, <text:p>
				if inTextUnit {
					nestedUnits++
					break
				}
				inTextUnit = true
				runs = nil
				markStack = markStack[:0]
				unitStyle = odtStyleName(t)
				if t.Name.Local == "h" && unitStyle == "" {
					unitStyle = "Heading"
				}
			case "span": // <text:span text:style-name="T1">
				if inTextUnit {
					markStack = append(markStack, styles[odtStyleName(t)])
				}
			case "tab":
				if inTextUnit {
					appendText("\t")
				}
			case "line-break":
				if inTextUnit {
					appendText("\n")
				}
			case "s": // <text:s text:c="N"/> encodes N spaces
				if inTextUnit {
					n := 1
					for _, attr := range t.Attr {
						if attr.Name.Local == "c" {
							if v, err := strconv.Atoi(attr.Value); err == nil && v > 0 {
								n = v
							}
						}
					}
					appendText(strings.Repeat(" ", n))
				}
			}

		case xml.CharData:
			if inTextUnit {
				appendText(string(t))
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "style":
				curStyle = ""
			case "span":
				if n := len(markStack); n > 0 {
					markStack = markStack[:n-1]
				}
			case "h", "p":
				if !inTextUnit {
					continue
				}
				if nestedUnits > 0 {
					nestedUnits--
					continue
				}
				inTextUnit = false
				ex.totalUnits++
				text, spans := normalizeSpans(runs)
				runs = nil
				if text == "" {
					continue
				}
				ex.units = append(ex.units, unit{
					text:  text,
					spans: spans,
					style: unitStyle,
					loc:   manuscript.SourceLoc{Paragraph: ex.totalUnits},
				})
			}
		}
	}

	return ex, nil
}

// odtStyleName reads the style-name attribute of a text element.
func odtStyleName(t xml.StartElement) string {
	for _, attr := range t.Attr {
		if attr.Name.Local == "style-name" {
			return attr.Value
		}
	}
	return ""
}

// textPropMarks maps OpenDocument text properties to inline marks.
func textPropMarks(t xml.StartElement) []manuscript.Mark {
	var italic, bold, smallcaps, code bool
	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "font-style":
			italic = attr.Value == "italic" || attr.Value == "oblique"
		case "font-weight":
			bold = attr.Value == "bold" || attr.Value == "bolder"
		case "font-variant":
			smallcaps = attr.Value == "small-caps"
		case "font-name":
			code = monoFont(attr.Value)
		}
	}
	return runMarks(italic, bold, smallcaps, code)
}
