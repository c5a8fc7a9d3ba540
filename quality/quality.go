// Package quality scans a classified block sequence for conditions that
// complicate downstream processing: embedded media placeholders, table-like
// text, suspected OCR damage, poem-like layout, risky Unicode and weak
// chapter structure.
//
// Every detector is a pure function over (blocks, source meta). Detectors
// share no state and never mutate their input; each emits at most one
// aggregate warning, and a detector that finds nothing emits nothing. The
// output order is a fixed presentation order, not a dependency order.
package quality

import (
	"unicode/utf8"

	"github.com/prontopub/inkwell/manuscript"
)

// Engine runs the detector battery. The zero value runs the canonical
// detectors with canonical severities; construct with New to adjust.
type Engine struct {
	extended bool
	legacy   bool
	matches  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtendedChecks enables the extended detectors (excessive whitespace,
// chapter heading format inconsistency), which are off by default.
func WithExtendedChecks() Option {
	return func(e *Engine) { e.extended = true }
}

// WithLegacySeverities emits severities in the older error/warning/info
// vocabulary instead of high/medium/low.
func WithLegacySeverities() Option {
	return func(e *Engine) { e.legacy = true }
}

// WithMatches attaches per-block match diagnostics to each warning, so
// consumers needing block-level granularity can reconstruct it without
// re-scanning.
func WithMatches() Option {
	return func(e *Engine) { e.matches = true }
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type detector func([]manuscript.Block, manuscript.SourceMeta) *manuscript.Warning

// Analyze runs every enabled detector over the block sequence and returns
// the aggregated warnings in fixed presentation order. The input is never
// mutated; an empty result is an empty slice, not nil.
func (e *Engine) Analyze(blocks []manuscript.Block, meta manuscript.SourceMeta) []manuscript.Warning {
	checks := []detector{
		e.checkImages,
		e.checkTables,
		e.checkFootnotes,
		e.checkChapterConfidence,
		e.checkPoemLike,
		e.checkUnicodeRisk,
	}
	if e.extended {
		checks = append(checks, e.checkWhitespace)
	}
	checks = append(checks, e.checkCentering, e.checkOCR)
	if e.extended {
		checks = append(checks, e.checkFormatting)
	}

	warnings := []manuscript.Warning{}
	for _, check := range checks {
		if w := check(blocks, meta); w != nil {
			warnings = append(warnings, *w)
		}
	}
	return warnings
}

func (e *Engine) severity(s manuscript.Severity) manuscript.Severity {
	if e.legacy {
		return manuscript.Severity(s.Legacy())
	}
	return s
}

func (e *Engine) match(matches []manuscript.WarningMatch, index int, b *manuscript.Block) []manuscript.WarningMatch {
	if !e.matches {
		return nil
	}
	return append(matches, manuscript.WarningMatch{
		BlockIndex: index,
		BlockID:    b.ID,
		Context:    excerpt(b.PlainText(), 100),
	})
}

func excerpt(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
