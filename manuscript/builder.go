package manuscript

import (
	"strings"
	"time"

	"github.com/prontopub/inkwell/idgen"
)

// Confidence assigned to chapter boundaries, and its value when the
// detectors flagged chapter detection as unreliable.
const (
	defaultChapterConfidence = 0.9
	lowChapterConfidence     = 0.5
)

// Assembler builds manuscript artifacts from extraction and analysis
// output. The zero value is not usable; construct with NewAssembler.
type Assembler struct {
	workerName    string
	workerVersion string
	newRunID      idgen.Generator
	now           func() time.Time
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithRunID overrides run ID generation, for deterministic output.
func WithRunID(gen idgen.Generator) AssemblerOption {
	return func(a *Assembler) { a.newRunID = gen }
}

// WithClock overrides the time source, for deterministic output.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler returns an Assembler stamping artifacts with the given
// worker identity.
func NewAssembler(workerName, workerVersion string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		workerName:    workerName,
		workerVersion: workerVersion,
		newRunID:      idgen.NewV4,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildInput carries everything Build needs to assemble one artifact.
type BuildInput struct {
	Blocks   []Block
	Warnings []Warning
	Source   SourceMeta

	ServiceID string
	ProjectID string

	FileSizeBytes  int64
	FileHashSHA256 string
	IngestedAt     time.Time

	// Parents is the provenance chain of artifacts this one derives from.
	// Nil means a root artifact built directly from an uploaded file.
	Parents []LineageEntry
}

// Build assembles a complete artifact envelope. Nil block, warning and
// parent slices become empty so the JSON shape is identical whether the
// analysis found anything or not.
func (a *Assembler) Build(in BuildInput) *Artifact {
	blocks := in.Blocks
	if blocks == nil {
		blocks = []Block{}
	}
	warnings := in.Warnings
	if warnings == nil {
		warnings = []Warning{}
	}
	parents := in.Parents
	if parents == nil {
		parents = []LineageEntry{}
	}

	wordCount := 0
	chapterCount := 0
	for i := range blocks {
		wordCount += len(strings.Fields(blocks[i].PlainText()))
		if blocks[i].Type == ChapterHeading {
			chapterCount++
		}
	}

	confidence := defaultChapterConfidence
	for _, w := range warnings {
		if w.Code == WarnLowChapterConfidence {
			confidence = lowChapterConfidence
			break
		}
	}

	src := Source{
		OriginalFilename:      in.Source.OriginalFilename,
		OriginalFormat:        in.Source.OriginalFormat,
		OriginalFileSizeBytes: in.FileSizeBytes,
		SourceHashSHA256:      in.FileHashSHA256,
	}
	if !in.IngestedAt.IsZero() {
		src.IngestedAt = in.IngestedAt.UTC().Format(time.RFC3339)
	}

	return &Artifact{
		SchemaVersion:   SchemaVersion,
		ArtifactType:    ArtifactType,
		ArtifactVersion: ArtifactVersion,
		Source:          src,
		Processing: Processing{
			WorkerName:    a.workerName,
			WorkerVersion: a.workerVersion,
			RunID:         a.newRunID(),
			ProjectID:     in.ProjectID,
			ServiceID:     in.ServiceID,
			ProcessedAt:   a.now().UTC().Format(time.RFC3339),
		},
		Content: Content{
			Language:         DefaultLanguage,
			ReadingDirection: DefaultReadingDirection,
			Blocks:           blocks,
			Stats: Stats{
				WordCount:    wordCount,
				BlockCount:   len(blocks),
				ChapterCount: chapterCount,
			},
		},
		Analysis: Analysis{
			Warnings:            warnings,
			UnsupportedElements: []string{},
			Quality: Quality{
				ChapterBoundaryConfidence: confidence,
				OCRUsed:                   false,
			},
		},
		ParentArtifacts: parents,
	}
}
