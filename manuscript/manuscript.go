// Package manuscript defines the manuscript artifact model: typed content
// blocks with inline style spans, quality warnings, and the versioned
// envelope that downstream processors consume.
//
// Everything here is pure data plus pure aggregation. Blocks are produced by
// blockpipe, warnings by quality, and the envelope by Assembler; nothing in
// this package performs I/O or logging.
package manuscript

// Schema identifiers for the manuscript.v1 artifact.
const (
	SchemaVersion   = "1.0"
	ArtifactType    = "manuscript"
	ArtifactVersion = "1"
)

// Content defaults. Manuscripts are processed as English left-to-right text
// until language detection lands upstream.
const (
	DefaultLanguage         = "en"
	DefaultReadingDirection = "ltr"
)

// Source records the provenance of the original uploaded file.
type Source struct {
	OriginalFilename      string `json:"original_filename"`
	OriginalFormat        string `json:"original_format"`
	OriginalFileSizeBytes int64  `json:"original_file_size_bytes,omitempty"`
	SourceHashSHA256      string `json:"source_hash_sha256,omitempty"`
	IngestedAt            string `json:"ingested_at,omitempty"` // RFC 3339 UTC
}

// Processing identifies the worker run that produced an artifact.
type Processing struct {
	WorkerName    string `json:"worker_name"`
	WorkerVersion string `json:"worker_version"`
	RunID         string `json:"run_id"`
	ProjectID     string `json:"project_id,omitempty"`
	ServiceID     string `json:"service_id"`
	ProcessedAt   string `json:"processed_at"` // RFC 3339 UTC
}

// Stats are counts derived from the block sequence.
type Stats struct {
	WordCount    int `json:"word_count"`
	BlockCount   int `json:"block_count"`
	ChapterCount int `json:"chapter_count"`
}

// Content holds the structured manuscript body.
type Content struct {
	Language         string  `json:"language"`
	ReadingDirection string  `json:"reading_direction"`
	Blocks           []Block `json:"blocks"`
	Stats            Stats   `json:"stats"`
}

// Quality summarises how much the analysis trusts its own structure
// detection.
type Quality struct {
	ChapterBoundaryConfidence float64 `json:"chapter_boundary_confidence"`
	OCRUsed                   bool    `json:"ocr_used"`
}

// Analysis carries detector output and quality flags.
type Analysis struct {
	Warnings            []Warning `json:"warnings"`
	UnsupportedElements []string  `json:"unsupported_elements"`
	Quality             Quality   `json:"quality"`
}

// LineageEntry describes one artifact in a provenance chain. Entries are
// immutable facts about other artifacts. ArtifactKey and ArtifactHash are
// nil for an artifact that has not yet been persisted and hashed; they
// serialize as explicit JSON nulls, never disappear.
type LineageEntry struct {
	ArtifactType    string  `json:"artifact_type"`
	ArtifactVersion string  `json:"artifact_version"`
	ArtifactKey     *string `json:"artifact_key"`
	ArtifactHash    *string `json:"artifact_hash"`
	ProducedBy      string  `json:"produced_by"`
	ProducedAt      string  `json:"produced_at"`
}

// Artifact is the complete manuscript.v1 envelope. It is assembled exactly
// once per processing run and never mutated afterwards; hashing and lineage
// operate on the frozen value. A new version of a manuscript is a new
// Artifact whose ParentArtifacts points at the old one.
type Artifact struct {
	SchemaVersion   string         `json:"schema_version"`
	ArtifactType    string         `json:"artifact_type"`
	ArtifactVersion string         `json:"artifact_version"`
	Source          Source         `json:"source"`
	Processing      Processing     `json:"processing"`
	Content         Content        `json:"content"`
	Analysis        Analysis       `json:"analysis"`
	ParentArtifacts []LineageEntry `json:"parent_artifacts"`
}
