// Package lineage builds and audits artifact provenance chains.
//
// A chain lists the artifacts that produced a given artifact, oldest
// first, ending with the artifact itself. Integrity checking recomputes
// each fetched parent's canonical hash and compares it with the hash the
// child declared, so silent modification of an upstream artifact is
// detectable long after the fact.
package lineage

import (
	"fmt"
	"strings"

	"github.com/prontopub/inkwell/canonhash"
	"github.com/prontopub/inkwell/manuscript"
)

// Entry describes art as a future child artifact would declare it. key and
// hashRef locate the persisted, hashed form; pass "" for either while it
// is still unknown and the field stays null.
func Entry(art *manuscript.Artifact, key, hashRef string) manuscript.LineageEntry {
	e := manuscript.LineageEntry{
		ArtifactType:    art.ArtifactType,
		ArtifactVersion: art.ArtifactVersion,
		ProducedBy:      art.Processing.WorkerName,
		ProducedAt:      art.Processing.ProcessedAt,
	}
	if key != "" {
		e.ArtifactKey = &key
	}
	if hashRef != "" {
		e.ArtifactHash = &hashRef
	}
	return e
}

// BuildChain returns the artifact's provenance chain oldest-first. With
// includeSelf, a synthesized entry for the artifact itself is appended;
// its key and hash are null because the artifact has not been persisted
// or hashed at chain-build time.
func BuildChain(art *manuscript.Artifact, includeSelf bool) []manuscript.LineageEntry {
	chain := make([]manuscript.LineageEntry, 0, len(art.ParentArtifacts)+1)
	chain = append(chain, art.ParentArtifacts...)
	if includeSelf {
		chain = append(chain, Entry(art, "", ""))
	}
	return chain
}

// TraceToSource returns the oldest entry in the artifact's chain: the
// first declared parent, or nil for a root artifact built directly from
// an uploaded file.
func TraceToSource(art *manuscript.Artifact) *manuscript.LineageEntry {
	if len(art.ParentArtifacts) == 0 {
		return nil
	}
	e := art.ParentArtifacts[0]
	return &e
}

// FormatChain renders a chain as a numbered human-readable listing, one
// artifact per step with its storage key on the following line.
func FormatChain(chain []manuscript.LineageEntry) string {
	var sb strings.Builder
	for i, e := range chain {
		if i > 0 {
			sb.WriteByte('\n')
		}
		key := "not yet uploaded"
		if e.ArtifactKey != nil {
			key = *e.ArtifactKey
		}
		fmt.Fprintf(&sb, "%d. %s v%s (%s @ %s)\n   -> %s",
			i+1, e.ArtifactType, e.ArtifactVersion, e.ProducedBy, e.ProducedAt, key)
	}
	return sb.String()
}

// Mismatch records one parent whose fetched content no longer matches the
// hash the child artifact declared for it.
type Mismatch struct {
	ParentIndex  int    `json:"parent_index"`
	ParentKey    string `json:"parent_key"`
	DeclaredHash string `json:"declared_hash"`
	ActualHash   string `json:"actual_hash,omitempty"`
	Message      string `json:"message"`
}

// Report is the outcome of an integrity check. Valid is nil for the
// indeterminate case: no parent content was supplied, so nothing could be
// checked. That is a distinct outcome from both pass and fail.
type Report struct {
	Valid               *bool      `json:"valid"`
	Message             string     `json:"message,omitempty"`
	Error               string     `json:"error,omitempty"`
	DeclaredParentCount int        `json:"declared_parent_count,omitempty"`
	ParentCount         int        `json:"parent_count,omitempty"`
	Mismatches          []Mismatch `json:"errors,omitempty"`
}

// ValidateIntegrity checks fetched parent artifacts against the hashes art
// declares for them. fetched must be index-aligned with the declared
// parent list; a nil fetched slice yields the indeterminate Report.
// Parents declared without a hash cannot mismatch and are skipped.
// Problems are always reported as structured results, never as errors.
func ValidateIntegrity(art *manuscript.Artifact, fetched []any) Report {
	declared := art.ParentArtifacts
	if fetched == nil {
		return Report{
			Message:             "cannot validate without fetching parent artifacts from the blob store",
			DeclaredParentCount: len(declared),
		}
	}
	if len(declared) != len(fetched) {
		invalid := false
		return Report{
			Valid: &invalid,
			Error: fmt.Sprintf("parent count mismatch: declared %d, provided %d",
				len(declared), len(fetched)),
		}
	}

	mismatches := []Mismatch{}
	for i, parent := range declared {
		if parent.ArtifactHash == nil {
			continue
		}
		declaredHash := *parent.ArtifactHash
		key := ""
		if parent.ArtifactKey != nil {
			key = *parent.ArtifactKey
		}
		ok, err := canonhash.Verify(fetched[i], declaredHash)
		if err != nil {
			mismatches = append(mismatches, Mismatch{
				ParentIndex:  i,
				ParentKey:    key,
				DeclaredHash: declaredHash,
				Message:      fmt.Sprintf("cannot recompute hash: %v", err),
			})
			continue
		}
		if !ok {
			algo, _ := canonhash.ExtractAlgorithm(declaredHash)
			actual, _ := canonhash.Compute(fetched[i], algo)
			mismatches = append(mismatches, Mismatch{
				ParentIndex:  i,
				ParentKey:    key,
				DeclaredHash: declaredHash,
				ActualHash:   actual,
				Message:      "hash mismatch: parent artifact has been modified or corrupted",
			})
		}
	}

	valid := len(mismatches) == 0
	return Report{
		Valid:       &valid,
		ParentCount: len(declared),
		Mismatches:  mismatches,
	}
}
