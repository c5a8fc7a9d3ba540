// Package canonhash computes stable content hashes over JSON-like values.
//
// Hashing is defined on a canonical encoding: object keys sorted at every
// nesting level, no insignificant whitespace, UTF-8 with non-ASCII
// characters kept literal. Two structurally equal values hash identically
// regardless of field order, so a stored hash can be re-verified against a
// re-fetched artifact long after the producing process is gone.
package canonhash

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Supported hash algorithms. SHA-256 is the default for new artifacts;
// SHA-1 and MD5 exist for interoperability with older references only.
const (
	SHA256 = "sha256"
	SHA1   = "sha1"
	MD5    = "md5"
	BLAKE3 = "blake3"
)

// DefaultAlgorithm is used when the caller has no preference.
const DefaultAlgorithm = SHA256

var (
	// ErrUnsupportedAlgorithm is returned for an algorithm name outside
	// the supported set. Callers should treat it as fatal configuration.
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

	// ErrMalformedHash is returned for a hash reference that lacks the
	// "algorithm:digest" form.
	ErrMalformedHash = errors.New("malformed hash reference")
)

func newHasher(algo string) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
}

// Compute canonicalizes v and hashes the resulting bytes, returning a
// prefixed reference of the form "algorithm:hexdigest".
func Compute(v any, algo string) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	data, err := Canonical(v)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return algo + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes v's hash with the algorithm named in expected's prefix
// and compares by exact string equality. A malformed reference or an
// unsupported algorithm is an error; a clean mismatch is (false, nil).
func Verify(v any, expected string) (bool, error) {
	algo, err := ExtractAlgorithm(expected)
	if err != nil {
		return false, err
	}
	actual, err := Compute(v, algo)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// ExtractAlgorithm returns the algorithm prefix of an "algorithm:digest"
// reference.
func ExtractAlgorithm(ref string) (string, error) {
	algo, _, ok := strings.Cut(ref, ":")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMalformedHash, ref)
	}
	return algo, nil
}

// HashFile hashes a file's raw bytes, returning the bare hex digest
// without an algorithm prefix. Used for source-file provenance, where the
// bytes themselves are canonical.
func HashFile(path, algo string) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Canonical returns the canonical JSON encoding of v. The value is first
// round-tripped through encoding/json, so anything marshalable is
// accepted; numbers keep their original literal form.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		writeCanonicalString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonicalize: unsupported value type %T", v)
	}
	return nil
}

// writeCanonicalString escapes only what JSON requires. Non-ASCII runes
// stay literal so the encoding is byte-stable across producers.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
