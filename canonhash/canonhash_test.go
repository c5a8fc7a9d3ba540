package canonhash

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCanonicalSortsKeys(t *testing.T) {
	got, err := Canonical(map[string]any{
		"b": 1,
		"a": []any{"x", true, nil},
		"c": map[string]any{"z": 2, "y": "w"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":["x",true,null],"b":1,"c":{"y":"w","z":2}}`
	if string(got) != want {
		t.Errorf("Canonical = %s, want %s", got, want)
	}
}

func TestCanonicalNumbers(t *testing.T) {
	got, err := Canonical(struct {
		I int     `json:"i"`
		F float64 `json:"f"`
	}{I: 42, F: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"f":0.5,"i":42}` {
		t.Errorf("Canonical = %s", got)
	}
}

func TestCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{"a\nb", `"a\nb"`},
		{"tab\there", `"tab\there"`},
		{`quote " back \ slash`, `"quote \" back \\ slash"`},
		{"café — ©", "\"café — ©\""}, // non-ASCII stays literal
		{"ctrl\x01char", `"ctrl\u0001char"`},
	}
	for _, tt := range tests {
		got, err := Canonical(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tt.want {
			t.Errorf("Canonical(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestComputeOrderInvariance(t *testing.T) {
	// Two structurally equal documents built in different orders.
	a := map[string]any{
		"title":  "The Voyage",
		"blocks": []any{map[string]any{"id": "blk_000001", "type": "paragraph"}},
		"stats":  map[string]any{"word_count": 10, "block_count": 1},
	}
	b := map[string]any{
		"stats":  map[string]any{"block_count": 1, "word_count": 10},
		"blocks": []any{map[string]any{"type": "paragraph", "id": "blk_000001"}},
		"title":  "The Voyage",
	}

	ha, err := Compute(a, SHA256)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Compute(b, SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Errorf("hashes differ: %s vs %s", ha, hb)
	}
	if !strings.HasPrefix(ha, "sha256:") {
		t.Errorf("missing prefix: %s", ha)
	}
	if len(ha) != len("sha256:")+64 {
		t.Errorf("unexpected digest length: %s", ha)
	}
}

func TestComputeDetectsChange(t *testing.T) {
	a := map[string]any{"k": "v1"}
	b := map[string]any{"k": "v2"}
	ha, _ := Compute(a, SHA256)
	hb, _ := Compute(b, SHA256)
	if ha == hb {
		t.Error("distinct values hashed identically")
	}
}

func TestComputeAlgorithms(t *testing.T) {
	doc := map[string]any{"k": "v"}
	tests := []struct {
		algo   string
		hexLen int
	}{
		{SHA256, 64},
		{SHA1, 40},
		{MD5, 32},
		{BLAKE3, 64},
	}
	for _, tt := range tests {
		got, err := Compute(doc, tt.algo)
		if err != nil {
			t.Fatalf("Compute(%s): %v", tt.algo, err)
		}
		if !strings.HasPrefix(got, tt.algo+":") {
			t.Errorf("Compute(%s) = %s", tt.algo, got)
		}
		if len(got) != len(tt.algo)+1+tt.hexLen {
			t.Errorf("Compute(%s) digest length = %d", tt.algo, len(got)-len(tt.algo)-1)
		}
	}

	if _, err := Compute(doc, "crc32"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Compute(crc32) err = %v", err)
	}
}

func TestVerify(t *testing.T) {
	doc := map[string]any{"chapter": 1, "text": "Call me Ishmael."}

	for _, algo := range []string{SHA256, SHA1, MD5, BLAKE3} {
		ref, err := Compute(doc, algo)
		if err != nil {
			t.Fatal(err)
		}
		ok, err := Verify(doc, ref)
		if err != nil {
			t.Fatalf("Verify(%s): %v", algo, err)
		}
		if !ok {
			t.Errorf("Verify(%s) = false for matching doc", algo)
		}
	}

	ref, _ := Compute(doc, SHA256)
	mutated := map[string]any{"chapter": 2, "text": "Call me Ishmael."}
	ok, err := Verify(mutated, ref)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Verify = true for mutated doc")
	}

	if _, err := Verify(doc, "deadbeef"); !errors.Is(err, ErrMalformedHash) {
		t.Errorf("Verify(no colon) err = %v", err)
	}
	if _, err := Verify(doc, "crc32:deadbeef"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Verify(crc32) err = %v", err)
	}
}

func TestExtractAlgorithm(t *testing.T) {
	algo, err := ExtractAlgorithm("sha256:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if algo != "sha256" {
		t.Errorf("ExtractAlgorithm = %q", algo)
	}
	if _, err := ExtractAlgorithm("abc123"); !errors.Is(err, ErrMalformedHash) {
		t.Errorf("err = %v", err)
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path, SHA256)
	if err != nil {
		t.Fatal(err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
	if strings.Contains(got, ":") {
		t.Error("file hash carries an algorithm prefix")
	}

	if _, err := HashFile(filepath.Join(t.TempDir(), "missing"), SHA256); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := HashFile(path, "crc32"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("err = %v", err)
	}
}
