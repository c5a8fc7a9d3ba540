package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble = %q in %q, want 7", id[14], id)
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	// Sequential v7 IDs sort in generation order, which is what the
	// registry relies on for its queued-service ordering.
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not greater than previous %q", id, prev)
		}
		prev = id
	}
}

func TestUUIDv4_Version(t *testing.T) {
	gen := UUIDv4()
	id := gen()
	if len(id) != 36 {
		t.Fatalf("UUIDv4: expected length 36, got %d", len(id))
	}
	if id[14] != '4' {
		t.Fatalf("UUIDv4: version nibble = %q in %q, want 4", id[14], id)
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("svc_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "svc_") {
		t.Fatalf("Prefixed: expected prefix 'svc_', got %q", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("Prefixed: expected length 40, got %d", len(id))
	}
}

func TestDefault_IsUUIDv7(t *testing.T) {
	id := New()
	if len(id) != 36 {
		t.Fatalf("New (UUIDv7 default): expected length 36, got %d for %q", len(id), id)
	}
	if id[14] != '7' {
		t.Fatalf("New: version nibble = %q, want 7", id[14])
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("New: default should produce valid UUIDv7: %v", err)
	}
}

func TestNewV4_Version(t *testing.T) {
	id := NewV4()
	if id[14] != '4' {
		t.Fatalf("NewV4: version nibble = %q in %q, want 4", id[14], id)
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("NewV4: should produce a valid UUID: %v", err)
	}
}

func TestParse_Valid(t *testing.T) {
	gen := UUIDv7()
	original := gen()
	parsed, err := Parse(original)
	if err != nil {
		t.Fatalf("Parse valid UUID: %v", err)
	}
	if parsed != original {
		t.Fatalf("Parse: got %q, want %q", parsed, original)
	}
}

func TestParse_Canonical(t *testing.T) {
	parsed, err := Parse("0190F1E4-2D3A-7AB1-8000-AABBCCDDEEFF")
	if err != nil {
		t.Fatalf("Parse uppercase UUID: %v", err)
	}
	if parsed != "0190f1e4-2d3a-7ab1-8000-aabbccddeeff" {
		t.Fatalf("Parse: canonical form = %q", parsed)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("not-a-uuid")
	if err == nil {
		t.Fatal("Parse: expected error for invalid UUID")
	}
}
