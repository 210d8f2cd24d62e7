package codegen

import (
	"strings"
	"testing"
)

func TestGenerateLength(t *testing.T) {
	code, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(code) != Length {
		t.Errorf("expected length %d, got %d (%q)", Length, len(code), code)
	}
}

func TestGenerateAlphabet(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		for _, r := range code {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestGenerateExcludesAmbiguousCharacters(t *testing.T) {
	for _, r := range "0O1I" {
		if strings.ContainsRune(Alphabet, r) {
			t.Errorf("alphabet must not contain ambiguous character %q", r)
		}
	}

	for i := 0; i < 500; i++ {
		code, _ := Generate()
		if strings.ContainsAny(code, "0O1I") {
			t.Fatalf("code %q contains an ambiguous character", code)
		}
	}
}

func TestGenerateVariety(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		seen[code] = true
	}
	// With a 32^8 space, 1000 draws should essentially never collide.
	if len(seen) < 999 {
		t.Errorf("expected near-unique codes, got %d distinct out of 1000", len(seen))
	}
}
