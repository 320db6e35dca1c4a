package namegen

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"
)

func TestGenerate_ZeroLength(t *testing.T) {
	if got := Generate(rand.New(rand.NewSource(1)), 0); got != "" {
		t.Errorf("expected empty name, got %q", got)
	}
	if got := Generate(rand.New(rand.NewSource(1)), -3); got != "" {
		t.Errorf("expected empty name, got %q", got)
	}
}

func TestGenerate_RespectsLength(t *testing.T) {
	src := rand.New(rand.NewSource(42))
	for length := 1; length <= 15; length++ {
		for i := 0; i < 50; i++ {
			name := Generate(src, length)
			if name == "" {
				t.Fatalf("length %d: got empty name", length)
			}
			if len(name) > length {
				t.Fatalf("length %d: name %q is too long", length, name)
			}
		}
	}
}

func TestGenerate_CapitalizedWords(t *testing.T) {
	src := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		name := Generate(src, 15)
		for _, word := range strings.Split(name, "-") {
			if word == "" {
				t.Fatalf("name %q has an empty word", name)
			}
			if !unicode.IsUpper(rune(word[0])) {
				t.Fatalf("name %q has a lowercase word %q", name, word)
			}
		}
		if strings.HasSuffix(name, "-") || strings.HasPrefix(name, "-") {
			t.Fatalf("name %q has a dangling hyphen", name)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := rand.New(rand.NewSource(99))
	b := rand.New(rand.NewSource(99))
	for i := 0; i < 20; i++ {
		if x, y := Generate(a, 10), Generate(b, 10); x != y {
			t.Fatalf("draw %d: got %q and %q from same seed", i, x, y)
		}
	}
}

func TestGenerateWith_NoHyphens(t *testing.T) {
	src := rand.New(rand.NewSource(3))
	opts := Options{DigraphRate: 0.3, DiphthongRate: 0.2, HyphenRate: 0}
	for i := 0; i < 100; i++ {
		if name := GenerateWith(src, 15, opts); strings.Contains(name, "-") {
			t.Fatalf("expected no hyphen, got %q", name)
		}
	}
}
