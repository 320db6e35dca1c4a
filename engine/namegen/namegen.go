// Package namegen synthesizes pronounceable names from random syllables.
package namegen

import "strings"

const (
	vowels         = "aeiou"
	consonants     = "bcdfghjklmnpqrstvwxyz"
	preConsonants  = "tspdkcmn"
	postConsonants = "rhpzk"
)

var diphthongs = []string{"ae", "ai", "ou", "ao", "oe", "oi", "oy", "aeo", "eio"}

// Source is the randomness a generator draws from. *engine.RNG satisfies it.
type Source interface {
	Intn(n int) int
	Float64() float64
}

// Options tunes syllable selection. Rates are probabilities in [0, 1].
type Options struct {
	DigraphRate   float64 // consonant slot becomes a pre+post consonant pair
	DiphthongRate float64 // vowel slot becomes a diphthong
	HyphenRate    float64 // a word break is inserted (segments longer than 2 only)
}

// DefaultOptions mirrors the classic tuning.
var DefaultOptions = Options{DigraphRate: 0.3, DiphthongRate: 0.2, HyphenRate: 0.125}

// Generate returns a capitalized name of at most length characters using
// the default options. length <= 0 yields "".
func Generate(src Source, length int) string {
	return GenerateWith(src, length, DefaultOptions)
}

// GenerateWith is Generate with explicit options.
func GenerateWith(src Source, length int, opts Options) string {
	if length <= 0 {
		return ""
	}

	var b strings.Builder
	consonantNext := src.Intn(2) == 0
	segment := 0

	for remaining := length; remaining > 0; {
		var syl string
		switch {
		case segment > 2 && src.Float64() <= opts.HyphenRate:
			syl = "-"
		case consonantNext:
			if src.Float64() <= opts.DigraphRate {
				syl = pick(src, preConsonants) + pick(src, postConsonants)
			} else {
				syl = pick(src, consonants)
			}
		default:
			if src.Float64() <= opts.DiphthongRate {
				syl = diphthongs[src.Intn(len(diphthongs))]
			} else {
				syl = pick(src, vowels)
			}
		}

		b.WriteString(syl)
		remaining -= len(syl)

		if syl == "-" {
			segment = 0
			continue
		}
		segment += len(syl)
		consonantNext = strings.ContainsRune(vowels, rune(syl[len(syl)-1]))
	}

	return finish(b.String(), length)
}

func pick(src Source, set string) string {
	i := src.Intn(len(set))
	return set[i : i+1]
}

// finish capitalizes each hyphen-separated word, drops empty words and
// truncates to length.
func finish(raw string, length int) string {
	var words []string
	for _, w := range strings.Split(raw, "-") {
		if w == "" {
			continue
		}
		words = append(words, strings.ToUpper(w[:1])+w[1:])
	}
	name := strings.Join(words, "-")
	if len(name) > length {
		name = name[:length]
	}
	return strings.TrimSuffix(name, "-")
}
