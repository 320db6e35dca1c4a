package game

import (
	"fmt"
	"sort"
	"strings"
)

// plural returns the English plural of an item name for n units.
func plural(name string, n int) string {
	switch {
	case n == 1:
		return name
	case strings.HasSuffix(name, "us"), strings.HasSuffix(name, "is"):
		return name[:len(name)-2] + "i"
	case strings.HasSuffix(name, "ff"):
		return name[:len(name)-2] + "ves"
	case strings.HasSuffix(name, "s"):
		return name + "es"
	}
	return name + "s"
}

// singulars lists the names a plural item word may have come from, most
// likely first.
func singulars(word string) []string {
	var out []string
	if strings.HasSuffix(word, "es") {
		out = append(out, word[:len(word)-2])
	}
	if strings.HasSuffix(word, "ves") {
		out = append(out, word[:len(word)-3]+"ff")
	}
	if strings.HasSuffix(word, "s") {
		out = append(out, word[:len(word)-1])
	}
	if strings.HasSuffix(word, "i") {
		out = append(out, word[:len(word)-1]+"us", word[:len(word)-1]+"is")
	}
	return out
}

// joinWords joins words as an English list: "a", "a and b", "a, b and c".
func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	}
	return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
}

// countList renders item counts sorted by name, e.g. "2 sticks and 1 rock".
// Empty counts render as "nothing".
func countList(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "nothing"
	}
	sort.Strings(names)
	words := make([]string, len(names))
	for i, name := range names {
		words[i] = fmt.Sprintf("%d %s", counts[name], plural(name, counts[name]))
	}
	return joinWords(words)
}

// article prefixes a noun with "a" or "an".
func article(noun string) string {
	if noun == "" {
		return noun
	}
	if strings.ContainsRune("aeiouAEIOU", rune(noun[0])) {
		return "an " + noun
	}
	return "a " + noun
}

var greekItems = []string{
	"Icarus' wings",
	"ambrosia flasks",
	"Zeus staves",
	"Achilles boots",
	"Pythagoras' Number Arché Orbs",
}
