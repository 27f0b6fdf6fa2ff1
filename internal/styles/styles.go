// Package styles enumerates the generated take tones and normalizes the
// free-form spellings users store ("Hot Takes", "hot-takes", "analysis").
package styles

import "strings"

// Style keys, in the stable order generation iterates them.
const (
	Factual    = "factual"
	HotTakes   = "hot_takes"
	Analytical = "analytical"
	Nuanced    = "nuanced"
	Mix        = "mix"
)

// Keys lists all known style keys in generation order.
var Keys = []string{Factual, HotTakes, Analytical, Nuanced, Mix}

var labels = map[string]string{
	Factual:    "Factual",
	HotTakes:   "Hot Takes",
	Analytical: "Analytical",
	Nuanced:    "Nuanced",
	Mix:        "Mix",
}

// Known reports whether key is one of the enumerated styles.
func Known(key string) bool {
	_, ok := labels[key]
	return ok
}

// Normalize maps a user-entered style to its canonical key. Empty input
// defaults to the mix style; unrecognized input is snake_cased through
// unchanged so callers can decide whether to drop it.
func Normalize(value string) string {
	if value == "" {
		return Mix
	}
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.Join(strings.Fields(normalized), " ")
	switch normalized {
	case "hot take", "hot takes":
		return HotTakes
	case "fact", "factual":
		return Factual
	case "analysis", "analytical":
		return Analytical
	case "nuance", "nuanced":
		return Nuanced
	case "mix", "mixed":
		return Mix
	}
	return strings.ReplaceAll(normalized, " ", "_")
}

// Label returns the display label for a style key.
func Label(key string) string {
	if label, ok := labels[key]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
