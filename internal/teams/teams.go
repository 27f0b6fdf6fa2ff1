// Package teams matches team names across data sources. The scoreboard,
// recap text and user-entered interests all spell teams differently
// ("Los Angeles Lakers", "Lakers", "LAL"), so every comparison goes through
// a normalized alias set built at discovery time.
package teams

import (
	"regexp"
	"strings"

	"courtside/internal/core"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// MinSubstringLen guards containment matching: normalized candidates shorter
// than this only match on exact equality, so "la" never matches every team
// whose name contains those two letters.
const MinSubstringLen = 4

// Normalize strips everything but lowercase alphanumerics. It is idempotent.
func Normalize(name string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "")
}

// BuildAliases collects the present name variants of one team, deduplicated
// by normalized form. The first literal spelling wins.
func BuildAliases(team core.Team) []string {
	return DedupeAliases([]string{team.Name, team.ShortName, team.Abbreviation})
}

// GameAliases is the deduplicated union of both teams' aliases.
func GameAliases(home, away core.Team) []string {
	return DedupeAliases(append(BuildAliases(home), BuildAliases(away)...))
}

// DedupeAliases drops empty values and normalized duplicates, preserving
// order and original spelling.
func DedupeAliases(aliases []string) []string {
	seen := make(map[string]bool, len(aliases))
	cleaned := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		normalized := Normalize(alias)
		if normalized == "" || seen[normalized] {
			continue
		}
		cleaned = append(cleaned, alias)
		seen[normalized] = true
	}
	return cleaned
}

// Matches reports whether a user-entered name refers to any of the aliases:
// exact normalized equality, or substring containment when the candidate is
// long enough to be unambiguous.
func Matches(candidate string, aliases []string) bool {
	candidateNorm := Normalize(candidate)
	if candidateNorm == "" {
		return false
	}
	for _, alias := range aliases {
		aliasNorm := Normalize(alias)
		if aliasNorm == "" {
			continue
		}
		if candidateNorm == aliasNorm {
			return true
		}
		if len(candidateNorm) >= MinSubstringLen && strings.Contains(aliasNorm, candidateNorm) {
			return true
		}
	}
	return false
}
