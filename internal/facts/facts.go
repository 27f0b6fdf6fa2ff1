// Package facts reduces recap text to a bounded set of factual sentences,
// preferring sentences that mention one of the game's team aliases.
package facts

import (
	"regexp"
	"strings"

	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/envelope"
	"courtside/internal/logger"
)

// sentenceBoundary splits after terminal punctuation followed by whitespace.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// shortAliasLen is the longest alias that still needs a word-boundary match;
// abbreviations like "LAL" would otherwise hit inside unrelated words.
const shortAliasLen = 3

// SplitSentences segments paragraph text on punctuation boundaries.
func SplitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	boundaries := sentenceBoundary.FindAllStringSubmatch(text, -1)

	sentences := make([]string, 0, len(parts))
	for i, part := range parts {
		sentence := strings.TrimSpace(part)
		if sentence == "" {
			continue
		}
		if i < len(boundaries) {
			sentence += boundaries[i][1]
		}
		sentences = append(sentences, sentence)
	}
	return sentences
}

// MentionsTeam reports whether a sentence references any alias. Aliases of
// three characters or fewer must match on a word boundary; longer aliases
// match by containment.
func MentionsTeam(sentence string, aliases []string) bool {
	lower := strings.ToLower(sentence)
	for _, alias := range aliases {
		alias = strings.ToLower(alias)
		if alias == "" {
			continue
		}
		if len(alias) <= shortAliasLen {
			pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(alias) + `\b`)
			if pattern.MatchString(lower) {
				return true
			}
		} else if strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}

// Select picks up to maxSentences fact sentences from recap paragraphs.
// Sentences mentioning a team alias are preferred; when none do, all
// sentences are eligible so non-empty recaps never yield nothing. Results
// are deduplicated case-insensitively, truncated to maxLength, and returned
// in original order.
func Select(paragraphs, teamAliases []string, maxSentences, maxLength int) []string {
	var sentences []string
	for _, paragraph := range paragraphs {
		sentences = append(sentences, SplitSentences(paragraph)...)
	}
	if len(sentences) == 0 {
		return nil
	}

	matched := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		if MentionsTeam(sentence, teamAliases) {
			matched = append(matched, sentence)
		}
	}
	if len(matched) == 0 {
		matched = sentences
	}

	seen := make(map[string]bool, len(matched))
	deduped := make([]string, 0, maxSentences)
	for _, sentence := range matched {
		normalized := strings.ToLower(strings.TrimSpace(sentence))
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		if runes := []rune(sentence); len(runes) > maxLength {
			sentence = string(runes[:maxLength])
		}
		deduped = append(deduped, sentence)
		if len(deduped) >= maxSentences {
			break
		}
	}
	return deduped
}

// Stage runs fact extraction over a recaps envelope.
type Stage struct {
	cfg config.Facts
}

// New creates the fact extraction stage.
func New(cfg config.Facts) *Stage {
	return &Stage{cfg: cfg}
}

// Extract builds the facts envelope. Games without usable recap text are
// recorded as errors and excluded from downstream generation; nothing at
// this stage touches the network.
func (s *Stage) Extract(run core.Run, recaps *envelope.Recaps) *envelope.Facts {
	out := &envelope.Facts{
		Meta:   envelope.NewMeta(run, "recap_fact_extractor"),
		Games:  []core.FactGame{},
		Errors: []core.StageError{},
	}

	logger.Info("extracting facts", "run_id", run.ID, "recaps", len(recaps.Games))

	for _, game := range recaps.Games {
		if len(game.RecapText) == 0 {
			out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "missing_recap"})
			continue
		}

		selected := Select(game.RecapText, game.TeamAliases, s.cfg.MaxSentences, s.cfg.MaxLength)
		if len(selected) == 0 {
			logger.Warn("no facts extracted", "game_id", game.GameID)
			out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "no_facts"})
			continue
		}

		out.Games = append(out.Games, core.FactGame{
			GameID:      game.GameID,
			GameDate:    game.GameDate,
			Teams:       game.Teams,
			TeamAliases: game.TeamAliases,
			Facts:       selected,
			SourceURL:   game.SourceURL,
		})
	}

	return out
}
