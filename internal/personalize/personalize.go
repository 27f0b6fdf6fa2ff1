// Package personalize matches generated takes against each subscriber's
// team and style preferences and assembles the per-user delivery bundles.
// One pass per user, no retries: each user ends delivered or skipped.
package personalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/envelope"
	"courtside/internal/logger"
	"courtside/internal/styles"
	"courtside/internal/teams"
)

// Stage builds deliveries for one run.
type Stage struct {
	cfg config.Personalize
}

// New creates the personalization stage.
func New(cfg config.Personalize) *Stage {
	return &Stage{cfg: cfg}
}

// ShouldSend applies the frequency gate. Daily users always pass; weekly
// users pass only when the run date's weekday name equals the configured
// send day.
func ShouldSend(frequency string, runDate time.Time, weeklySendDay string) bool {
	if strings.TrimSpace(strings.ToLower(frequency)) != "weekly" {
		return true
	}
	return strings.EqualFold(runDate.Weekday().String(), strings.TrimSpace(weeklySendDay))
}

// ParseRunDate parses the run date, falling back to today so a malformed
// override degrades to the daily behavior instead of gating everyone out.
func ParseRunDate(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed
}

// ParseGameDate parses a take's game date. Unparsable or missing dates
// return the zero time so they sort last under the recency ordering.
func ParseGameDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Personalize evaluates every subscriber against the run's takes and emits
// one delivery per qualifying user.
func (s *Stage) Personalize(run core.Run, takes *envelope.Takes, users []core.User, interests []core.Interest) *envelope.Deliveries {
	out := &envelope.Deliveries{
		Meta:       envelope.NewMeta(run, "personalization"),
		Deliveries: []core.Delivery{},
		Errors:     []core.StageError{},
	}

	userTeams := make(map[string][]string)
	for _, interest := range interests {
		if interest.UserID == "" || interest.Team == "" {
			continue
		}
		userTeams[interest.UserID] = append(userTeams[interest.UserID], interest.Team)
	}

	runDate := ParseRunDate(run.Date)
	logger.Info("personalizing takes",
		"run_id", run.ID,
		"takes", len(takes.Takes),
		"users", len(users),
	)

	for _, user := range users {
		if user.ID == "" || user.Email == "" {
			logger.Warn("skipping user with missing id or email")
			continue
		}

		frequency := strings.TrimSpace(strings.ToLower(user.Frequency))
		if frequency == "" {
			frequency = "daily"
		}
		if !ShouldSend(frequency, runDate, s.cfg.WeeklySendDay) {
			logger.Debug("skipping user on frequency gate", "user_id", user.ID, "frequency", frequency)
			continue
		}

		userTeamList := userTeams[user.ID]
		if len(userTeamList) == 0 {
			logger.Info("skipping user with no teams selected", "user_id", user.ID)
			continue
		}

		desiredStyle := styles.Normalize(user.TakeStyle)
		matching := matchTakes(takes.Takes, desiredStyle, userTeamList)
		if len(matching) == 0 {
			logger.Info("skipping user with no matching takes",
				"user_id", user.ID,
				"style", desiredStyle,
				"teams", strings.Join(userTeamList, ", "),
			)
			continue
		}

		sort.SliceStable(matching, func(i, j int) bool {
			return ParseGameDate(matching[i].GameDate).After(ParseGameDate(matching[j].GameDate))
		})
		if len(matching) > s.cfg.MaxTakesPerEmail {
			matching = matching[:s.cfg.MaxTakesPerEmail]
		}

		unsubscribe := user.UnsubscribeURL
		if unsubscribe == "" {
			unsubscribe = s.cfg.UnsubscribeURL
		}

		out.Deliveries = append(out.Deliveries, core.Delivery{
			UserID:         user.ID,
			Email:          user.Email,
			Frequency:      frequency,
			TakeStyle:      styles.Label(desiredStyle),
			Teams:          userTeamList,
			Subject:        fmt.Sprintf("%s NBA Takes - %s", titleCase(frequency), run.Date),
			Takes:          matching,
			UnsubscribeURL: unsubscribe,
		})
	}

	logger.Info("personalization finished", "deliveries", len(out.Deliveries))
	return out
}

func matchTakes(takes []core.Take, desiredStyle string, userTeamList []string) []core.Take {
	var matching []core.Take
	for _, take := range takes {
		if styles.Normalize(take.Style) != desiredStyle {
			continue
		}
		aliases := take.TeamAliases
		if len(aliases) == 0 {
			aliases = take.Teams
		}
		for _, team := range userTeamList {
			if teams.Matches(team, aliases) {
				matching = append(matching, take)
				break
			}
		}
	}
	return matching
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
