// Package scoreboard discovers the run date's games from the external
// scoreboard endpoint. Discovery is best effort: a total request failure
// still yields an envelope with an empty game list and a structured error.
package scoreboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/envelope"
	"courtside/internal/httpretry"
	"courtside/internal/logger"
	"courtside/internal/teams"
)

// scoreboardResponse mirrors the slice of the scoreboard payload discovery
// consumes; everything else is ignored.
type scoreboardResponse struct {
	Events []event `json:"events"`
}

type event struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Name         string        `json:"name"`
	Competitions []competition `json:"competitions"`
}

type competition struct {
	Competitors []competitor `json:"competitors"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Team     struct {
		DisplayName      string `json:"displayName"`
		ShortDisplayName string `json:"shortDisplayName"`
		Abbreviation     string `json:"abbreviation"`
	} `json:"team"`
}

// Stage discovers games for one run.
type Stage struct {
	cfg    config.Scoreboard
	client *httpretry.Client
}

// New creates the discovery stage.
func New(cfg config.Scoreboard, client *httpretry.Client) *Stage {
	return &Stage{cfg: cfg, client: client}
}

// ResolveDate normalizes a scoreboard date override (YYYY-MM-DD or YYYYMMDD)
// to the endpoint's YYYYMMDD form, falling back to the run date.
func ResolveDate(override, runDate string) (string, error) {
	value := override
	if value == "" {
		value = runDate
	}
	cleaned := strings.ReplaceAll(value, "-", "")
	if len(cleaned) != 8 {
		return "", fmt.Errorf("invalid scoreboard date %q: use YYYY-MM-DD or YYYYMMDD", value)
	}
	if _, err := time.Parse("20060102", cleaned); err != nil {
		return "", fmt.Errorf("invalid scoreboard date %q: %w", value, err)
	}
	return cleaned, nil
}

// Discover lists the day's games. Only a malformed date override is fatal;
// network failures are recorded in the envelope's errors array.
func (s *Stage) Discover(run core.Run) (*envelope.Games, error) {
	scoreboardDate, err := ResolveDate(s.cfg.Date, run.Date)
	if err != nil {
		return nil, err
	}

	out := &envelope.Games{
		Meta:           envelope.NewMeta(run, "espn_scoreboard"),
		ScoreboardDate: scoreboardDate,
		Games:          []core.Game{},
		Errors:         []core.StageError{},
	}

	logger.Info("fetching scoreboard", "run_id", run.ID, "scoreboard_date", scoreboardDate)

	resp, err := s.client.Do(httpretry.Request{
		Method: http.MethodGet,
		URL:    s.cfg.URL,
		Headers: map[string]string{
			"User-Agent":      s.cfg.UserAgent,
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
		},
		Params: map[string]string{"dates": scoreboardDate},
	}, httpretry.Policy{
		Timeout:       s.cfg.Timeout,
		MaxRetries:    3,
		RetryStatuses: httpretry.Statuses(429, 500, 502, 503, 504),
		Strategy:      httpretry.StrategyExponential,
		BaseDelay:     2 * time.Second,
		MaxDelay:      10 * time.Second,
		JitterMax:     time.Second,
	})
	if err != nil {
		logger.Error("scoreboard request failed", err)
		out.Errors = append(out.Errors, core.StageError{Kind: "request_error", Detail: err.Error()})
		return out, nil
	}
	if resp.StatusCode != http.StatusOK {
		logger.Error("scoreboard returned non-200", nil, "status", resp.StatusCode)
		out.Errors = append(out.Errors, core.StageError{
			Kind:   "http_error",
			Detail: fmt.Sprintf("status %d", resp.StatusCode),
		})
		return out, nil
	}

	var payload scoreboardResponse
	if err := json.Unmarshal(httpretry.ReadBody(resp), &payload); err != nil {
		out.Errors = append(out.Errors, core.StageError{Kind: "request_error", Detail: err.Error()})
		return out, nil
	}
	logger.Info("scoreboard events received", "count", len(payload.Events))

	for _, ev := range payload.Events {
		if ev.ID == "" {
			out.Errors = append(out.Errors, core.StageError{Kind: "missing_game_id", Detail: ev.Name})
			continue
		}

		var home, away core.Team
		if len(ev.Competitions) > 0 {
			for _, comp := range ev.Competitions[0].Competitors {
				team := core.Team{
					Name:         comp.Team.DisplayName,
					ShortName:    comp.Team.ShortDisplayName,
					Abbreviation: comp.Team.Abbreviation,
					HomeAway:     comp.HomeAway,
				}
				switch comp.HomeAway {
				case "home":
					home = team
				case "away":
					away = team
				}
			}
		}

		names := make([]string, 0, 2)
		for _, name := range []string{home.Name, away.Name} {
			if name != "" {
				names = append(names, name)
			}
		}

		out.Games = append(out.Games, core.Game{
			GameID:      ev.ID,
			GameDate:    ev.Date,
			HomeTeam:    home,
			AwayTeam:    away,
			Teams:       names,
			TeamAliases: teams.GameAliases(home, away),
			RecapURL:    s.cfg.RecapBaseURL + ev.ID,
		})
	}

	return out, nil
}
