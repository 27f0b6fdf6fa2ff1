// Package recap scrapes recap article text for each discovered game. The
// source site rate-limits aggressively, so every fetch is followed by a fixed
// delay and failures are classified rather than retried past the policy.
package recap

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"courtside/internal/alerts"
	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/envelope"
	"courtside/internal/httpretry"
	"courtside/internal/logger"
)

// Stage fetches and parses recaps.
type Stage struct {
	cfg    config.Recap
	client *httpretry.Client
	sleep  func(time.Duration)
}

// Option customizes a Stage.
type Option func(*Stage)

// WithSleep replaces the inter-request delay sleep, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Stage) { s.sleep = sleep }
}

// New creates the recap extraction stage.
func New(cfg config.Recap, client *httpretry.Client, opts ...Option) *Stage {
	s := &Stage{cfg: cfg, client: client, sleep: time.Sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractParagraphs pulls the recap body paragraphs out of an article page.
// The markup drifts, so it tries a primary container class, a partial class
// match, then a generic article tag before falling back to the whole
// document. Returns non-empty paragraph texts in document order.
func ExtractParagraphs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse recap HTML: %w", err)
	}

	var container *goquery.Selection
	for _, selector := range []string{"div.Story__Body", `div[class*="Story__Body"]`, "article"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			container = sel
			break
		}
	}
	if container == nil {
		container = doc.Selection
	}

	var paragraphs []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return paragraphs, nil
}

// Extract scrapes every game's recap. The envelope is always produced;
// per-game failures land in its errors array. A failure rate at or above the
// configured threshold raises an advisory warning only.
func (s *Stage) Extract(run core.Run, games *envelope.Games) *envelope.Recaps {
	out := &envelope.Recaps{
		Meta:   envelope.NewMeta(run, "espn_recaps"),
		Games:  []core.RecapGame{},
		Errors: []core.StageError{},
	}

	logger.Info("fetching recaps", "run_id", run.ID, "games", len(games.Games))

	for _, game := range games.Games {
		if game.GameID == "" || game.RecapURL == "" {
			out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "missing_game_id_or_url"})
			continue
		}

		s.fetchOne(game, out)

		if s.cfg.RequestDelay > 0 {
			s.sleep(s.cfg.RequestDelay)
		}
	}

	tracker := alerts.NewFailureTracker("recap_fetch", s.cfg.FailureThreshold)
	tracker.RecordBatch(len(games.Games), len(out.Errors))
	tracker.WarnIfExceeded()

	return out
}

func (s *Stage) fetchOne(game core.Game, out *envelope.Recaps) {
	resp, err := s.client.Do(httpretry.Request{
		Method: http.MethodGet,
		URL:    game.RecapURL,
		Headers: map[string]string{
			"User-Agent":      s.cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "en-US,en;q=0.9",
		},
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
		logger.Error("recap request failed", err, "game_id", game.GameID)
		out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "request_failed", Detail: err.Error()})
		return
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		logger.Warn("recap fetch blocked by source", "game_id", game.GameID)
		out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "blocked"})
		return
	case resp.StatusCode == http.StatusNotFound:
		logger.Warn("recap not published", "game_id", game.GameID)
		out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "not_found"})
		return
	case resp.StatusCode != http.StatusOK:
		logger.Error("recap returned non-200", nil, "game_id", game.GameID, "status", resp.StatusCode)
		out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: fmt.Sprintf("http_%d", resp.StatusCode)})
		return
	}

	paragraphs, err := ExtractParagraphs(string(httpretry.ReadBody(resp)))
	if err != nil {
		out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "parse_error", Detail: err.Error()})
		return
	}
	if len(paragraphs) == 0 {
		logger.Warn("no recap text found", "game_id", game.GameID)
		out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "no_recap_text"})
		return
	}

	out.Games = append(out.Games, core.RecapGame{
		GameID:      game.GameID,
		GameDate:    game.GameDate,
		Teams:       game.Teams,
		TeamAliases: game.TeamAliases,
		RecapText:   paragraphs,
		SourceURL:   game.RecapURL,
	})
}
