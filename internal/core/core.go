package core

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the envelope schema every stage reads and writes.
// Bump only with a migration story for persisted run artifacts.
const SchemaVersion = "v1"

// Team holds one team's naming variants as reported by the scoreboard.
type Team struct {
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	Abbreviation string `json:"abbreviation"`
	HomeAway     string `json:"home_away"`
}

// Game is one discovered game for a run date.
type Game struct {
	GameID      string   `json:"game_id"`
	GameDate    string   `json:"game_date"`
	HomeTeam    Team     `json:"home_team"`
	AwayTeam    Team     `json:"away_team"`
	Teams       []string `json:"teams"`
	TeamAliases []string `json:"team_aliases"`
	RecapURL    string   `json:"recap_url"`
}

// RecapGame is a game enriched with scraped recap paragraphs.
// RecapText is never empty; games whose recap could not be fetched are
// recorded as errors instead.
type RecapGame struct {
	GameID      string   `json:"game_id"`
	GameDate    string   `json:"game_date"`
	Teams       []string `json:"teams"`
	TeamAliases []string `json:"team_aliases"`
	RecapText   []string `json:"recap_text"`
	SourceURL   string   `json:"source_url"`
}

// FactGame is a game reduced to a bounded set of factual sentences.
type FactGame struct {
	GameID      string   `json:"game_id"`
	GameDate    string   `json:"game_date"`
	Teams       []string `json:"teams"`
	TeamAliases []string `json:"team_aliases"`
	Facts       []string `json:"facts"`
	SourceURL   string   `json:"source_url"`
}

// Take is one generated commentary item, keyed by (GameID, Style).
// TakeText is never empty and never the insufficient-facts sentinel.
type Take struct {
	GameID      string   `json:"game_id"`
	GameDate    string   `json:"game_date"`
	Teams       []string `json:"teams"`
	TeamAliases []string `json:"team_aliases"`
	Style       string   `json:"style"`
	TakeText    string   `json:"take_text"`
}

// User is a subscriber row from the external user store (read-only).
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Frequency      string `json:"frequency"`
	TakeStyle      string `json:"take_style"`
	UnsubscribeURL string `json:"unsubscribe_url,omitempty"`
}

// Interest is one (user, team) row from the external interest store.
type Interest struct {
	UserID string `json:"user_id"`
	Team   string `json:"team"`
}

// Delivery is the finalized per-subscriber bundle handed to the sender.
type Delivery struct {
	UserID         string   `json:"user_id"`
	Email          string   `json:"email"`
	Frequency      string   `json:"frequency"`
	TakeStyle      string   `json:"take_style"`
	Teams          []string `json:"teams"`
	Subject        string   `json:"subject"`
	Takes          []Take   `json:"takes"`
	UnsubscribeURL string   `json:"unsubscribe_url,omitempty"`
}

// StageError is one per-item failure recorded in a stage envelope.
// Kind is machine-checkable (request_error, http_404, no_facts, ...);
// Detail is free-form context for operators.
type StageError struct {
	GameID string `json:"game_id,omitempty"`
	Style  string `json:"style,omitempty"`
	Kind   string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Run identifies one scheduler tick across all stages.
type Run struct {
	ID   string
	Date string
}

// NewRun builds run identity. An empty id gets a fresh UUID and an empty
// date defaults to today (UTC), so replays can pin both via configuration.
func NewRun(id, date string) Run {
	if id == "" {
		id = uuid.NewString()
	}
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	return Run{ID: id, Date: date}
}
