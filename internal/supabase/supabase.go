// Package supabase reads subscriber rows from the external user/interest
// store over its REST interface. The store is read-only to the pipeline;
// signup and updates happen elsewhere.
package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/httpretry"
)

// Client queries the store.
type Client struct {
	cfg  config.Supabase
	http *httpretry.Client
}

// New creates a store client. Missing credentials are fatal to any stage
// that needs subscriber data.
func New(cfg config.Supabase, httpClient *httpretry.Client) (*Client, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("supabase url and key are required (set COURTSIDE_SUPABASE_URL / COURTSIDE_SUPABASE_KEY)")
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{cfg: cfg, http: httpClient}, nil
}

// userRow tolerates numeric ids; the store schema predates string keys.
type userRow struct {
	ID             json.RawMessage `json:"id"`
	Email          string          `json:"email"`
	Frequency      string          `json:"frequency"`
	TakeStyle      string          `json:"take_style"`
	UnsubscribeURL string          `json:"unsubscribe_url"`
}

type interestRow struct {
	UserID json.RawMessage `json:"user_id"`
	Team   string          `json:"team"`
}

// Users fetches all subscriber rows.
func (c *Client) Users() ([]core.User, error) {
	var rows []userRow
	if err := c.fetch(c.cfg.UsersTable, "select=id,email,frequency,take_style,unsubscribe_url", &rows); err != nil {
		return nil, err
	}
	users := make([]core.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, core.User{
			ID:             rawToString(row.ID),
			Email:          row.Email,
			Frequency:      row.Frequency,
			TakeStyle:      row.TakeStyle,
			UnsubscribeURL: row.UnsubscribeURL,
		})
	}
	return users, nil
}

// Interests fetches all (user, team) rows.
func (c *Client) Interests() ([]core.Interest, error) {
	var rows []interestRow
	if err := c.fetch(c.cfg.InterestsTable, "select=user_id,team", &rows); err != nil {
		return nil, err
	}
	interests := make([]core.Interest, 0, len(rows))
	for _, row := range rows {
		interests = append(interests, core.Interest{
			UserID: rawToString(row.UserID),
			Team:   row.Team,
		})
	}
	return interests, nil
}

func (c *Client) fetch(table, query string, out any) error {
	resp, err := c.http.Do(httpretry.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/rest/v1/%s?%s", c.cfg.URL, table, query),
		Headers: map[string]string{
			"apikey":        c.cfg.Key,
			"Authorization": "Bearer " + c.cfg.Key,
		},
	}, httpretry.Policy{Timeout: c.cfg.Timeout})
	if err != nil {
		return fmt.Errorf("supabase request for %s failed: %w", table, err)
	}
	body := httpretry.ReadBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supabase request for %s failed: status %d", table, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse supabase rows for %s: %w", table, err)
	}
	return nil
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
