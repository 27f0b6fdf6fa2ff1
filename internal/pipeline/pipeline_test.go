package pipeline

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"courtside/internal/config"
	"courtside/internal/envelope"
)

const testScoreboard = `{
  "events": [
    {
      "id": "401",
      "date": "2026-01-19T19:00Z",
      "name": "Boston Celtics at Los Angeles Lakers",
      "competitions": [{
        "competitors": [
          {"homeAway": "home", "team": {"displayName": "Los Angeles Lakers", "shortDisplayName": "Lakers", "abbreviation": "LAL"}},
          {"homeAway": "away", "team": {"displayName": "Boston Celtics", "shortDisplayName": "Celtics", "abbreviation": "BOS"}}
        ]
      }]
    }
  ]
}`

const testRecap = `<html><body><div class="Story__Body">
<p>LeBron James scored 30 points for the Lakers.</p>
<p>The Lakers won 110-100.</p>
</div></body></html>`

// newTestServer stands in for every upstream the pipeline talks to:
// scoreboard, recap pages, the model endpoint, the subscriber store, and
// the mail API.
func newTestServer(t *testing.T) (*httptest.Server, *int, *int) {
	t.Helper()
	modelCalls := new(int)
	mailCalls := new(int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/scoreboard":
			w.Write([]byte(testScoreboard))
		case strings.HasPrefix(r.URL.Path, "/recap/"):
			w.Write([]byte(testRecap))
		case r.URL.Path == "/chat/completions":
			*modelCalls++
			w.Write([]byte(`{"choices":[{"message":{"content":"The Lakers rode a 30-point night to a 110-100 win."}}]}`))
		case r.URL.Path == "/rest/v1/users":
			w.Write([]byte(`[{"id": "u1", "email": "u1@example.com", "frequency": "daily", "take_style": "factual"}]`))
		case r.URL.Path == "/rest/v1/interests":
			w.Write([]byte(`[{"user_id": "u1", "team": "Lakers"}]`))
		case r.URL.Path == "/mail/send":
			*mailCalls++
			w.WriteHeader(http.StatusAccepted)
		default:
			t.Errorf("Unexpected request path: %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, modelCalls, mailCalls
}

func testConfig(baseURL, dataDir string) *config.Config {
	return &config.Config{
		Run: config.Run{ID: "run-1", Date: "2026-01-19"},
		Paths: config.Paths{
			Games:      filepath.Join(dataDir, "games.json"),
			Recaps:     filepath.Join(dataDir, "recaps.json"),
			Facts:      filepath.Join(dataDir, "facts.json"),
			Takes:      filepath.Join(dataDir, "takes.json"),
			Deliveries: filepath.Join(dataDir, "deliveries.json"),
		},
		Scoreboard: config.Scoreboard{
			URL:          baseURL + "/scoreboard",
			RecapBaseURL: baseURL + "/recap/",
			UserAgent:    "test-agent",
			Timeout:      5 * time.Second,
		},
		Recap: config.Recap{
			UserAgent:        "test-agent",
			Timeout:          5 * time.Second,
			FailureThreshold: 0.5,
		},
		Facts: config.Facts{MaxSentences: 3, MaxLength: 300},
		Takes: config.Takes{
			APIURL:           baseURL + "/chat/completions",
			APIKey:           "test-key",
			Model:            "test-model",
			Timeout:          5 * time.Second,
			MaxWords:         120,
			MaxTokens:        220,
			Temperature:      0.6,
			Audience:         "Casual NBA fans",
			Disclaimer:       "Based on published recap text.",
			FailureThreshold: 0.5,
		},
		Supabase: config.Supabase{
			URL:            baseURL,
			Key:            "test-key",
			UsersTable:     "users",
			InterestsTable: "interests",
			Timeout:        5 * time.Second,
		},
		Personalize: config.Personalize{
			MaxTakesPerEmail: 3,
			WeeklySendDay:    "monday",
			UnsubscribeURL:   "https://example.com/unsubscribe",
		},
		Email: config.Email{
			APIURL:    baseURL + "/mail/send",
			APIKey:    "test-key",
			FromEmail: "takes@example.com",
			Timeout:   5 * time.Second,
		},
	}
}

func TestRunAllEndToEnd(t *testing.T) {
	server, modelCalls, mailCalls := newTestServer(t)
	defer server.Close()

	cfg := testConfig(server.URL, t.TempDir())
	runner := New(cfg)

	if err := runner.RunAll(true); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	games, err := envelope.Load[envelope.Games](cfg.Paths.Games)
	if err != nil {
		t.Fatalf("Failed to load games envelope: %v", err)
	}
	if len(games.Games) != 1 || games.Games[0].GameID != "401" {
		t.Fatalf("Expected one discovered game, got %+v", games.Games)
	}
	if games.RunID != "run-1" || games.SchemaVersion != "v1" {
		t.Errorf("Envelope metadata wrong: %+v", games.Meta)
	}

	factGames, err := envelope.Load[envelope.Facts](cfg.Paths.Facts)
	if err != nil {
		t.Fatalf("Failed to load facts envelope: %v", err)
	}
	if len(factGames.Games) != 1 {
		t.Fatalf("Expected one fact game, got %d", len(factGames.Games))
	}
	factList := factGames.Games[0].Facts
	if len(factList) != 2 {
		t.Fatalf("Expected both recap sentences kept as facts, got %v", factList)
	}
	if factList[0] != "LeBron James scored 30 points for the Lakers." || factList[1] != "The Lakers won 110-100." {
		t.Errorf("Facts out of order or mangled: %v", factList)
	}

	takesEnv, err := envelope.Load[envelope.Takes](cfg.Paths.Takes)
	if err != nil {
		t.Fatalf("Failed to load takes envelope: %v", err)
	}
	if *modelCalls != 1 {
		t.Errorf("Expected exactly one model call for one demanded style, got %d", *modelCalls)
	}
	if len(takesEnv.Takes) != 1 {
		t.Fatalf("Expected one take, got %d", len(takesEnv.Takes))
	}
	take := takesEnv.Takes[0]
	if take.Style != "factual" || take.GameID != "401" {
		t.Errorf("Unexpected take: %+v", take)
	}
	if takesEnv.Model != "test-model" {
		t.Errorf("Expected model recorded in envelope, got %q", takesEnv.Model)
	}

	deliveries, err := envelope.Load[envelope.Deliveries](cfg.Paths.Deliveries)
	if err != nil {
		t.Fatalf("Failed to load deliveries envelope: %v", err)
	}
	if len(deliveries.Deliveries) != 1 {
		t.Fatalf("Expected exactly one delivery, got %d", len(deliveries.Deliveries))
	}
	delivery := deliveries.Deliveries[0]
	if delivery.Email != "u1@example.com" || len(delivery.Takes) != 1 {
		t.Errorf("Unexpected delivery: %+v", delivery)
	}
	if delivery.Takes[0].GameID != "401" {
		t.Errorf("Expected the generated take delivered, got %+v", delivery.Takes[0])
	}

	if *mailCalls != 1 {
		t.Errorf("Expected one mail API call, got %d", *mailCalls)
	}
}

func TestRunAllWithoutSendSkipsMailAPI(t *testing.T) {
	server, _, mailCalls := newTestServer(t)
	defer server.Close()

	cfg := testConfig(server.URL, t.TempDir())
	if err := New(cfg).RunAll(false); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if *mailCalls != 0 {
		t.Errorf("Expected no mail API calls without --send, got %d", *mailCalls)
	}

	if _, err := envelope.Load[envelope.Deliveries](cfg.Paths.Deliveries); err != nil {
		t.Errorf("Expected deliveries envelope written even without sending: %v", err)
	}
}

func TestStagesRerunFromEnvelopes(t *testing.T) {
	server, modelCalls, _ := newTestServer(t)
	defer server.Close()

	cfg := testConfig(server.URL, t.TempDir())
	runner := New(cfg)

	if err := runner.Discover(); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if err := runner.Recaps(); err != nil {
		t.Fatalf("Recaps failed: %v", err)
	}
	if err := runner.Facts(); err != nil {
		t.Fatalf("Facts failed: %v", err)
	}

	// A fresh runner over the same envelope files picks up where the
	// previous one stopped.
	rerun := New(cfg)
	if err := rerun.Takes(); err != nil {
		t.Fatalf("Takes failed: %v", err)
	}
	if err := rerun.Personalize(); err != nil {
		t.Fatalf("Personalize failed: %v", err)
	}

	if *modelCalls != 1 {
		t.Errorf("Expected one model call, got %d", *modelCalls)
	}
	deliveries, err := envelope.Load[envelope.Deliveries](cfg.Paths.Deliveries)
	if err != nil {
		t.Fatalf("Failed to load deliveries envelope: %v", err)
	}
	if len(deliveries.Deliveries) != 1 {
		t.Errorf("Expected one delivery after stage-by-stage run, got %d", len(deliveries.Deliveries))
	}
}
