package supabase

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtside/internal/config"
	"courtside/internal/httpretry"
)

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := New(config.Supabase{
		URL:            url,
		Key:            "test-key",
		UsersTable:     "users",
		InterestsTable: "interests",
		Timeout:        5 * time.Second,
	}, httpretry.New())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(config.Supabase{URL: "https://example.supabase.co"}, httpretry.New()); err == nil {
		t.Error("Expected missing key to be fatal")
	}
	if _, err := New(config.Supabase{Key: "key"}, httpretry.New()); err == nil {
		t.Error("Expected missing URL to be fatal")
	}
}

func TestUsersNormalizesNumericIDs(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		w.Write([]byte(`[
			{"id": 7, "email": "u7@example.com", "frequency": "daily", "take_style": "factual"},
			{"id": "u8", "email": "u8@example.com", "frequency": "weekly", "take_style": "mix", "unsubscribe_url": "https://example.com/u8"}
		]`))
	}))
	defer server.Close()

	users, err := testClient(t, server.URL).Users()
	if err != nil {
		t.Fatalf("Users failed: %v", err)
	}

	if gotPath != "/rest/v1/users" {
		t.Errorf("Unexpected request path: %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("Expected apikey header, got %q", gotKey)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].ID != "7" {
		t.Errorf("Expected numeric id normalized to string, got %q", users[0].ID)
	}
	if users[1].ID != "u8" || users[1].UnsubscribeURL != "https://example.com/u8" {
		t.Errorf("Unexpected second user: %+v", users[1])
	}
}

func TestInterests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"user_id": 7, "team": "Lakers"}, {"user_id": "u8", "team": "Celtics"}]`))
	}))
	defer server.Close()

	interests, err := testClient(t, server.URL).Interests()
	if err != nil {
		t.Fatalf("Interests failed: %v", err)
	}
	if len(interests) != 2 {
		t.Fatalf("Expected 2 interests, got %d", len(interests))
	}
	if interests[0].UserID != "7" || interests[0].Team != "Lakers" {
		t.Errorf("Unexpected first interest: %+v", interests[0])
	}
}

func TestFetchSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := testClient(t, server.URL).Users(); err == nil {
		t.Error("Expected non-200 status to be an error")
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/users" {
			t.Errorf("Unexpected path: %q", r.URL.Path)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := testClient(t, server.URL+"/").Users(); err != nil {
		t.Fatalf("Users failed: %v", err)
	}
}
