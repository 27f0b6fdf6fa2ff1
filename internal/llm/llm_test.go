package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtside/internal/config"
	"courtside/internal/httpretry"
)

func quietClient() *httpretry.Client {
	return httpretry.New(
		httpretry.WithSleep(func(time.Duration) {}),
		httpretry.WithJitter(func(time.Duration) time.Duration { return 0 }),
	)
}

func testGenerator(t *testing.T, url string) *Client {
	t.Helper()
	client, err := New(config.Takes{
		APIURL:      url,
		APIKey:      "test-key",
		Model:       "test-model",
		Timeout:     5 * time.Second,
		MaxTokens:   220,
		Temperature: 0.6,
	}, quietClient())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func chatBody(content string) string {
	return `{"choices":[{"message":{"content":` + mustQuote(content) + `}}]}`
}

func mustQuote(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(config.Takes{}, quietClient()); err == nil {
		t.Error("Expected missing API key to be fatal")
	}
}

func TestGenerateReturnsContent(t *testing.T) {
	var gotAuth string
	var gotRequest chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotRequest)
		w.Write([]byte(chatBody("The Lakers looked unstoppable.")))
	}))
	defer server.Close()

	content, err := testGenerator(t, server.URL).Generate("system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if content != "The Lakers looked unstoppable." {
		t.Errorf("Unexpected content: %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if len(gotRequest.Messages) != 2 || gotRequest.Messages[0].Role != "system" || gotRequest.Messages[1].Role != "user" {
		t.Errorf("Expected system+user messages, got %+v", gotRequest.Messages)
	}
	if gotRequest.Model != "test-model" || gotRequest.MaxTokens != 220 {
		t.Errorf("Request options not applied: %+v", gotRequest)
	}
}

func TestGenerateClassifiesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testGenerator(t, server.URL).Generate("s", "u")
	assertKind(t, err, "http_500")
}

func TestGenerateClassifiesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	_, err := testGenerator(t, server.URL).Generate("s", "u")
	assertKind(t, err, "model overloaded")
}

func TestGenerateClassifiesNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := testGenerator(t, server.URL).Generate("s", "u")
	assertKind(t, err, "no_choices")
}

func TestGenerateClassifiesSentinel(t *testing.T) {
	for _, body := range []string{
		chatBody("INSUFFICIENT FACTS TO GENERATE TAKE"),
		chatBody("insufficient facts to generate take"),
		chatBody("   "),
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		_, err := testGenerator(t, server.URL).Generate("s", "u")
		assertKind(t, err, "insufficient_facts")
		server.Close()
	}
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(chatBody("A take after backoff.")))
	}))
	defer server.Close()

	content, err := testGenerator(t, server.URL).Generate("s", "u")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (2 retries on 429), got %d", attempts)
	}
	if content != "A take after backoff." {
		t.Errorf("Unexpected content: %q", content)
	}
}

func assertKind(t *testing.T, err error, kind string) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected a classified error")
	}
	var classified *ClassifiedError
	if !errors.As(err, &classified) {
		t.Fatalf("Expected ClassifiedError, got %T: %v", err, err)
	}
	if classified.Kind != kind {
		t.Errorf("Expected error kind %q, got %q", kind, classified.Kind)
	}
}
