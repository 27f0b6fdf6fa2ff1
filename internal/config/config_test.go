package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir moves the test into an empty directory so a developer's .env or
// .courtside.yaml never leaks into config loading.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.Games != "data/games.json" {
		t.Errorf("Unexpected games path default: %q", cfg.Paths.Games)
	}
	if cfg.Facts.MaxSentences != 3 || cfg.Facts.MaxLength != 300 {
		t.Errorf("Unexpected facts defaults: %+v", cfg.Facts)
	}
	if cfg.Personalize.MaxTakesPerEmail != 3 || cfg.Personalize.WeeklySendDay != "monday" {
		t.Errorf("Unexpected personalize defaults: %+v", cfg.Personalize)
	}
	if cfg.Supabase.URL != "" || cfg.Supabase.Key != "" {
		t.Errorf("Credentials must default empty: %+v", cfg.Supabase)
	}
}

func TestLoadEnvOverridesCredentialKeys(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("COURTSIDE_SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("COURTSIDE_SUPABASE_KEY", "service-role-key")
	t.Setenv("COURTSIDE_TAKES_API_KEY", "openrouter-key")
	t.Setenv("COURTSIDE_EMAIL_API_KEY", "sendgrid-key")
	t.Setenv("COURTSIDE_EMAIL_FROM_EMAIL", "takes@example.com")
	t.Setenv("COURTSIDE_PERSONALIZE_UNSUBSCRIBE_URL", "https://example.com/unsubscribe")
	t.Setenv("COURTSIDE_RUN_DATE", "2026-01-19")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Supabase.URL != "https://project.supabase.co" || cfg.Supabase.Key != "service-role-key" {
		t.Errorf("Supabase credentials not taken from env: %+v", cfg.Supabase)
	}
	if cfg.Takes.APIKey != "openrouter-key" {
		t.Errorf("Takes API key not taken from env: %q", cfg.Takes.APIKey)
	}
	if cfg.Email.APIKey != "sendgrid-key" || cfg.Email.FromEmail != "takes@example.com" {
		t.Errorf("Email credentials not taken from env: %+v", cfg.Email)
	}
	if cfg.Personalize.UnsubscribeURL != "https://example.com/unsubscribe" {
		t.Errorf("Unsubscribe URL not taken from env: %q", cfg.Personalize.UnsubscribeURL)
	}
	if cfg.Run.Date != "2026-01-19" {
		t.Errorf("Run date not taken from env: %q", cfg.Run.Date)
	}
}

func TestLoadEnvOverridesDefaultedKeys(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("COURTSIDE_SUPABASE_TIMEOUT", "7s")
	t.Setenv("COURTSIDE_TAKES_MODEL", "test/model")
	t.Setenv("COURTSIDE_PERSONALIZE_MAX_TAKES_PER_EMAIL", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Supabase.Timeout != 7*time.Second {
		t.Errorf("Timeout not overridden from env: %v", cfg.Supabase.Timeout)
	}
	if cfg.Takes.Model != "test/model" {
		t.Errorf("Model not overridden from env: %q", cfg.Takes.Model)
	}
	if cfg.Personalize.MaxTakesPerEmail != 5 {
		t.Errorf("Cap not overridden from env: %d", cfg.Personalize.MaxTakesPerEmail)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfgFile := filepath.Join(dir, "courtside.yaml")
	content := `run:
  id: run-42
takes:
  api_key: file-key
supabase:
  url: https://file.supabase.co
  key: file-role-key
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.ID != "run-42" {
		t.Errorf("Run id not read from file: %q", cfg.Run.ID)
	}
	if cfg.Takes.APIKey != "file-key" {
		t.Errorf("API key not read from file: %q", cfg.Takes.APIKey)
	}
	if cfg.Supabase.URL != "https://file.supabase.co" || cfg.Supabase.Key != "file-role-key" {
		t.Errorf("Supabase settings not read from file: %+v", cfg.Supabase)
	}
}

func TestLoadMalformedDefaultFileFails(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".courtside.yaml"), []byte("run: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(""); err == nil {
		t.Error("Expected malformed default config file to be fatal")
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	chdir(t, t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected missing explicit config file to be fatal")
	}
}
