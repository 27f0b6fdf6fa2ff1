package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all pipeline configuration. Every tunable the stages consume
// lives here; stages receive their section explicitly instead of reading
// globals.
type Config struct {
	Run         Run         `mapstructure:"run"`
	Paths       Paths       `mapstructure:"paths"`
	Scoreboard  Scoreboard  `mapstructure:"scoreboard"`
	Recap       Recap       `mapstructure:"recap"`
	Facts       Facts       `mapstructure:"facts"`
	Takes       Takes       `mapstructure:"takes"`
	Supabase    Supabase    `mapstructure:"supabase"`
	Personalize Personalize `mapstructure:"personalize"`
	Email       Email       `mapstructure:"email"`
}

// Run pins run identity for replays; both fields default at runtime when
// empty (fresh UUID, today's date).
type Run struct {
	ID   string `mapstructure:"id"`
	Date string `mapstructure:"date"`
}

// Paths locates the stage envelope files.
type Paths struct {
	Games      string `mapstructure:"games"`
	Recaps     string `mapstructure:"recaps"`
	Facts      string `mapstructure:"facts"`
	Takes      string `mapstructure:"takes"`
	Deliveries string `mapstructure:"deliveries"`
}

// Scoreboard configures game discovery.
type Scoreboard struct {
	URL          string        `mapstructure:"url"`
	Date         string        `mapstructure:"date"`
	RecapBaseURL string        `mapstructure:"recap_base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Recap configures recap scraping.
type Recap struct {
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RequestDelay     time.Duration `mapstructure:"request_delay"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

// Facts configures fact extraction bounds.
type Facts struct {
	MaxSentences int `mapstructure:"max_sentences"`
	MaxLength    int `mapstructure:"max_length"`
}

// Takes configures take generation and the model endpoint.
type Takes struct {
	APIURL           string        `mapstructure:"api_url"`
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	Referer          string        `mapstructure:"referer"`
	Title            string        `mapstructure:"title"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxWords         int           `mapstructure:"max_words"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	Audience         string        `mapstructure:"audience"`
	Disclaimer       string        `mapstructure:"disclaimer"`
	PromptVersion    string        `mapstructure:"prompt_version"`
	PromptsDir       string        `mapstructure:"prompts_dir"`
	RequestPause     time.Duration `mapstructure:"request_pause"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

// Supabase configures the read-only user/interest store client.
type Supabase struct {
	URL            string        `mapstructure:"url"`
	Key            string        `mapstructure:"key"`
	UsersTable     string        `mapstructure:"users_table"`
	InterestsTable string        `mapstructure:"interests_table"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Personalize configures per-subscriber selection.
type Personalize struct {
	MaxTakesPerEmail int    `mapstructure:"max_takes_per_email"`
	WeeklySendDay    string `mapstructure:"weekly_send_day"`
	UnsubscribeURL   string `mapstructure:"unsubscribe_url"`
}

// Email configures the SendGrid delivery sender.
type Email struct {
	APIURL      string        `mapstructure:"api_url"`
	APIKey      string        `mapstructure:"api_key"`
	FromEmail   string        `mapstructure:"from_email"`
	FromName    string        `mapstructure:"from_name"`
	TemplateID  string        `mapstructure:"template_id"`
	ASMGroupID  int           `mapstructure:"asm_group_id"`
	LogoBaseURL string        `mapstructure:"logo_base_url"`
	LogoExt     string        `mapstructure:"logo_ext"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from defaults, an optional config file, and
// environment variables (COURTSIDE_SUPABASE_KEY overrides supabase.key, and
// so on). A .env file is honored for local development, matching how every
// stage was driven before the config layer existed.
func Load(cfgFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".courtside")
	}

	v.SetEnvPrefix("COURTSIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is only tolerable when we were searching for the
		// default one; parse errors are always fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// setDefaults registers every configuration key. Keys without a meaningful
// default still get an empty one: viper's AutomaticEnv only surfaces env
// overrides for keys it already knows about, so an unregistered key would
// make COURTSIDE_* variables for it silently vanish.
func setDefaults(v *viper.Viper) {
	v.SetDefault("run.id", "")
	v.SetDefault("run.date", "")

	v.SetDefault("paths.games", "data/games.json")
	v.SetDefault("paths.recaps", "data/recaps.json")
	v.SetDefault("paths.facts", "data/facts.json")
	v.SetDefault("paths.takes", "data/takes.json")
	v.SetDefault("paths.deliveries", "data/deliveries.json")

	v.SetDefault("scoreboard.url", "https://site.api.espn.com/apis/site/v2/sports/basketball/nba/scoreboard")
	v.SetDefault("scoreboard.date", "")
	v.SetDefault("scoreboard.recap_base_url", "https://www.espn.com/nba/recap/_/gameId/")
	v.SetDefault("scoreboard.user_agent", browserUserAgent)
	v.SetDefault("scoreboard.timeout", 15*time.Second)

	v.SetDefault("recap.user_agent", browserUserAgent)
	v.SetDefault("recap.timeout", 15*time.Second)
	v.SetDefault("recap.request_delay", time.Second)
	v.SetDefault("recap.failure_threshold", 0.5)

	v.SetDefault("facts.max_sentences", 3)
	v.SetDefault("facts.max_length", 300)

	v.SetDefault("takes.api_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("takes.api_key", "")
	v.SetDefault("takes.model", "tngtech/tng-r1t-chimera:free")
	v.SetDefault("takes.referer", "")
	v.SetDefault("takes.title", "Sports Takes Newsletter")
	v.SetDefault("takes.timeout", 30*time.Second)
	v.SetDefault("takes.max_words", 120)
	v.SetDefault("takes.max_tokens", 220)
	v.SetDefault("takes.temperature", 0.6)
	v.SetDefault("takes.audience", "Casual NBA fans")
	v.SetDefault("takes.disclaimer", "Based on published recap text.")
	v.SetDefault("takes.prompt_version", "")
	v.SetDefault("takes.prompts_dir", "")
	v.SetDefault("takes.request_pause", time.Duration(0))
	v.SetDefault("takes.failure_threshold", 0.5)

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("supabase.users_table", "users")
	v.SetDefault("supabase.interests_table", "interests")
	v.SetDefault("supabase.timeout", 20*time.Second)

	v.SetDefault("personalize.max_takes_per_email", 3)
	v.SetDefault("personalize.weekly_send_day", "monday")
	v.SetDefault("personalize.unsubscribe_url", "")

	v.SetDefault("email.api_url", "https://api.sendgrid.com/v3/mail/send")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.template_id", "")
	v.SetDefault("email.asm_group_id", 0)
	v.SetDefault("email.logo_base_url", "")
	v.SetDefault("email.logo_ext", "png")
	v.SetDefault("email.timeout", 20*time.Second)
}
