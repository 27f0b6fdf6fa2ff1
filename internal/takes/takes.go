// Package takes generates one style-tagged take per (game, style) demanded
// by the current subscriber base. Generating per (game, style) rather than
// per (game, user) means subscribers sharing a team+style combination share
// one model call; personalization fans the result out later.
package takes

import (
	"errors"
	"time"

	"courtside/internal/alerts"
	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/envelope"
	"courtside/internal/llm"
	"courtside/internal/logger"
	"courtside/internal/prompts"
	"courtside/internal/styles"
	"courtside/internal/teams"
)

// TextGenerator is the model call surface the stage depends on.
type TextGenerator interface {
	Model() string
	Generate(system, user string) (string, error)
}

// Stage generates takes for one run.
type Stage struct {
	cfg    config.Takes
	gen    TextGenerator
	assets *prompts.Assets
	sleep  func(time.Duration)
}

// Option customizes a Stage.
type Option func(*Stage)

// WithSleep replaces the inter-request pause sleep, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Stage) { s.sleep = sleep }
}

// New creates the generation stage.
func New(cfg config.Takes, gen TextGenerator, assets *prompts.Assets, opts ...Option) *Stage {
	s := &Stage{cfg: cfg, gen: gen, assets: assets, sleep: time.Sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DemandIndex joins users and interests into team -> demanded style set.
// Users with unknown styles are dropped; a missing style means mix.
func DemandIndex(users []core.User, interests []core.Interest) map[string]map[string]bool {
	userStyles := make(map[string]string, len(users))
	for _, user := range users {
		if user.ID == "" {
			continue
		}
		style := styles.Normalize(user.TakeStyle)
		if !styles.Known(style) {
			continue
		}
		userStyles[user.ID] = style
	}

	demand := make(map[string]map[string]bool)
	for _, interest := range interests {
		if interest.UserID == "" || interest.Team == "" {
			continue
		}
		style, ok := userStyles[interest.UserID]
		if !ok {
			continue
		}
		if demand[interest.Team] == nil {
			demand[interest.Team] = make(map[string]bool)
		}
		demand[interest.Team][style] = true
	}
	return demand
}

// requiredStyles unions the demand sets of every interest team matching one
// of the game's aliases.
func requiredStyles(game core.FactGame, demand map[string]map[string]bool) map[string]bool {
	aliases := game.TeamAliases
	if len(aliases) == 0 {
		aliases = game.Teams
	}
	required := make(map[string]bool)
	for team, teamStyles := range demand {
		if !teams.Matches(team, aliases) {
			continue
		}
		for style := range teamStyles {
			required[style] = true
		}
	}
	return required
}

// Generate produces the takes envelope. Games no subscriber cares about are
// skipped silently; per-call failures are recorded and generation continues.
func (s *Stage) Generate(run core.Run, factGames *envelope.Facts, users []core.User, interests []core.Interest) *envelope.Takes {
	out := &envelope.Takes{
		Meta:          envelope.NewMeta(run, "openrouter"),
		PromptVersion: s.assets.Version,
		Model:         s.gen.Model(),
		Takes:         []core.Take{},
		Errors:        []core.StageError{},
	}

	demand := DemandIndex(users, interests)
	if len(demand) == 0 {
		logger.Warn("no team/style preferences found, skipping take generation", "run_id", run.ID)
		return out
	}
	logger.Info("generating takes",
		"run_id", run.ID,
		"games", len(factGames.Games),
		"teams_requested", len(demand),
	)

	tracker := alerts.NewFailureTracker("take_generation", s.cfg.FailureThreshold)
	considered, skipped := 0, 0

	for _, game := range factGames.Games {
		if len(game.Facts) == 0 {
			out.Errors = append(out.Errors, core.StageError{GameID: game.GameID, Kind: "missing_facts"})
			continue
		}

		required := requiredStyles(game, demand)
		if len(required) == 0 {
			skipped++
			continue
		}
		considered++

		for _, style := range styles.Keys {
			if !required[style] {
				continue
			}
			s.generateOne(game, style, tracker, out)
			if s.cfg.RequestPause > 0 {
				s.sleep(s.cfg.RequestPause)
			}
		}
	}

	tracker.WarnIfExceeded()
	logger.Info("take generation finished",
		"considered", considered,
		"skipped", skipped,
		"takes", len(out.Takes),
		"errors", len(out.Errors),
	)
	return out
}

func (s *Stage) generateOne(game core.FactGame, style string, tracker *alerts.FailureTracker, out *envelope.Takes) {
	guidance, ok := s.assets.Styles[style]
	if !ok || guidance == "" {
		logger.Warn("missing style prompt", "style", style)
		return
	}

	userPrompt := prompts.BuildUserPrompt(prompts.UserPromptInput{
		Teams:         game.Teams,
		Facts:         game.Facts,
		StyleLabel:    styles.Label(style),
		StyleGuidance: guidance,
		MaxWords:      s.cfg.MaxWords,
		Audience:      s.cfg.Audience,
		Disclaimer:    s.cfg.Disclaimer,
	})

	content, err := s.gen.Generate(s.assets.SystemPrompt, userPrompt)
	if err != nil {
		stageErr := core.StageError{GameID: game.GameID, Style: style, Kind: "request_error", Detail: err.Error()}
		var classified *llm.ClassifiedError
		if errors.As(err, &classified) {
			stageErr.Kind = classified.Kind
			stageErr.Detail = classified.Detail
		}
		// A sentinel response means the model answered as instructed; it
		// counts as an error entry but not as an endpoint failure.
		tracker.Record(stageErr.Kind != "insufficient_facts")
		logger.Error("take generation failed", err, "game_id", game.GameID, "style", style)
		out.Errors = append(out.Errors, stageErr)
		return
	}
	tracker.Record(false)

	out.Takes = append(out.Takes, core.Take{
		GameID:      game.GameID,
		GameDate:    game.GameDate,
		Teams:       game.Teams,
		TeamAliases: game.TeamAliases,
		Style:       style,
		TakeText:    content,
	})
}
