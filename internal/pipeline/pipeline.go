// Package pipeline wires the stages together over their envelope files.
// Stages run sequentially in one thread; each reads the previous stage's
// envelope and writes its own, so any stage can be re-run in isolation.
package pipeline

import (
	"fmt"

	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/email"
	"courtside/internal/envelope"
	"courtside/internal/facts"
	"courtside/internal/httpretry"
	"courtside/internal/llm"
	"courtside/internal/logger"
	"courtside/internal/personalize"
	"courtside/internal/prompts"
	"courtside/internal/recap"
	"courtside/internal/scoreboard"
	"courtside/internal/supabase"
	"courtside/internal/takes"
)

// Runner executes pipeline stages for one run.
type Runner struct {
	cfg    *config.Config
	run    core.Run
	client *httpretry.Client
}

// New creates a runner. Run identity comes from configuration, with fresh
// defaults when unset.
func New(cfg *config.Config) *Runner {
	return &Runner{
		cfg:    cfg,
		run:    core.NewRun(cfg.Run.ID, cfg.Run.Date),
		client: httpretry.New(),
	}
}

// Discover executes game discovery and writes the games envelope.
func (r *Runner) Discover() error {
	stage := scoreboard.New(r.cfg.Scoreboard, r.client)
	out, err := stage.Discover(r.run)
	if err != nil {
		return err
	}
	if err := envelope.Write(r.cfg.Paths.Games, out); err != nil {
		return err
	}
	logger.Info("discovery finished", "games", len(out.Games), "errors", len(out.Errors), "output", r.cfg.Paths.Games)
	return nil
}

// Recaps executes recap extraction over the games envelope.
func (r *Runner) Recaps() error {
	games, err := envelope.Load[envelope.Games](r.cfg.Paths.Games)
	if err != nil {
		return err
	}
	out := recap.New(r.cfg.Recap, r.client).Extract(r.run, games)
	if err := envelope.Write(r.cfg.Paths.Recaps, out); err != nil {
		return err
	}
	logger.Info("recap extraction finished", "recaps", len(out.Games), "errors", len(out.Errors), "output", r.cfg.Paths.Recaps)
	return nil
}

// Facts executes fact extraction over the recaps envelope.
func (r *Runner) Facts() error {
	recaps, err := envelope.Load[envelope.Recaps](r.cfg.Paths.Recaps)
	if err != nil {
		return err
	}
	out := facts.New(r.cfg.Facts).Extract(r.run, recaps)
	if err := envelope.Write(r.cfg.Paths.Facts, out); err != nil {
		return err
	}
	logger.Info("fact extraction finished", "fact_games", len(out.Games), "errors", len(out.Errors), "output", r.cfg.Paths.Facts)
	return nil
}

// Takes executes take generation over the facts envelope.
func (r *Runner) Takes() error {
	factGames, err := envelope.Load[envelope.Facts](r.cfg.Paths.Facts)
	if err != nil {
		return err
	}

	assets, err := prompts.Load(r.cfg.Takes.PromptVersion, r.cfg.Takes.PromptsDir)
	if err != nil {
		return err
	}
	generator, err := llm.New(r.cfg.Takes, r.client)
	if err != nil {
		return err
	}
	users, interests, err := r.loadSubscribers()
	if err != nil {
		return err
	}

	out := takes.New(r.cfg.Takes, generator, assets).Generate(r.run, factGames, users, interests)
	if err := envelope.Write(r.cfg.Paths.Takes, out); err != nil {
		return err
	}
	logger.Info("take generation finished", "takes", len(out.Takes), "errors", len(out.Errors), "output", r.cfg.Paths.Takes)
	return nil
}

// Personalize executes personalization over the takes envelope.
func (r *Runner) Personalize() error {
	takesEnv, err := envelope.Load[envelope.Takes](r.cfg.Paths.Takes)
	if err != nil {
		return err
	}
	users, interests, err := r.loadSubscribers()
	if err != nil {
		return err
	}

	out := personalize.New(r.cfg.Personalize).Personalize(r.run, takesEnv, users, interests)
	if err := envelope.Write(r.cfg.Paths.Deliveries, out); err != nil {
		return err
	}
	logger.Info("personalization finished", "deliveries", len(out.Deliveries), "output", r.cfg.Paths.Deliveries)
	return nil
}

// Send submits the deliveries envelope to the email transport.
func (r *Runner) Send() error {
	deliveries, err := envelope.Load[envelope.Deliveries](r.cfg.Paths.Deliveries)
	if err != nil {
		return err
	}
	sender, err := email.NewSender(r.cfg.Email, r.client)
	if err != nil {
		return err
	}
	errs := sender.Send(r.run, deliveries)
	logger.Info("delivery send finished", "deliveries", len(deliveries.Deliveries), "failures", len(errs))
	return nil
}

// RunAll executes the full pipeline in stage order. The first fatal stage
// error stops the run; per-item failures are already inside the envelopes.
func (r *Runner) RunAll(withSend bool) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"discover", r.Discover},
		{"recaps", r.Recaps},
		{"facts", r.Facts},
		{"takes", r.Takes},
		{"personalize", r.Personalize},
	}
	if withSend {
		steps = append(steps, struct {
			name string
			fn   func() error
		}{"send", r.Send})
	}

	for _, step := range steps {
		logger.Info("stage started", "stage", step.name, "run_id", r.run.ID, "run_date", r.run.Date)
		if err := step.fn(); err != nil {
			return fmt.Errorf("stage %s failed: %w", step.name, err)
		}
	}
	return nil
}

func (r *Runner) loadSubscribers() ([]core.User, []core.Interest, error) {
	store, err := supabase.New(r.cfg.Supabase, r.client)
	if err != nil {
		return nil, nil, err
	}
	users, err := store.Users()
	if err != nil {
		return nil, nil, err
	}
	interests, err := store.Interests()
	if err != nil {
		return nil, nil, err
	}
	logger.Info("loaded subscribers", "users", len(users), "interests", len(interests))
	return users, interests, nil
}
