// Package envelope defines the versioned JSON documents exchanged between
// pipeline stages and their on-disk read/write helpers. Each stage owns and
// fully produces its output envelope; nothing mutates a prior stage's file.
package envelope

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"courtside/internal/core"
)

// Meta carries the run identity every envelope is stamped with.
type Meta struct {
	RunID         string `json:"run_id"`
	RunDate       string `json:"run_date"`
	SchemaVersion string `json:"schema_version"`
	Source        string `json:"source"`
}

// NewMeta stamps an envelope header for the given run and source label.
func NewMeta(run core.Run, source string) Meta {
	return Meta{
		RunID:         run.ID,
		RunDate:       run.Date,
		SchemaVersion: core.SchemaVersion,
		Source:        source,
	}
}

// Validate pins the schema version. A mismatched or absent version is a
// malformed input envelope, fatal to the stage reading it.
func (m Meta) Validate() error {
	if m.SchemaVersion != core.SchemaVersion {
		return fmt.Errorf("unsupported envelope schema_version %q (want %q)", m.SchemaVersion, core.SchemaVersion)
	}
	return nil
}

// Games is the discovery stage output.
type Games struct {
	Meta
	ScoreboardDate string            `json:"scoreboard_date"`
	Games          []core.Game       `json:"games"`
	Errors         []core.StageError `json:"errors"`
}

// Recaps is the recap extraction stage output.
type Recaps struct {
	Meta
	Games  []core.RecapGame  `json:"games"`
	Errors []core.StageError `json:"errors"`
}

// Facts is the fact extraction stage output.
type Facts struct {
	Meta
	Games  []core.FactGame   `json:"games"`
	Errors []core.StageError `json:"errors"`
}

// Takes is the generation stage output.
type Takes struct {
	Meta
	PromptVersion string            `json:"prompt_version"`
	Model         string            `json:"model"`
	Takes         []core.Take       `json:"takes"`
	Errors        []core.StageError `json:"errors"`
}

// Deliveries is the personalization stage output.
type Deliveries struct {
	Meta
	Deliveries []core.Delivery   `json:"deliveries"`
	Errors     []core.StageError `json:"errors"`
}

type validator interface {
	Validate() error
}

// Load reads and validates a stage envelope from path.
func Load[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read envelope %s: %w", path, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse envelope %s: %w", path, err)
	}
	if v, ok := any(&out).(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid envelope %s: %w", path, err)
		}
	}
	return &out, nil
}

// Write persists a stage envelope as indented JSON, creating parent
// directories as needed. Key order comes from the struct definitions, so
// identical inputs produce byte-identical files.
func Write(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write envelope %s: %w", path, err)
	}
	return nil
}
