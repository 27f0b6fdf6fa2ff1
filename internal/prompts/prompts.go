// Package prompts loads the versioned prompt assets used by take
// generation. Assets are embedded so a deployed binary is self-contained;
// a directory override allows iterating on prompt copy without a rebuild.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed assets
var assetsFS embed.FS

// Sentinel is the fixed phrase the model is instructed to return when the
// supplied facts cannot support a take. Responses starting with it are
// converted to errors, never to takes.
const Sentinel = "INSUFFICIENT FACTS TO GENERATE TAKE"

// Assets holds one resolved prompt version.
type Assets struct {
	Version      string
	SystemPrompt string
	Styles       map[string]string
}

type versionsFile struct {
	ActiveVersion string `json:"active_version"`
}

// Load resolves prompt assets. version overrides the active version from
// versions.json; dir overrides the embedded assets with an on-disk layout of
// the same shape. Missing assets are fatal: generation cannot run without
// its prompts.
func Load(version, dir string) (*Assets, error) {
	var fsys fs.FS = assetsFS
	root := "assets"
	if dir != "" {
		fsys = os.DirFS(dir)
		root = "."
	}

	if version == "" {
		data, err := fs.ReadFile(fsys, path(root, "versions.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt versions file: %w", err)
		}
		var versions versionsFile
		if err := json.Unmarshal(data, &versions); err != nil {
			return nil, fmt.Errorf("failed to parse prompt versions file: %w", err)
		}
		if versions.ActiveVersion == "" {
			return nil, fmt.Errorf("no active prompt version configured")
		}
		version = versions.ActiveVersion
	}

	baseSystem, err := fs.ReadFile(fsys, path(root, version, "base_system.txt"))
	if err != nil {
		return nil, fmt.Errorf("missing base system prompt for version %s: %w", version, err)
	}
	outputRules, err := fs.ReadFile(fsys, path(root, version, "output_rules.txt"))
	if err != nil {
		return nil, fmt.Errorf("missing output rules prompt for version %s: %w", version, err)
	}
	stylesData, err := fs.ReadFile(fsys, path(root, version, "styles.json"))
	if err != nil {
		return nil, fmt.Errorf("missing styles prompt for version %s: %w", version, err)
	}

	var styleGuidance map[string]string
	if err := json.Unmarshal(stylesData, &styleGuidance); err != nil {
		return nil, fmt.Errorf("failed to parse styles prompt for version %s: %w", version, err)
	}

	system := strings.TrimSpace(string(baseSystem)) + "\n\n" + strings.TrimSpace(string(outputRules))
	return &Assets{
		Version:      version,
		SystemPrompt: strings.TrimSpace(system),
		Styles:       styleGuidance,
	}, nil
}

func path(parts ...string) string {
	return filepath.ToSlash(filepath.Join(parts...))
}

// UserPromptInput carries everything a single take prompt needs.
type UserPromptInput struct {
	Teams         []string
	Facts         []string
	StyleLabel    string
	StyleGuidance string
	MaxWords      int
	Audience      string
	Disclaimer    string
	FocusTeam     string
}

// BuildUserPrompt renders the per-request user message.
func BuildUserPrompt(in UserPromptInput) string {
	teamLine := "Unknown teams"
	if len(in.Teams) > 0 {
		teamLine = strings.Join(in.Teams, ", ")
	}

	var b strings.Builder
	b.WriteString("Facts:\n")
	fmt.Fprintf(&b, "- Teams: %s\n", teamLine)
	for _, fact := range in.Facts {
		fmt.Fprintf(&b, "- %s\n", fact)
	}
	b.WriteString("\nInstructions:\n")
	b.WriteString("- League: NBA\n")
	fmt.Fprintf(&b, "- Style: %s\n", in.StyleLabel)
	fmt.Fprintf(&b, "- Max length: %d words\n", in.MaxWords)
	fmt.Fprintf(&b, "- Audience: %s\n", in.Audience)
	fmt.Fprintf(&b, "- Tone guidance: %s\n", in.StyleGuidance)
	fmt.Fprintf(&b, "- Factual source disclaimer: %s\n", in.Disclaimer)
	fmt.Fprintf(&b, "- If facts are insufficient, respond with: %s\n", Sentinel)
	if in.FocusTeam != "" {
		fmt.Fprintf(&b, "\nEnsure takes focus on %s", in.FocusTeam)
	}
	return b.String()
}
