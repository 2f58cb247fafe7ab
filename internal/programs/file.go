package programs

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"milesync/internal"
)

type fileEntry struct {
	Name              string   `yaml:"name"`
	Code              string   `yaml:"code"`
	Icon              string   `yaml:"icon"`
	MilesURL          string   `yaml:"miles_url"`
	Hosts             []string `yaml:"hosts"`
	RequiresClick     *bool    `yaml:"requires_click"`
	ClickInstruction  string   `yaml:"click_instruction"`
	TargetSelector    string   `yaml:"target_selector"`
	TargetBonus       *int     `yaml:"target_bonus"`
	ContextPattern    string   `yaml:"context_pattern"`
	ContextBonus      *int     `yaml:"context_bonus"`
	LoggedInSelectors []string `yaml:"logged_in_selectors"`
}

type fileFormat struct {
	Programs map[string]fileEntry `yaml:"programs"`
}

// LoadFile overlays the programs declared in a YAML file on top of the
// built-in registry. Entries are keyed by program key; known keys override
// only the fields they set, unknown keys are appended.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading programs file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing programs file: %w", err)
	}

	reg := Default()
	for _, key := range sortedKeys(f.Programs) {
		entry := f.Programs[key]
		idx := -1
		for i := range reg.programs {
			if strings.EqualFold(reg.programs[i].Key, key) {
				idx = i
				break
			}
		}

		var p internal.Program
		if idx >= 0 {
			p = reg.programs[idx]
		} else {
			p = internal.Program{Key: strings.ToLower(key)}
		}
		if err := apply(&p, entry); err != nil {
			return nil, fmt.Errorf("program %q: %w", key, err)
		}
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("program %q: %w", key, err)
		}

		if idx >= 0 {
			reg.programs[idx] = p
		} else {
			reg.programs = append(reg.programs, p)
		}
	}
	return reg, nil
}

func apply(p *internal.Program, e fileEntry) error {
	if e.Name != "" {
		p.Name = e.Name
	}
	if e.Code != "" {
		p.Code = strings.ToUpper(e.Code)
	}
	if e.Icon != "" {
		p.Icon = e.Icon
	}
	if e.MilesURL != "" {
		p.MilesURL = e.MilesURL
	}
	if len(e.Hosts) > 0 {
		p.Hosts = e.Hosts
	}
	if e.RequiresClick != nil {
		p.RequiresClick = *e.RequiresClick
	}
	if e.ClickInstruction != "" {
		p.ClickInstruction = e.ClickInstruction
	}
	if e.TargetSelector != "" {
		p.Rules.TargetSelector = e.TargetSelector
	}
	if e.TargetBonus != nil {
		p.Rules.TargetBonus = *e.TargetBonus
	}
	if e.ContextPattern != "" {
		re, err := regexp.Compile("(?i)" + e.ContextPattern)
		if err != nil {
			return fmt.Errorf("invalid context_pattern: %w", err)
		}
		p.Rules.ContextPattern = re
	}
	if e.ContextBonus != nil {
		p.Rules.ContextBonus = *e.ContextBonus
	}
	if len(e.LoggedInSelectors) > 0 {
		p.Rules.LoggedInSelectors = e.LoggedInSelectors
	}
	return nil
}

func validate(p internal.Program) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Hosts) == 0 {
		return fmt.Errorf("at least one host is required")
	}
	return nil
}

func sortedKeys(m map[string]fileEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
