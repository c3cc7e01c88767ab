package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a routing config that parsed but failed validation.
// Callers detect it with errors.Is; main treats it as a startup failure.
var ErrInvalid = errors.New("invalid routing config")

// File is the typed form of the YAML config consumed at startup. It carries
// everything the memory core treats as read-only: TTL, importance threshold,
// the context block table, and the intent routing rules.
type File struct {
	Memory   MemorySettings `yaml:"memory"`
	Contexts []ContextBlock `yaml:"contexts"`
	Routing  RoutingRules   `yaml:"routing"`
}

type MemorySettings struct {
	SessionTTL          string  `yaml:"session_ttl"`
	ImportanceThreshold float64 `yaml:"importance_threshold"`
	SeedRecentRecords   int     `yaml:"seed_recent_records"` // 0 = use all records
	FallbackReply       string  `yaml:"fallback_reply"`
}

// ContextBlock is a named unit of background knowledge with a static token
// cost estimate. Costs are configuration, never inferred from content.
type ContextBlock struct {
	Name    string `yaml:"name"`
	Tokens  int    `yaml:"tokens"`
	Content string `yaml:"content"`
}

// RoutingRules maps intent groups to context block sets. Rules are ordered;
// the first matching rule wins. Intents listed in fallback_intents (and any
// intent not listed anywhere) resolve to the full block set.
type RoutingRules struct {
	Rules           []Rule   `yaml:"rules"`
	FallbackIntents []string `yaml:"fallback_intents"`
}

type Rule struct {
	Name    string   `yaml:"name"`
	Intents []string `yaml:"intents"`
	Blocks  []string `yaml:"blocks"`
}

// SessionTTLDuration parses the configured TTL.
func (m MemorySettings) SessionTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(m.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("%w: session_ttl %q: %v", ErrInvalid, m.SessionTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: session_ttl must be positive, got %s", ErrInvalid, d)
	}
	return d, nil
}

// LoadFile reads and validates the YAML routing config.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalid, err)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if _, err := f.Memory.SessionTTLDuration(); err != nil {
		return err
	}
	if f.Memory.ImportanceThreshold < 0 || f.Memory.ImportanceThreshold > 1 {
		return fmt.Errorf("%w: importance_threshold must be in [0,1], got %g", ErrInvalid, f.Memory.ImportanceThreshold)
	}
	if f.Memory.SeedRecentRecords < 0 {
		return fmt.Errorf("%w: seed_recent_records must be >= 0", ErrInvalid)
	}
	if f.Memory.FallbackReply == "" {
		return fmt.Errorf("%w: fallback_reply is required", ErrInvalid)
	}

	if len(f.Contexts) == 0 {
		return fmt.Errorf("%w: at least one context block is required", ErrInvalid)
	}
	known := make(map[string]bool, len(f.Contexts))
	for _, b := range f.Contexts {
		if b.Name == "" {
			return fmt.Errorf("%w: context block with empty name", ErrInvalid)
		}
		if known[b.Name] {
			return fmt.Errorf("%w: duplicate context block %q", ErrInvalid, b.Name)
		}
		if b.Tokens <= 0 {
			return fmt.Errorf("%w: context block %q needs a positive token cost", ErrInvalid, b.Name)
		}
		known[b.Name] = true
	}

	ruleIntents := make(map[string]string)
	for _, r := range f.Routing.Rules {
		if r.Name == "" {
			return fmt.Errorf("%w: routing rule with empty name", ErrInvalid)
		}
		if len(r.Intents) == 0 {
			return fmt.Errorf("%w: routing rule %q has no intents", ErrInvalid, r.Name)
		}
		if len(r.Blocks) == 0 {
			return fmt.Errorf("%w: routing rule %q selects no blocks", ErrInvalid, r.Name)
		}
		for _, name := range r.Blocks {
			if !known[name] {
				return fmt.Errorf("%w: routing rule %q references unknown block %q", ErrInvalid, r.Name, name)
			}
		}
		for _, in := range r.Intents {
			ruleIntents[normalizeIntent(in)] = r.Name
		}
	}

	// fallback_intents documents which intents deliberately get the full
	// set; an intent cannot both match a rule and be declared fallback.
	for _, in := range f.Routing.FallbackIntents {
		if rule, ok := ruleIntents[normalizeIntent(in)]; ok {
			return fmt.Errorf("%w: fallback intent %q is already mapped by rule %q", ErrInvalid, in, rule)
		}
	}

	return nil
}

func normalizeIntent(in string) string {
	return strings.ToLower(strings.TrimSpace(in))
}
