// Package pricing resolves the micro-USD cost of a model call from a table
// loaded out of YAML, with an optional periodic reload so operators can edit
// the table without restarting the process.
package pricing

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry describes the per-1K-token cost of one model, in micro-USD (1e-6 USD)
// so the core can do all arithmetic in integers.
type Entry struct {
	Model                   string `yaml:"model"`
	Provider                string `yaml:"provider,omitempty"`
	PromptMicroUSDPer1K     int64  `yaml:"prompt_micro_usd_per_1k"`
	CompletionMicroUSDPer1K int64  `yaml:"completion_micro_usd_per_1k"`
}

type table struct {
	Models []Entry `yaml:"models"`
}

// Logger is a minimal logging interface so callers can plug in zerolog
// without this package depending on it directly.
type Logger interface {
	Printf(format string, args ...any)
}

// Store holds the loaded pricing table with lookups by model name.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	source  string
	logger  Logger
}

// NewStore returns an empty store. Call Load before Cost returns anything
// useful.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// SetLogger sets an optional logger for reload warnings.
func (s *Store) SetLogger(l Logger) {
	s.logger = l
}

// Cost returns the micro-USD price of promptTokens+completionTokens against
// model's published rate. ok is false when the model is not in the table.
func (s *Store) Cost(model string, promptTokens, completionTokens int64) (microUSD int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.entries[strings.ToLower(strings.TrimSpace(model))]
	if !found {
		return 0, false
	}
	microUSD = (promptTokens*e.PromptMicroUSDPer1K + completionTokens*e.CompletionMicroUSDPer1K) / 1000
	return microUSD, true
}

// LoadEntries replaces the pricing table with entries directly, for callers
// that assemble a table programmatically instead of from a YAML file (tests,
// or a table fetched from a remote config source).
func (s *Store) LoadEntries(entries []Entry) {
	s.apply(entries, "<programmatic>")
}

// Load reads and replaces the pricing table from a YAML file shaped as:
//
//	models:
//	  - model: gpt-4o
//	    provider: openai
//	    prompt_micro_usd_per_1k: 2500
//	    completion_micro_usd_per_1k: 10000
func (s *Store) Load(path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("pricing: empty path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var t table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return 0, fmt.Errorf("pricing: parse %s: %w", path, err)
	}
	s.apply(t.Models, path)
	return len(t.Models), nil
}

func (s *Store) apply(entries []Entry, src string) {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		model := strings.ToLower(strings.TrimSpace(e.Model))
		if model == "" {
			continue
		}
		m[model] = e
	}
	s.mu.Lock()
	s.entries = m
	s.source = src
	s.mu.Unlock()
}

// StartAutoRefresh reloads path on the given interval (default 1h) so
// operators can edit the pricing table in place. Errors are logged, not
// fatal: the store keeps serving the last-good table.
func (s *Store) StartAutoRefresh(path string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	if _, err := s.Load(path); err != nil && s.logger != nil {
		s.logger.Printf("pricing: initial load failed (%s): %v", path, err)
	}
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			if _, err := s.Load(path); err != nil && s.logger != nil {
				s.logger.Printf("pricing: periodic reload failed (%s): %v", path, err)
			}
		}
	}()
}
