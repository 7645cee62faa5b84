// Package config provides braid's configuration layer. Settings are an
// explicit value constructed once and passed by reference into the
// controller and each core component; there is no ambient global state.
//
// Loading priority, highest to lowest: process environment variables,
// local .env, config-dir .env, built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"braid/internal/logger"
)

// Defaults for the orchestration tunables. The thresholds are policy
// constants carried from the product's tuning, not derived values;
// they stay configurable rather than hard-coded.
const (
	DefaultWarningThreshold  = 0.60
	DefaultCriticalThreshold = 0.80
	DefaultDriftThreshold    = 0.25
	DefaultDriftWindow       = 6
	DefaultIntentDecayRate   = 0.3
	DefaultMinMessagesToKeep = 4
	DefaultSummaryTimeout    = 60 * time.Second
	DefaultSummaryMaxTokens  = 1000
	DefaultModel             = "claude-sonnet-4-5-20250514"
)

// Settings holds all braid configuration.
type Settings struct {
	// DefaultModel is the model selected at startup when none is given.
	DefaultModel string

	// SystemPrompt is the base system prompt before block injection.
	SystemPrompt string

	// WarningThreshold and CriticalThreshold are fractions of the
	// context window at which the budget manager changes state.
	WarningThreshold  float64
	CriticalThreshold float64

	// DriftThreshold is the similarity below which a message counts as
	// topical drift; DriftWindow is the centroid's message window.
	DriftThreshold float64
	DriftWindow    int

	// IntentDecayRate is subtracted from intent confidence each turn
	// the current mode is not reinforced.
	IntentDecayRate float64

	// MinMessagesToKeep is the minimum number of unsummarized messages
	// that must remain after any summarization.
	MinMessagesToKeep int

	// SummaryTimeout bounds one summary generation attempt.
	SummaryTimeout time.Duration

	// SummaryMaxTokens caps the generated summary's length.
	SummaryMaxTokens int

	// DataDir is where session records and the archive live.
	DataDir string

	// TestMode switches IDs and timestamps to deterministic generation.
	TestMode bool

	env map[string]string
}

// Load builds Settings from defaults, .env files, and the environment.
func Load() (*Settings, error) {
	s := &Settings{
		DefaultModel:      DefaultModel,
		SystemPrompt:      "You are a helpful assistant.",
		WarningThreshold:  DefaultWarningThreshold,
		CriticalThreshold: DefaultCriticalThreshold,
		DriftThreshold:    DefaultDriftThreshold,
		DriftWindow:       DefaultDriftWindow,
		IntentDecayRate:   DefaultIntentDecayRate,
		MinMessagesToKeep: DefaultMinMessagesToKeep,
		SummaryTimeout:    DefaultSummaryTimeout,
		SummaryMaxTokens:  DefaultSummaryMaxTokens,
		env:               make(map[string]string),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		s.DataDir = filepath.Join(home, ".braid")
	} else {
		s.DataDir = ".braid"
	}

	// Config-dir .env first, local .env second so local wins.
	s.mergeDotEnv(filepath.Join(s.DataDir, ".env"))
	s.mergeDotEnv(".env")

	s.applyOverrides()
	return s, nil
}

// mergeDotEnv loads one .env file into the settings env map. A missing
// file is not an error.
func (s *Settings) mergeDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		logger.Warn("Failed to parse .env file", "path", path, "error", err)
		return
	}
	for k, v := range envMap {
		s.env[k] = v
	}
	logger.Debug("Loaded .env file", "path", path, "entries", len(envMap))
}

// lookup resolves a key with process environment taking precedence over
// .env file contents.
func (s *Settings) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := s.env[key]
	return v, ok && v != ""
}

// applyOverrides applies BRAID_* environment overrides to tunables.
func (s *Settings) applyOverrides() {
	if v, ok := s.lookup("BRAID_DEFAULT_MODEL"); ok {
		s.DefaultModel = v
	}
	if v, ok := s.lookup("BRAID_SYSTEM_PROMPT"); ok {
		s.SystemPrompt = v
	}
	if v, ok := s.lookup("BRAID_DATA_DIR"); ok {
		s.DataDir = v
	}
	s.overrideFloat("BRAID_WARNING_THRESHOLD", &s.WarningThreshold)
	s.overrideFloat("BRAID_CRITICAL_THRESHOLD", &s.CriticalThreshold)
	s.overrideFloat("BRAID_DRIFT_THRESHOLD", &s.DriftThreshold)
	s.overrideFloat("BRAID_INTENT_DECAY", &s.IntentDecayRate)
	s.overrideInt("BRAID_DRIFT_WINDOW", &s.DriftWindow)
	s.overrideInt("BRAID_MIN_KEEP", &s.MinMessagesToKeep)
	s.overrideInt("BRAID_SUMMARY_MAX_TOKENS", &s.SummaryMaxTokens)
	if v, ok := s.lookup("BRAID_SUMMARY_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			s.SummaryTimeout = d
		} else {
			logger.Warn("Invalid BRAID_SUMMARY_TIMEOUT ignored", "value", v)
		}
	}
}

func (s *Settings) overrideFloat(key string, dst *float64) {
	if v, ok := s.lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		} else {
			logger.Warn("Invalid float env value ignored", "key", key, "value", v)
		}
	}
}

func (s *Settings) overrideInt(key string, dst *int) {
	if v, ok := s.lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			logger.Warn("Invalid int env value ignored", "key", key, "value", v)
		}
	}
}

// APIKey returns the API key for a provider. It tries the braid-prefixed
// variable first, then the provider's conventional variable.
func (s *Settings) APIKey(provider string) (string, error) {
	upper := strings.ToUpper(provider)

	prefixed := fmt.Sprintf("BRAID_%s_API_KEY", upper)
	if v, ok := s.lookup(prefixed); ok {
		return v, nil
	}

	conventional := fmt.Sprintf("%s_API_KEY", upper)
	if upper == "GEMINI" {
		conventional = "GOOGLE_API_KEY"
	}
	if v, ok := s.lookup(conventional); ok {
		return v, nil
	}

	return "", fmt.Errorf("API key not configured for provider %s (expected %s or %s)", provider, prefixed, conventional)
}
