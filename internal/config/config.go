// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the scout configuration. It can be loaded from a JSON or YAML file;
// missing values are filled from the environment and then from Defaults.
type Config struct {
	// Paths
	ResearchPath string `json:"research_path,omitempty" yaml:"research_path,omitempty"`                        // Root of the research workspace; logs live under <root>/logs
	RulesPath    string `json:"rules_path,omitempty" yaml:"rules_path,omitempty"`                              // Project rules handed to the confirmation classifier
	VerdictsFile string `json:"verdicts_file,omitempty" yaml:"verdicts_file,omitempty"`                        // Lifetime tally JSON
	MirrorDir    string `json:"mirror_dir,omitempty" yaml:"mirror_dir,omitempty"`                              // Optional copy target for the markdown logs
	AuditDBPath  string `json:"audit_db_path,omitempty" yaml:"audit_db_path,omitempty"`                        // SQLite file for classifier call audit
	DatabaseURL  string `json:"database_url,omitempty" yaml:"database_url,omitempty" validate:"omitempty,url"` // PostgreSQL (pgvector) URL for triage memory

	// Collaborators
	WebhookURL        string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty" validate:"omitempty,url"`
	ExtractorURL      string `json:"extractor_url,omitempty" yaml:"extractor_url,omitempty" validate:"omitempty,url"`
	ExtractorAPIKey   string `json:"extractor_api_key,omitempty" yaml:"extractor_api_key,omitempty"`
	ExtractorMaxChars int    `json:"extractor_max_chars,omitempty" yaml:"extractor_max_chars,omitempty" validate:"gte=0"`
	OllamaURL         string `json:"ollama_url,omitempty" yaml:"ollama_url,omitempty" validate:"omitempty,url"`
	GeminiAPIKey      string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`
	GoogleAPIKey      string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty" validate:"required_with=GoogleCX"`
	GoogleCX          string `json:"google_cx,omitempty" yaml:"google_cx,omitempty"`

	// Models
	BouncerModel    string `json:"bouncer_model,omitempty" yaml:"bouncer_model,omitempty"`
	ConfirmModel    string `json:"confirm_model,omitempty" yaml:"confirm_model,omitempty"`
	BrainstormModel string `json:"brainstorm_model,omitempty" yaml:"brainstorm_model,omitempty"`
	EmbeddingModel  string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
	ConfirmProvider string `json:"confirm_provider,omitempty" yaml:"confirm_provider,omitempty" validate:"omitempty,oneof=ollama gemini"`

	// Sieve
	SieveKeywords []string `json:"sieve_keywords,omitempty" yaml:"sieve_keywords,omitempty" validate:"dive,required"`

	// Safety
	SafetyThreshold   float64 `json:"safety_threshold,omitempty" yaml:"safety_threshold,omitempty" validate:"gte=0"`
	SafetyConsecutive int     `json:"safety_consecutive,omitempty" yaml:"safety_consecutive,omitempty" validate:"gte=0"`
	SafetySensor      string  `json:"safety_sensor,omitempty" yaml:"safety_sensor,omitempty" validate:"omitempty,oneof=none host nvidia-smi"`
	ShutdownCommand   string  `json:"shutdown_command,omitempty" yaml:"shutdown_command,omitempty"`

	// Pacing (seconds)
	ConfirmDelaySec  int `json:"confirm_delay_sec,omitempty" yaml:"confirm_delay_sec,omitempty" validate:"gte=0"`
	ScholarDelaySec  int `json:"scholar_delay_sec,omitempty" yaml:"scholar_delay_sec,omitempty" validate:"gte=0"`
	WebDelaySec      int `json:"web_delay_sec,omitempty" yaml:"web_delay_sec,omitempty" validate:"gte=0"`
	NotifyDelaySec   int `json:"notify_delay_sec,omitempty" yaml:"notify_delay_sec,omitempty" validate:"gte=0"`
	NotifyAttempts   int `json:"notify_attempts,omitempty" yaml:"notify_attempts,omitempty" validate:"gte=0,lte=10"`
	ExtractorTimeout int `json:"extractor_timeout_sec,omitempty" yaml:"extractor_timeout_sec,omitempty" validate:"gte=0"`

	// Limits
	ScholarLimit int `json:"scholar_limit,omitempty" yaml:"scholar_limit,omitempty" validate:"gte=0"`
	WebLimit     int `json:"web_limit,omitempty" yaml:"web_limit,omitempty" validate:"gte=0"`
	GoogleLimit  int `json:"google_limit,omitempty" yaml:"google_limit,omitempty" validate:"gte=0,lte=10"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

var validate = validator.New()

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("'%s' failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.ConfirmProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("config error: 'confirm_provider' gemini requires 'gemini_api_key'")
	}

	return nil
}

// ApplyEnv fills empty fields from environment variables.
// lookup is usually os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	set(&c.ResearchPath, "RESEARCH_PATH")
	set(&c.RulesPath, "AGENT_RULES_PATH")
	set(&c.VerdictsFile, "VERDICTS_FILE")
	set(&c.MirrorDir, "DB_MIRROR_PATH")
	set(&c.AuditDBPath, "AGENT_LOG_DB")
	set(&c.DatabaseURL, "DATABASE_URL")
	set(&c.WebhookURL, "DISCORD_WEBHOOK_URL")
	set(&c.ExtractorURL, "EXTRACTOR_HUB_URL")
	set(&c.ExtractorAPIKey, "HUB_API_KEY")
	set(&c.OllamaURL, "OLLAMA_URL")
	set(&c.GeminiAPIKey, "GEMINI_API_KEY")
	set(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	set(&c.GoogleCX, "GOOGLE_CSE_ID")
}

// Defaults returns the values used for anything not configured.
func Defaults() Config {
	return Config{
		ResearchPath:      ".",
		ExtractorURL:      "http://localhost:8003",
		ExtractorMaxChars: 3000,
		ExtractorTimeout:  15,
		OllamaURL:         "http://localhost:11434",
		BouncerModel:      "deepseek-r1:8b",
		ConfirmModel:      "deepseek-r1:8b",
		BrainstormModel:   "deepseek-r1:8b",
		EmbeddingModel:    "nomic-embed-text",
		ConfirmProvider:   "ollama",
		SafetyThreshold:   90,
		SafetyConsecutive: 3,
		SafetySensor:      "none",
		ConfirmDelaySec:   3,
		ScholarDelaySec:   5,
		WebDelaySec:       2,
		NotifyDelaySec:    5,
		NotifyAttempts:    3,
		ScholarLimit:      3,
		WebLimit:          4,
		GoogleLimit:       4,
	}
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
// Path fields that hang off the research root are derived after the merge.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	str := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	num := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	str(&result.ResearchPath, defaults.ResearchPath)
	str(&result.MirrorDir, defaults.MirrorDir)
	str(&result.AuditDBPath, defaults.AuditDBPath)
	str(&result.DatabaseURL, defaults.DatabaseURL)
	str(&result.WebhookURL, defaults.WebhookURL)
	str(&result.ExtractorURL, defaults.ExtractorURL)
	str(&result.OllamaURL, defaults.OllamaURL)
	str(&result.BouncerModel, defaults.BouncerModel)
	str(&result.ConfirmModel, defaults.ConfirmModel)
	str(&result.BrainstormModel, defaults.BrainstormModel)
	str(&result.EmbeddingModel, defaults.EmbeddingModel)
	str(&result.ConfirmProvider, defaults.ConfirmProvider)
	str(&result.SafetySensor, defaults.SafetySensor)
	str(&result.ShutdownCommand, defaults.ShutdownCommand)

	num(&result.ExtractorMaxChars, defaults.ExtractorMaxChars)
	num(&result.ExtractorTimeout, defaults.ExtractorTimeout)
	num(&result.SafetyConsecutive, defaults.SafetyConsecutive)
	num(&result.ConfirmDelaySec, defaults.ConfirmDelaySec)
	num(&result.ScholarDelaySec, defaults.ScholarDelaySec)
	num(&result.WebDelaySec, defaults.WebDelaySec)
	num(&result.NotifyDelaySec, defaults.NotifyDelaySec)
	num(&result.NotifyAttempts, defaults.NotifyAttempts)
	num(&result.ScholarLimit, defaults.ScholarLimit)
	num(&result.WebLimit, defaults.WebLimit)
	num(&result.GoogleLimit, defaults.GoogleLimit)

	if result.SafetyThreshold == 0 {
		result.SafetyThreshold = defaults.SafetyThreshold
	}
	if len(result.SieveKeywords) == 0 {
		result.SieveKeywords = defaults.SieveKeywords
	}

	if result.RulesPath == "" {
		result.RulesPath = filepath.Join(result.ResearchPath, ".agent", "rules", "PROJECT_RULES.md")
	}
	if result.VerdictsFile == "" {
		result.VerdictsFile = filepath.Join(result.LogsDir(), "research_verdicts.json")
	}

	// Bool fields: cannot distinguish unset from false, so CLI flags always win
	return result
}

// LogsDir is the directory holding the ledger and section logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ResearchPath, "logs")
}

// Seconds converts one of the integer second fields to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
