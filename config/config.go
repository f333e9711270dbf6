package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ChromaConfig contains connection details for the Chroma vector index.
type ChromaConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
}

// GeminiConfig selects the Gemini models used by the different components.
// The API key itself is never stored in the config file; it is read from the
// GEMINI_API_KEY environment variable at startup.
type GeminiConfig struct {
	AgentModel       string `yaml:"agent_model"`
	VisionModel      string `yaml:"vision_model"`
	MediaModel       string `yaml:"media_model"`
	SummaryModel     string `yaml:"summary_model"`
	WalkthroughModel string `yaml:"walkthrough_model"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// OllamaConfig configures the local embedding backend.
type OllamaConfig struct {
	URL        string `yaml:"url"`
	EmbedModel string `yaml:"embed_model"`
}

// DataConfig points at the on-disk state owned by the service.
type DataConfig struct {
	GuidesDir string `yaml:"guides_dir"`
	HistoryDB string `yaml:"history_db"`
}

// MatcherConfig tunes the similarity matcher. DistanceThreshold is a
// maximum distance: candidates with a larger distance are rejected.
type MatcherConfig struct {
	DistanceThreshold float64 `yaml:"distance_threshold"`
	HistoryTurns      int     `yaml:"history_turns"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// IngestConfig tunes the offline summary-generation retry policy.
type IngestConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BaseDelaySecs int `yaml:"base_delay_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Chroma  ChromaConfig  `yaml:"chroma"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	Data    DataConfig    `yaml:"data"`
	Matcher MatcherConfig `yaml:"matcher"`
	Agent   AgentConfig   `yaml:"agent"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

// Load reads a config from the given path. If the file does not exist,
// defaults are returned.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Chroma.URL == "" {
		cfg.Chroma.URL = "http://localhost:8000"
	}
	if cfg.Chroma.Collection == "" {
		cfg.Chroma.Collection = "repair-guides"
	}
	if cfg.Gemini.AgentModel == "" {
		cfg.Gemini.AgentModel = "gemini-2.5-flash"
	}
	if cfg.Gemini.VisionModel == "" {
		cfg.Gemini.VisionModel = "gemini-2.0-flash"
	}
	if cfg.Gemini.MediaModel == "" {
		cfg.Gemini.MediaModel = "gemini-1.5-pro"
	}
	if cfg.Gemini.SummaryModel == "" {
		cfg.Gemini.SummaryModel = "gemini-1.5-flash"
	}
	if cfg.Gemini.WalkthroughModel == "" {
		cfg.Gemini.WalkthroughModel = "gemini-2.0-flash"
	}
	if cfg.Gemini.TimeoutSecs == 0 {
		cfg.Gemini.TimeoutSecs = 60
	}
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text:v1.5"
	}
	if cfg.Data.GuidesDir == "" {
		cfg.Data.GuidesDir = "data/clean_data"
	}
	if cfg.Data.HistoryDB == "" {
		cfg.Data.HistoryDB = "data/chat_history.db"
	}
	if cfg.Matcher.DistanceThreshold == 0 {
		cfg.Matcher.DistanceThreshold = 0.6
	}
	if cfg.Matcher.HistoryTurns == 0 {
		cfg.Matcher.HistoryTurns = 5
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 8
	}
	if cfg.Ingest.MaxAttempts == 0 {
		cfg.Ingest.MaxAttempts = 8
	}
	if cfg.Ingest.BaseDelaySecs == 0 {
		cfg.Ingest.BaseDelaySecs = 1
	}
}
