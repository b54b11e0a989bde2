package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Storage    StorageConfig    `yaml:"storage"`
	Data       DataConfig       `yaml:"data"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type ExperimentConfig struct {
	Condition   string        `yaml:"condition,omitempty"`
	Mode        string        `yaml:"mode,omitempty"` // "greedy" or "best-of-n"
	Threshold   float64       `yaml:"threshold"`
	NProblems   int           `yaml:"n_problems,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	TopKSymbols int           `yaml:"top_k_symbols,omitempty"`
	Seed        int64         `yaml:"seed,omitempty"`
	Levels      []int         `yaml:"levels,omitempty"`
	Types       []string      `yaml:"types,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	OutputDir   string        `yaml:"output_dir,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type DataConfig struct {
	ProblemsPath  string `yaml:"problems_path,omitempty"`  // MATH benchmark jsonl
	KnowledgePath string `yaml:"knowledge_path,omitempty"` // openmath.json knowledge base
	IndexPath     string `yaml:"index_path,omitempty"`     // keyword index.json
	RerankedPath  string `yaml:"reranked_path,omitempty"`  // per-problem reranked symbol scores
	TemplatesPath string `yaml:"templates_path,omitempty"` // prompts/templates.yaml
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}

	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "ollama"
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); v != "" {
		p := cfg.LLM.Providers["ollama"]
		p.BaseURL = v
		cfg.LLM.Providers["ollama"] = p
	}

	applyExperimentDefaults(&cfg.Experiment)

	return &cfg, nil
}

func applyExperimentDefaults(e *ExperimentConfig) {
	if strings.TrimSpace(e.Condition) == "" {
		e.Condition = "baseline"
	}
	if strings.TrimSpace(e.Mode) == "" {
		e.Mode = "greedy"
	}
	if e.NProblems == 0 {
		e.NProblems = 500
	}
	if e.MaxTokens <= 0 {
		e.MaxTokens = 4096
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = 5
	}
	if e.Temperature == 0 {
		e.Temperature = 0.6
	}
	if e.TopKSymbols <= 0 {
		e.TopKSymbols = 20
	}
	if e.Seed == 0 {
		e.Seed = 42
	}
	if strings.TrimSpace(e.OutputDir) == "" {
		e.OutputDir = "results"
	}
}
