package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	CacheDir    string `yaml:"cache_dir"`
	GitHubToken string `yaml:"github_token"`

	AI struct {
		Provider          string `yaml:"provider"`
		Model             string `yaml:"model"`         // LLM used for structure and pages
		SummaryModel      string `yaml:"summary_model"` // LLM used for unit summaries
		APIKey            string `yaml:"api_key"`
		BaseURL           string `yaml:"base_url"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
	} `yaml:"ai"`

	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		Dimension int    `yaml:"dimension"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`

	Vector struct {
		Backend          string `yaml:"backend"` // flat | qdrant
		QdrantHost       string `yaml:"qdrant_host"`
		QdrantPort       int    `yaml:"qdrant_port"`
		CollectionPrefix string `yaml:"collection_prefix"`
	} `yaml:"vector"`

	Cache struct {
		Backend   string `yaml:"backend"` // disk | s3
		LRUSize   int    `yaml:"lru_size"`
		Endpoint  string `yaml:"endpoint"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		UseSSL    bool   `yaml:"use_ssl"`
		Region    string `yaml:"region"`
	} `yaml:"cache"`
}

type PipelineConfig struct {
	Workers          int    `yaml:"workers"`
	MaxRetries       int    `yaml:"max_retries"`
	MaxFilesPerShard int    `yaml:"max_files_per_shard"`
	MaxContextFiles  int    `yaml:"max_context_files"`
	MinPages         int    `yaml:"min_pages"`
	MaxPages         int    `yaml:"max_pages"`
	Refine           bool   `yaml:"refine"`
	Language         string `yaml:"language"` // language the wiki is written in
}

// RetrievalConfig is part of the page cache key; field order is stable.
type RetrievalConfig struct {
	TopKFile     int `yaml:"topk_file" json:"topk_file"`
	TopKSymbol   int `yaml:"topk_symbol" json:"topk_symbol"`
	ExtraFile    int `yaml:"extra_file" json:"extra_file"`
	ExtraSymbol  int `yaml:"extra_symbol" json:"extra_symbol"`
	MaxUnits     int `yaml:"max_units" json:"max_units"`
	MaxCodeChars int `yaml:"max_code_chars" json:"max_code_chars"`
}

// GenerationConfig is part of the page cache key; field order is stable.
type GenerationConfig struct {
	MinRefs               int  `yaml:"min_refs" json:"min_refs"`
	MaxRefs               int  `yaml:"max_refs" json:"max_refs"`
	IncludeOverviewReadme bool `yaml:"include_overview_readme" json:"include_overview_readme"`
	DiagramFallback       bool `yaml:"diagram_fallback" json:"diagram_fallback"`
}

// Default returns a configuration with every knob at its documented default.
func Default() *Config {
	cfg := base()
	cfg.applyDefaults()
	return cfg
}

// base holds the defaults a zero value cannot express. Everything else is
// filled in by applyDefaults once the file and environment are read.
func base() *Config {
	cfg := &Config{}
	cfg.Generation.IncludeOverviewReadme = true
	cfg.Generation.DiagramFallback = true
	cfg.Pipeline.Refine = true
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config; a missing file means defaults
	cfg := base()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if apiKey := os.Getenv("REPOWIKI_API_KEY"); apiKey != "" {
		c.AI.APIKey = apiKey
	}
	if provider := os.Getenv("REPOWIKI_AI_PROVIDER"); provider != "" {
		c.AI.Provider = provider
	}
	if provider := os.Getenv("REPOWIKI_EMBED_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if dir := os.Getenv("REPOWIKI_CACHE_DIR"); dir != "" {
		c.CacheDir = dir
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && c.GitHubToken == "" {
		c.GitHubToken = token
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = providerKey(c.AI.Provider)
	}
}

func providerKey(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "ollama":
		return ""
	default:
		return os.Getenv("GEMINI_API_KEY")
	}
}

func (c *Config) applyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = ".cache"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.RequestsPerMinute == 0 {
		c.AI.RequestsPerMinute = 60
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 120
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = c.AI.Provider
	}
	if c.Embedding.APIKey == "" && strings.EqualFold(c.Embedding.Provider, c.AI.Provider) {
		c.Embedding.APIKey = c.AI.APIKey
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = providerKey(c.Embedding.Provider)
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 768
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}

	p := &c.Pipeline
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.MaxFilesPerShard <= 0 {
		p.MaxFilesPerShard = 200
	}
	if p.MaxContextFiles <= 0 {
		p.MaxContextFiles = 80
	}
	if p.MinPages <= 0 {
		p.MinPages = 6
	}
	if p.MaxPages <= 0 {
		p.MaxPages = 14
	}
	if p.Language == "" {
		p.Language = "English"
	}

	r := &c.Retrieval
	if r.TopKFile <= 0 {
		r.TopKFile = 8
	}
	if r.TopKSymbol <= 0 {
		r.TopKSymbol = 12
	}
	if r.ExtraFile <= 0 {
		r.ExtraFile = 6
	}
	if r.ExtraSymbol <= 0 {
		r.ExtraSymbol = 10
	}
	if r.MaxUnits <= 0 {
		r.MaxUnits = 16
	}
	if r.MaxCodeChars <= 0 {
		r.MaxCodeChars = 1200
	}

	g := &c.Generation
	if g.MinRefs <= 0 {
		g.MinRefs = 2
	}
	if g.MaxRefs < g.MinRefs {
		g.MaxRefs = 5
		if g.MaxRefs < g.MinRefs {
			g.MaxRefs = g.MinRefs
		}
	}

	if c.Vector.Backend == "" {
		c.Vector.Backend = "flat"
	}
	if c.Vector.QdrantHost == "" {
		c.Vector.QdrantHost = "localhost"
	}
	if c.Vector.QdrantPort == 0 {
		c.Vector.QdrantPort = 6334
	}
	if c.Vector.CollectionPrefix == "" {
		c.Vector.CollectionPrefix = "repowiki"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "disk"
	}
	if c.Cache.LRUSize <= 0 {
		c.Cache.LRUSize = 256
	}
}
