package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete runtime configuration. It is built once at startup
// and passed by pointer to every component; nothing mutates it afterwards.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Citation     CitationConfig     `yaml:"citation" mapstructure:"citation"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Enhancer     EnhancerConfig     `yaml:"enhancer" mapstructure:"enhancer"`
	Agent        AgentConfig        `yaml:"agent" mapstructure:"agent"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
}

// HTTPConfig controls outbound page fetching (scrape command)
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls the generator response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls worker counts
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`
	AgentWorkers int `yaml:"agent_workers" mapstructure:"agent_workers"`
}

// RateLimitingConfig is applied per host by the scraper
type RateLimitingConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
	PageDelay         time.Duration `yaml:"page_delay" mapstructure:"page_delay"`
}

// OutputConfig controls where and how artifacts are written
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	Markdown bool   `yaml:"markdown" mapstructure:"markdown"`
	HTML     bool   `yaml:"html" mapstructure:"html"`
}

// LLMConfig configures the report generator
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// SearchConfig configures the search-capable model used as scraper fallback
type SearchConfig struct {
	Model           string  `yaml:"model" mapstructure:"model"`
	MaxTokens       int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	CostPerQuery    float64 `yaml:"cost_per_query" mapstructure:"cost_per_query"`
	MinCompleteness float64 `yaml:"min_completeness" mapstructure:"min_completeness"`
}

// TierPatternGroup is an ordered set of case-insensitive patterns for one tier
type TierPatternGroup struct {
	Tier     Tier     `yaml:"tier" mapstructure:"tier"`
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
}

// CitationConfig holds the admissibility rules for citations
type CitationConfig struct {
	Forbidden     []string           `yaml:"forbidden" mapstructure:"forbidden"`
	TierPatterns  []TierPatternGroup `yaml:"tier_patterns" mapstructure:"tier_patterns"`
	InvalidSample int                `yaml:"invalid_sample" mapstructure:"invalid_sample"`
}

// PillarWeight is one entry of the composite weighting table
type PillarWeight struct {
	Pillar string  `yaml:"pillar" mapstructure:"pillar"`
	Weight float64 `yaml:"weight" mapstructure:"weight"`
}

// ScoringConfig holds the composite table and band thresholds
type ScoringConfig struct {
	Weights        []PillarWeight `yaml:"weights" mapstructure:"weights"`
	GreenThreshold float64        `yaml:"green_threshold" mapstructure:"green_threshold"`
	AmberThreshold float64        `yaml:"amber_threshold" mapstructure:"amber_threshold"`
}

// EnhancerConfig toggles the domain prompt enhancer and reviewer
type EnhancerConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	PassThreshold float64 `yaml:"pass_threshold" mapstructure:"pass_threshold"`
}

// AgentConfig configures the external agent completion API
type AgentConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	// CompaniesFile replaces the built-in partner list when set
	CompaniesFile string `yaml:"companies_file,omitempty" mapstructure:"companies_file"`
}

// StoreConfig configures the run history database
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".ipdd")

	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "ipdd/0.1 (+https://github.com/ppiankov/ipdd)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(base, "cache"),
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      2,
			AgentWorkers: 3,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
			PageDelay:         500 * time.Millisecond,
		},
		Output: OutputConfig{
			Dir: "biotech_dd_reports",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-5",
			Timeout:     600,
			MaxTokens:   25000,
			Temperature: 0.2,
		},
		Search: SearchConfig{
			Model:           "gpt-4o-search-preview",
			MaxTokens:       4000,
			CostPerQuery:    0.03,
			MinCompleteness: 0.6,
		},
		Citation: CitationConfig{
			Forbidden: []string{
				"wikipedia", "webmd", "healthline", "blog", "medium.com",
				"reddit", "quora", "facebook", "twitter",
			},
			TierPatterns: []TierPatternGroup{
				{Tier: Tier1, Patterns: []string{
					`\b(fda|ema|ich|who|pmda|tga|mhra|swissmedic)\b`,
					`\bepar\b`,
					`\bpubmed\b|\bpmid:\s*\d+\b`,
					`\bdoi:\s*10\.\d{4,9}/\S+`,
					`\bnejm\b|\blancet\b|\bjama\b|\bnature\b|\bscience\b|\bcell\b`,
					`drugsatfda|accessdata\.fda\.gov|cfpma|pma\.cfm`,
				}},
				{Tier: Tier2, Patterns: []string{
					`clinicaltrials\.gov|\bnct\d{8}\b`,
					`\bseer\.cancer\.gov\b`,
					`\bcdc\.gov\b`,
					`\beudract\b`,
				}},
				{Tier: Tier3, Patterns: []string{
					`\bsec\.gov\b|\b10-k\b|\bannual report\b`,
					`iqvia|evaluate|globaldata|citeline|biomedtracker|cortellis|frost\s*&\s*sullivan|grand\s*view\s*research`,
				}},
			},
			InvalidSample: 10,
		},
		Scoring: ScoringConfig{
			Weights: []PillarWeight{
				{Pillar: "clinical_evidence", Weight: 0.20},
				{Pillar: "regulatory_clarity", Weight: 0.15},
				{Pillar: "ip_strength", Weight: 0.15},
				{Pillar: "market_attractiveness", Weight: 0.15},
				{Pillar: "manufacturing_cmc_readiness", Weight: 0.10},
				{Pillar: "competitive_moat", Weight: 0.10},
				{Pillar: "team_inventor_quality", Weight: 0.10},
				{Pillar: "source_quality", Weight: 0.05},
			},
			GreenThreshold: 75,
			AmberThreshold: 55,
		},
		Enhancer: EnhancerConfig{
			Enabled:       true,
			PassThreshold: 70,
		},
		Agent: AgentConfig{
			Model:     "agi-agent-v1",
			Timeout:   60 * time.Second,
			MaxTokens: 1500,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(base, "history.db"),
		},
	}
}
