package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Input      InputConfig      `mapstructure:"input"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Output     OutputConfig     `mapstructure:"output"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// InputConfig locates the record corpus
type InputConfig struct {
	CorpusPath string `mapstructure:"corpus_path"`
}

// VocabularyConfig locates the reference vocabularies
type VocabularyConfig struct {
	HGNCPath           string   `mapstructure:"hgnc_path"`
	DOIDPath           string   `mapstructure:"doid_path"`
	TACAPath           string   `mapstructure:"taca_path"`
	KeywordTablesPath  string   `mapstructure:"keyword_tables_path"`
	ExcludedLocusTypes []string `mapstructure:"excluded_locus_types"`
}

// MatchingConfig tunes the match cascade per domain
type MatchingConfig struct {
	GeneCutoff        float64           `mapstructure:"gene_cutoff"`
	DiseaseCutoff     float64           `mapstructure:"disease_cutoff"`
	AcronymCutoff     float64           `mapstructure:"acronym_cutoff"`
	TACACutoff        float64           `mapstructure:"taca_cutoff"`
	Workers           int               `mapstructure:"workers"`
	FuzzyMemoSize     int               `mapstructure:"fuzzy_memo_size"`
	Acronyms          []AcronymConfig   `mapstructure:"acronyms"`
	ScoreRules        []ScoreRuleConfig `mapstructure:"score_rules"`
	DisableScoreRules bool              `mapstructure:"disable_score_rules"`
}

// AcronymConfig is one acronym table row
type AcronymConfig struct {
	Acronym   string `mapstructure:"acronym"`
	Expansion string `mapstructure:"expansion"`
}

// ScoreRuleConfig describes a keyword overlap boost
type ScoreRuleConfig struct {
	Name       string   `mapstructure:"name"`
	InputTerms []string `mapstructure:"input_terms"`
	LabelTerm  string   `mapstructure:"label_term"`
	Boost      float64  `mapstructure:"boost"`
}

// RegistryConfig represents chemical registry API configuration
type RegistryConfig struct {
	Enabled        bool                 `mapstructure:"enabled"`
	BaseURL        string               `mapstructure:"base_url"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	RateLimit      int                  `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig configures the breaker around registry calls
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// CacheConfig represents the optional cross-run Redis response cache
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// OutputConfig controls what a run writes
type OutputConfig struct {
	Path         string   `mapstructure:"path"`
	UnknownsPath string   `mapstructure:"unknowns_path"`
	Domains      []string `mapstructure:"domains"`
}

// MergeConfig controls how per-domain trees join onto the base records
type MergeConfig struct {
	JoinBy string `mapstructure:"join_by"`
}

// StoreConfig selects the resolved-dictionary store
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// DatabaseConfig represents the enriched-record sink connection
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	MinConns       int32         `mapstructure:"min_conns"`
	MaxConnLife    time.Duration `mapstructure:"max_conn_life"`
	MaxConnIdle    time.Duration `mapstructure:"max_conn_idle"`
	MigrateOnStart bool          `mapstructure:"migrate_on_start"`
}

// MetricsConfig represents the Prometheus pushgateway target
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Join modes for the merge engine
const (
	JoinByIndex = "index"
	JoinByName  = "name"
)

// Store drivers
const (
	StoreDriverNone     = ""
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)
