// Package config loads the run configuration from a YAML file, environment
// variables and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/normalize"
	"github.com/adc-ontology-enricher/pkg/resolve"
)

// EnvPrefix prefixes every environment override, e.g. ADC_ENRICH_INPUT_CORPUS_PATH.
const EnvPrefix = "ADC_ENRICH"

// Manager loads and validates the configuration using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager loads configuration. When configFile is empty the standard
// search paths are tried and a missing file is not an error.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{v: viper.New(), file: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v
	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/adc-enrich/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || m.file != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Inputs
	v.SetDefault("input.corpus_path", "")
	v.SetDefault("vocabulary.hgnc_path", "")
	v.SetDefault("vocabulary.doid_path", "")
	v.SetDefault("vocabulary.taca_path", "")
	v.SetDefault("vocabulary.keyword_tables_path", "")
	v.SetDefault("vocabulary.excluded_locus_types", []string{})

	// Matching
	v.SetDefault("matching.gene_cutoff", resolve.DefaultGeneCutoff)
	v.SetDefault("matching.disease_cutoff", resolve.DefaultDiseaseCutoff)
	v.SetDefault("matching.acronym_cutoff", resolve.DefaultAcronymCutoff)
	v.SetDefault("matching.taca_cutoff", resolve.DefaultTACACutoff)
	v.SetDefault("matching.workers", 8)
	v.SetDefault("matching.fuzzy_memo_size", 4096)
	v.SetDefault("matching.disable_score_rules", false)

	// Registry
	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.base_url", "https://www.ebi.ac.uk/chembl/api/data")
	v.SetDefault("registry.timeout", "30s")
	v.SetDefault("registry.rate_limit", 5)
	v.SetDefault("registry.circuit_breaker.max_requests", 3)
	v.SetDefault("registry.circuit_breaker.interval", "30s")
	v.SetDefault("registry.circuit_breaker.timeout", "60s")
	v.SetDefault("registry.circuit_breaker.failure_threshold", 5)

	// Cache
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "168h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Output
	v.SetDefault("output.path", "enriched.json")
	v.SetDefault("output.unknowns_path", "")
	v.SetDefault("output.domains", domain.AllDomains)
	v.SetDefault("merge.join_by", domain.JoinByIndex)

	// Dictionary store
	v.SetDefault("store.driver", domain.StoreDriverNone)
	v.SetDefault("store.sqlite_path", "data/dictionary.db")
	v.SetDefault("store.postgres_url", "")

	// Record sink
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_life", "1h")
	v.SetDefault("database.max_conn_idle", "30m")
	v.SetDefault("database.migrate_on_start", true)

	// Metrics
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "adc-enrich")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// ConfigFileUsed returns the file the configuration was read from, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "fatal": true, "panic": true,
}

// Validate checks config and returns the first problem as a
// *domain.ValidationError.
func Validate(config *domain.Config) error {
	if config == nil {
		return domain.NewValidationError("config", "configuration is required", nil)
	}

	if strings.TrimSpace(config.Input.CorpusPath) == "" {
		return domain.NewValidationError("input.corpus_path", "corpus path is required", config.Input.CorpusPath)
	}

	cutoffs := []struct {
		field string
		value float64
	}{
		{"matching.gene_cutoff", config.Matching.GeneCutoff},
		{"matching.disease_cutoff", config.Matching.DiseaseCutoff},
		{"matching.acronym_cutoff", config.Matching.AcronymCutoff},
		{"matching.taca_cutoff", config.Matching.TACACutoff},
	}
	for _, c := range cutoffs {
		if c.value <= 0 || c.value > 1 {
			return domain.NewValidationError(c.field, "cutoff must be in (0, 1]", c.value)
		}
	}

	if config.Matching.Workers <= 0 {
		return domain.NewValidationError("matching.workers", "workers must be positive", config.Matching.Workers)
	}
	if config.Matching.FuzzyMemoSize < 0 {
		return domain.NewValidationError("matching.fuzzy_memo_size", "memo size cannot be negative", config.Matching.FuzzyMemoSize)
	}

	if config.Merge.JoinBy != domain.JoinByIndex && config.Merge.JoinBy != domain.JoinByName {
		return domain.NewValidationError("merge.join_by", "join mode must be index or name", config.Merge.JoinBy)
	}

	if len(config.Output.Domains) == 0 {
		return domain.NewValidationError("output.domains", "at least one domain is required", config.Output.Domains)
	}
	seen := make(map[string]bool, len(config.Output.Domains))
	for _, d := range config.Output.Domains {
		if !domain.IsKnownDomain(d) {
			return domain.NewValidationError("output.domains", "unknown domain", d)
		}
		if seen[d] {
			return domain.NewValidationError("output.domains", "duplicate domain", d)
		}
		seen[d] = true
	}
	if strings.TrimSpace(config.Output.Path) == "" {
		return domain.NewValidationError("output.path", "output path is required", config.Output.Path)
	}

	switch config.Store.Driver {
	case domain.StoreDriverNone:
	case domain.StoreDriverSQLite:
		if config.Store.SQLitePath == "" {
			return domain.NewValidationError("store.sqlite_path", "sqlite path is required", "")
		}
	case domain.StoreDriverPostgres:
		if config.Store.PostgresURL == "" {
			return domain.NewValidationError("store.postgres_url", "postgres url is required", "")
		}
	default:
		return domain.NewValidationError("store.driver", "driver must be sqlite or postgres", config.Store.Driver)
	}

	if config.Database.Enabled && config.Database.URL == "" {
		return domain.NewValidationError("database.url", "database url is required when the sink is enabled", "")
	}

	if config.Registry.Enabled {
		if config.Registry.BaseURL == "" {
			return domain.NewValidationError("registry.base_url", "registry base url is required", "")
		}
		if config.Registry.RateLimit < 0 {
			return domain.NewValidationError("registry.rate_limit", "rate limit cannot be negative", config.Registry.RateLimit)
		}
	}

	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return domain.NewValidationError("logging.level", "invalid log level", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return domain.NewValidationError("logging.format", "format must be json or text", config.Logging.Format)
	}

	return nil
}

// Acronyms returns the configured acronym table, or nil for the built-in one.
func Acronyms(config *domain.Config) normalize.AcronymTable {
	if len(config.Matching.Acronyms) == 0 {
		return nil
	}
	table := make(normalize.AcronymTable, 0, len(config.Matching.Acronyms))
	for _, a := range config.Matching.Acronyms {
		table = append(table, normalize.Acronym{Short: a.Acronym, Long: a.Expansion})
	}
	return table
}

// ScoreRules returns the configured disease score rules: nil for the
// anatomical defaults, empty when rules are disabled.
func ScoreRules(config *domain.Config) []resolve.ScoreRule {
	if config.Matching.DisableScoreRules {
		return []resolve.ScoreRule{}
	}
	if len(config.Matching.ScoreRules) == 0 {
		return nil
	}
	rules := make([]resolve.ScoreRule, 0, len(config.Matching.ScoreRules))
	for _, r := range config.Matching.ScoreRules {
		rules = append(rules, resolve.KeywordBoost{
			Name:       r.Name,
			InputTerms: r.InputTerms,
			LabelTerm:  r.LabelTerm,
			Boost:      r.Boost,
		})
	}
	return rules
}
