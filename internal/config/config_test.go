package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/pkg/resolve"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager(writeConfig(t, "input:\n  corpus_path: corpus.json\n"))
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, "corpus.json", cfg.Input.CorpusPath)
	assert.Equal(t, resolve.DefaultGeneCutoff, cfg.Matching.GeneCutoff)
	assert.Equal(t, resolve.DefaultDiseaseCutoff, cfg.Matching.DiseaseCutoff)
	assert.Equal(t, 8, cfg.Matching.Workers)
	assert.Equal(t, domain.JoinByIndex, cfg.Merge.JoinBy)
	assert.Equal(t, domain.AllDomains, cfg.Output.Domains)
	assert.Equal(t, 30*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, uint32(5), cfg.Registry.CircuitBreaker.FailureThreshold)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NoError(t, m.Validate())
}

func TestNewManager_FileValues(t *testing.T) {
	path := writeConfig(t, `
input:
  corpus_path: data/corpus.json
matching:
  disease_cutoff: 0.8
  acronyms:
    - acronym: TNBC
      expansion: triple-negative breast cancer
  score_rules:
    - name: liver
      input_terms: [liver, hepatic]
      label_term: liver
      boost: 0.1
output:
  domains: [antigen, disease]
merge:
  join_by: name
store:
  driver: sqlite
  sqlite_path: /tmp/dict.db
`)
	m, err := NewManager(path)
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, path, m.ConfigFileUsed())
	assert.Equal(t, 0.8, cfg.Matching.DiseaseCutoff)
	assert.Equal(t, []string{"antigen", "disease"}, cfg.Output.Domains)
	assert.Equal(t, domain.JoinByName, cfg.Merge.JoinBy)
	assert.Equal(t, domain.StoreDriverSQLite, cfg.Store.Driver)
	require.NoError(t, m.Validate())

	acronyms := Acronyms(cfg)
	require.Len(t, acronyms, 1)
	assert.Equal(t, "TNBC", acronyms[0].Short)

	rules := ScoreRules(cfg)
	require.Len(t, rules, 1)
	assert.Equal(t, 0.1, rules[0].(resolve.KeywordBoost).Boost)
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ADC_ENRICH_INPUT_CORPUS_PATH", "/env/corpus.json")
	t.Setenv("ADC_ENRICH_MATCHING_WORKERS", "2")
	t.Setenv("ADC_ENRICH_LOGGING_LEVEL", "debug")

	m, err := NewManager(writeConfig(t, "input:\n  corpus_path: file.json\n"))
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, "/env/corpus.json", cfg.Input.CorpusPath)
	assert.Equal(t, 2, cfg.Matching.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestNewManager_MissingExplicitFile(t *testing.T) {
	_, err := NewManager(filepath.Join(os.TempDir(), "does-not-exist", "config.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *domain.Config {
		m, err := NewManager(writeConfig(t, "input:\n  corpus_path: corpus.json\n"))
		require.NoError(t, err)
		return m.GetConfig()
	}

	tests := []struct {
		name   string
		mutate func(c *domain.Config)
		field  string
	}{
		{"Missing_Corpus", func(c *domain.Config) { c.Input.CorpusPath = " " }, "input.corpus_path"},
		{"Cutoff_Zero", func(c *domain.Config) { c.Matching.GeneCutoff = 0 }, "matching.gene_cutoff"},
		{"Cutoff_Above_One", func(c *domain.Config) { c.Matching.DiseaseCutoff = 1.2 }, "matching.disease_cutoff"},
		{"No_Workers", func(c *domain.Config) { c.Matching.Workers = 0 }, "matching.workers"},
		{"Bad_Join", func(c *domain.Config) { c.Merge.JoinBy = "title" }, "merge.join_by"},
		{"Unknown_Domain", func(c *domain.Config) { c.Output.Domains = []string{"antigen", "species"} }, "output.domains"},
		{"Duplicate_Domain", func(c *domain.Config) { c.Output.Domains = []string{"antigen", "antigen"} }, "output.domains"},
		{"Bad_Store", func(c *domain.Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"Postgres_Store_Without_URL", func(c *domain.Config) { c.Store.Driver = domain.StoreDriverPostgres }, "store.postgres_url"},
		{"Sink_Without_URL", func(c *domain.Config) { c.Database.Enabled = true }, "database.url"},
		{"Bad_Log_Level", func(c *domain.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"Bad_Log_Format", func(c *domain.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestScoreRules_Disabled(t *testing.T) {
	cfg := &domain.Config{}
	assert.Nil(t, ScoreRules(cfg))

	cfg.Matching.DisableScoreRules = true
	rules := ScoreRules(cfg)
	assert.NotNil(t, rules)
	assert.Empty(t, rules)
}
