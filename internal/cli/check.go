package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/classify"
	"github.com/adc-ontology-enricher/internal/config"
	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/store"
)

type checkLevel int

const (
	checkOK checkLevel = iota
	checkWarn
	checkFail
)

type checkResult struct {
	name   string
	level  checkLevel
	detail string
}

// errCheckFailed is returned when any check fails.
var errCheckFailed = errors.New("configuration check failed")

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and the inputs a run needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			results := runChecks(cmd, cfg)
			if printChecks(cmd.OutOrStdout(), results) {
				return errCheckFailed
			}
			return nil
		},
	}
}

func runChecks(cmd *cobra.Command, cfg *domain.Config) []checkResult {
	var results []checkResult

	if err := config.Validate(cfg); err != nil {
		results = append(results, checkResult{"configuration", checkFail, err.Error()})
	} else {
		results = append(results, checkResult{"configuration", checkOK, "valid"})
	}

	enabled := make(map[string]bool, len(cfg.Output.Domains))
	for _, d := range cfg.Output.Domains {
		enabled[d] = true
	}

	results = append(results, fileCheck("corpus", cfg.Input.CorpusPath, true))
	if enabled[domain.DomainAntigen] {
		results = append(results, fileCheck("HGNC table", cfg.Vocabulary.HGNCPath, true))
		results = append(results, fileCheck("TACA table", cfg.Vocabulary.TACAPath, false))
	}
	if enabled[domain.DomainDisease] {
		results = append(results, fileCheck("Disease Ontology", cfg.Vocabulary.DOIDPath, true))
	}

	if _, err := classify.LoadTables(cfg.Vocabulary.KeywordTablesPath); err != nil {
		results = append(results, checkResult{"keyword tables", checkFail, err.Error()})
	} else if cfg.Vocabulary.KeywordTablesPath == "" {
		results = append(results, checkResult{"keyword tables", checkOK, "built-in"})
	} else {
		results = append(results, checkResult{"keyword tables", checkOK, cfg.Vocabulary.KeywordTablesPath})
	}

	if !cfg.Registry.Enabled {
		results = append(results, checkResult{"chemical registry", checkWarn, "disabled; drug, payload and linker are skipped"})
	} else {
		results = append(results, checkResult{"chemical registry", checkOK, cfg.Registry.BaseURL})
	}

	results = append(results, storeCheck(cmd, cfg))
	return results
}

func fileCheck(name, path string, required bool) checkResult {
	switch {
	case path == "" && required:
		return checkResult{name, checkFail, "not configured"}
	case path == "":
		return checkResult{name, checkWarn, "not configured"}
	case !fileExists(path) && required:
		return checkResult{name, checkFail, "missing: " + path}
	case !fileExists(path):
		return checkResult{name, checkWarn, "missing: " + path}
	}
	return checkResult{name, checkOK, path}
}

func storeCheck(cmd *cobra.Command, cfg *domain.Config) checkResult {
	s, err := store.Open(cfg.Store)
	if err != nil {
		return checkResult{"dictionary store", checkFail, err.Error()}
	}
	if s == nil {
		return checkResult{"dictionary store", checkOK, "disabled"}
	}
	defer s.Close()

	n, err := s.Count(cmd.Context())
	if err != nil {
		return checkResult{"dictionary store", checkFail, err.Error()}
	}
	return checkResult{"dictionary store", checkOK, fmt.Sprintf("%s, %d entries", cfg.Store.Driver, n)}
}

// printChecks writes one line per result and reports whether any failed.
func printChecks(w io.Writer, results []checkResult) bool {
	failed := false
	for _, r := range results {
		var mark string
		switch r.level {
		case checkOK:
			mark = color.GreenString("✓")
		case checkWarn:
			mark = color.YellowString("!")
		default:
			mark = color.RedString("✗")
			failed = true
		}
		fmt.Fprintf(w, "%s %-18s %s\n", mark, r.name, r.detail)
	}
	return failed
}
