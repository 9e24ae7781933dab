// Package cli wires the adc-enrich commands: a full enrichment run, single
// term lookups, keyword table dumps, dictionary store inspection and
// schema and cache maintenance.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/config"
	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	logLevel   string
	noColor    bool
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "adc-enrich",
		Short: "Ontology enrichment for antibody-drug conjugate records",
		Long: "adc-enrich maps the free-text fields of ADC drug records onto stable\n" +
			"identifiers: HGNC genes, Disease Ontology terms, ChEMBL molecules and\n" +
			"curated keyword categories.",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: ./config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newRunCmd(opts),
		newResolveCmd(opts),
		newTablesCmd(opts),
		newCheckCmd(opts),
		newDictionaryCmd(opts),
		newMigrateCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command against os.Args and returns the process
// exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err)
		return exitCode(err)
	}
	return 0
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}

// loadConfig reads the configuration and applies the flag overrides. The
// result is not validated.
func loadConfig(opts *rootOptions) (*domain.Config, error) {
	manager, err := config.NewManager(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg := manager.GetConfig()
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

// newLogger builds the run logger. Commands that print results to stdout
// send logs to stderr unless a file is configured.
func newLogger(cfg *domain.Config, keepStdout bool) (*logrus.Logger, io.Closer, error) {
	lc := cfg.Logging
	if !keepStdout && (lc.Output == "" || strings.EqualFold(lc.Output, "stdout")) {
		lc.Output = "stderr"
	}
	return logging.New(lc)
}

// exitCode maps an error onto the process exit status: 2 for invalid
// configuration, 130 for an interrupted run, 1 otherwise.
func exitCode(err error) int {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return 2
	}
	var perr *domain.PipelineError
	if errors.As(err, &perr) && perr.Code == domain.ErrConfigError {
		return 2
	}
	if isCancelled(err) {
		return 130
	}
	return 1
}

func printError(w io.Writer, err error) {
	var perr *domain.PipelineError
	if errors.As(err, &perr) {
		fmt.Fprintf(w, "%s [%s] %s\n", color.RedString("Error:"), perr.Code, perr.Message)
		if perr.Details != "" {
			fmt.Fprintf(w, "  %s\n", perr.Details)
		}
		if perr.Err != nil {
			fmt.Fprintf(w, "  cause: %v\n", perr.Err)
		}
		return
	}
	fmt.Fprintf(w, "%s %v\n", color.RedString("Error:"), err)
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
