package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/config"
	"github.com/adc-ontology-enricher/internal/pipeline"
)

type runOptions struct {
	input    string
	output   string
	unknowns string
	domains  []string
	joinBy   string
	quiet    bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich the corpus and write the enriched records",
		Example: `  adc-enrich run --config config.yaml
  adc-enrich run --input corpus.json --output enriched.json --domains antigen,disease`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrichment(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "corpus path (overrides input.corpus_path)")
	f.StringVarP(&opts.output, "output", "o", "", "enriched output path (overrides output.path)")
	f.StringVar(&opts.unknowns, "unknowns", "", "unknowns report path (overrides output.unknowns_path)")
	f.StringSliceVar(&opts.domains, "domains", nil, "domains to enrich (overrides output.domains)")
	f.StringVar(&opts.joinBy, "join-by", "", "merge join key: index or name (overrides merge.join_by)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the run summary")
	return cmd
}

func runEnrichment(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if opts.input != "" {
		cfg.Input.CorpusPath = opts.input
	}
	if opts.output != "" {
		cfg.Output.Path = opts.output
	}
	if opts.unknowns != "" {
		cfg.Output.UnknownsPath = opts.unknowns
	}
	if len(opts.domains) > 0 {
		cfg.Output.Domains = opts.domains
	}
	if opts.joinBy != "" {
		cfg.Merge.JoinBy = opts.joinBy
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.New(cfg, logger).Run(ctx)
	if err != nil {
		return err
	}
	if !opts.quiet {
		printSummary(cmd.OutOrStdout(), summary)
	}
	return nil
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
