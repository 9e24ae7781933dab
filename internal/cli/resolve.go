package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/pipeline"
	"github.com/adc-ontology-enricher/pkg/external"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "resolve <domain> <term>",
		Short: "Resolve a single raw term and print the ontology field",
		Long: "Resolve runs one domain's match cascade on a single term, without a\n" +
			"corpus. Domains: " + strings.Join(domain.AllDomains, ", ") + ".",
		Example: `  adc-enrich resolve antigen HER2
  adc-enrich resolve disease "metastatic NSCLC"
  adc-enrich resolve trial_design "Phase 1 dose escalation"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domainName, term := args[0], args[1]
			if !domain.IsKnownDomain(domainName) {
				return fmt.Errorf("unknown domain %q (want one of %s)", domainName, strings.Join(domain.AllDomains, ", "))
			}

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if offline {
				cfg.Registry.Enabled = false
			}

			logger, closer, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			var registry external.MoleculeRegistry
			if cfg.Registry.Enabled {
				r, cleanup := pipeline.NewRegistry(cfg, logger)
				defer cleanup()
				registry = r
			}

			field, err := pipeline.ResolveOne(cmd.Context(), cfg, logger, registry, domainName, term)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(field, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode field: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "do not query the chemical registry")
	return cmd
}
