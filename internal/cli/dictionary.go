package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/domain"
	"github.com/adc-ontology-enricher/internal/store"
)

func newDictionaryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Inspect the resolved-dictionary store",
	}
	cmd.AddCommand(
		newDictionaryGetCmd(root),
		newDictionaryListCmd(root),
		newDictionaryExportCmd(root),
	)
	return cmd
}

// openStore opens the configured store, failing when none is configured.
func openStore(root *rootOptions) (store.Store, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("no dictionary store configured (set store.driver)")
	}
	return s, nil
}

func newDictionaryGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <domain> <raw-value>",
		Short: "Print the stored resolution of one raw value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			entry, err := s.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no entry for %s %q", args[0], args[1])
			}
			data, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newDictionaryListCmd(root *rootOptions) *cobra.Command {
	var (
		domainName string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if domainName != "" && !domain.IsKnownDomain(domainName) {
				return fmt.Errorf("unknown domain %q", domainName)
			}
			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.List(cmd.Context(), domainName, limit, offset)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%-18s %-30s %-14s %-16s %s\n", e.Domain, e.RawValue, e.Status, e.StableID, e.Label)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&domainName, "domain", "", "only list this domain")
	f.IntVar(&limit, "limit", 100, "maximum entries to list")
	f.IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

func newDictionaryExportCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored entry as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			if out == "" || out == "-" {
				return s.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := s.ExportJSON(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}
