package cli

import (
	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/classify"
)

func newTablesCmd(root *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Print the effective keyword tables as YAML",
		Long: "Tables prints the company, trial design and biomarker keyword tables\n" +
			"after overrides from vocabulary.keyword_tables_path are applied.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := loadConfig(root)
				if err != nil {
					return err
				}
				dir = cfg.Vocabulary.KeywordTablesPath
			}

			tables, err := classify.LoadTables(dir)
			if err != nil {
				return err
			}
			data, err := tables.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "keyword table directory (overrides vocabulary.keyword_tables_path)")
	return cmd
}
