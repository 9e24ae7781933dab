package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/pkg/external"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cross-run registry response cache",
	}
	cmd.AddCommand(newCacheFlushCmd(root))
	return cmd
}

func newCacheFlushCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Drop every cached registry lookup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cfg.Cache.RedisURL == "" {
				return fmt.Errorf("no response cache configured (set cache.redis_url)")
			}

			client, err := external.NewCacheClient(cfg.Cache)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.FlushLookups(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "registry lookup cache flushed")
			return nil
		},
	}
}
