package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSaveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "save <bundle>",
		Short: "Recompute a bundle's diffs and persist it",
		Long: "Recompute and persist every diff the bundle owns. With --force, every\n" +
			"listed target is reopened fresh and re-diffed against its clean baseline;\n" +
			"stale entries whose diff degenerated to a no-op are pruned.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.ws.SetBundle(args[0]); err != nil {
				return err
			}
			if err := s.ws.Save(force); err != nil {
				return err
			}

			b := s.ws.ActiveBundle()
			fmt.Fprintf(cmd.OutOrStdout(), "saved bundle %s (%d resources, %d entities, game %s)\n",
				b.Name, len(b.ResourceListing), len(b.Entities), b.GameVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-diff every listed target, not only open handles")
	return cmd
}
