package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <folder-or-pak>",
		Short: "Initialize a bundle from an unlabelled mod folder or archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			b, report, err := s.ws.Bundles().InitializeUnlabelledBundle(args[0], s.index, s.ws.GameVersion())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Existing {
				fmt.Fprintf(out, "bundle %s already initialized, nothing changed\n", b.Name)
				return nil
			}

			fmt.Fprintf(out, "imported bundle %s (%d resources)\n", b.Name, len(b.ResourceListing))
			for local, target := range report.Guessed {
				fmt.Fprintf(out, "  guessed %s -> %s\n", local, target)
			}
			for _, p := range report.LowConfidence {
				fmt.Fprintf(out, "  warning: low-confidence guess for %s, review the listing\n", p)
			}
			for _, p := range report.Unsupported {
				fmt.Fprintf(out, "  warning: %s is unsupported and will not be managed\n", p)
			}
			return nil
		},
	}
}
