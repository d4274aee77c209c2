package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halvect/remod/pkg/resolve"
)

func newResolveCmd() *cobra.Command {
	var bundleName string

	cmd := &cobra.Command{
		Use:   "resolve <logical-path>",
		Short: "Show which physical source a logical path resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if bundleName != "" {
				if err := s.ws.SetBundle(bundleName); err != nil {
					return err
				}
			}

			src, err := s.ws.Resolver().Resolve(args[0])
			if err != nil {
				return err
			}

			switch src.Kind {
			case resolve.KindArchive:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s entry in %s\n", src.Logical, src.Kind, src.Archive)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s file %s\n", src.Logical, src.Kind, src.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundleName, "bundle", "", "resolve through the named bundle's overlay")
	return cmd
}
