package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBundlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundles",
		Short: "List known bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			names := s.ws.Bundles().Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no bundles")
				return nil
			}
			for _, name := range names {
				b, _ := s.ws.Bundles().Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d resources\t%d entities\tgame %s\n",
					name, len(b.ResourceListing), len(b.Entities), b.GameVersion)
			}
			return nil
		},
	}
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			b, err := s.ws.Bundles().Create(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created bundle %s at %s\n", b.Name, b.Dir())
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a bundle and its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.ws.Bundles().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted bundle %s\n", args[0])
			return nil
		},
	}
}
