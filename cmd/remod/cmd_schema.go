package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [class-or-entity]",
		Short: "Show the merged runtime schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			set := s.ws.Schema()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				names := make([]string, 0, len(set.Classes))
				for name := range set.Classes {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "class %s (%d fields)\n", name, len(set.Classes[name].Fields))
				}
				for key, et := range set.Entities.All() {
					fmt.Fprintf(out, "entity %s (%s)\n", key, et.FullName)
				}
				return nil
			}

			name := args[0]
			if cs, ok := set.Classes[name]; ok {
				fmt.Fprintf(out, "class %s\n", cs.Name)
				if cs.ToString != "" {
					fmt.Fprintf(out, "  to_string: %s\n", cs.ToString)
				}
				fields := make([]string, 0, len(cs.Fields))
				for f := range cs.Fields {
					fields = append(fields, f)
				}
				sort.Strings(fields)
				for _, f := range fields {
					fd := cs.Fields[f]
					fmt.Fprintf(out, "  %s %s", f, fd.Type)
					if fd.Display != "" {
						fmt.Fprintf(out, " (%s)", fd.Display)
					}
					fmt.Fprintln(out)
				}
				for _, sub := range cs.Subclasses {
					fmt.Fprintf(out, "  subclass %s\n", sub)
				}
				return nil
			}

			if et, ok := set.Entities.Get(name); ok {
				fmt.Fprintf(out, "entity %s (key %s)\n", et.FullName, et.ShortKey)
				for _, f := range et.Fields {
					fmt.Fprintf(out, "  %s %s\n", f.Name, f.Type)
				}
				return nil
			}

			return fmt.Errorf("schema: %q is not a known class or entity type", name)
		},
	}
}
