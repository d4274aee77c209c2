package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "remod",
		Short: "Mod bundle manager for binary game-asset trees",
	}
	root.PersistentFlags().String("config", "remod.yaml", "path to the tool configuration file")
	root.PersistentFlags().String("log-level", "", "override configured log level")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newBundlesCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newSaveCmd())
	root.AddCommand(newSchemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("remod 0.1.0-dev")
		},
	}
}
