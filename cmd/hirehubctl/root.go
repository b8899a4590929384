package main

import (
	"github.com/spf13/cobra"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hirehubctl",
		Short: "Operator tools for HireHub Core",
		Long: `Operator tools for HireHub Core.

Available command groups:
  access   - Inspect the role/module access table
  routes   - Validate page route tables
  users    - Manage user accounts
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default $HIREHUB_CONFIG or configs/config.yaml)")
	root.PersistentFlags().String("format", formatText, "output format: text or json")

	root.AddCommand(newAccessCmd(), newRoutesCmd(), newUsersCmd())
	return root
}
