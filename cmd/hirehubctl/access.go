package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hirehub/hirehub-core/internal/auth"
)

func newAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect the role/module access table",
	}

	resolve := &cobra.Command{
		Use:   "resolve <module> <role>",
		Short: "Resolve one module for one role",
		Long: `Resolve the access envelope of a module for a role.

Unknown modules or roles resolve to denied with no permissions.

Examples:
  hirehubctl access resolve categories company
  hirehubctl access resolve jobs expert --format json
`,
		Args: cobra.ExactArgs(2),
		RunE: runAccessResolve,
	}

	table := &cobra.Command{
		Use:   "table",
		Short: "Print the full access table",
		Long: `Print every module's access envelope for every role, or for one
role with --role.`,
		Args: cobra.NoArgs,
		RunE: runAccessTable,
	}
	table.Flags().String("role", "", "limit output to one role")

	cmd.AddCommand(resolve, table)
	return cmd
}

func runAccessResolve(cmd *cobra.Command, args []string) error {
	module, role := args[0], args[1]
	a := auth.Resolve(module, role)

	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // persistent flag always defined
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"module":      module,
			"role":        role,
			"allowed":     a.Allowed,
			"permissions": a.Permissions,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %s\n", module, role, describeAccess(a))
	return nil
}

func runAccessTable(cmd *cobra.Command, _ []string) error {
	roles := auth.Roles
	if r, _ := cmd.Flags().GetString("role"); r != "" { //nolint:errcheck // flag defined above
		role, err := auth.ParseRole(r)
		if err != nil {
			return err
		}
		roles = []auth.Role{role}
	}

	table := auth.DefaultAccessTable()
	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // persistent flag always defined
	if format == formatJSON {
		out := make(map[auth.Role]map[auth.Module]auth.Access, len(roles))
		for _, r := range roles {
			out[r] = table.ForRole(string(r))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	header := []string{"MODULE"}
	for _, r := range roles {
		header = append(header, strings.ToUpper(string(r)))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, m := range auth.Modules {
		row := []string{string(m)}
		for _, r := range roles {
			row = append(row, describeAccess(table.Resolve(string(m), string(r))))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func describeAccess(a auth.Access) string {
	if !a.Allowed || len(a.Permissions) == 0 {
		return "-"
	}
	perms := make([]string, len(a.Permissions))
	for i, p := range a.Permissions {
		perms[i] = string(p)
	}
	return strings.Join(perms, ",")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
