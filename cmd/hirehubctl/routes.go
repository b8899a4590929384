package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hirehub/hirehub-core/internal/guard"
	"github.com/hirehub/hirehub-core/internal/infrastructure/config"
)

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Validate page route tables",
	}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a route table",
		Long: `Validate the routes section of a config file, or the built-in table
when no file is given. Redirect loops, unknown targets and duplicate paths
are rejected.

Examples:
  hirehubctl routes validate
  hirehubctl routes validate configs/config.yaml
`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRoutesValidate,
	}

	cmd.AddCommand(validate)
	return cmd
}

// routesFile is the part of the config file this command reads. The rest
// of the file (secrets included) is not needed to check routes.
type routesFile struct {
	Routes []config.RouteConfig `yaml:"routes"`
}

func runRoutesValidate(cmd *cobra.Command, args []string) error {
	var cfgRoutes []config.RouteConfig
	source := "built-in table"
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var f routesFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		cfgRoutes = f.Routes
		if len(cfgRoutes) > 0 {
			source = args[0]
		}
	}

	routes, err := guard.RoutesFromConfig(cfgRoutes)
	if err != nil {
		return err
	}
	table, err := guard.NewTable(routes)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // persistent flag always defined
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"source": source,
			"valid":  true,
			"routes": table.Routes(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d routes OK\n", source, len(table.Routes()))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tREQUIREMENT\tREDIRECT")
	for _, r := range table.Routes() {
		redirect := "-"
		if target, ok := table.Route(r.RedirectTo); ok {
			redirect = target.Path
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Path, r.Requirement, redirect)
	}
	return w.Flush()
}
