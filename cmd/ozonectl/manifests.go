package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/ozone/internal/manifest"
	"github.com/darkden-lab/ozone/internal/plugin"
)

var (
	pluginPrefix string
	contextRoot  string
	showParams   bool
)

// errInvalid makes validate exit non-zero after printing its report.
var errInvalid = errors.New("one or more plugins failed to load")

func folderArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "plugins"
}

func loadFolder(dir string) (manifest.LoadResult, error) {
	v, err := manifest.DefaultValidator()
	if err != nil {
		return manifest.LoadResult{}, err
	}
	return manifest.NewStore(pluginPrefix, v, nil).Load(dir), nil
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load every plugin manifest under dir and report failures",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().StringVar(&pluginPrefix, "prefix", "ozone-", "Plugin directory prefix")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := folderArg(args)
	res, err := loadFolder(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d discovered, %d loaded, %d failed\n",
		dir, res.Discovered, len(res.Loaded), len(res.Failures))
	for _, m := range res.Loaded {
		fmt.Fprintf(out, "  ok    %-20s %s\n", m.ID(), m.Dir)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  FAIL  %s: %v\n", f.Dir, f.Err)
	}
	if len(res.Failures) > 0 {
		return errInvalid
	}
	return nil
}

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes [dir]",
		Short: "Print the routes a gateway would synthesize from dir",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRoutes,
	}
	cmd.Flags().StringVar(&pluginPrefix, "prefix", "ozone-", "Plugin directory prefix")
	cmd.Flags().StringVar(&contextRoot, "context-root", "/api", "Context root prefixed to every route")
	cmd.Flags().BoolVar(&showParams, "params", false, "List required (*) and administrative (!) parameters per route")
	return cmd
}

func runRoutes(cmd *cobra.Command, args []string) error {
	res, err := loadFolder(folderArg(args))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s  %-48s  %-16s  %s\n", "METHOD", "URI", "PLUGIN", "FUNCTION")
	for _, m := range res.Loaded {
		base, routes := plugin.Plan(contextRoot, m)
		fmt.Fprintf(out, "%-8s  %-48s  %-16s  %s\n", "OPTIONS", base, m.ID(), "(enumerate)")
		for _, r := range routes {
			fmt.Fprintf(out, "%-8s  %-48s  %-16s  %s.%s\n", r.Method, r.URI, m.ID(), r.Implementation, r.Function)
			if showParams {
				printRequirements(out, r)
			}
		}
	}
	return nil
}

func printRequirements(out io.Writer, r plugin.PlannedRoute) {
	admin := map[string]bool{}
	for _, p := range r.Administrative {
		admin[p] = true
	}
	var marked []string
	for _, p := range r.Required {
		name := p + "*"
		if admin[p] {
			name += "!"
			delete(admin, p)
		}
		marked = append(marked, name)
	}
	for _, p := range r.Administrative {
		if admin[p] {
			marked = append(marked, p+"!")
		}
	}
	if len(marked) > 0 {
		fmt.Fprintf(out, "%-8s  %s\n", "", strings.Join(marked, " "))
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the manifest JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := manifest.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
