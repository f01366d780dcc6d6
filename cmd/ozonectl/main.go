package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	server  string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ozonectl",
		Short: "Operator CLI for the Ozone gateway",
		Long: `ozonectl validates plugin directories, previews the routes a gateway would
synthesize from them and talks to a running gateway.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&server, "server", "", "Gateway URL (e.g. http://localhost:8080), or OZONE_SERVER")

	rootCmd.AddCommand(
		newValidateCmd(),
		newRoutesCmd(),
		newSchemaCmd(),
		newTokenCmd(),
		newPluginsCmd(),
		newReloadCmd(),
		newOpenCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getServer() string {
	if server != "" {
		return server
	}
	if s := os.Getenv("OZONE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}
