package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

func newOpenCmd() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Open a gateway route in the browser (the HTML enumeration view by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := gatewayURL(getServer(), args[0], query)
			if err != nil {
				return err
			}
			if err := browser.OpenURL(target); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser:\n  %s\n", target)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "format=html&enumerate=true", "Query string appended to the path")
	return cmd
}

func gatewayURL(serverURL, path, query string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid --server: %w", err)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path += path
	u.RawQuery = query
	return u.String(), nil
}
