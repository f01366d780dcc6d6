package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/ozone/internal/plugin"
)

type pluginsResponse struct {
	Ready    bool                  `json:"ready"`
	Expected int                   `json:"expected"`
	Loaded   int                   `json:"loaded"`
	Failed   int                   `json:"failed"`
	Plugins  []plugin.PluginStatus `json:"plugins"`
}

func newPluginsCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins of a running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := getServer()
			list, err := fetchPlugins(srv, token)
			if err != nil {
				return fmt.Errorf("failed to fetch plugins: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plugins on %s (ready=%t, %d loaded, %d failed):\n\n",
				srv, list.Ready, list.Loaded, list.Failed)
			fmt.Fprintf(out, "  %-20s  %-8s  %-6s  %s\n", "ID", "STATUS", "ROUTES", "BASE")
			for _, p := range list.Plugins {
				fmt.Fprintf(out, "  %-20s  %-8s  %-6d  %s\n", p.ID, p.Status, p.Routes, p.Route)
				if p.Error != "" {
					fmt.Fprintf(out, "      error: %s\n", p.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for gateways running with auth.mode=jwt")
	return cmd
}

func fetchPlugins(serverURL, token string) (*pluginsResponse, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest("GET", serverURL+"/_ozone/plugins", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var list pluginsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

type reloadResponse struct {
	Loaded int `json:"loaded"`
	Failed int `json:"failed"`
	Routes int `json:"routes"`
}

func newReloadCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Make a running gateway read its plugin folder again",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := getServer()
			report, err := reloadPlugins(srv, token)
			if err != nil {
				return fmt.Errorf("failed to reload plugins: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reloaded %s: %d loaded, %d failed, %d routes\n",
				srv, report.Loaded, report.Failed, report.Routes)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for gateways running with auth.mode=jwt")
	return cmd
}

func reloadPlugins(serverURL, token string) (*reloadResponse, error) {
	// Reload waits for every plugin to settle.
	client := &http.Client{Timeout: 60 * time.Second}
	req, err := http.NewRequest("POST", serverURL+"/_ozone/plugins/reload", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var report reloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}
