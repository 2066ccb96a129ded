package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// RemoteCmd manages the imtbotd instance used by --remote.
func RemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Configure the imtbotd server used by --remote",
	}

	cmd.AddCommand(remoteSetCmd())
	cmd.AddCommand(remoteShowCmd())
	cmd.AddCommand(remoteClearCmd())
	cmd.AddCommand(remotePingCmd())

	return cmd
}

func remoteSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <url> [api-key]",
		Short: "Save the server URL and optional API key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL := strings.TrimRight(args[0], "/")
			u, err := url.Parse(apiURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("invalid server URL %q", args[0])
			}

			cfg := &GlobalConfig{APIURL: apiURL}
			if len(args) == 2 {
				cfg.APIKey = args[1]
			}
			if err := SaveGlobalConfig(cfg); err != nil {
				return err
			}

			path, _ := GetConfigPath()
			fmt.Printf("Saved remote %s to %s\n", apiURL, path)
			return nil
		},
	}
}

func remoteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved server",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if outputJSON {
				encoded, _ := json.MarshalIndent(map[string]interface{}{
					"api_url":     api.baseURL,
					"has_api_key": api.apiKey != "",
				}, "", "  ")
				fmt.Println(string(encoded))
				return nil
			}
			fmt.Printf("URL:     %s\n", api.baseURL)
			fmt.Printf("API key: %s\n", maskKey(api.apiKey))
			return nil
		},
	}
}

func remoteClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the saved server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Println("Remote configuration removed")
			return nil
		},
	}
}

func remotePingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers and describe its index",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			if _, err := api.Get(ctx, "/health"); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			resp, err := api.Get(ctx, "/index")
			if err != nil {
				return err
			}
			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}

			var stats struct {
				Chunks   int      `json:"chunks"`
				Sources  []string `json:"sources"`
				Semantic bool     `json:"semantic"`
			}
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("failed to parse index stats: %w", err)
			}
			fmt.Printf("%s is up: %d chunks from %d sources, semantic=%t\n",
				api.baseURL, stats.Chunks, len(stats.Sources), stats.Semantic)
			return nil
		},
	}
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(none)"
	case len(key) <= 4:
		return "****"
	default:
		return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
	}
}
