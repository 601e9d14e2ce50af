package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHealthcheckCommand probes /health and exits non-zero unless it answers
// 200. Distroless images have no curl, so the binary checks itself.
func newHealthcheckCommand(opts *globalOptions) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the running server's /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, _, err := opts.load(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				url = fmt.Sprintf("http://localhost:%d/health", cfg.Port)
			}
			return probe(cmd, url, timeout)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Health URL (default http://localhost:$PORT/health)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Request timeout")

	return cmd
}

func probe(cmd *cobra.Command, url string, timeout time.Duration) error {
	req, err := http.NewRequestWithContext(commandContext(cmd), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %s", resp.Status)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
