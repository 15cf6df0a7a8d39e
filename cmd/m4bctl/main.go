// Package main provides the m4bctl CLI binary for managing the m4bforge
// server: starting conversions, inspecting jobs, and tagging artifacts.
// It communicates with the m4b-server HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL    string
	outputFlag   string
	globalClient *apiClient
)

// apiClient wraps an HTTP client and the server base URL.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// newAPIClient creates a new client targeting the given server URL.
func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}
}

// doRequest performs an HTTP request and returns the response body bytes.
// It returns an error if the status code indicates a failure.
func (c *apiClient) doRequest(method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("sending request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to m4bforge server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "m4bctl",
		Short: "CLI for the m4bforge audiobook conversion server",
		Long: `m4bctl is a command-line tool for managing the m4bforge server.

It provides commands for converting MP3 folders into M4B audiobooks,
inspecting conversion and tagging jobs, and tagging finished files with
catalog metadata.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalClient = newAPIClient(serverURL)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "m4bforge server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newFoldersCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newTagCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
