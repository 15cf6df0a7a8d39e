package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Tag converted audiobooks with catalog metadata",
	}

	cmd.AddCommand(newTagSearchCmd())
	cmd.AddCommand(newTagApplyCmd())
	cmd.AddCommand(newTagFilesCmd())

	return cmd
}

func newTagSearchCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "search <file>",
		Short: "Search the catalog for metadata candidates",
		Long: `Search the metadata catalog for the given converted file. Without
--query, the search term is derived from the filename.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTagSearch(args[0], query)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Search query (defaults to the filename)")
	return cmd
}

func runTagSearch(file, query string) error {
	payload, err := json.Marshal(map[string]string{
		"file":  file,
		"query": query,
	})
	if err != nil {
		return err
	}

	body, err := globalClient.doRequest("POST", "/api/v1/tag/search", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var result struct {
		JobID      string `json:"jobId"`
		Candidates []struct {
			Title    string `json:"title"`
			Author   string `json:"author"`
			Narrator string `json:"narrator"`
			Series   string `json:"series"`
			ASIN     string `json:"asin"`
			Locale   string `json:"locale"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	rows := make([][]string, len(result.Candidates))
	for i, c := range result.Candidates {
		rows[i] = []string{
			c.ASIN,
			truncate(c.Title, 40),
			truncate(c.Author, 30),
			truncate(c.Series, 25),
			c.Locale,
		}
	}
	return printOutput(os.Stdout, format, result,
		[]string{"asin", "title", "author", "series", "locale"}, rows)
}

func newTagApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file-id> <asin>",
		Short: "Apply catalog metadata to a file",
		Long: `Start a tagging job that fetches full metadata and cover art for the
given ASIN, embeds them into the file, and moves it into the library.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTagApply(args[0], args[1])
		},
	}
}

func runTagApply(fileID, asin string) error {
	payload, err := json.Marshal(map[string]string{
		"fileId": fileID,
		"asin":   asin,
	})
	if err != nil {
		return err
	}

	body, err := globalClient.doRequest("POST", "/api/v1/tag/apply", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var result struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Printf("Tagging job %s started\n", result.JobID)
	return nil
}

func newTagFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List converted files awaiting tagging",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTagFiles()
		},
	}
}

func runTagFiles() error {
	body, err := globalClient.doRequest("GET", "/api/v1/tag/files", nil)
	if err != nil {
		return err
	}

	var result struct {
		Files []struct {
			ID        string `json:"id"`
			FilePath  string `json:"filePath"`
			CreatedAt string `json:"createdAt"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	rows := make([][]string, len(result.Files))
	for i, f := range result.Files {
		rows[i] = []string{f.ID, truncate(f.FilePath, 60), f.CreatedAt}
	}
	return printOutput(os.Stdout, format, result,
		[]string{"id", "path", "registered"}, rows)
}
