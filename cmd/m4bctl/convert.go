package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var outputName string

	cmd := &cobra.Command{
		Use:   "convert <folder>...",
		Short: "Convert MP3 folders to M4B audiobooks",
		Long: `Start one conversion job per source folder. Each folder's MP3 files are
concatenated in order and encoded into a single M4B file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args, outputName)
		},
	}

	cmd.Flags().StringVar(&outputName, "name", "", "Desired output filename (single folder only)")
	return cmd
}

func runConvert(folders []string, outputName string) error {
	if outputName != "" && len(folders) > 1 {
		return fmt.Errorf("--name can only be used with a single folder")
	}

	folderMap := make(map[string]string, len(folders))
	for _, folder := range folders {
		folderMap[folder] = ""
	}
	if outputName != "" {
		folderMap[folders[0]] = outputName
	}

	payload, err := json.Marshal(map[string]any{"folders": folderMap})
	if err != nil {
		return err
	}

	body, err := globalClient.doRequest("POST", "/api/v1/convert", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var result struct {
		JobIDs []string `json:"jobIds"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	rows := make([][]string, len(result.JobIDs))
	for i, id := range result.JobIDs {
		rows[i] = []string{id}
	}
	return printOutput(os.Stdout, format, result, []string{"job id"}, rows)
}

func newFoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List source folders available for conversion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolders()
		},
	}
}

func runFolders() error {
	body, err := globalClient.doRequest("GET", "/api/v1/folders", nil)
	if err != nil {
		return err
	}

	var result struct {
		Folders []struct {
			Path         string `json:"path"`
			FileCount    int    `json:"fileCount"`
			TotalSize    int64  `json:"totalSizeBytes"`
			LastModified string `json:"lastModified"`
		} `json:"folders"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	rows := make([][]string, len(result.Folders))
	for i, f := range result.Folders {
		rows[i] = []string{
			f.Path,
			fmt.Sprint(f.FileCount),
			formatSize(f.TotalSize),
			f.LastModified,
		}
	}
	return printOutput(os.Stdout, format, result,
		[]string{"path", "files", "size", "modified"}, rows)
}

func formatSize(bytes int64) string {
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}
