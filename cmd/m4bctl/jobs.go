package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// jobView mirrors the server's job JSON.
type jobView struct {
	ID           string   `json:"id"`
	JobType      string   `json:"jobType"`
	Status       string   `json:"status"`
	InputFolders []string `json:"inputFolders,omitempty"`
	FilePath     string   `json:"filePath,omitempty"`
	OutputFile   string   `json:"outputFile,omitempty"`
	StartTime    string   `json:"startTime,omitempty"`
	EndTime      string   `json:"endTime,omitempty"`
	Log          string   `json:"log,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage conversion and tagging jobs",
	}

	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsGetCmd())
	cmd.AddCommand(newJobsDeleteCmd())
	cmd.AddCommand(newJobsClearCmd())
	cmd.AddCommand(newJobsCancelCmd())

	return cmd
}

func newJobsListCmd() *cobra.Command {
	var (
		status  string
		jobType string
		page    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(status, jobType, page)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (queued, running, completed, failed)")
	cmd.Flags().StringVar(&jobType, "type", "", "Filter by type (conversion, tagging)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	return cmd
}

func runJobsList(status, jobType string, page int) error {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if jobType != "" {
		params.Set("type", jobType)
	}
	if page > 1 {
		params.Set("page", fmt.Sprint(page))
	}

	path := "/api/v1/jobs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := globalClient.doRequest("GET", path, nil)
	if err != nil {
		return err
	}

	var result struct {
		Jobs  []jobView `json:"jobs"`
		Total int       `json:"total"`
		Page  int       `json:"page"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	rows := make([][]string, len(result.Jobs))
	for i, j := range result.Jobs {
		target := j.FilePath
		if j.JobType == "conversion" && len(j.InputFolders) > 0 {
			target = j.InputFolders[0]
		}
		rows[i] = []string{
			j.ID,
			j.JobType,
			j.Status,
			truncate(target, 40),
			j.CreatedAt,
		}
	}
	if err := printOutput(os.Stdout, format, result,
		[]string{"id", "type", "status", "target", "created"}, rows); err != nil {
		return err
	}
	if format == outputTable {
		fmt.Printf("\n%d job(s) total, page %d\n", result.Total, result.Page)
	}
	return nil
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsGet(args[0])
		},
	}
}

func runJobsGet(jobID string) error {
	body, err := globalClient.doRequest("GET", "/api/v1/jobs/"+jobID, nil)
	if err != nil {
		return err
	}

	var job jobView
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	if format != outputTable {
		return printOutput(os.Stdout, format, job, nil, nil)
	}

	rows := [][]string{
		{"ID", job.ID},
		{"Type", job.JobType},
		{"Status", job.Status},
	}
	for _, folder := range job.InputFolders {
		rows = append(rows, []string{"Input", folder})
	}
	if job.FilePath != "" {
		rows = append(rows, []string{"File", job.FilePath})
	}
	if job.OutputFile != "" {
		rows = append(rows, []string{"Output", job.OutputFile})
	}
	if job.StartTime != "" {
		rows = append(rows, []string{"Started", job.StartTime})
	}
	if job.EndTime != "" {
		rows = append(rows, []string{"Ended", job.EndTime})
	}
	if job.Log != "" {
		rows = append(rows, []string{"Log", job.Log})
	}
	rows = append(rows, []string{"Created", job.CreatedAt})

	return printTable(os.Stdout, []string{"field", "value"}, rows)
}

func newJobsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := globalClient.doRequest("DELETE", "/api/v1/jobs/"+args[0], nil); err != nil {
				return err
			}
			fmt.Printf("Job %s deleted\n", args[0])
			return nil
		},
	}
}

func newJobsClearCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete finished jobs older than a retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsClear(days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Delete completed/failed jobs older than this many days")
	return cmd
}

func runJobsClear(days int) error {
	path := fmt.Sprintf("/api/v1/jobs/clear?days=%d", days)
	body, err := globalClient.doRequest("POST", path, nil)
	if err != nil {
		return err
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Printf("Deleted %d job(s)\n", result.Deleted)
	return nil
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running conversion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/convert/%s/cancel", args[0])
			if _, err := globalClient.doRequest("POST", path, nil); err != nil {
				return err
			}
			fmt.Printf("Job %s canceling\n", args[0])
			return nil
		},
	}
}
