package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vlsilab/chipdash/pkg/aggregate"
	"github.com/vlsilab/chipdash/pkg/api"
	"github.com/vlsilab/chipdash/pkg/models"
	"github.com/vlsilab/chipdash/pkg/retry"
	"github.com/vlsilab/chipdash/pkg/session"
	"github.com/vlsilab/chipdash/pkg/store"
)

var (
	// Job list flags
	listCategory string
	listStatus   string
	listSearch   string
	listPage     int
	listAll      bool

	// Job status flags
	followStatus bool

	// Job download flags
	downloadDest string
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage dashboard jobs",
	Long:  `Commands for listing, inspecting, rerunning and deleting the aggregated hardware test and LDPC jobs.`,
}

// jobsListCmd represents the jobs list command
var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List aggregated jobs",
	Long:  `List jobs merged from both collections, newest first. When every source is unreachable the last cached snapshot is shown instead.`,
	RunE:  runJobsList,
}

// jobsStatusCmd represents the jobs status command
var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Long:  `Retrieve the current status of one job by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

// jobsDeleteCmd represents the jobs delete command
var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id> [job-id...]",
	Short: "Delete jobs",
	Long:  `Delete one or more jobs. With multiple ids the batch is best effort: a failed deletion never aborts the rest, and a success/failure count is printed at the end.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobsDelete,
}

// jobsRerunCmd represents the jobs rerun command
var jobsRerunCmd = &cobra.Command{
	Use:   "rerun <job-id>",
	Short: "Rerun a test",
	Long:  `Requeue a hardware test with its original parameters.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRerun,
}

// jobsDownloadCmd represents the jobs download command
var jobsDownloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Download a test's result archive",
	Long:  `Download the raw result archive for a test. Transient network failures are retried with backoff.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDownload,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
	jobsCmd.AddCommand(jobsRerunCmd)
	jobsCmd.AddCommand(jobsDownloadCmd)

	// Flags for jobs list
	jobsListCmd.Flags().StringVar(&listCategory, "category", "", "filter by category (e.g., LDPC)")
	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (queued, running, completed, failed)")
	jobsListCmd.Flags().StringVar(&listSearch, "search", "", "case-insensitive search over name, category and status")
	jobsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	jobsListCmd.Flags().BoolVar(&listAll, "all", false, "print every matching job instead of one page")

	// Flags for jobs status
	jobsStatusCmd.Flags().BoolVar(&followStatus, "follow", false, "poll job status every 2 seconds until it reaches a terminal state")

	// Flags for jobs download
	jobsDownloadCmd.Flags().StringVar(&downloadDest, "file", "", "destination path (default <job-id>.bin)")
}

func runJobsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()
	sess := session.New(newAPIClient(), logger)

	if err := sess.Refresh(ctx); err != nil {
		return err
	}

	cached := false
	jobs := sess.Jobs()
	if sess.Offline() {
		// Fall back to the last snapshot so an unreachable proxy still
		// yields something to look at.
		snapshot, err := loadCachedSnapshot()
		if err == nil && len(snapshot) > 0 {
			jobs = snapshot
			cached = true
		}
	} else {
		saveSnapshot(logger, jobs)
	}

	filter := aggregate.Filter{
		Category: listCategory,
		Search:   listSearch,
	}
	if listStatus != "" {
		filter.Status = models.NormalizeStatus(listStatus)
	}
	filtered := filter.Apply(jobs)

	display := filtered
	if !listAll {
		display = aggregate.Paginate(filtered, listPage, aggregate.DefaultPageSize)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(map[string]interface{}{
			"jobs":    display,
			"total":   len(filtered),
			"offline": sess.Offline(),
			"cached":  cached,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Category", "Subsystem", "Status", "Created")

	for _, job := range display {
		created := "-"
		if !job.CreatedAt.IsZero() {
			created = job.CreatedAt.Format("2006-01-02 15:04")
		}
		table.Append(job.ID, job.Name, job.Category, job.SubsystemLabel, string(job.Status), created)
	}
	table.Render()

	if listAll {
		fmt.Printf("\nTotal jobs: %d\n", len(filtered))
	} else {
		fmt.Printf("\nPage %d of %d (%d jobs)\n",
			listPage, aggregate.PageCount(len(filtered), aggregate.DefaultPageSize), len(filtered))
	}
	if sess.Offline() {
		if cached {
			fmt.Println("Proxy unreachable; showing last cached snapshot.")
		} else {
			fmt.Println("Proxy unreachable and no cached snapshot available.")
		}
	}
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient()
	id := args[0]

	record, err := fetchRecordAnySource(ctx, client, id)
	if err != nil {
		return err
	}

	if followStatus && !record.Status.Terminal() {
		fmt.Printf("Following job %s (press Ctrl+C to stop)...\n\n", id)
		for {
			displayJob(record)
			if record.Status.Terminal() {
				fmt.Println("\nJob reached terminal state")
				break
			}
			time.Sleep(2 * time.Second)
			record, err = client.FetchRecord(ctx, record.Source, id)
			if err != nil {
				return err
			}
		}
		return nil
	}

	displayJob(record)
	return nil
}

// fetchRecordAnySource resolves a bare id by trying the tests collection
// first and the LDPC collection second.
func fetchRecordAnySource(ctx context.Context, client *api.Client, id string) (*models.JobRecord, error) {
	record, err := client.FetchRecord(ctx, models.SourceTests, id)
	if err == nil {
		return record, nil
	}
	record, ldpcErr := client.FetchRecord(ctx, models.SourceLDPC, id)
	if ldpcErr == nil {
		return record, nil
	}
	return nil, fmt.Errorf("job %s not found in either collection: %w", id, err)
}

func displayJob(record *models.JobRecord) {
	if IsJSONOutput() {
		output, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(output))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("ID", record.ID)
	table.Append("Name", record.Name)
	table.Append("Category", record.Category)
	table.Append("Subsystem", record.SubsystemLabel)
	table.Append("Status", string(record.Status))
	table.Append("Source", string(record.Source))
	if record.AlgorithmType != "" {
		table.Append("Algorithm", record.AlgorithmType)
	}
	if !record.CreatedAt.IsZero() {
		table.Append("Created At", record.CreatedAt.Format(time.RFC3339))
	}
	table.Append("Runs", fmt.Sprintf("%d", len(record.Results)))

	table.Render()
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()
	sess := session.New(newAPIClient(), logger)

	if err := sess.Refresh(ctx); err != nil {
		return err
	}

	var result session.BulkResult
	for _, id := range args {
		if err := sess.Delete(ctx, id); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			fmt.Fprintf(os.Stderr, "delete %s: %v\n", id, err)
			continue
		}
		result.Succeeded++
		recordSubmission(logger, id, "delete")
		fmt.Printf("Deleted job %s\n", id)
	}

	if len(args) > 1 {
		fmt.Printf("\n%d deleted, %d failed\n", result.Succeeded, result.Failed)
	}
	if result.Failed > 0 && result.Succeeded == 0 {
		return fmt.Errorf("no jobs deleted")
	}
	return nil
}

func runJobsRerun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()
	id := args[0]

	if err := newAPIClient().Rerun(ctx, id); err != nil {
		return err
	}
	recordSubmission(logger, id, "rerun")
	fmt.Printf("Job %s requeued\n", id)
	return nil
}

func runJobsDownload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient()
	id := args[0]

	dest := downloadDest
	if dest == "" {
		dest = id + ".bin"
	}

	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return client.Download(ctx, id, dest)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Downloaded results for job %s to %s\n", id, dest)
	return nil
}

// loadCachedSnapshot reads the last saved job list from the local cache.
func loadCachedSnapshot() ([]models.JobRecord, error) {
	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		return nil, err
	}
	defer cache.Close()
	return cache.LoadSnapshot()
}

// saveSnapshot persists the merged list, best effort.
func saveSnapshot(logger interface{ Warn(string, ...map[string]interface{}) }, jobs []models.JobRecord) {
	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		logger.Warn("cache unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	defer cache.Close()
	if err := cache.SaveSnapshot(jobs); err != nil {
		logger.Warn("failed to cache snapshot", map[string]interface{}{"error": err.Error()})
	}
}

// recordSubmission appends one action to the local history, best effort.
func recordSubmission(logger interface{ Warn(string, ...map[string]interface{}) }, jobID, action string) {
	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		return
	}
	defer cache.Close()
	entry := store.SubmissionEntry{
		ID:          uuid.New().String(),
		JobID:       jobID,
		Action:      action,
		SubmittedAt: time.Now(),
	}
	if err := cache.RecordSubmission(entry); err != nil {
		logger.Warn("failed to record submission", map[string]interface{}{"error": err.Error()})
	}
}
