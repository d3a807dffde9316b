package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vlsilab/chipdash/pkg/store"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent dashboard actions",
	Long:  `List the most recent delete, rerun and export actions recorded in the local cache, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	entries, err := cache.RecentSubmissions(historyLimit)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job", "Action", "Submitted")
	for _, entry := range entries {
		table.Append(entry.JobID, entry.Action, entry.SubmittedAt.Format("2006-01-02 15:04:05"))
	}
	table.Render()
	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}
