package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vlsilab/chipdash/pkg/store"
)

// announcementsCmd represents the announcements command
var announcementsCmd = &cobra.Command{
	Use:   "announcements",
	Short: "Manage lab announcement dismissals",
	Long:  `Announcements shown by the dashboard can be dismissed per machine; dismissals are remembered in the local cache.`,
}

var announcementsDismissCmd = &cobra.Command{
	Use:   "dismiss <announcement-id>",
	Short: "Dismiss an announcement",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnnouncementsDismiss,
}

var announcementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dismissed announcement ids",
	RunE:  runAnnouncementsList,
}

func init() {
	rootCmd.AddCommand(announcementsCmd)
	announcementsCmd.AddCommand(announcementsDismissCmd)
	announcementsCmd.AddCommand(announcementsListCmd)
}

func runAnnouncementsDismiss(cmd *cobra.Command, args []string) error {
	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	if err := cache.DismissAnnouncement(args[0]); err != nil {
		return err
	}
	fmt.Printf("Dismissed announcement %s\n", args[0])
	return nil
}

func runAnnouncementsList(cmd *cobra.Command, args []string) error {
	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	ids, err := cache.DismissedAnnouncements()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(ids, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("\n%d dismissed\n", len(ids))
	return nil
}
