package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vlsilab/chipdash/pkg/sysinfo"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check proxy API health",
	Long:  `Probe the proxy API health endpoint and report its status along with a snapshot of the local host.`,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient()

	status, err := client.Health(ctx)
	host := sysinfo.Collect()

	if IsJSONOutput() {
		report := map[string]interface{}{
			"proxy_url": client.BaseURL(),
			"host":      host,
		}
		if err != nil {
			report["upstream"] = "offline"
			report["error"] = err.Error()
		} else {
			report["upstream"] = map[string]interface{}{
				"api_status":      status.APIStatus,
				"database_status": status.DatabaseStatus,
				"version":         status.Version,
				"online":          status.Online(),
			}
		}
		output, merr := json.MarshalIndent(report, "", "  ")
		if merr != nil {
			return fmt.Errorf("failed to marshal JSON: %w", merr)
		}
		fmt.Println(string(output))
		if err != nil {
			return fmt.Errorf("proxy API unreachable: %w", err)
		}
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Proxy URL", client.BaseURL())
	if err != nil {
		table.Append("Upstream", "offline")
		table.Append("Error", err.Error())
	} else {
		upstream := "degraded"
		if status.Online() {
			upstream = "online"
		}
		table.Append("Upstream", upstream)
		if status.APIStatus != "" {
			table.Append("API Status", status.APIStatus)
		}
		if status.DatabaseStatus != "" {
			table.Append("Database", status.DatabaseStatus)
		}
		if status.Version != "" {
			table.Append("Version", status.Version)
		}
	}
	table.Append("Host", host.Hostname)
	table.Append("CPU", fmt.Sprintf("%s (%d threads, %.1f%%)", host.CPUModel, host.CPUThreads, host.CPUPercent))
	table.Append("Memory", fmt.Sprintf("%d / %d MiB", host.MemUsedBytes/1024/1024, host.MemTotalBytes/1024/1024))

	table.Render()

	if err != nil {
		return fmt.Errorf("proxy API unreachable: %w", err)
	}
	return nil
}
