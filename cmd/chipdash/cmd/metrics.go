package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vlsilab/chipdash/pkg/derive"
	"github.com/vlsilab/chipdash/pkg/export"
	"github.com/vlsilab/chipdash/pkg/metrics"
	"github.com/vlsilab/chipdash/pkg/models"
	"gopkg.in/yaml.v3"
)

var exportFile string

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Derive and export decoder metrics",
	Long:  `Commands for deriving statistics from a job's real run results and exporting them as a report. Jobs without results produce no metrics.`,
}

// metricsShowCmd represents the metrics show command
var metricsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show derived metrics for a job",
	Long:  `Fetch a job's result array and derive the full decoder statistics from it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runMetricsShow,
}

// metricsExportCmd represents the metrics export command
var metricsExportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a job analysis report",
	Long:  `Write a self-contained JSON report with the job info, derived metrics and raw per-run results.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runMetricsExport,
}

// metricsScrapeCmd represents the metrics scrape command
var metricsScrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape a running dashboard's Prometheus endpoint",
	Long:  `Fetch and pretty-print the dashboard metric samples from a serve or watch daemon. Defaults to http://localhost:9105/metrics.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMetricsScrape,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.AddCommand(metricsShowCmd)
	metricsCmd.AddCommand(metricsExportCmd)
	metricsCmd.AddCommand(metricsScrapeCmd)

	metricsExportCmd.Flags().StringVar(&exportFile, "file", "", "report path (default ldpc-analysis-<job-id>.json)")
}

func runMetricsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	record, err := fetchRecordAnySource(ctx, newAPIClient(), args[0])
	if err != nil {
		return err
	}

	m := derive.Metrics(record.Results, models.DefaultCodeParams(), record.AlgorithmType)

	if IsJSONOutput() || outputFormat == "yaml" {
		payload := map[string]interface{}{
			"job_id":          record.ID,
			"derived_metrics": m,
			"run_count":       len(record.Results),
		}
		if outputFormat == "yaml" {
			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			return encoder.Encode(payload)
		}
		output, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if m == nil {
		fmt.Printf("Job %s has no recorded results; nothing to derive.\n", record.ID)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")

	table.Append("Runs", fmt.Sprintf("%d", len(record.Results)))
	table.Append("Success Rate", fmt.Sprintf("%.4f", m.SuccessRate))
	table.Append("Frame Error Rate", fmt.Sprintf("%.4f", m.FrameErrorRate))
	table.Append("Bit Error Rate", fmt.Sprintf("%.6f", m.BitErrorRate))
	table.Append("Avg Execution Time", fmt.Sprintf("%.3f ms", m.AvgExecutionTime))
	table.Append("Min/Max Execution Time", fmt.Sprintf("%.3f / %.3f ms", m.MinExecutionTime, m.MaxExecutionTime))
	table.Append("Avg Latency", fmt.Sprintf("%.1f us", m.AvgLatency))
	table.Append("Avg Throughput", fmt.Sprintf("%.3f Mbps", m.AvgThroughput))
	table.Append("Peak Throughput", fmt.Sprintf("%.3f Mbps", m.PeakThroughput))
	table.Append("Code", fmt.Sprintf("(%d,%d) rate %.2f", m.CodeLength, m.InformationBits, m.CodeRate))
	table.Append("Avg Iterations", fmt.Sprintf("%.2f", m.AvgIterations))
	table.Append("Total Bit Errors", fmt.Sprintf("%d", m.TotalBitErrors))
	if m.AvgPowerConsumption > 0 {
		table.Append("Avg Power", fmt.Sprintf("%.2f mW", m.AvgPowerConsumption))
		table.Append("Energy Per Bit", fmt.Sprintf("%.2f pJ", m.EnergyPerBit))
	}
	if record.AlgorithmType == models.AlgorithmAnalog {
		table.Append("Energy Efficiency vs Digital", fmt.Sprintf("%.2fx", m.EnergyEfficiencyRatio))
		table.Append("Speedup vs Digital", fmt.Sprintf("%.2fx", m.SpeedupFactor))
	}

	table.Render()
	return nil
}

func runMetricsExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()
	id := args[0]

	record, err := fetchRecordAnySource(ctx, newAPIClient(), id)
	if err != nil {
		return err
	}

	m := derive.Metrics(record.Results, models.DefaultCodeParams(), record.AlgorithmType)
	report := export.NewReport(*record, m)

	path := exportFile
	if path == "" {
		path = fmt.Sprintf("ldpc-analysis-%s.json", id)
	}
	if err := export.WriteFile(report, path); err != nil {
		return err
	}
	recordSubmission(logger, id, "export")
	fmt.Printf("Report %s written to %s\n", report.ExportID, path)
	return nil
}

func runMetricsScrape(cmd *cobra.Command, args []string) error {
	url := "http://localhost:9105/metrics"
	if len(args) == 1 {
		url = args[0]
	}

	samples, err := metrics.Scrape(url)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(samples, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Labels", "Value")
	for _, s := range samples {
		table.Append(s.Name, s.Labels, fmt.Sprintf("%g", s.Value))
	}
	table.Render()
	return nil
}
