package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vlsilab/chipdash/pkg/api"
	"github.com/vlsilab/chipdash/pkg/logging"
)

var (
	proxyURL     string
	outputFormat string
	cfgFile      string
	apiKey       string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chipdash",
	Short: "CLI for the chip test job dashboard",
	Long:  `chipdash aggregates hardware test jobs and LDPC decoder jobs from the lab proxy API into one dashboard: list, inspect, rerun and delete jobs, and derive decoder metrics from real run results.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chipdash/config)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "proxy API URL (default from config or http://localhost:3001/api)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory with name ".chipdash/config" (without extension)
		configDir := filepath.Join(home, ".chipdash")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // read in environment variables that match

	viper.BindEnv("api_key", "CHIPDASH_API_KEY")
	viper.BindEnv("proxy_url", "CHIPDASH_PROXY_URL")
	viper.BindEnv("log_level", "CHIPDASH_LOG_LEVEL")

	viper.SetDefault("proxy_url", "http://localhost:3001/api")
	viper.SetDefault("cache_path", defaultCachePath())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetString("log_level") != "" && !rootCmd.PersistentFlags().Changed("log-level") {
			logLevel = viper.GetString("log_level")
		}
	}

	if proxyURL == "" {
		proxyURL = viper.GetString("proxy_url")
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chipdash.db"
	}
	return filepath.Join(home, ".chipdash", "cache.db")
}

// GetProxyURL returns the configured proxy URL with trailing slashes removed
func GetProxyURL() string {
	return strings.TrimRight(proxyURL, "/")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// GetAPIKey returns the configured API key
func GetAPIKey() string {
	return apiKey
}

// newAPIClient builds the proxy client from the resolved configuration.
func newAPIClient() *api.Client {
	client := api.NewClient(GetProxyURL())
	if key := GetAPIKey(); key != "" {
		client.SetAPIKey(key)
	}
	return client
}

// newLogger builds the CLI logger from the resolved log level.
func newLogger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(logLevel), false)
}
