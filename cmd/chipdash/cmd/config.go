package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for inspecting and bootstrapping the dashboard configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long:  `Print the effective configuration after merging flags, environment variables and the config file.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long:  `Create $HOME/.chipdash/config.yaml with the current settings as a starting point.`,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml",
		"Output format: yaml, json, text")
}

type resolvedConfig struct {
	ProxyURL       string `json:"proxy_url" yaml:"proxy_url"`
	APIKeySet      bool   `json:"api_key_set" yaml:"api_key_set"`
	CachePath      string `json:"cache_path" yaml:"cache_path"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint   string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty"`
}

func currentConfig() resolvedConfig {
	return resolvedConfig{
		ProxyURL:       GetProxyURL(),
		APIKeySet:      GetAPIKey() != "",
		CachePath:      viper.GetString("cache_path"),
		LogLevel:       logLevel,
		TracingEnabled: viper.GetBool("tracing_enabled"),
		OTLPEndpoint:   viper.GetString("otlp_endpoint"),
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()

	switch configFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)

	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)

	default: // text
		fmt.Printf("Proxy URL:   %s\n", cfg.ProxyURL)
		fmt.Printf("API Key:     %s\n", boolToSetUnset(cfg.APIKeySet))
		fmt.Printf("Cache Path:  %s\n", cfg.CachePath)
		fmt.Printf("Log Level:   %s\n", cfg.LogLevel)
		fmt.Printf("Tracing:     %v\n", cfg.TracingEnabled)
		if cfg.OTLPEndpoint != "" {
			fmt.Printf("OTLP:        %s\n", cfg.OTLPEndpoint)
		}
		return nil
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to find home directory: %w", err)
	}
	configDir := filepath.Join(home, ".chipdash")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", configDir, err)
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	seed := map[string]interface{}{
		"proxy_url":  GetProxyURL(),
		"cache_path": viper.GetString("cache_path"),
		"log_level":  logLevel,
	}
	data, err := yaml.Marshal(seed)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

func boolToSetUnset(b bool) string {
	if b {
		return "set"
	}
	return "not set"
}
