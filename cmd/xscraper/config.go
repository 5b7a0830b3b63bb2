package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xscraper/pkg/config"
	"xscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'xscraper.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

Sensitive values like credentials are masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax errors and invalid values.`,
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# xscraper configuration file
#
# All values shown are the defaults. Credentials can also come from
# environment variables (XSCRAPER_AUTH_TOKEN, XSCRAPER_CSRF_TOKEN) or from
# the credential store ('xscraper auth login').

source:
  # auth_token cookie value (required unless stored or in the environment)
  auth_token: ""
  # ct0 cookie value (required unless stored or in the environment)
  csrf_token: ""
  # API bearer token (optional)
  bearer_token: ""
  user_agent: ""
  timeout: 30s

rate_limit:
  min_delay: 2s
  max_requests_per_window: 50
  window_duration: 15m

retry:
  max_retries: 3
  base_delay: 2s
  max_delay: 60s
  multiplier: 2.0
  jitter: 0.1

collector:
  batch_size: 100
  include_replies: true
  consecutive_known_limit: 50
  progress_timeout: 5m
  coverage_threshold: 0.8
  rate_limit_escalation: 3
  checkpoint_interval: 5

fallback:
  enabled: true
  session_cap: 30m
  stagnant_pass_limit: 3
  rate_limit:
    min_delay: 5s
    max_requests_per_window: 100
    window_duration: 30m
    jitter_factor: 0.5

output:
  base_directory: "./archive"
  export_json: true
  archive_sqlite: false
  # state_dir holds the history and checkpoint files
  # (default: <base_directory>/.state)
  state_dir: ""

logging:
  level: "info"
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "xscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to write configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Created " + configPath)
	fmt.Println("\nEdit the file, then verify it with:")
	fmt.Printf("  xscraper config validate --config %s\n", configPath)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Mask credentials before printing
	masked := *cfg
	masked.Source.AuthToken = maskValue(cfg.Source.AuthToken)
	masked.Source.CSRFToken = maskValue(cfg.Source.CSRFToken)
	masked.Source.BearerToken = maskValue(cfg.Source.BearerToken)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}

	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		ui.PrintError("No configuration file specified", "use --config <path>")
		os.Exit(1)
	}

	if _, err := config.Load(configFile, nil); err != nil {
		ui.PrintError("Configuration invalid", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration valid: " + configFile)
}

// maskValue hides a credential value while showing whether it is set
func maskValue(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
