package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"canvasfetch/pkg/auth"
	"canvasfetch/pkg/config"
	"canvasfetch/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage canvasfetch configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CANVASFETCH_*)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to '.canvasfetch.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# canvasfetch configuration
#
# Every option can also be set through environment variables prefixed with
# CANVASFETCH_, for example CANVASFETCH_TOPIC or CANVASFETCH_HARVARD_API_KEY.

museums:
  # Search term sent to every collection
  topic: "landscape"

  sources:
    met:
      enabled: true
    aic:
      enabled: true
    cma:
      enabled: true
    # Harvard and the Rijksmuseum need a free API key.
    # Prefer 'canvasfetch auth set <source>' over putting it here.
    harvard:
      enabled: true
      api_key: ""
    rijks:
      enabled: true
      api_key: ""

acquisition:
  # Images downloaded and classified per museum before moving on
  max_attempts: 30
  # Search pages requested per museum before moving on
  max_pages: 10
  # any, wide or tall
  default_orientation: "any"
  # Show a saved image when every museum fails
  offline_fallback: true

storage:
  image_dir: "static"
  ledger_path: "seen.json"
  # Relative to image_dir unless absolute
  recency_file: "recency.json"
  catalog_file: "catalog.json"

http:
  timeout: 15s
  user_agent: "canvasfetch/1.0"
  # Extra attempts for failed search requests; image downloads are never retried
  search_retries: 2
  max_image_bytes: 67108864

rate_limit:
  # Per museum
  requests_per_minute: 60

logging:
  # debug, info, warn, error, disabled
  level: "info"
  # Optional JSON log file in addition to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".canvasfetch.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Adjust the topic and storage paths")
	fmt.Println("2. Store API keys with 'canvasfetch auth set harvard' and 'canvasfetch auth set rijks'")
	fmt.Println("3. Run 'canvasfetch config validate', then 'canvasfetch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Museums.Sources = make(map[string]config.SourceConfig, len(cfg.Museums.Sources))
	for name, src := range cfg.Museums.Sources {
		if src.APIKey != "" {
			src.APIKey = auth.Mask(src.APIKey)
		}
		display.Museums.Sources[name] = src
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (CANVASFETCH_*)")
	fmt.Println("3. .env file")
	if path := configPathInUse(); path != "" {
		fmt.Printf("4. Configuration file: %s\n", path)
	} else {
		fmt.Println("4. Configuration file: (none found)")
	}
	fmt.Println("5. Default values")
	return nil
}

func configPathInUse() string {
	if configFile != "" {
		return configFile
	}
	return config.Locate()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPathInUse()
	if path == "" {
		ui.PrintWarning("No configuration file found; validating defaults")
	} else {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var warnings []string
	var problems []error

	if err := os.MkdirAll(cfg.Storage.ImageDir, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create image directory: %w", err))
	}

	keys, err := auth.NewManager()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("credential stores unavailable: %v", err))
	}
	enabled := 0
	for _, name := range config.SourceNames {
		src := cfg.Source(name)
		if !src.Enabled {
			continue
		}
		enabled++
		if auth.RequiresKey(name) && src.APIKey == "" && (keys == nil || keys.Lookup(name) == "") {
			warnings = append(warnings, fmt.Sprintf("%s is enabled but has no API key; it will be skipped", name))
		}
	}
	if enabled == 0 {
		problems = append(problems, errors.New("no museum sources enabled"))
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %v\n", p)
		}
		return &configError{Err: errors.Join(problems...)}
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Topic: %s\n", cfg.Museums.Topic)
	fmt.Printf("  Image directory: %s\n", cfg.Storage.ImageDir)
	fmt.Printf("  Ledger: %s\n", cfg.Storage.LedgerPath)
	fmt.Printf("  Budget per museum: %d images, %d pages\n", cfg.Acquisition.MaxAttempts, cfg.Acquisition.MaxPages)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
