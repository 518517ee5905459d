package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"canvasfetch/pkg/auth"
	"canvasfetch/pkg/config"
	"canvasfetch/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage museum API keys",
	Long: `Manage API keys for the museums that require one (Harvard, Rijksmuseum).

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only, CANVASFETCH_<SOURCE>_API_KEY)`,
}

var setCmd = &cobra.Command{
	Use:   "set <source>",
	Short: "Store an API key",
	Long:  `Store an API key. The key is read from the terminal without echo.`,
	Example: `  canvasfetch auth set harvard
  echo "$KEY" | canvasfetch auth set rijks`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <source>",
	Short: "Remove a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored API keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain where to obtain API keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowKeyGuide()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(guideCmd)
}

func checkSource(source string) error {
	for _, name := range config.SourceNames {
		if name == source {
			return nil
		}
	}
	return fmt.Errorf("unknown source %q (available: %s)", source, strings.Join(config.SourceNames, ", "))
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	source := strings.ToLower(args[0])
	if err := checkSource(source); err != nil {
		return err
	}
	if !auth.RequiresKey(source) {
		ui.PrintWarning(source + " does not need an API key; storing it anyway")
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if existing, _ := manager.Retrieve(source); existing != nil && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Printf("A key for %s is already stored. Replace it? (y/N): ", source)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Printf("API key for %s: ", source)
	key, err := readSecret()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}

	if err := manager.Store(&auth.APIKey{Source: source, Key: key}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Key stored for %s (%s)", source, auth.Mask(strings.TrimSpace(key))))
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	source := strings.ToLower(args[0])
	if err := checkSource(source); err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(source); err != nil {
		return err
	}
	ui.PrintSuccess("Key removed for " + source)
	if os.Getenv(auth.EnvVar(source)) != "" {
		ui.PrintWarning(auth.EnvVar(source) + " is still set in the environment")
	}
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	keys, err := manager.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		ui.PrintWarning("No API keys stored. Run 'canvasfetch auth guide' to get started.")
		return nil
	}

	for _, key := range keys {
		modified := "environment"
		if !key.LastModified.IsZero() {
			modified = key.LastModified.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("  %-8s %-16s %s\n", key.Source, auth.Mask(key.Key), modified)
	}
	return nil
}

// readSecret reads a line without echo from a terminal, or plainly from a pipe
func readSecret() (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
