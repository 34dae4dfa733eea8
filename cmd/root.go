// Package cmd provides the command-line interface for prreview.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/danielolaszy/prreview/internal/config"
	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/spf13/cobra"
)

// defaultRequirementsFile is read when --requirements is not given.
const defaultRequirementsFile = "role_requirements.md"

var rootCmd = &cobra.Command{
	Use:   "prreview",
	Short: "prreview turns merged pull requests into a performance self-review",
	Long: `prreview fetches the pull requests a user merged during a year, asks a language
model to summarize them against a job-requirements document, and renders the
result as a markdown self-review grouped by repository and career area.

It runs either as a CLI or as an HTTP backend for the web frontend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		if level != "" || format != "" {
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			if format == "" {
				format = os.Getenv("LOG_FORMAT")
			}
			logging.SetupLogger(os.Stderr, logging.LogLevel(level), logging.Format(strings.ToLower(format)))
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Commands stop when ctx is cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().String("config", "", "Path to a json, yaml or toml config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json); defaults to LOG_FORMAT")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(generateCmd)
}

// loadConfig reads configuration using the --config flag of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// readRequirements loads the job-requirements document.
func readRequirements(path string) (string, error) {
	if path == "" {
		path = defaultRequirementsFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read job requirements: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("job requirements file %s is empty", path)
	}
	return string(data), nil
}

// resolveUsername prefers the flag value and falls back to GITHUB_USERNAME.
func resolveUsername(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.GitHub.Username != "" {
		return cfg.GitHub.Username, nil
	}
	return "", fmt.Errorf("username is required: pass --username or set GITHUB_USERNAME")
}

// addTargetFlags registers the flags selecting whose pull requests to fetch.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("repository", "r", nil, "GitHub repository (owner/name); repeatable")
	cmd.Flags().IntP("year", "y", 0, "Year whose merged pull requests are summarized")
	cmd.Flags().StringP("username", "u", "", "GitHub username (defaults to GITHUB_USERNAME)")
	_ = cmd.MarkFlagRequired("repository")
	_ = cmd.MarkFlagRequired("year")
}
