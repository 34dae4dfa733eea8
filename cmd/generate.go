package cmd

import (
	"fmt"

	"github.com/danielolaszy/prreview/internal/config"
	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/internal/pipeline"
	"github.com/danielolaszy/prreview/internal/store"
	"github.com/spf13/cobra"
)

// generateCmd runs fetch and summarize in one step without writing the artifact.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch and summarize in one step",
	Long: `Fetch the user's merged pull requests from every repository and write the
markdown self-review. When no pull requests match, a "No PRs Found" document is
written instead.

Example:
  prreview generate -r owner/api -r owner/web --year 2025 --requirements role_requirements.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repositories, err := cmd.Flags().GetStringArray("repository")
		if err != nil {
			return err
		}
		year, err := cmd.Flags().GetInt("year")
		if err != nil {
			return err
		}
		usernameFlag, err := cmd.Flags().GetString("username")
		if err != nil {
			return err
		}
		requirementsPath, err := cmd.Flags().GetString("requirements")
		if err != nil {
			return err
		}
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}

		requirements, err := readRequirements(requirementsPath)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateGitHubConfig(cfg); err != nil {
			return err
		}
		username, err := resolveUsername(usernameFlag, cfg)
		if err != nil {
			return err
		}

		svc, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		result, err := svc.Generate(cmd.Context(), pipeline.Request{
			Repositories:    repositories,
			Year:            year,
			Username:        username,
			Token:           cfg.GitHub.Token,
			JobRequirements: requirements,
		})
		if err != nil {
			return err
		}

		if err := store.WriteSummary(outPath, result.Markdown); err != nil {
			return err
		}

		logging.Info("generate complete", "run_id", result.RunID, "empty", result.Empty)
		if result.Empty {
			fmt.Fprintf(cmd.OutOrStdout(), "No merged PRs found; wrote %s\n", outPath)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Summary of %d PRs written to %s\n", result.PullRequests, outPath)
		return nil
	},
}

func init() {
	addTargetFlags(generateCmd)
	generateCmd.Flags().String("requirements", defaultRequirementsFile, "Job-requirements markdown document")
	generateCmd.Flags().StringP("out", "o", store.DefaultSummaryFile, "Markdown file the summary is written to")
}
