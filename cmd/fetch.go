package cmd

import (
	"fmt"

	"github.com/danielolaszy/prreview/internal/config"
	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/internal/pipeline"
	"github.com/danielolaszy/prreview/internal/store"
	"github.com/spf13/cobra"
)

// fetchCmd writes the user's merged pull requests to merged_prs_<year>.json.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch merged pull requests into a local artifact",
	Long: `Fetch the pull requests a user merged during a year and store them in
merged_prs_<year>.json, ordered by merge date.

Example:
  prreview fetch -r owner/api -r owner/web --year 2025 --username octocat`,
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
		outDir, err := cmd.Flags().GetString("out")
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

		svc := pipeline.NewService(pipeline.NewFetcherFactory(cfg.GitHub), nil, pipeline.Options{})
		prs, err := svc.Fetch(cmd.Context(), cfg.GitHub.Token, username, repositories, year)
		if err != nil {
			return err
		}

		path, err := store.SavePullRequests(outDir, year, prs)
		if err != nil {
			return err
		}

		logging.Info("fetch complete", "pull_requests", len(prs), "path", path)
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d merged PRs to %s\n", len(prs), path)
		return nil
	},
}

func init() {
	addTargetFlags(fetchCmd)
	fetchCmd.Flags().StringP("out", "o", ".", "Directory the artifact is written to")
}
