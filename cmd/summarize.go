package cmd

import (
	"fmt"

	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/internal/pipeline"
	"github.com/danielolaszy/prreview/internal/store"
	"github.com/spf13/cobra"
)

// summarizeCmd summarizes a stored pull request artifact.
var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize a stored pull request artifact",
	Long: `Summarize merged_prs_<year>.json, written by the fetch command, against a
job-requirements document and write the markdown self-review.

Pull requests without source_repo take the repository from their URL, or from
--repository when the URL does not name one.

Example:
  prreview summarize --year 2025 --requirements role_requirements.md --out review.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := cmd.Flags().GetInt("year")
		if err != nil {
			return err
		}
		requirementsPath, err := cmd.Flags().GetString("requirements")
		if err != nil {
			return err
		}
		inDir, err := cmd.Flags().GetString("in")
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

		prs, err := store.LoadPullRequests(inDir, year)
		if err != nil {
			return err
		}
		if repo, _ := cmd.Flags().GetString("repository"); repo != "" {
			if n := store.DefaultSourceRepo(prs, repo); n > 0 {
				logging.Info("assigned repository to pull requests without one", "repository", repo, "count", n)
			}
		}

		svc, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		result, err := svc.Summarize(cmd.Context(), prs, year, requirements)
		if err != nil {
			return err
		}

		if err := store.WriteSummary(outPath, result.Markdown); err != nil {
			return err
		}

		logging.Info("summarize complete", "run_id", result.RunID, "batches", result.Batches)
		fmt.Fprintf(cmd.OutOrStdout(), "Summary of %d PRs written to %s\n", result.PullRequests, outPath)
		return nil
	},
}

func init() {
	summarizeCmd.Flags().IntP("year", "y", 0, "Year of the artifact to summarize")
	summarizeCmd.Flags().String("requirements", defaultRequirementsFile, "Job-requirements markdown document")
	summarizeCmd.Flags().String("in", ".", "Directory containing merged_prs_<year>.json")
	summarizeCmd.Flags().StringP("repository", "r", "", "Repository (owner/name) for pull requests the artifact does not attribute")
	summarizeCmd.Flags().StringP("out", "o", store.DefaultSummaryFile, "Markdown file the summary is written to")
	_ = summarizeCmd.MarkFlagRequired("year")
}
