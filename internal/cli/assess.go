package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pydverify/backend/internal/assessment"
)

func newAssessCmd(load func() (*app, error)) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "assess [batch.json]",
		Short: "Assess a batch of answers and write an accuracy report",
		Long: `Assess every answer in a batch file (a JSON array of items or a
{"name", "items"} object), write reports/accuracy_report_<timestamp>.json
under the cache directory and append the run to the assessment history.
Without a file the built-in sample batch is assessed.`,
		Example: `  pydverify assess
  pydverify assess drafts.json --name weekly`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch := assessment.SampleBatch()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open batch: %w", err)
				}
				defer f.Close()

				if name == "" {
					name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				}
				batch, err = assessment.LoadBatch(f, name)
				if err != nil {
					return err
				}
			} else if name != "" {
				batch.Name = name
			}

			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			report, path, err := a.aggregator.GenerateReport(cmd.Context(), batch)
			if err != nil {
				return err
			}

			printSummary(cmd, report, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "batch name recorded in the report (default: file name)")

	return cmd
}

func printSummary(cmd *cobra.Command, report *assessment.Report, path string) {
	out := cmd.OutOrStdout()
	s := report.ExecutiveSummary
	d := s.AccuracyDistribution

	fmt.Fprintf(out, "Assessed %d responses (%s)\n", s.TotalResponsesAssessed, report.ReportMetadata.AssessmentPeriod)
	fmt.Fprintf(out, "  verified:        %d\n", d.Verified)
	fmt.Fprintf(out, "  likely accurate: %d\n", d.LikelyAccurate)
	fmt.Fprintf(out, "  needs review:    %d\n", d.NeedsReview)
	fmt.Fprintf(out, "  inaccurate:      %d\n", d.Inaccurate)
	fmt.Fprintf(out, "  outdated:        %d\n", d.Outdated)
	fmt.Fprintf(out, "Average confidence: %.3f\n", s.AverageConfidenceScore)
	fmt.Fprintf(out, "Improvement rate:   %.1f%%\n", s.ImprovementRate)

	if issues := report.DetailedFindings.CommonInaccuracies; len(issues) > 0 {
		fmt.Fprintln(out, "Common issues:")
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}

	fmt.Fprintln(out, "Recommendations:")
	for _, r := range report.Recommendations {
		fmt.Fprintf(out, "  [%s] %s: %s\n", r.Priority, r.Category, r.Recommendation)
	}

	fmt.Fprintf(out, "Report written to %s\n", path)
}
