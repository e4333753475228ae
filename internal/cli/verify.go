package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pydverify/backend/internal/pipeline"
	"github.com/pydverify/backend/internal/verifier"
)

var errNotVerified = errors.New("response did not verify")

func newVerifyCmd(load func() (*app, error)) *cobra.Command {
	var (
		query  string
		strict bool
		text   bool
	)

	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Verify and correct one drafted answer",
		Long: `Verify a drafted answer read from file (or stdin when file is "-" or
omitted), apply catalog corrections and print the assessment as JSON.`,
		Example: `  pydverify verify answer.md
  cat answer.md | pydverify verify --text
  pydverify verify --strict answer.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(response) == "" {
				return errors.New("empty response")
			}

			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			assessment := a.engine.Assess(cmd.Context(), pipeline.Request{Query: query, Response: response})

			if text {
				fmt.Fprint(cmd.OutOrStdout(), assessment.EnhancedResponse)
			} else if err := writeJSON(cmd.OutOrStdout(), struct {
				pipeline.Assessment
				Facts []string `json:"facts"`
			}{assessment, a.engine.Verifier().Facts(assessment.VerificationResult)}); err != nil {
				return err
			}

			if strict && assessment.VerificationResult.AccuracyLevel != verifier.LevelVerified {
				return fmt.Errorf("%w: %s", errNotVerified, assessment.VerificationResult.AccuracyLevel)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "question the answer responds to")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 1 unless the answer verifies")
	cmd.Flags().BoolVar(&text, "text", false, "print only the corrected answer")

	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}
