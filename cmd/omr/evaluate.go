package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/omr"
	"github.com/ironsheep/omr-reader/internal/scoring"
)

var (
	evalKeyFile     string
	evalExamID      string
	evalAnswersFile string
	evalScoring     string
	evalOutput      string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Grade extracted student answers against an answer key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := loadKey(cmd.Context(), evalKeyFile, evalExamID)
		if err != nil {
			return fmt.Errorf("failed to load answer key: %w", err)
		}
		if key == nil {
			return fmt.Errorf("an answer key is required (--key, or --exam with --store)")
		}

		var student []omr.StudentAnswerEntry
		if err := readJSON(evalAnswersFile, &student); err != nil {
			// Accept the wrapped output of the student command too.
			var wrapped struct {
				StudentAnswers []omr.StudentAnswerEntry `json:"studentAnswers"`
			}
			if werr := readJSON(evalAnswersFile, &wrapped); werr != nil {
				return err
			}
			student = wrapped.StudentAnswers
		}

		cfg, err := loadScoring(evalScoring)
		if err != nil {
			return err
		}
		return writeJSON(evalOutput, scoring.Evaluate(key, student, cfg))
	},
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVarP(&evalKeyFile, "key", "k", "", "Answer key JSON file")
	f.StringVar(&evalExamID, "exam", "", "Load the key stored under this exam id")
	f.StringVarP(&evalAnswersFile, "answers", "a", "", "Student answers JSON file")
	f.StringVar(&evalScoring, "scoring", "", "Marking scheme JSON file")
	f.StringVarP(&evalOutput, "output", "o", "", "Write the evaluation here instead of stdout")
	evaluateCmd.MarkFlagRequired("answers")
	rootCmd.AddCommand(evaluateCmd)
}
