package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/backend"
	"github.com/ironsheep/omr-reader/internal/scoring"
)

var (
	studentLayout       layoutFlags
	studentOutput       string
	studentKeyFile      string
	studentExamID       string
	studentScoring      string
	studentSubmissionID string
	studentAPIBase      string
	studentToken        string
	studentSave         bool
)

var studentCmd = &cobra.Command{
	Use:   "student <image>",
	Short: "Extract a student's answers and optionally grade and submit them",
	Long: `Extracts one answer per question from a student sheet. With --key or
--exam the answers are graded locally; with --submission-id they are posted
to the grading backend together with the key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		centers, err := studentLayout.resolve(ctx, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		student, err := p.StudentAnswers(data, centers)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		out := map[string]interface{}{"studentAnswers": student}

		key, err := loadKey(ctx, studentKeyFile, studentExamID)
		if err != nil {
			return fmt.Errorf("failed to load answer key: %w", err)
		}

		var eval *scoring.Evaluation
		if key != nil {
			cfg, err := loadScoring(studentScoring)
			if err != nil {
				return err
			}
			eval = scoring.Evaluate(key, student, cfg)
			out["evaluation"] = eval
		}

		if studentSubmissionID != "" {
			if key == nil {
				return fmt.Errorf("--submission-id needs an answer key (--key or --exam)")
			}
			client := backend.NewClient(studentAPIBase, studentToken)
			resp, err := client.Evaluate(ctx, studentSubmissionID, key, student)
			if err != nil {
				return err
			}
			out["backend"] = resp
		}

		if studentSave {
			if DB == nil || studentExamID == "" {
				return fmt.Errorf("--save needs --exam and a database (use --store or --db)")
			}
			id, err := DB.SaveResult(ctx, studentExamID, filepath.Base(args[0]), student, eval)
			if err != nil {
				return fmt.Errorf("failed to save result: %w", err)
			}
			out["resultId"] = id
		}

		return writeJSON(studentOutput, out)
	},
}

func init() {
	studentLayout.register(studentCmd)
	f := studentCmd.Flags()
	f.Float64VarP(&opts.Threshold, "threshold", "t", opts.Threshold, "Minimum confidence for a bubble to count as selected")
	f.StringVarP(&studentOutput, "output", "o", "", "Write the result here instead of stdout")
	f.StringVarP(&studentKeyFile, "key", "k", "", "Answer key JSON file to grade against")
	f.StringVar(&studentExamID, "exam", "", "Exam id for a stored key and saved results")
	f.StringVar(&studentScoring, "scoring", "", "Marking scheme JSON file (default +4/-1/0 NEET sections)")
	f.StringVar(&studentSubmissionID, "submission-id", "", "Post the answers to the grading backend under this submission")
	f.StringVar(&studentAPIBase, "api-base", backend.DefaultBaseURL, "Grading backend base URL")
	f.StringVar(&studentToken, "token", os.Getenv("OMR_API_TOKEN"), "Grading backend bearer token")
	f.BoolVar(&studentSave, "save", false, "Store the result under --exam")
	rootCmd.AddCommand(studentCmd)
}
