package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	keyLayout layoutFlags
	keyOutput string
	keyExamID string
)

var answerKeyCmd = &cobra.Command{
	Use:   "answer-key <image>",
	Short: "Extract the answer key from an instructor's sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		centers, err := keyLayout.resolve(cmd.Context(), p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		key, err := p.AnswerKey(data, centers)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		if keyExamID != "" && DB != nil {
			if err := DB.SaveAnswerKey(cmd.Context(), keyExamID, key); err != nil {
				return fmt.Errorf("failed to save answer key: %w", err)
			}
		}
		return writeJSON(keyOutput, key)
	},
}

func init() {
	keyLayout.register(answerKeyCmd)
	answerKeyCmd.Flags().StringVarP(&keyOutput, "output", "o", "", "Write the key here instead of stdout")
	answerKeyCmd.Flags().StringVar(&keyExamID, "exam", "", "Store the key under this exam id (requires --store)")
	rootCmd.AddCommand(answerKeyCmd)
}
