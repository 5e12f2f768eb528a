package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/omr"
)

var (
	templateOutput  string
	templateWrapped bool
	templateName    string
)

var templateCmd = &cobra.Command{
	Use:   "template <image>",
	Short: "Discover the bubble layout of a blank or filled sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		d, err := p.DiscoverTemplate(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		log.Printf("Discovered %d questions x %d options from %d candidates", d.Grid.Rows*d.Grid.Columns, d.Grid.Options, d.Candidates.Count)

		if templateName != "" {
			if DB == nil {
				return fmt.Errorf("--name needs a database (use --store or --db)")
			}
			if err := DB.SaveTemplate(cmd.Context(), templateName, d.Centers); err != nil {
				return fmt.Errorf("failed to save template: %w", err)
			}
		}

		out, err := omr.EncodeBubbleMap(d.Centers, templateWrapped)
		if err != nil {
			return err
		}
		if templateOutput == "" || templateOutput == "-" {
			_, err = os.Stdout.Write(append(out, '\n'))
			return err
		}
		return os.WriteFile(templateOutput, out, 0o644)
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "Write the bubble map here instead of stdout")
	templateCmd.Flags().BoolVar(&templateWrapped, "wrapped", false, `Wrap the map as {"bubbleCenters": ...}`)
	templateCmd.Flags().StringVar(&templateName, "name", "", "Store the template under this name")
	rootCmd.AddCommand(templateCmd)
}
