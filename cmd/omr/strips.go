package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/detection"
	"github.com/ironsheep/omr-reader/internal/imaging"
)

var (
	stripsLabels string
	stripsOutput string
	stripsLevel  int
)

var stripsCmd = &cobra.Command{
	Use:   "strips <image>",
	Short: "Read a sheet of subject column strips located by an object detector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lf, err := os.Open(stripsLabels)
		if err != nil {
			return err
		}
		defer lf.Close()
		boxes, err := detection.ParseLabels(lf)
		if err != nil {
			return fmt.Errorf("%s: %w", stripsLabels, err)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		img, err := imaging.Decode(data)
		if err != nil {
			return err
		}

		cfg := detection.DefaultStripConfig()
		if stripsLevel < 0 || stripsLevel > 255 {
			return fmt.Errorf("--level must be in [0, 255], got %d", stripsLevel)
		}
		cfg.Threshold = uint8(stripsLevel)
		return writeJSON(stripsOutput, detection.ReadStrips(img, boxes, cfg))
	},
}

func init() {
	f := stripsCmd.Flags()
	f.StringVarP(&stripsLabels, "labels", "l", "", "Detector label file (class cx cy w h per line)")
	f.StringVarP(&stripsOutput, "output", "o", "", "Write the answers here instead of stdout")
	f.IntVar(&stripsLevel, "level", int(detection.DefaultStripConfig().Threshold), "Gray level at or below which a pixel is ink")
	stripsCmd.MarkFlagRequired("labels")
	rootCmd.AddCommand(stripsCmd)
}
