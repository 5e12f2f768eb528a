package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/omr"
	"github.com/ironsheep/omr-reader/internal/pipeline"
	"github.com/ironsheep/omr-reader/internal/scoring"
)

// layoutFlags choose where bubble centers come from. At most one is used,
// in the order bubble map, template image, stored template. With none set
// each sheet discovers its own layout.
type layoutFlags struct {
	BubbleMap     string
	TemplateImage string
	TemplateName  string
}

func (l *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&l.BubbleMap, "bubble-map", "m", "", "Bubble-map JSON file overriding discovery")
	cmd.Flags().StringVar(&l.TemplateImage, "template-image", "", "Blank template sheet to discover the layout from")
	cmd.Flags().StringVar(&l.TemplateName, "template", "", "Name of a stored template (requires --store)")
}

func (l layoutFlags) resolve(ctx context.Context, p *pipeline.Pipeline) (omr.BubbleCenterMap, error) {
	switch {
	case l.BubbleMap != "":
		return omr.LoadBubbleMapFile(l.BubbleMap)
	case l.TemplateImage != "":
		data, err := os.ReadFile(l.TemplateImage)
		if err != nil {
			return nil, fmt.Errorf("failed to read template image: %w", err)
		}
		d, err := p.DiscoverTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.TemplateImage, err)
		}
		return d.Centers, nil
	case l.TemplateName != "":
		if DB == nil {
			return nil, fmt.Errorf("--template %q needs a database (use --store or --db)", l.TemplateName)
		}
		return DB.LoadTemplate(ctx, l.TemplateName)
	default:
		return nil, nil
	}
}

// writeJSON writes v indented to path, or to stdout when path is empty or "-".
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// loadScoring reads a marking scheme over the defaults. An empty path keeps
// the defaults.
func loadScoring(path string) (scoring.Config, error) {
	cfg := scoring.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	err := readJSON(path, &cfg)
	return cfg, err
}

// loadKey reads an answer key from a file, or from the store by exam id.
// It returns nil when neither is given.
func loadKey(ctx context.Context, path, examID string) ([]omr.AnswerKeyEntry, error) {
	switch {
	case path != "":
		var key []omr.AnswerKeyEntry
		if err := readJSON(path, &key); err != nil {
			return nil, err
		}
		return key, nil
	case examID != "" && DB != nil:
		return DB.LoadAnswerKey(ctx, examID)
	default:
		return nil, nil
	}
}
