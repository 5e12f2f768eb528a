// Package pipeline runs the three sheet workflows: template discovery,
// answer-key extraction and student-answer extraction.
//
// A Pipeline holds only read-only configuration and the classifier, so one
// value may process many sheets concurrently.
package pipeline

import (
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/omr-reader/internal/answers"
	"github.com/ironsheep/omr-reader/internal/classify"
	"github.com/ironsheep/omr-reader/internal/detection"
	"github.com/ironsheep/omr-reader/internal/grid"
	"github.com/ironsheep/omr-reader/internal/imaging"
	"github.com/ironsheep/omr-reader/internal/omr"
)

// Config aggregates the settings of every stage.
type Config struct {
	Template           imaging.Template
	Classifier         classify.Options
	SelectionThreshold float64
	// Debug logs per-stage statistics.
	Debug bool
}

// DefaultConfig returns the default template, heuristic classifier and
// 0.25 selection threshold.
func DefaultConfig() Config {
	return Config{
		Template:           imaging.DefaultTemplate(),
		SelectionThreshold: answers.DefaultSelectionThreshold,
	}
}

// Pipeline processes sheets of one template.
type Pipeline struct {
	cfg        Config
	normalizer *imaging.Normalizer
	classifier *classify.Classifier
}

// New builds a pipeline. A configured model that fails to load is reported
// through Warning and the heuristic classifier is used instead.
func New(cfg Config) *Pipeline {
	return NewWithClassifier(cfg, classify.New(cfg.Classifier))
}

// NewWithClassifier builds a pipeline around an existing classifier.
func NewWithClassifier(cfg Config, c *classify.Classifier) *Pipeline {
	n := imaging.NewNormalizer(cfg.Template)
	cfg.Template = n.Template()
	return &Pipeline{cfg: cfg, normalizer: n, classifier: c}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Classifier returns the shared classifier.
func (p *Pipeline) Classifier() *classify.Classifier { return p.classifier }

// Warning returns the model load failure, or nil.
func (p *Pipeline) Warning() *omr.ModelLoadWarning { return p.classifier.Warning() }

// Close releases the classifier backend.
func (p *Pipeline) Close() error { return p.classifier.Close() }

// Normalize decodes raw bytes onto the template canvas.
func (p *Pipeline) Normalize(data []byte) (*imaging.AlignedImage, error) {
	return p.normalizer.Normalize(data)
}

// Align normalizes an already decoded image.
func (p *Pipeline) Align(img image.Image) *imaging.AlignedImage {
	return p.normalizer.Align(img)
}

// Discovery is the outcome of template discovery on one sheet.
type Discovery struct {
	Centers    omr.BubbleCenterMap          `json:"bubbleCenters"`
	Candidates *detection.CandidatesResult `json:"candidates"`
	Grid       *grid.Result                `json:"grid"`
}

// Discover infers the bubble map of an aligned sheet. An empty grid is a
// *omr.GridDiscoveryError.
func (p *Pipeline) Discover(a *imaging.AlignedImage) (*Discovery, error) {
	cands := detection.DetectCandidates(a)
	g := grid.Infer(grid.Centers(cands.Candidates), grid.Config{TemplateWidth: p.cfg.Template.Width})

	if p.cfg.Debug {
		log.Printf("Candidates: %d (shapes %d, otsu %d, median area %.1f)",
			cands.Count, cands.Shapes, cands.Threshold, cands.MedianArea)
		log.Printf("Grid: %d raw rows, %d rows x %d columns x %d options (row tolerance %.1f)",
			g.RawRows, g.Rows, g.Columns, g.Options, g.RowTolerance)
	}

	if g.Empty() {
		return nil, &omr.GridDiscoveryError{Candidates: cands.Count, Reason: g.Reason}
	}
	return &Discovery{Centers: g.Centers, Candidates: cands, Grid: g}, nil
}

// DiscoverTemplate normalizes raw bytes and infers their bubble map.
func (p *Pipeline) DiscoverTemplate(data []byte) (*Discovery, error) {
	a, err := p.Normalize(data)
	if err != nil {
		return nil, err
	}
	return p.Discover(a)
}

// resolve returns centers, discovering them from a when none were given.
func (p *Pipeline) resolve(a *imaging.AlignedImage, centers omr.BubbleCenterMap) (omr.BubbleCenterMap, error) {
	if centers.Len() > 0 {
		return centers, nil
	}
	d, err := p.Discover(a)
	if err != nil {
		return nil, err
	}
	return d.Centers, nil
}

// Classify scores every bubble of the sheet. With no centers the map is
// discovered from the sheet itself.
func (p *Pipeline) Classify(a *imaging.AlignedImage, centers omr.BubbleCenterMap) ([]omr.ClassificationResult, error) {
	centers, err := p.resolve(a, centers)
	if err != nil {
		return nil, err
	}
	results, err := p.classifier.Classify(a, centers)
	if err != nil {
		return nil, fmt.Errorf("failed to classify bubbles: %w", err)
	}
	if p.cfg.Debug {
		log.Printf("Classified %d bubbles in %d questions with %s backend",
			len(results), centers.NumQuestions(), p.classifier.Backend())
	}
	return results, nil
}

// AnswerKeyFrom extracts the answer key of an aligned reference sheet.
func (p *Pipeline) AnswerKeyFrom(a *imaging.AlignedImage, centers omr.BubbleCenterMap) ([]omr.AnswerKeyEntry, error) {
	results, err := p.Classify(a, centers)
	if err != nil {
		return nil, err
	}
	return answers.BuildAnswerKey(results), nil
}

// AnswerKey extracts the answer key from raw image bytes.
func (p *Pipeline) AnswerKey(data []byte, centers omr.BubbleCenterMap) ([]omr.AnswerKeyEntry, error) {
	a, err := p.Normalize(data)
	if err != nil {
		return nil, err
	}
	return p.AnswerKeyFrom(a, centers)
}

// StudentAnswersFrom extracts the answers of an aligned student sheet.
func (p *Pipeline) StudentAnswersFrom(a *imaging.AlignedImage, centers omr.BubbleCenterMap) ([]omr.StudentAnswerEntry, error) {
	results, err := p.Classify(a, centers)
	if err != nil {
		return nil, err
	}
	return answers.BuildStudentAnswers(results, p.cfg.SelectionThreshold), nil
}

// StudentAnswers extracts student answers from raw image bytes.
func (p *Pipeline) StudentAnswers(data []byte, centers omr.BubbleCenterMap) ([]omr.StudentAnswerEntry, error) {
	a, err := p.Normalize(data)
	if err != nil {
		return nil, err
	}
	return p.StudentAnswersFrom(a, centers)
}
