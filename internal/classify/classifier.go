package classify

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ironsheep/omr-reader/internal/imaging"
	"github.com/ironsheep/omr-reader/internal/omr"
)

// Options configures a Classifier.
type Options struct {
	// PatchSize is the side of the square crop; zero selects 28.
	PatchSize int
	// ModelPath selects the learned backend when non-empty.
	ModelPath string
	// WorkerCommand is the model worker executable and its leading
	// arguments. The model path is appended.
	WorkerCommand []string
	// StartupTimeout bounds the worker's model load; zero selects
	// DefaultStartupTimeout.
	StartupTimeout time.Duration
}

// Classifier scores every bubble of a map against an aligned image.
type Classifier struct {
	backend   Backend
	patchSize int
	warning   *omr.ModelLoadWarning
}

// New builds a classifier. When a model is configured but the worker cannot
// start, the heuristic backend is used and the failure is kept as a warning.
func New(opts Options) *Classifier {
	c := &Classifier{backend: NewHeuristic(), patchSize: opts.PatchSize}
	if c.patchSize <= 0 {
		c.patchSize = imaging.DefaultPatchSize
	}
	if opts.ModelPath == "" {
		return c
	}

	worker, err := StartModelWorker(opts.WorkerCommand, opts.ModelPath, opts.StartupTimeout)
	if err != nil {
		c.warning = &omr.ModelLoadWarning{Path: opts.ModelPath, Err: err}
		log.Printf("Warning: %v", c.warning)
		return c
	}
	c.backend = worker
	return c
}

// NewWithBackend builds a classifier around an existing backend.
func NewWithBackend(b Backend, patchSize int) *Classifier {
	if patchSize <= 0 {
		patchSize = imaging.DefaultPatchSize
	}
	return &Classifier{backend: b, patchSize: patchSize}
}

// Backend returns the active backend name.
func (c *Classifier) Backend() string { return c.backend.Name() }

// PatchSize returns the crop size.
func (c *Classifier) PatchSize() int { return c.patchSize }

// Warning returns the model load failure, or nil.
func (c *Classifier) Warning() *omr.ModelLoadWarning { return c.warning }

// Classify scores every center of m. Results are ordered by question, then
// option.
func (c *Classifier) Classify(a *imaging.AlignedImage, m omr.BubbleCenterMap) ([]omr.ClassificationResult, error) {
	centers := m.Centers()
	if len(centers) == 0 {
		return []omr.ClassificationResult{}, nil
	}

	patches := make([]imaging.Patch, len(centers))
	for i, bc := range centers {
		patches[i] = imaging.CropPatch(a, bc.X, bc.Y, c.patchSize)
	}

	probs, err := c.backend.Predict(patches)
	if err != nil {
		return nil, fmt.Errorf("%s classifier: %w", c.backend.Name(), err)
	}
	if len(probs) != len(centers) {
		return nil, fmt.Errorf("%s classifier returned %d probabilities for %d bubbles", c.backend.Name(), len(probs), len(centers))
	}

	results := make([]omr.ClassificationResult, len(centers))
	for i, bc := range centers {
		results[i] = omr.ClassificationResult{
			Question:   bc.Question,
			Option:     bc.Option,
			CenterX:    bc.X,
			CenterY:    bc.Y,
			Confidence: clamp01(probs[i]),
		}
	}
	return results, nil
}

// Close releases the backend if it holds resources.
func (c *Classifier) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
