package classify

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/omr-reader/internal/imaging"
)

// DefaultBorder is the margin excluded from the heuristic mean.
const DefaultBorder = 4

// Backend turns a batch of patches into fill probabilities in [0,1], one
// per patch, in input order.
type Backend interface {
	Name() string
	Predict(patches []imaging.Patch) ([]float64, error)
}

// Heuristic scores a patch by how dark its center is.
type Heuristic struct {
	// Border pixels on each side are ignored.
	Border int
}

// NewHeuristic returns a heuristic backend with the default border.
func NewHeuristic() *Heuristic {
	return &Heuristic{Border: DefaultBorder}
}

// Name implements Backend.
func (h *Heuristic) Name() string { return "heuristic" }

// Predict implements Backend. It never fails.
func (h *Heuristic) Predict(patches []imaging.Patch) ([]float64, error) {
	probs := make([]float64, len(patches))
	for i, p := range patches {
		probs[i] = h.Score(p)
	}
	return probs, nil
}

// Score returns 1 - mean intensity over the patch center.
func (h *Heuristic) Score(p imaging.Patch) float64 {
	border := h.Border
	if p.Size-2*border <= 0 {
		border = 0
	}
	if p.Size == 0 {
		return 0
	}

	inner := p.Size - 2*border
	values := make([]float64, 0, inner*inner)
	for y := border; y < p.Size-border; y++ {
		for x := border; x < p.Size-border; x++ {
			values = append(values, p.At(x, y))
		}
	}
	return clamp01(1 - stat.Mean(values, nil))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
