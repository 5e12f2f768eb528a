package detection

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/omr-reader/internal/imaging"
)

// Shape and population filter constants.
const (
	smoothRadius = 2.0

	minAspect      = 0.65
	maxAspect      = 1.35
	minCircularity = 0.25

	minAreaFloor      = 25.0
	minAreaFraction   = 0.35
	maxAreaMultiplier = 3.0
	minSide           = 8
)

// Candidate is a dark, roughly round blob that may be a bubble.
type Candidate struct {
	CenterX     float64 `json:"centerX"`
	CenterY     float64 `json:"centerY"`
	Area        float64 `json:"area"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Circularity float64 `json:"circularity"`
	Bounds      Bounds  `json:"bounds"`
}

// CandidatesResult contains the detected candidate marks.
type CandidatesResult struct {
	Candidates []Candidate `json:"candidates"`
	Count      int         `json:"count"`
	// Threshold is the Otsu level; intensities at or below it are foreground.
	Threshold uint8 `json:"threshold"`
	// Shapes is the number of components that passed the shape filter.
	Shapes     int     `json:"shapes"`
	MedianArea float64 `json:"medianArea"`
}

// DetectCandidates finds bubble-like blobs in an aligned image.
//
// The returned candidates are in component discovery order (top-to-bottom
// by first pixel). An image without any blob yields an empty result.
func DetectCandidates(a *imaging.AlignedImage) *CandidatesResult {
	result := &CandidatesResult{Candidates: make([]Candidate, 0)}
	if a == nil || a.Width() == 0 || a.Height() == 0 {
		return result
	}

	smoothed := blur.Gaussian(a.Gray(), smoothRadius)
	level := otsuLevel(histogram.NewRGBAHistogram(smoothed).R.Bins)
	result.Threshold = level

	mask, width, height := maskFromImage(cleanMask(darkMask(smoothed, level)))

	shapes := make([]Candidate, 0)
	for _, comp := range findComponents(mask, width, height, true) {
		if c, ok := measureComponent(mask, comp, width, height); ok {
			shapes = append(shapes, c)
		}
	}
	result.Shapes = len(shapes)
	if len(shapes) == 0 {
		return result
	}

	areas := make([]float64, len(shapes))
	for i, c := range shapes {
		areas[i] = c.Area
	}
	med := median(areas)
	result.MedianArea = med

	lo := math.Max(minAreaFloor, minAreaFraction*med)
	hi := maxAreaMultiplier * med
	for _, c := range shapes {
		if c.Area < lo || c.Area > hi {
			continue
		}
		if min(c.Width, c.Height) < minSide {
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}
	result.Count = len(result.Candidates)
	return result
}

// measureComponent traces the component's outer boundary and applies the
// shape filter.
func measureComponent(mask [][]bool, comp component, width, height int) (Candidate, bool) {
	boundary := traceBoundary(mask, comp.start, width, height, 4*len(comp.pixels)+16)
	area := polygonArea(boundary)
	if area <= 0 {
		return Candidate{}, false
	}

	w, h := comp.bounds.Width(), comp.bounds.Height()
	aspect := float64(w) / float64(h)
	if aspect < minAspect || aspect > maxAspect {
		return Candidate{}, false
	}

	perimeter := polygonPerimeter(boundary)
	if perimeter <= 0 {
		return Candidate{}, false
	}
	circularity := 4 * math.Pi * area / (perimeter * perimeter)
	if circularity < minCircularity {
		return Candidate{}, false
	}

	return Candidate{
		CenterX:     float64(comp.bounds.X1) + float64(w)/2,
		CenterY:     float64(comp.bounds.Y1) + float64(h)/2,
		Area:        area,
		Width:       w,
		Height:      h,
		Circularity: circularity,
		Bounds:      comp.bounds,
	}, true
}

// darkMask returns a white-on-black mask of pixels at or below level.
func darkMask(img image.Image, level uint8) image.Image {
	return segment.Threshold(effect.Invert(img), 255-level)
}

// cleanMask applies a 3x3 opening followed by a 3x3 closing.
func cleanMask(mask image.Image) image.Image {
	opened := effect.Dilate(effect.Erode(mask, 1), 1)
	return effect.Erode(effect.Dilate(opened, 1), 1)
}

// otsuLevel picks the threshold maximizing between-class variance.
// Intensities at or below the returned level form the dark class.
func otsuLevel(bins []int) uint8 {
	var total float64
	for _, n := range bins {
		total += float64(n)
	}
	if total == 0 {
		return 0
	}

	var mu float64
	for i, n := range bins {
		mu += float64(i) * float64(n) / total
	}

	const eps = 1.1920929e-07
	var q1, mu1, maxSigma float64
	var level int
	for i, n := range bins {
		p := float64(n) / total
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if math.Min(q1, q2) < eps || math.Max(q1, q2) > 1-eps {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			level = i
		}
	}
	return uint8(level)
}

// median averages the two middle values for even-length input.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
