package grid

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/omr-reader/internal/detection"
	"github.com/ironsheep/omr-reader/internal/imaging"
	"github.com/ironsheep/omr-reader/internal/omr"
)

// Inference constants.
const (
	defaultPitch       = 25.0
	minRowTolerance    = 6.0
	rowToleranceFactor = 0.55
	blockGapFactor     = 2.8
	blockGapWidthRatio = 0.035
)

// Failure reasons reported in Result.Reason.
const (
	ReasonNoCandidates = "no candidates"
	ReasonNoSegments   = "no row contains a group of two or more bubbles"
	ReasonOptionCount  = "could not determine option count"
	ReasonColumnCount  = "could not determine column count"
	ReasonNoRows       = "no row matches the column count"
)

// Config holds grid inference parameters.
type Config struct {
	// TemplateWidth is the aligned canvas width; it bounds the minimum gap
	// separating question blocks.
	TemplateWidth int
}

// DefaultConfig returns the configuration for the default template canvas.
func DefaultConfig() Config {
	return Config{TemplateWidth: imaging.DefaultTemplateWidth}
}

// Center is an unlabeled bubble position.
type Center struct {
	X float64
	Y float64
}

// Centers extracts the center of each candidate.
func Centers(cands []detection.Candidate) []Center {
	out := make([]Center, len(cands))
	for i, c := range cands {
		out[i] = Center{X: c.CenterX, Y: c.CenterY}
	}
	return out
}

// Result contains the inferred grid and the statistics that produced it.
type Result struct {
	Centers omr.BubbleCenterMap `json:"bubbleCenters"`
	// Reason is set when Centers is empty.
	Reason       string  `json:"reason,omitempty"`
	RowTolerance float64 `json:"rowTolerance"`
	RawRows      int     `json:"rawRows"`
	Rows         int     `json:"rows"`
	Options      int     `json:"options"`
	Columns      int     `json:"columns"`
}

// Empty reports whether no grid could be inferred.
func (r *Result) Empty() bool {
	return r.Centers.Len() == 0
}

// Infer groups centers into rows and question blocks and numbers them.
//
// Inference never fails with an error; an undiscoverable layout yields an
// empty map with Reason set. The result is deterministic for a given input
// order.
func Infer(centers []Center, cfg Config) *Result {
	if cfg.TemplateWidth <= 0 {
		cfg.TemplateWidth = imaging.DefaultTemplateWidth
	}
	result := &Result{Centers: omr.BubbleCenterMap{}}
	if len(centers) == 0 {
		result.Reason = ReasonNoCandidates
		return result
	}

	rows, tol := groupRows(centers)
	result.RowTolerance = tol
	result.RawRows = len(rows)

	segmented := make([][][]Center, 0, len(rows))
	for _, row := range rows {
		if segs := segmentRow(row, cfg.TemplateWidth); len(segs) > 0 {
			segmented = append(segmented, segs)
		}
	}
	if len(segmented) == 0 {
		result.Reason = ReasonNoSegments
		return result
	}

	var sizes []int
	for _, row := range segmented {
		for _, seg := range row {
			if len(seg) > 1 {
				sizes = append(sizes, len(seg))
			}
		}
	}
	options, ok := mode(sizes)
	if !ok || options < 2 {
		result.Reason = ReasonOptionCount
		return result
	}
	result.Options = options

	counts := make([]int, 0, len(segmented))
	for _, row := range segmented {
		if n := len(qualifying(row, options)); n > 0 {
			counts = append(counts, n)
		}
	}
	columns, ok := mode(counts)
	if !ok || columns < 1 {
		result.Reason = ReasonColumnCount
		return result
	}
	result.Columns = columns

	var kept [][][]Center
	for _, row := range segmented {
		if good := qualifying(row, options); len(good) == columns {
			kept = append(kept, good)
		}
	}
	if len(kept) == 0 {
		result.Reason = ReasonNoRows
		return result
	}
	result.Rows = len(kept)

	letters := omr.OptionLetters(options)
	for col := 0; col < columns; col++ {
		for r, row := range kept {
			seg := sortedByX(row[col])[:options]
			q := col*len(kept) + r + 1
			for i, letter := range letters {
				result.Centers.Set(q, letter, roundHalfEven(seg[i].X), roundHalfEven(seg[i].Y))
			}
		}
	}
	return result
}

// groupRows sweeps centers top-to-bottom, joining a row while within
// tolerance of the row's running mean y.
func groupRows(centers []Center) ([][]Center, float64) {
	sorted := append([]Center(nil), centers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	var diffs []float64
	for i := 0; i+1 < len(sorted); i++ {
		if d := sorted[i+1].Y - sorted[i].Y; d > 0 {
			diffs = append(diffs, d)
		}
	}
	pitch := defaultPitch
	if len(diffs) > 0 {
		pitch = median(diffs)
	}
	tol := math.Max(minRowTolerance, pitch*rowToleranceFactor)

	var rows [][]Center
	current := []Center{sorted[0]}
	ys := []float64{sorted[0].Y}
	mean := sorted[0].Y
	for _, c := range sorted[1:] {
		if math.Abs(c.Y-mean) <= tol {
			current = append(current, c)
			ys = append(ys, c.Y)
			mean = stat.Mean(ys, nil)
			continue
		}
		rows = append(rows, current)
		current = []Center{c}
		ys = []float64{c.Y}
		mean = c.Y
	}
	rows = append(rows, current)
	return rows, tol
}

// segmentRow splits a row into question blocks at unusually wide x gaps and
// drops blocks of fewer than two bubbles.
func segmentRow(row []Center, templateWidth int) [][]Center {
	if len(row) <= 1 {
		return nil
	}
	sorted := sortedByX(row)

	diffs := make([]float64, len(sorted)-1)
	var positive []float64
	for i := range diffs {
		diffs[i] = sorted[i+1].X - sorted[i].X
		if diffs[i] > 0 {
			positive = append(positive, diffs[i])
		}
	}
	pitch := defaultPitch
	if len(positive) > 0 {
		pitch = median(positive)
	}
	gap := math.Max(pitch*blockGapFactor, float64(templateWidth)*blockGapWidthRatio)

	var segments [][]Center
	seg := []Center{sorted[0]}
	for i, d := range diffs {
		if d > gap {
			segments = append(segments, seg)
			seg = []Center{sorted[i+1]}
			continue
		}
		seg = append(seg, sorted[i+1])
	}
	segments = append(segments, seg)

	kept := segments[:0]
	for _, s := range segments {
		if len(s) >= 2 {
			kept = append(kept, s)
		}
	}
	return kept
}

func qualifying(row [][]Center, options int) [][]Center {
	var good [][]Center
	for _, seg := range row {
		if len(seg) >= options {
			good = append(good, seg)
		}
	}
	return good
}

func sortedByX(cs []Center) []Center {
	out := append([]Center(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// mode returns the most frequent value; ties go to the value seen first.
func mode(values []int) (int, bool) {
	if len(values) == 0 {
		return 0, false
	}
	counts := make(map[int]int)
	var order []int
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// median averages the two middle values for even-length input.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}
