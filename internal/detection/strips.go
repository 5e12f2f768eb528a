package detection

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// LabelBox is one object-detector box in normalized coordinates.
type LabelBox struct {
	Class  int     `json:"class"`
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ParseLabels reads label lines of the form "class cx cy w h [conf]".
// Blank lines are skipped.
func ParseLabels(r io.Reader) ([]LabelBox, error) {
	var boxes []LabelBox
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 5 {
			return nil, fmt.Errorf("label line %d: expected at least 5 fields, got %d", line, len(fields))
		}
		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("label line %d: field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		boxes = append(boxes, LabelBox{
			Class:  int(vals[0]),
			CX:     vals[1],
			CY:     vals[2],
			Width:  vals[3],
			Height: vals[4],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return boxes, nil
}

// OptionRange identifies which option column a mark's x position falls in.
type OptionRange int

const (
	OptionUnmatched OptionRange = iota
	OptionA
	OptionB
	OptionC
	OptionD
)

// MatchOption maps an x position inside a resized strip to an option.
func MatchOption(x int) OptionRange {
	switch {
	case x >= 1 && x < 20:
		return OptionA
	case x >= 22 && x < 42:
		return OptionB
	case x >= 44 && x < 64:
		return OptionC
	case x >= 66 && x < 100:
		return OptionD
	default:
		return OptionUnmatched
	}
}

// String returns the option letter, or "unmatched".
func (o OptionRange) String() string {
	switch o {
	case OptionA:
		return "A"
	case OptionB:
		return "B"
	case OptionC:
		return "C"
	case OptionD:
		return "D"
	default:
		return "unmatched"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o OptionRange) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// StripConfig controls the column-strip reader.
type StripConfig struct {
	Width      int
	Height     int
	TrimTop    int
	TrimBottom int
	Sections   int
	// Threshold is the fixed binarization level; darker-or-equal is ink.
	Threshold uint8
	MinArea   float64
	MaxArea   float64
	MinFill   float64
}

// DefaultStripConfig returns the settings for the 50-row, four-option
// column layout.
func DefaultStripConfig() StripConfig {
	return StripConfig{
		Width:      95,
		Height:     750,
		TrimTop:    5,
		TrimBottom: 12,
		Sections:   50,
		Threshold:  90,
		MinArea:    50,
		MaxArea:    500,
		MinFill:    0.5,
	}
}

// StripMark is one filled mark found in a section.
type StripMark struct {
	X      int         `json:"x"`
	Y      int         `json:"y"`
	Option OptionRange `json:"option"`
}

// StripAnswer is the reading of one row of one strip.
type StripAnswer struct {
	Question int         `json:"questionNumber"`
	Strip    int         `json:"strip"`
	Row      int         `json:"row"`
	Marks    []StripMark `json:"marks"`
}

// Options returns the matched option letters in mark order.
func (a StripAnswer) Options() []string {
	var out []string
	for _, m := range a.Marks {
		if m.Option != OptionUnmatched {
			out = append(out, m.Option.String())
		}
	}
	return out
}

// ReadStrips reads every class-0 box as a strip, left to right.
func ReadStrips(img image.Image, boxes []LabelBox, cfg StripConfig) []StripAnswer {
	strips := make([]LabelBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Class == 0 {
			strips = append(strips, b)
		}
	}
	sort.SliceStable(strips, func(i, j int) bool { return strips[i].CX < strips[j].CX })

	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	answers := make([]StripAnswer, 0, len(strips)*cfg.Sections)
	for s, box := range strips {
		cx := int(box.CX * float64(width))
		cy := int(box.CY * float64(height))
		bw := int(box.Width * float64(width))
		bh := int(box.Height * float64(height))
		halfW, halfH := float64(bw)/2, float64(bh)/2
		rect := image.Rect(
			int(float64(cx)-halfW), int(float64(cy)-halfH),
			int(float64(cx)+halfW), int(float64(cy)+halfH),
		).Intersect(bounds)
		if rect.Empty() {
			continue
		}

		roi := imaging.Resize(imaging.Crop(gray, rect), cfg.Width, cfg.Height, imaging.Linear)
		top, bottom := cfg.TrimTop, cfg.Height-cfg.TrimBottom
		if bottom <= top {
			continue
		}
		mask := inkMask(roi, top, bottom, cfg.Threshold)
		answers = append(answers, readSections(mask, s, cfg)...)
	}
	return answers
}

// inkMask binarizes rows [top, bottom) of a grayscale strip.
func inkMask(roi *image.NRGBA, top, bottom int, level uint8) [][]bool {
	w := roi.Rect.Dx()
	mask := make([][]bool, bottom-top)
	for y := top; y < bottom; y++ {
		row := make([]bool, w)
		for x := 0; x < w; x++ {
			row[x] = roi.Pix[roi.PixOffset(x, y)] <= level
		}
		mask[y-top] = row
	}
	return mask
}

func readSections(mask [][]bool, strip int, cfg StripConfig) []StripAnswer {
	height := len(mask)
	sectionHeight := float64(height) / float64(cfg.Sections)

	answers := make([]StripAnswer, 0, cfg.Sections)
	for j := 0; j < cfg.Sections; j++ {
		y0 := int(float64(j) * sectionHeight)
		y1 := int(float64(j+1) * sectionHeight)
		if j == cfg.Sections-1 {
			y1 = height
		}

		answer := StripAnswer{
			Question: strip*cfg.Sections + j + 1,
			Strip:    strip,
			Row:      j,
			Marks:    sectionMarks(mask[y0:y1], cfg),
		}
		if len(answer.Marks) == 0 {
			answer.Marks = []StripMark{{Option: OptionUnmatched}}
		}
		answers = append(answers, answer)
	}
	return answers
}

func sectionMarks(section [][]bool, cfg StripConfig) []StripMark {
	height := len(section)
	if height == 0 {
		return nil
	}
	width := len(section[0])

	marks := make([]StripMark, 0)
	for _, comp := range findComponents(section, width, height, true) {
		boundary := traceBoundary(section, comp.start, width, height, 4*len(comp.pixels)+16)
		area := polygonArea(boundary)
		if area <= cfg.MinArea || area >= cfg.MaxArea {
			continue
		}

		b := comp.bounds
		ink := 0
		for y := b.Y1; y <= b.Y2; y++ {
			for x := b.X1; x <= b.X2; x++ {
				if section[y][x] {
					ink++
				}
			}
		}
		if float64(ink)/float64(b.Width()*b.Height()) <= cfg.MinFill {
			continue
		}

		x := b.X1 + b.Width()/2
		marks = append(marks, StripMark{
			X:      x,
			Y:      b.Y1 + b.Height()/2,
			Option: MatchOption(x),
		})
	}
	return marks
}
