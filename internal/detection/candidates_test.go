package detection

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/omr-reader/internal/imaging"
)

// createTestSheet creates a white grayscale canvas.
func createTestSheet(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// drawDisk fills a black disk.
func drawDisk(img *image.Gray, cx, cy, r int) {
	drawRing(img, cx, cy, r, -1)
}

// drawRing fills the annulus inner < d <= outer in black.
func drawRing(img *image.Gray, cx, cy, outer, inner int) {
	for y := cy - outer; y <= cy+outer; y++ {
		for x := cx - outer; x <= cx+outer; x++ {
			d2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d2 <= outer*outer && (inner < 0 || d2 > inner*inner) {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
}

// drawBox fills an inclusive black rectangle.
func drawBox(img *image.Gray, x1, y1, x2, y2 int) {
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

func TestDetectCandidates(t *testing.T) {
	img := createTestSheet(400, 300)
	for _, cy := range []int{60, 130, 200} {
		for _, cx := range []int{60, 120, 180, 240} {
			drawDisk(img, cx, cy, 10)
		}
	}
	// A ruled line and scanner specks must not become candidates.
	drawBox(img, 50, 268, 250, 270)
	drawBox(img, 350, 50, 351, 51)
	drawBox(img, 350, 250, 351, 251)

	result := DetectCandidates(imaging.NewAlignedImage(img))
	if result.Count != 12 {
		t.Fatalf("Expected 12 candidates, got %d", result.Count)
	}
	if len(result.Candidates) != result.Count {
		t.Errorf("Count %d does not match %d candidates", result.Count, len(result.Candidates))
	}
	if result.Threshold == 0 || result.Threshold == 255 {
		t.Errorf("Unexpected threshold %d", result.Threshold)
	}

	for _, c := range result.Candidates {
		if c.Circularity < 0.7 {
			t.Errorf("Disk at (%.1f,%.1f) has low circularity %f", c.CenterX, c.CenterY, c.Circularity)
		}
		if c.Width < 15 || c.Width > 25 {
			t.Errorf("Unexpected disk width %d", c.Width)
		}
		nx := math.Mod(c.CenterX-0.5, 60)
		if nx > 2 && nx < 58 {
			t.Errorf("Center x %.1f is not near a drawn disk", c.CenterX)
		}
	}
}

func TestDetectCandidates_EmptyImage(t *testing.T) {
	result := DetectCandidates(imaging.NewAlignedImage(createTestSheet(200, 200)))
	if result.Count != 0 {
		t.Errorf("Expected no candidates on a blank sheet, got %d", result.Count)
	}
	if result.Candidates == nil {
		t.Error("Candidates should be an empty slice, not nil")
	}
}

func TestDetectCandidates_Nil(t *testing.T) {
	if result := DetectCandidates(nil); result.Count != 0 {
		t.Errorf("Expected no candidates, got %d", result.Count)
	}
}

func TestDetectCandidates_RingMatchesDisk(t *testing.T) {
	img := createTestSheet(200, 200)
	drawDisk(img, 50, 100, 12)
	drawRing(img, 150, 100, 12, 8)

	result := DetectCandidates(imaging.NewAlignedImage(img))
	if result.Count != 2 {
		t.Fatalf("Expected filled and empty bubble, got %d", result.Count)
	}

	a, b := result.Candidates[0].Area, result.Candidates[1].Area
	if math.Abs(a-b)/math.Max(a, b) > 0.25 {
		t.Errorf("Ring area %f should be close to disk area %f", b, a)
	}
}

func TestDetectCandidates_PopulationFilter(t *testing.T) {
	img := createTestSheet(600, 200)
	for _, cx := range []int{40, 90, 140, 190, 240} {
		drawDisk(img, cx, 50, 10)
	}
	drawDisk(img, 400, 100, 40)
	drawDisk(img, 540, 50, 4)

	result := DetectCandidates(imaging.NewAlignedImage(img))
	if result.Count != 5 {
		t.Fatalf("Expected 5 candidates after area filter, got %d", result.Count)
	}
	if result.Shapes < 6 {
		t.Errorf("Expected the oversized disk to pass the shape filter, got %d shapes", result.Shapes)
	}
	for _, c := range result.Candidates {
		if c.CenterY > 70 {
			t.Errorf("Unexpected candidate at (%.1f,%.1f)", c.CenterX, c.CenterY)
		}
	}
}

func TestOtsuLevel(t *testing.T) {
	tests := []struct {
		name string
		bins func() []int
		want uint8
	}{
		{"empty", func() []int { return make([]int, 256) }, 0},
		{"single value", func() []int {
			b := make([]int, 256)
			b[255] = 1000
			return b
		}, 0},
		{"bimodal", func() []int {
			b := make([]int, 256)
			b[20] = 100
			b[220] = 100
			return b
		}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := otsuLevel(tt.bins()); got != tt.want {
				t.Errorf("otsuLevel() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOtsuLevel_Skewed(t *testing.T) {
	b := make([]int, 256)
	for i := 0; i < 40; i++ {
		b[10+i] = 5
	}
	for i := 0; i < 40; i++ {
		b[200+i] = 50
	}
	got := otsuLevel(b)
	if got < 49 || got >= 200 {
		t.Errorf("Expected level between the modes, got %d", got)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
	}{
		{nil, 0},
		{[]float64{5}, 5},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}

	for _, tt := range tests {
		if got := median(tt.values); got != tt.want {
			t.Errorf("median(%v) = %f, want %f", tt.values, got, tt.want)
		}
	}
}
