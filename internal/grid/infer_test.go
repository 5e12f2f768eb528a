package grid

import (
	"testing"

	"github.com/ironsheep/omr-reader/internal/detection"
	"github.com/ironsheep/omr-reader/internal/omr"
)

// sheetCenters lays out blocks of rows x options bubbles.
func sheetCenters(blocks, rows, options int, blockX []float64, pitchX, top, pitchY float64) []Center {
	var out []Center
	for r := 0; r < rows; r++ {
		for b := 0; b < blocks; b++ {
			for o := 0; o < options; o++ {
				out = append(out, Center{X: blockX[b] + float64(o)*pitchX, Y: top + float64(r)*pitchY})
			}
		}
	}
	return out
}

func TestInfer_TwoRowsOneColumn(t *testing.T) {
	centers := []Center{{50, 100}, {80, 103}, {50, 520}, {80, 523}}

	result := Infer(centers, DefaultConfig())
	if result.Empty() {
		t.Fatalf("Expected a grid, got reason %q", result.Reason)
	}
	if result.Options != 2 || result.Columns != 1 || result.Rows != 2 {
		t.Errorf("Unexpected shape: options=%d columns=%d rows=%d", result.Options, result.Columns, result.Rows)
	}

	want := omr.BubbleCenterMap{}
	want.Set(1, "A", 50, 100)
	want.Set(1, "B", 80, 103)
	want.Set(2, "A", 50, 520)
	want.Set(2, "B", 80, 523)
	if !result.Centers.Equal(want) {
		t.Errorf("Unexpected map: %+v", result.Centers)
	}
}

func TestInfer_ColumnMajorNumbering(t *testing.T) {
	centers := sheetCenters(2, 3, 4, []float64{100, 600}, 40, 200, 60)

	result := Infer(centers, DefaultConfig())
	if result.Options != 4 || result.Columns != 2 || result.Rows != 3 {
		t.Fatalf("Unexpected shape: options=%d columns=%d rows=%d (%s)",
			result.Options, result.Columns, result.Rows, result.Reason)
	}
	if result.Centers.NumQuestions() != 6 {
		t.Fatalf("Expected 6 questions, got %d", result.Centers.NumQuestions())
	}

	tests := []struct {
		question int
		option   string
		x, y     int
	}{
		{1, "A", 100, 200},
		{1, "D", 220, 200},
		{3, "A", 100, 320},
		{4, "A", 600, 200},
		{6, "C", 680, 320},
	}
	for _, tt := range tests {
		c, ok := result.Centers[tt.question][tt.option]
		if !ok {
			t.Errorf("Missing Q%d %s", tt.question, tt.option)
			continue
		}
		if c.X != tt.x || c.Y != tt.y {
			t.Errorf("Q%d %s: got (%d,%d), want (%d,%d)", tt.question, tt.option, c.X, c.Y, tt.x, tt.y)
		}
	}

	if err := result.Centers.Validate(); err != nil {
		t.Errorf("Inferred map should be valid: %v", err)
	}
}

func TestInfer_DropsMalformedRows(t *testing.T) {
	centers := sheetCenters(2, 3, 4, []float64{100, 600}, 40, 200, 60)
	// A stray three-bubble group and a lone mark, each on their own row.
	centers = append(centers, Center{100, 380}, Center{140, 380}, Center{180, 380})
	centers = append(centers, Center{1200, 440})
	// A half-filled row: only the left block is present.
	centers = append(centers, sheetCenters(1, 1, 4, []float64{100}, 40, 500, 60)...)

	result := Infer(centers, DefaultConfig())
	if result.Rows != 3 || result.Columns != 2 {
		t.Fatalf("Expected 3 rows x 2 columns, got %d x %d", result.Rows, result.Columns)
	}
	if result.RawRows != 6 {
		t.Errorf("Expected 6 raw rows, got %d", result.RawRows)
	}
	if result.Centers.NumQuestions() != 6 {
		t.Errorf("Expected 6 questions, got %d", result.Centers.NumQuestions())
	}
}

func TestInfer_TruncatesLongSegments(t *testing.T) {
	centers := sheetCenters(1, 3, 4, []float64{100}, 40, 200, 60)
	// Row 2 has a fifth bubble in the same block.
	centers = append(centers, Center{260, 260})

	result := Infer(centers, DefaultConfig())
	if result.Options != 4 {
		t.Fatalf("Expected 4 options, got %d", result.Options)
	}
	if len(result.Centers[2]) != 4 {
		t.Errorf("Expected Q2 truncated to 4 options, got %d", len(result.Centers[2]))
	}
	if result.Centers[2]["D"].X != 220 {
		t.Errorf("Expected Q2 D at x=220, got %d", result.Centers[2]["D"].X)
	}
}

func TestInfer_RowTolerance(t *testing.T) {
	// Slight vertical drift within a row stays in one row.
	centers := []Center{{100, 200}, {140, 204}, {180, 197}, {220, 202}, {100, 300}, {140, 302}, {180, 298}, {220, 301}}

	result := Infer(centers, DefaultConfig())
	if result.Rows != 2 || result.Options != 4 {
		t.Errorf("Expected 2 rows of 4, got %d rows of %d", result.Rows, result.Options)
	}
	if result.RowTolerance < minRowTolerance {
		t.Errorf("Row tolerance %f below floor", result.RowTolerance)
	}
}

func TestInfer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		centers []Center
		reason  string
	}{
		{"empty", nil, ReasonNoCandidates},
		{"single point", []Center{{10, 10}}, ReasonNoSegments},
		{"one per row", []Center{{10, 10}, {10, 200}, {10, 400}}, ReasonNoSegments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Infer(tt.centers, DefaultConfig())
			if !result.Empty() {
				t.Errorf("Expected empty map, got %d questions", result.Centers.NumQuestions())
			}
			if result.Reason != tt.reason {
				t.Errorf("Expected reason %q, got %q", tt.reason, result.Reason)
			}
			if result.Centers == nil {
				t.Error("Centers should be an empty map, not nil")
			}
		})
	}
}

func TestInfer_Idempotent(t *testing.T) {
	centers := sheetCenters(3, 5, 5, []float64{100, 800, 1500}, 45, 300, 70)

	first := Infer(centers, DefaultConfig())
	second := Infer(centers, DefaultConfig())
	if !first.Centers.Equal(second.Centers) {
		t.Error("Repeated inference should yield identical maps")
	}
	if first.Centers.NumQuestions() != 15 {
		t.Errorf("Expected 15 questions, got %d", first.Centers.NumQuestions())
	}
}

func TestInfer_SmallTemplateWidth(t *testing.T) {
	// With a narrow canvas the block gap comes from the bubble pitch alone.
	centers := sheetCenters(2, 2, 3, []float64{10, 100}, 10, 10, 30)

	result := Infer(centers, Config{TemplateWidth: 200})
	if result.Columns != 2 || result.Options != 3 {
		t.Errorf("Expected 2 columns of 3 options, got %d of %d", result.Columns, result.Options)
	}

	wide := Infer(centers, Config{TemplateWidth: 4000})
	if wide.Columns != 1 || wide.Options != 6 {
		t.Errorf("Wide canvas should merge blocks, got %d columns of %d", wide.Columns, wide.Options)
	}
}

func TestCenters(t *testing.T) {
	cands := []detection.Candidate{{CenterX: 1.5, CenterY: 2.5}, {CenterX: 3, CenterY: 4}}
	got := Centers(cands)
	if len(got) != 2 || got[0] != (Center{1.5, 2.5}) || got[1] != (Center{3, 4}) {
		t.Errorf("Unexpected centers: %v", got)
	}
}

func TestMode(t *testing.T) {
	tests := []struct {
		values []int
		want   int
		ok     bool
	}{
		{nil, 0, false},
		{[]int{4, 4, 3}, 4, true},
		{[]int{3, 4, 4, 3}, 3, true},
		{[]int{2, 5, 5, 5, 2}, 5, true},
	}

	for _, tt := range tests {
		got, ok := mode(tt.values)
		if got != tt.want || ok != tt.ok {
			t.Errorf("mode(%v) = %d,%v want %d,%v", tt.values, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRoundHalfEven(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{50.5, 50},
		{51.5, 52},
		{10.4, 10},
		{10.6, 11},
	}
	for _, tt := range tests {
		if got := roundHalfEven(tt.in); got != tt.want {
			t.Errorf("roundHalfEven(%f) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
