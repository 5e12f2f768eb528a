package answers

import (
	"testing"

	"github.com/ironsheep/omr-reader/internal/omr"
)

func result(q int, option string, conf float64) omr.ClassificationResult {
	return omr.ClassificationResult{Question: q, Option: option, CenterX: q * 10, CenterY: len(option) + int(option[0]), Confidence: conf}
}

func TestBuildAnswerKey(t *testing.T) {
	results := []omr.ClassificationResult{
		result(2, "A", 0.1), result(2, "B", 0.8), result(2, "C", 0.2),
		result(1, "A", 0.9), result(1, "B", 0.05),
		result(3, "A", 0.24), result(3, "B", 0.1),
		result(4, "a", 0.25),
	}

	key := BuildAnswerKey(results)
	want := []omr.AnswerKeyEntry{
		{Question: 1, CorrectOption: "A"},
		{Question: 2, CorrectOption: "B"},
		{Question: 4, CorrectOption: "A"},
	}
	if len(key) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %+v", len(want), len(key), key)
	}
	for i := range want {
		if key[i] != want[i] {
			t.Errorf("Entry %d: got %+v, want %+v", i, key[i], want[i])
		}
	}
}

func TestBuildAnswerKey_TieGoesToFirst(t *testing.T) {
	key := BuildAnswerKey([]omr.ClassificationResult{result(1, "A", 0.7), result(1, "B", 0.7)})
	if len(key) != 1 || key[0].CorrectOption != "A" {
		t.Errorf("Expected tie to resolve to A, got %+v", key)
	}
}

func TestBuildAnswerKey_Empty(t *testing.T) {
	if key := BuildAnswerKey(nil); key == nil || len(key) != 0 {
		t.Errorf("Expected empty non-nil key, got %#v", key)
	}
}

func TestBuildStudentAnswers(t *testing.T) {
	results := []omr.ClassificationResult{
		result(1, "A", 0.05), result(1, "B", 0.10),
		result(2, "A", 0.3), result(2, "B", 0.9),
		result(3, "C", 0.25),
	}

	answers := BuildStudentAnswers(results, DefaultSelectionThreshold)
	if len(answers) != 3 {
		t.Fatalf("Expected one entry per question, got %d", len(answers))
	}

	blank := answers[0]
	if _, ok := blank.Selected(); ok {
		t.Errorf("Q1 should be blank, got %v", *blank.SelectedOption)
	}
	if blank.Confidence != 0.10 {
		t.Errorf("Blank entry should keep confidence 0.10, got %f", blank.Confidence)
	}
	if blank.CenterX != 10 || blank.CenterY != result(1, "B", 0).CenterY {
		t.Errorf("Blank entry should carry B's center, got (%d,%d)", blank.CenterX, blank.CenterY)
	}

	if opt, ok := answers[1].Selected(); !ok || opt != "B" {
		t.Errorf("Q2: expected B, got %q %v", opt, ok)
	}
	if opt, ok := answers[2].Selected(); !ok || opt != "C" {
		t.Errorf("Q3 at exactly the threshold should be selected, got %q %v", opt, ok)
	}
}

func TestBuildStudentAnswers_Threshold(t *testing.T) {
	results := []omr.ClassificationResult{result(1, "A", 0.6)}

	tests := []struct {
		threshold float64
		selected  bool
	}{
		{0, true},
		{0.5, true},
		{0.6, true},
		{0.61, false},
		{1, false},
	}
	for _, tt := range tests {
		answers := BuildStudentAnswers(results, tt.threshold)
		if _, ok := answers[0].Selected(); ok != tt.selected {
			t.Errorf("threshold %.2f: selected=%v, want %v", tt.threshold, ok, tt.selected)
		}
	}
}

func TestKeyNeverBelowFloor(t *testing.T) {
	var results []omr.ClassificationResult
	for q := 1; q <= 50; q++ {
		results = append(results, result(q, "A", float64(q)/50), result(q, "B", float64(50-q)/100))
	}

	key := BuildAnswerKey(results)
	byQ := make(map[int]float64)
	for _, r := range results {
		if r.Confidence > byQ[r.Question] {
			byQ[r.Question] = r.Confidence
		}
	}
	for _, e := range key {
		if byQ[e.Question] < KeyMinConfidence {
			t.Errorf("Q%d emitted with confidence %f", e.Question, byQ[e.Question])
		}
	}
	if got := len(BuildStudentAnswers(results, 0.25)); got != 50 {
		t.Errorf("Expected 50 student entries, got %d", got)
	}
}
