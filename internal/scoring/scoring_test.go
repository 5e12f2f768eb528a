package scoring

import (
	"testing"

	"github.com/ironsheep/omr-reader/internal/omr"
)

func selected(q int, opt string) omr.StudentAnswerEntry {
	return omr.StudentAnswerEntry{Question: q, SelectedOption: &opt, Confidence: 0.9}
}

func blank(q int) omr.StudentAnswerEntry {
	return omr.StudentAnswerEntry{Question: q, Confidence: 0.1}
}

func TestEvaluate(t *testing.T) {
	key := []omr.AnswerKeyEntry{
		{Question: 1, CorrectOption: "A"},
		{Question: 2, CorrectOption: "B"},
		{Question: 51, CorrectOption: "C"},
		{Question: 120, CorrectOption: "D"},
		{Question: 181, CorrectOption: "A"},
	}
	answers := []omr.StudentAnswerEntry{
		selected(1, "a"),
		selected(2, "C"),
		blank(51),
		selected(120, "D"),
		selected(181, "B"),
		selected(7, "A"),
	}

	eval := Evaluate(key, answers, DefaultConfig())

	if eval.TotalMarks != 4-1+0+4-1 {
		t.Errorf("Expected total 6, got %f", eval.TotalMarks)
	}
	if eval.TotalPossibleMarks != 20 {
		t.Errorf("Expected possible 20, got %f", eval.TotalPossibleMarks)
	}
	if eval.CorrectCount != 2 || eval.IncorrectCount != 2 || eval.UnattemptedCount != 1 {
		t.Errorf("Unexpected counts: %d/%d/%d", eval.CorrectCount, eval.IncorrectCount, eval.UnattemptedCount)
	}

	if len(eval.WrongQuestions) != 2 {
		t.Fatalf("Expected 2 wrong questions, got %+v", eval.WrongQuestions)
	}
	want := WrongAnswer{Question: 2, Subject: "Physics", SelectedOption: "C", CorrectOption: "B"}
	if eval.WrongQuestions[0] != want {
		t.Errorf("Got %+v, want %+v", eval.WrongQuestions[0], want)
	}
	if eval.WrongQuestions[1].Subject != GeneralSection {
		t.Errorf("Q181 should be General, got %s", eval.WrongQuestions[1].Subject)
	}

	tests := []struct {
		name  string
		marks float64
	}{
		{"Physics", 3},
		{"Chemistry", 0},
		{"Biology", 4},
		{GeneralSection, -1},
	}
	for _, tt := range tests {
		if got := eval.Section(tt.name).Marks; got != tt.marks {
			t.Errorf("%s: got %f, want %f", tt.name, got, tt.marks)
		}
	}
	if len(eval.SectionMarks) != 4 {
		t.Errorf("Expected 3 configured sections plus General, got %d", len(eval.SectionMarks))
	}
	if eval.Section("Chemistry").UnattemptedCount != 1 {
		t.Error("Blank Q51 should be unattempted in Chemistry")
	}
}

func TestEvaluate_MissingAnswersAreUnattempted(t *testing.T) {
	key := []omr.AnswerKeyEntry{{Question: 1, CorrectOption: "A"}, {Question: 2, CorrectOption: "B"}}

	eval := Evaluate(key, nil, DefaultConfig())
	if eval.UnattemptedCount != 2 || eval.TotalMarks != 0 {
		t.Errorf("Expected 2 unattempted and 0 marks, got %d and %f", eval.UnattemptedCount, eval.TotalMarks)
	}
	if eval.WrongQuestions == nil {
		t.Error("WrongQuestions should be empty, not nil")
	}
}

func TestEvaluate_CustomScheme(t *testing.T) {
	cfg := Config{
		MarksPerCorrect:     1,
		MarksPerWrong:       -0.25,
		MarksPerUnattempted: 0,
		Sections:            []Section{{Name: "Part A", Start: 1, End: 2}},
	}
	key := []omr.AnswerKeyEntry{
		{Question: 1, CorrectOption: "A"},
		{Question: 2, CorrectOption: "B"},
		{Question: 2, CorrectOption: "C"},
		{Question: 3, CorrectOption: ""},
	}
	answers := []omr.StudentAnswerEntry{selected(1, "B"), selected(2, "C")}

	eval := Evaluate(key, answers, cfg)
	if eval.TotalMarks != 0.75 {
		t.Errorf("Expected 0.75, got %f", eval.TotalMarks)
	}
	if eval.TotalPossibleMarks != 2 {
		t.Errorf("Blank key entries must not count, got possible %f", eval.TotalPossibleMarks)
	}
	if len(eval.SectionMarks) != 1 || eval.SectionMarks[0].Name != "Part A" {
		t.Errorf("Unexpected sections: %+v", eval.SectionMarks)
	}
}

func TestSectionFor(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		q    int
		want string
	}{
		{1, "Physics"},
		{50, "Physics"},
		{51, "Chemistry"},
		{100, "Chemistry"},
		{180, "Biology"},
		{0, GeneralSection},
		{181, GeneralSection},
	}
	for _, tt := range tests {
		if got := cfg.SectionFor(tt.q); got != tt.want {
			t.Errorf("SectionFor(%d) = %s, want %s", tt.q, got, tt.want)
		}
	}
}
