package omr

import (
	"reflect"
	"testing"
)

func TestOptionLetters(t *testing.T) {
	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{2, []string{"A", "B"}},
		{4, []string{"A", "B", "C", "D"}},
		{-1, []string{}},
	}
	for _, tt := range tests {
		if got := OptionLetters(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("OptionLetters(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
	if got := OptionLetters(40); len(got) != 26 {
		t.Errorf("OptionLetters(40) returned %d letters, want 26", len(got))
	}
}

func TestBubbleCenterMap_Ordering(t *testing.T) {
	m := make(BubbleCenterMap)
	m.Set(10, "B", 3, 3)
	m.Set(2, "B", 2, 2)
	m.Set(2, "A", 1, 1)
	m.Set(10, "A", 4, 4)

	if got := m.Questions(); !reflect.DeepEqual(got, []int{2, 10}) {
		t.Errorf("Questions() = %v", got)
	}
	centers := m.Centers()
	if len(centers) != 4 || m.Len() != 4 {
		t.Fatalf("got %d centers, Len() = %d", len(centers), m.Len())
	}
	if m.NumQuestions() != 2 {
		t.Errorf("NumQuestions() = %d, want 2", m.NumQuestions())
	}
	order := []string{"2A", "2B", "10A", "10B"}
	for i, c := range centers {
		label := itoa(c.Question) + c.Option
		if label != order[i] {
			t.Errorf("center %d = %s, want %s", i, label, order[i])
		}
	}
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}

func TestBubbleCenterMap_Validate(t *testing.T) {
	good := make(BubbleCenterMap)
	good.Set(1, "A", 0, 0)
	good.Set(1, "B", 1, 0)
	good.Set(2, "A", 0, 1)
	good.Set(2, "B", 1, 1)
	if err := good.Validate(); err != nil {
		t.Errorf("valid map rejected: %v", err)
	}

	ragged := make(BubbleCenterMap)
	ragged.Set(1, "A", 0, 0)
	ragged.Set(1, "B", 1, 0)
	ragged.Set(2, "A", 0, 1)
	if err := ragged.Validate(); err == nil {
		t.Error("ragged option counts accepted")
	}

	gap := make(BubbleCenterMap)
	gap.Set(1, "A", 0, 0)
	gap.Set(1, "C", 1, 0)
	if err := gap.Validate(); err == nil {
		t.Error("non-contiguous options accepted")
	}
}

func TestStudentAnswerEntry_Selected(t *testing.T) {
	opt := "C"
	if got, ok := (StudentAnswerEntry{SelectedOption: &opt}).Selected(); !ok || got != "C" {
		t.Errorf("Selected() = %q, %v", got, ok)
	}
	if _, ok := (StudentAnswerEntry{}).Selected(); ok {
		t.Error("blank entry reported a selection")
	}
}
