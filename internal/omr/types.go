package omr

import (
	"fmt"
	"sort"
)

// OptionAlphabet is the ordered set of option letters. Options on a sheet are
// always a contiguous prefix of it.
const OptionAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// OptionLetters returns the first n option letters, e.g. 4 -> ["A" "B" "C" "D"].
// n is clamped to the alphabet size.
func OptionLetters(n int) []string {
	if n < 0 {
		n = 0
	}
	if n > len(OptionAlphabet) {
		n = len(OptionAlphabet)
	}
	letters := make([]string, n)
	for i := 0; i < n; i++ {
		letters[i] = OptionAlphabet[i : i+1]
	}
	return letters
}

// BubbleCenter locates one selectable bubble on the aligned canvas.
type BubbleCenter struct {
	Question int    `json:"questionNumber"`
	Option   string `json:"option"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// BubbleCenterMap maps question number -> option letter -> bubble center.
type BubbleCenterMap map[int]map[string]BubbleCenter

// Set records the center of one (question, option) bubble.
func (m BubbleCenterMap) Set(question int, option string, x, y int) {
	opts, ok := m[question]
	if !ok {
		opts = make(map[string]BubbleCenter)
		m[question] = opts
	}
	opts[option] = BubbleCenter{Question: question, Option: option, X: x, Y: y}
}

// Questions returns the question numbers in ascending order.
func (m BubbleCenterMap) Questions() []int {
	qs := make([]int, 0, len(m))
	for q := range m {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// Options returns the option letters of one question in ascending order.
func (m BubbleCenterMap) Options(question int) []string {
	opts := make([]string, 0, len(m[question]))
	for o := range m[question] {
		opts = append(opts, o)
	}
	sort.Strings(opts)
	return opts
}

// Centers flattens the map in question, then option order.
func (m BubbleCenterMap) Centers() []BubbleCenter {
	centers := make([]BubbleCenter, 0, m.Len())
	for _, q := range m.Questions() {
		for _, o := range m.Options(q) {
			centers = append(centers, m[q][o])
		}
	}
	return centers
}

// Len returns the total number of bubbles in the map.
func (m BubbleCenterMap) Len() int {
	n := 0
	for _, opts := range m {
		n += len(opts)
	}
	return n
}

// NumQuestions returns the number of questions in the map.
func (m BubbleCenterMap) NumQuestions() int { return len(m) }

// Equal reports whether two maps hold exactly the same centers.
func (m BubbleCenterMap) Equal(other BubbleCenterMap) bool {
	if len(m) != len(other) {
		return false
	}
	for q, opts := range m {
		otherOpts, ok := other[q]
		if !ok || len(opts) != len(otherOpts) {
			return false
		}
		for o, c := range opts {
			if otherOpts[o] != c {
				return false
			}
		}
	}
	return true
}

// Validate checks the structural invariants of a discovered map: every
// question carries the same number of options, the options are a contiguous
// alphabet prefix, and each center's labels agree with its keys.
func (m BubbleCenterMap) Validate() error {
	want := -1
	for _, q := range m.Questions() {
		if q < 1 {
			return fmt.Errorf("question %d: question numbers must be positive", q)
		}
		opts := m.Options(q)
		if want < 0 {
			want = len(opts)
		}
		if len(opts) != want {
			return fmt.Errorf("question %d has %d options, expected %d", q, len(opts), want)
		}
		for i, letter := range OptionLetters(len(opts)) {
			if opts[i] != letter {
				return fmt.Errorf("question %d: options %v are not a contiguous prefix of %s", q, opts, OptionAlphabet)
			}
			c := m[q][letter]
			if c.Question != q || c.Option != letter {
				return fmt.Errorf("question %d option %s: center labelled %d/%s", q, letter, c.Question, c.Option)
			}
		}
	}
	return nil
}

// ClassificationResult is the fill confidence of one bubble on one image.
type ClassificationResult struct {
	Question   int     `json:"questionNumber"`
	Option     string  `json:"option"`
	CenterX    int     `json:"centerX"`
	CenterY    int     `json:"centerY"`
	Confidence float64 `json:"confidence"`
}

// AnswerKeyEntry is the correct option of one question on a reference sheet.
type AnswerKeyEntry struct {
	Question      int    `json:"questionNumber"`
	CorrectOption string `json:"correctOption"`
}

// StudentAnswerEntry is the decision for one question on a student sheet.
// A nil SelectedOption means the question was left blank.
type StudentAnswerEntry struct {
	Question       int     `json:"questionNumber"`
	SelectedOption *string `json:"selectedOption"`
	CenterX        int     `json:"centerX"`
	CenterY        int     `json:"centerY"`
	Confidence     float64 `json:"confidence"`
}

// Selected returns the selected option and whether one was made.
func (e StudentAnswerEntry) Selected() (string, bool) {
	if e.SelectedOption == nil {
		return "", false
	}
	return *e.SelectedOption, true
}
