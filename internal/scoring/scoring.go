// Package scoring grades student answers against an answer key.
//
// Only questions present in the key are scored. A student question that is
// missing or blank counts as unattempted.
package scoring

import (
	"sort"
	"strings"

	"github.com/ironsheep/omr-reader/internal/omr"
)

// GeneralSection names questions outside every configured section.
const GeneralSection = "General"

// Section is an inclusive range of question numbers.
type Section struct {
	Name  string `json:"name"`
	Start int    `json:"startQuestion"`
	End   int    `json:"endQuestion"`
}

// Config holds the marking scheme.
type Config struct {
	MarksPerCorrect     float64   `json:"marksPerCorrect"`
	MarksPerWrong       float64   `json:"marksPerWrong"`
	MarksPerUnattempted float64   `json:"marksPerUnattempted"`
	Sections            []Section `json:"sections"`
}

// DefaultConfig returns the 180-question NEET scheme: +4 correct, -1 wrong,
// Physics 1-50, Chemistry 51-100, Biology 101-180.
func DefaultConfig() Config {
	return Config{
		MarksPerCorrect:     4,
		MarksPerWrong:       -1,
		MarksPerUnattempted: 0,
		Sections: []Section{
			{Name: "Physics", Start: 1, End: 50},
			{Name: "Chemistry", Start: 51, End: 100},
			{Name: "Biology", Start: 101, End: 180},
		},
	}
}

// SectionFor returns the name of the first section containing question.
func (c Config) SectionFor(question int) string {
	for _, s := range c.Sections {
		if question >= s.Start && question <= s.End {
			if s.Name == "" {
				return GeneralSection
			}
			return s.Name
		}
	}
	return GeneralSection
}

// SectionMarks is the breakdown for one section.
type SectionMarks struct {
	Name             string  `json:"name"`
	Marks            float64 `json:"marks"`
	CorrectCount     int     `json:"correctCount"`
	IncorrectCount   int     `json:"incorrectCount"`
	UnattemptedCount int     `json:"unattemptedCount"`
}

// WrongAnswer records one incorrectly answered question.
type WrongAnswer struct {
	Question       int    `json:"questionNumber"`
	Subject        string `json:"subject"`
	SelectedOption string `json:"selectedOption"`
	CorrectOption  string `json:"correctOption"`
}

// Evaluation is the graded result of one student sheet.
type Evaluation struct {
	TotalMarks         float64        `json:"totalMarks"`
	TotalPossibleMarks float64        `json:"totalPossibleMarks"`
	CorrectCount       int            `json:"correctCount"`
	IncorrectCount     int            `json:"incorrectCount"`
	UnattemptedCount   int            `json:"unattemptedCount"`
	WrongQuestions     []WrongAnswer  `json:"wrongQuestions"`
	SectionMarks       []SectionMarks `json:"sectionMarks"`
}

// Section returns the breakdown for name, or a zero value.
func (e *Evaluation) Section(name string) SectionMarks {
	for _, s := range e.SectionMarks {
		if s.Name == name {
			return s
		}
	}
	return SectionMarks{Name: name}
}

// Evaluate grades answers against key. Duplicate key or answer entries for
// a question keep the last one. Options compare case-insensitively.
func Evaluate(key []omr.AnswerKeyEntry, answers []omr.StudentAnswerEntry, cfg Config) *Evaluation {
	keyMap := make(map[int]string)
	for _, k := range key {
		if opt := strings.ToUpper(strings.TrimSpace(k.CorrectOption)); opt != "" {
			keyMap[k.Question] = opt
		}
	}
	studentMap := make(map[int]string)
	for _, a := range answers {
		opt, _ := a.Selected()
		studentMap[a.Question] = strings.ToUpper(strings.TrimSpace(opt))
	}

	questions := make([]int, 0, len(keyMap))
	for q := range keyMap {
		questions = append(questions, q)
	}
	sort.Ints(questions)

	stats := make(map[string]*SectionMarks)
	section := func(name string) *SectionMarks {
		s, ok := stats[name]
		if !ok {
			s = &SectionMarks{Name: name}
			stats[name] = s
		}
		return s
	}

	eval := &Evaluation{WrongQuestions: make([]WrongAnswer, 0)}
	for _, q := range questions {
		correct := keyMap[q]
		subject := cfg.SectionFor(q)
		s := section(subject)

		selected := studentMap[q]
		switch {
		case selected == "":
			eval.UnattemptedCount++
			eval.TotalMarks += cfg.MarksPerUnattempted
			s.UnattemptedCount++
			s.Marks += cfg.MarksPerUnattempted
		case selected == correct:
			eval.CorrectCount++
			eval.TotalMarks += cfg.MarksPerCorrect
			s.CorrectCount++
			s.Marks += cfg.MarksPerCorrect
		default:
			eval.IncorrectCount++
			eval.TotalMarks += cfg.MarksPerWrong
			s.IncorrectCount++
			s.Marks += cfg.MarksPerWrong
			eval.WrongQuestions = append(eval.WrongQuestions, WrongAnswer{
				Question:       q,
				Subject:        subject,
				SelectedOption: selected,
				CorrectOption:  correct,
			})
		}
	}

	seen := make(map[string]bool)
	for _, sec := range cfg.Sections {
		name := sec.Name
		if name == "" {
			name = GeneralSection
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		eval.SectionMarks = append(eval.SectionMarks, *section(name))
	}
	if g, ok := stats[GeneralSection]; ok && !seen[GeneralSection] {
		eval.SectionMarks = append(eval.SectionMarks, *g)
	}

	eval.TotalPossibleMarks = float64(len(keyMap)) * cfg.MarksPerCorrect
	return eval
}
