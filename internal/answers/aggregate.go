// Package answers reduces per-bubble confidences to one decision per
// question.
//
// Answer keys and student sheets use different policies. A key question
// without a confident mark is left out of the key, so an unreadable key
// bubble can never grade students. A student question without a confident
// mark is still reported, as a blank.
package answers

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/omr-reader/internal/omr"
)

// Confidence floors.
const (
	KeyMinConfidence          = 0.25
	DefaultSelectionThreshold = 0.25
)

// group collects results per question, preserving input order within a
// question. Questions are returned ascending.
func group(results []omr.ClassificationResult) ([]int, map[int][]omr.ClassificationResult) {
	byQ := make(map[int][]omr.ClassificationResult)
	for _, r := range results {
		byQ[r.Question] = append(byQ[r.Question], r)
	}
	questions := make([]int, 0, len(byQ))
	for q := range byQ {
		questions = append(questions, q)
	}
	sort.Ints(questions)
	return questions, byQ
}

// best returns the highest-confidence result; the first one wins ties.
func best(rs []omr.ClassificationResult) omr.ClassificationResult {
	conf := make([]float64, len(rs))
	for i, r := range rs {
		conf[i] = r.Confidence
	}
	return rs[floats.MaxIdx(conf)]
}

// BuildAnswerKey picks the most confident option per question and omits
// questions whose best confidence is below KeyMinConfidence.
func BuildAnswerKey(results []omr.ClassificationResult) []omr.AnswerKeyEntry {
	questions, byQ := group(results)
	key := make([]omr.AnswerKeyEntry, 0, len(questions))
	for _, q := range questions {
		b := best(byQ[q])
		if b.Confidence < KeyMinConfidence {
			continue
		}
		key = append(key, omr.AnswerKeyEntry{
			Question:      q,
			CorrectOption: strings.ToUpper(b.Option),
		})
	}
	return key
}

// BuildStudentAnswers emits one entry per question. The best option is
// selected only if its confidence reaches threshold; the entry always
// carries the best option's center and confidence.
func BuildStudentAnswers(results []omr.ClassificationResult, threshold float64) []omr.StudentAnswerEntry {
	questions, byQ := group(results)
	out := make([]omr.StudentAnswerEntry, 0, len(questions))
	for _, q := range questions {
		b := best(byQ[q])
		entry := omr.StudentAnswerEntry{
			Question:   q,
			CenterX:    b.CenterX,
			CenterY:    b.CenterY,
			Confidence: b.Confidence,
		}
		if b.Confidence >= threshold {
			opt := strings.ToUpper(b.Option)
			entry.SelectedOption = &opt
		}
		out = append(out, entry)
	}
	return out
}
