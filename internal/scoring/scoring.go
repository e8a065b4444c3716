// Package scoring grades submitted answers against the authoritative
// question bank.
package scoring

import (
	"math"
	"strconv"

	"github.com/stemsi/examvault/internal/examcontent"
)

// Result is the outcome of grading one submission.
type Result struct {
	CorrectCount   int     `json:"correct_count"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

// Score compares answers (question index -> 0-based option index) with the
// 1-based correctAnswer of each question. Unknown or unanswered indices
// count as incorrect. The total always comes from questions, never from
// the submission.
//
// Only canonical decimal keys ("0", "1", ...) are graded, so each question
// is counted at most once; spellings such as "00" or "+0" are ignored.
func Score(answers map[string]int, questions []examcontent.Question) Result {
	res := Result{TotalQuestions: len(questions)}

	for k, selected := range answers {
		idx, ok := questionIndex(k, len(questions))
		if !ok {
			continue
		}
		if selected == questions[idx].CorrectAnswer-1 {
			res.CorrectCount++
		}
	}

	if res.TotalQuestions > 0 {
		res.Percentage = Round2(float64(res.CorrectCount) / float64(res.TotalQuestions) * 100)
	}
	return res
}

// questionIndex parses k as a question index. Keys that are not the
// canonical form of an in-range index are rejected.
func questionIndex(k string, n int) (int, bool) {
	idx, err := strconv.Atoi(k)
	if err != nil || idx < 0 || idx >= n || strconv.Itoa(idx) != k {
		return 0, false
	}
	return idx, true
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
