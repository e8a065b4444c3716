// Package examcontent validates and (de)serializes question-bank documents.
package examcontent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/examvault/internal/encryption"
)

// OptionCount is the number of options every question must carry.
const OptionCount = 4

// ErrCorruptContent is returned when decrypted content does not have the
// question-bank shape.
var ErrCorruptContent = errors.New("exam content is corrupt")

// Question is a single multiple-choice question as uploaded and stored.
// CorrectAnswer is 1-based.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// QuestionBank is the upload and storage document.
type QuestionBank struct {
	Questions []Question `json:"questions"`
}

// DeliveredQuestion is what a student receives: no answer key.
type DeliveredQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// ValidationError attributes a violation to a 1-based question index.
// Index 0 means the document as a whole.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index == 0 {
		return e.Reason
	}
	return fmt.Sprintf("Question %d: %s", e.Index, e.Reason)
}

// rawQuestion keeps correctAnswer untyped so non-integers are reported as
// validation errors instead of decode errors.
type rawQuestion struct {
	Question      string          `json:"question"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
}

type rawBank struct {
	Questions json.RawMessage `json:"questions"`
}

// Parse decodes and validates an uploaded question bank.
func Parse(raw []byte) (*QuestionBank, error) {
	var doc rawBank
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Reason: "invalid JSON: " + err.Error()}
	}

	var items []json.RawMessage
	if len(doc.Questions) == 0 || json.Unmarshal(doc.Questions, &items) != nil {
		return nil, &ValidationError{Reason: "questions must be an array"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Reason: "questions must not be empty"}
	}

	bank := &QuestionBank{Questions: make([]Question, 0, len(items))}
	for i, item := range items {
		q, err := decodeQuestion(i+1, item)
		if err != nil {
			return nil, err
		}
		if err := validateQuestion(i+1, q); err != nil {
			return nil, err
		}
		bank.Questions = append(bank.Questions, q)
	}
	return bank, nil
}

func decodeQuestion(index int, item json.RawMessage) (Question, error) {
	var rq rawQuestion
	if err := json.Unmarshal(item, &rq); err != nil {
		return Question{}, &ValidationError{Index: index, Reason: "must be an object"}
	}

	q := Question{Question: rq.Question}

	if len(rq.Options) == 0 || json.Unmarshal(rq.Options, &q.Options) != nil {
		return Question{}, &ValidationError{Index: index, Reason: "options must be an array of strings"}
	}

	var n float64
	if len(rq.CorrectAnswer) == 0 || json.Unmarshal(rq.CorrectAnswer, &n) != nil || n != float64(int(n)) {
		return Question{}, &ValidationError{Index: index, Reason: "correctAnswer must be an integer between 1 and 4"}
	}
	q.CorrectAnswer = int(n)
	return q, nil
}

// Validate checks every question and reports the first violation.
func Validate(questions []Question) error {
	if len(questions) == 0 {
		return &ValidationError{Reason: "questions must not be empty"}
	}
	for i, q := range questions {
		if err := validateQuestion(i+1, q); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestion(idx int, q Question) error {
	if strings.TrimSpace(q.Question) == "" {
		return &ValidationError{Index: idx, Reason: "question text is required"}
	}
	if len(q.Options) != OptionCount {
		return &ValidationError{Index: idx, Reason: fmt.Sprintf("must have exactly %d options, got %d", OptionCount, len(q.Options))}
	}
	if q.CorrectAnswer < 1 || q.CorrectAnswer > OptionCount {
		return &ValidationError{Index: idx, Reason: "correctAnswer must be an integer between 1 and 4"}
	}
	return nil
}

// Sanitize strips the answer key before content reaches a student.
func Sanitize(questions []Question) []DeliveredQuestion {
	out := make([]DeliveredQuestion, len(questions))
	for i, q := range questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		out[i] = DeliveredQuestion{Question: q.Question, Options: opts}
	}
	return out
}

// FromPayload extracts the question list from decrypted content fetched
// from the content store. Only the presence of a questions array is
// required here; the bank was fully validated at upload time.
func FromPayload(p encryption.DecryptedPayload) ([]Question, error) {
	doc, ok := p.Structured()
	if !ok {
		return nil, fmt.Errorf("%w: payload is not JSON", ErrCorruptContent)
	}

	var bank struct {
		Questions *[]Question `json:"questions"`
	}
	if err := json.Unmarshal(doc, &bank); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}
	if bank.Questions == nil {
		return nil, fmt.Errorf("%w: missing questions", ErrCorruptContent)
	}
	return *bank.Questions, nil
}
