package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type AssessmentType string

const (
	TypeChoices AssessmentType = "choices"
	TypeEssay   AssessmentType = "essay"
)

// ChoiceOption is one selectable option of a multiple-choice question.
// Key is the wire identifier ("option1", "option2", ...), Text the display text.
type ChoiceOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is one entry of the ordered question set. Key is the identity the
// answer store and the answer key are keyed by: the question text for choices
// assessments, the synthetic "questionN" key for essay assessments.
type Question struct {
	Key     string         `json:"key"`
	Text    string         `json:"text"`
	Options []ChoiceOption `json:"options,omitempty"`
}

// AssessmentDetails is the assessment as fetched from the upstream LMS API.
// The upstream encodes questions as a JSON object; the slice preserves the
// document order of that object so that question numbering is stable for the
// whole attempt.
type AssessmentDetails struct {
	AssessmentID int64
	Title        string
	Deadline     string // informational only, displayed as-is
	Type         AssessmentType
	Questions    []Question
	AnswerKey    map[string]string // question key -> correct option key; nil for essay
}

// QuestionKeys returns the ordered question identities.
func (a *AssessmentDetails) QuestionKeys() []string {
	keys := make([]string, len(a.Questions))
	for i, q := range a.Questions {
		keys[i] = q.Key
	}
	return keys
}

type assessmentDetailsWire struct {
	AssessmentID int64           `json:"assessment_id"`
	Title        string          `json:"title"`
	Deadline     string          `json:"deadline"`
	Type         string          `json:"type,omitempty"`
	Question     json.RawMessage `json:"question"`
	Answer       json.RawMessage `json:"answer,omitempty"`
}

// UnmarshalJSON decodes the upstream wire format. The assessment type is
// decided exactly once here: an answer key means choices, no answer key means
// essay. A "type" tag, when the upstream sends one, has to agree with that.
func (a *AssessmentDetails) UnmarshalJSON(data []byte) error {
	var wire assessmentDetailsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to decode assessment details: %w", err)
	}

	hasAnswerKey := len(wire.Answer) > 0 && !bytes.Equal(bytes.TrimSpace(wire.Answer), []byte("null"))

	decoded := AssessmentDetails{
		AssessmentID: wire.AssessmentID,
		Title:        wire.Title,
		Deadline:     wire.Deadline,
		Type:         TypeEssay,
	}
	if hasAnswerKey {
		decoded.Type = TypeChoices
	}

	if wire.Type != "" {
		tagged, err := parseAssessmentType(wire.Type)
		if err != nil {
			return err
		}
		if tagged != decoded.Type {
			return fmt.Errorf("assessment type tag %q disagrees with answer key presence", wire.Type)
		}
	}

	questions, err := decodeOrderedQuestions(wire.Question, decoded.Type)
	if err != nil {
		return err
	}
	decoded.Questions = questions

	if hasAnswerKey {
		if err := json.Unmarshal(wire.Answer, &decoded.AnswerKey); err != nil {
			return fmt.Errorf("failed to decode answer key: %w", err)
		}
	}

	*a = decoded
	return nil
}

// MarshalJSON re-encodes the upstream wire format, writing the question
// object in question-set order so the encoding round-trips.
func (a AssessmentDetails) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(name string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(name)
		if err != nil {
			return err
		}
		valJSON, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
		return nil
	}

	if err := writeField("assessment_id", a.AssessmentID); err != nil {
		return nil, err
	}
	if err := writeField("title", a.Title); err != nil {
		return nil, err
	}
	if err := writeField("deadline", a.Deadline); err != nil {
		return nil, err
	}

	question, err := encodeOrderedQuestions(a.Questions, a.Type)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"question":`)
	buf.Write(question)

	if a.Type == TypeChoices {
		if err := writeField("answer", a.AnswerKey); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func parseAssessmentType(tag string) (AssessmentType, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "choices":
		return TypeChoices, nil
	case "essay":
		return TypeEssay, nil
	default:
		return "", fmt.Errorf("unknown assessment type %q", tag)
	}
}

// decodeOrderedQuestions walks the raw question object token by token.
// encoding/json maps do not preserve key order, and question order is part of
// the contract, so the object is read manually.
func decodeOrderedQuestions(raw json.RawMessage, typ AssessmentType) ([]Question, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to decode question set: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("question set must be a JSON object, got %v", tok)
	}

	var questions []Question
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to decode question key: %w", err)
		}
		key := keyTok.(string)

		switch typ {
		case TypeChoices:
			options, err := decodeOrderedOptions(dec)
			if err != nil {
				return nil, fmt.Errorf("question %q: %w", key, err)
			}
			questions = append(questions, Question{Key: key, Text: key, Options: options})
		case TypeEssay:
			var text string
			if err := dec.Decode(&text); err != nil {
				return nil, fmt.Errorf("question %q: expected question text: %w", key, err)
			}
			questions = append(questions, Question{Key: key, Text: text})
		}
	}

	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to decode question set: %w", err)
	}

	return questions, nil
}

func decodeOrderedOptions(dec *json.Decoder) ([]ChoiceOption, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("options must be a JSON object, got %v", tok)
	}

	var options []ChoiceOption
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to decode option key: %w", err)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return nil, fmt.Errorf("option %v: expected option text: %w", keyTok, err)
		}
		options = append(options, ChoiceOption{Key: keyTok.(string), Text: text})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}

	return options, nil
}

func encodeOrderedQuestions(questions []Question, typ AssessmentType) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, q := range questions {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(q.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		switch typ {
		case TypeChoices:
			buf.WriteByte('{')
			for j, opt := range q.Options {
				if j > 0 {
					buf.WriteByte(',')
				}
				optKey, err := json.Marshal(opt.Key)
				if err != nil {
					return nil, err
				}
				optText, err := json.Marshal(opt.Text)
				if err != nil {
					return nil, err
				}
				buf.Write(optKey)
				buf.WriteByte(':')
				buf.Write(optText)
			}
			buf.WriteByte('}')
		case TypeEssay:
			textJSON, err := json.Marshal(q.Text)
			if err != nil {
				return nil, err
			}
			buf.Write(textJSON)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
