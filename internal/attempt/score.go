package attempt

import "github.com/openlms/attempt-service/internal/models"

// CalculateScore counts the learner's correct answers for a choices attempt.
// It iterates the answer-key mapping, not the learner's answers, so entries
// outside the key never contribute. Pure: safe to call repeatedly, before or
// after submission.
func (s *Session) CalculateScore() (int, error) {
	if s.assessment.Type != models.TypeChoices {
		return 0, ErrWrongType
	}
	score := 0
	for questionKey, correct := range s.assessment.AnswerKey {
		if selected, ok := s.answers[questionKey]; ok && selected == correct {
			score++
		}
	}
	return score, nil
}
