package attempt

import "github.com/openlms/attempt-service/internal/models"

// BuildChoicesPayload serializes the attempt into the upstream submission
// payload for a multiple-choice assessment. Unanswered questions stay absent
// from the answer mapping.
func (s *Session) BuildChoicesPayload() (*models.ChoicesSubmission, error) {
	if s.assessment.Type != models.TypeChoices {
		return nil, ErrWrongType
	}
	return &models.ChoicesSubmission{
		RoleID: s.roleID,
		Answer: s.AnswerState(),
	}, nil
}

// BuildEssayPayload serializes the attempt into the essay submission payload,
// in original question order. The "No answer provided." default is applied
// here, at serialization time, so an empty-string answer and a never-touched
// question are normalized identically.
func (s *Session) BuildEssayPayload() (*models.EssaySubmission, error) {
	if s.assessment.Type != models.TypeEssay {
		return nil, ErrWrongType
	}
	questions := make([]models.EssayQuestionAnswer, len(s.assessment.Questions))
	for i, q := range s.assessment.Questions {
		answer := s.answers[q.Key]
		if answer == "" {
			answer = models.NoAnswerPlaceholder
		}
		questions[i] = models.EssayQuestionAnswer{
			Question: q.Text,
			Answer:   answer,
		}
	}
	return &models.EssaySubmission{
		AssessmentID: s.assessment.AssessmentID,
		Questions:    questions,
	}, nil
}
