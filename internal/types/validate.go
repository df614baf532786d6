package types

import "fmt"

// Validation limits for uploaded quiz configs
const (
	MaxGameNameLength    = 70
	MaxGameTextLength    = 300
	MinQuestions         = 1
	MaxQuestions         = 50
	MaxQuestionLength    = 400
	// MaxAnswerTime caps the per-question answer window (ms). Keeps
	// timer durations well inside the 32 bit wire value.
	MaxAnswerTime = uint64(30 * 60 * 1000)
	MinAnswers           = 1
	MaxAnswers           = 8
	MaxAnswerValueLength = 150
	MinPlayerNameLength  = 1
	MaxPlayerNameLength  = 30
)

// Validate checks an uploaded config against the model limits. The
// returned error text is surfaced directly in the HTTP 400 body.
func (c *GameConfig) Validate() error {
	if len(c.Name) == 0 || len(c.Name) > MaxGameNameLength {
		return fmt.Errorf("quiz name must be between 1 and %d characters", MaxGameNameLength)
	}
	if len(c.Text) > MaxGameTextLength {
		return fmt.Errorf("quiz text must be at most %d characters", MaxGameTextLength)
	}
	if c.MaxPlayers < 1 {
		return fmt.Errorf("max players must be a positive number")
	}
	if !c.Filtering.IsValid() {
		return fmt.Errorf("unknown name filtering level %q", string(c.Filtering))
	}
	if len(c.Questions) < MinQuestions || len(c.Questions) > MaxQuestions {
		return fmt.Errorf("quiz must have between %d and %d questions", MinQuestions, MaxQuestions)
	}
	for i, question := range c.Questions {
		if question == nil {
			return fmt.Errorf("question %d is missing", i+1)
		}
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if question.Image != nil {
			if _, ok := c.Images[question.Image.UUID]; !ok {
				return fmt.Errorf("question %d references missing image %s", i+1, question.Image.UUID)
			}
		}
	}
	return nil
}

// Validate checks a single question against the model limits
func (q *Question) Validate() error {
	if !q.Ty.IsValid() {
		return fmt.Errorf("unknown question type %q", string(q.Ty))
	}
	if len(q.Text) == 0 || len(q.Text) > MaxQuestionLength {
		return fmt.Errorf("question text must be between 1 and %d characters", MaxQuestionLength)
	}
	if q.AnswerTime == 0 || q.AnswerTime > MaxAnswerTime {
		return fmt.Errorf("answer time must be between 1ms and %dms", MaxAnswerTime)
	}
	if q.Scoring.MaxScore < q.Scoring.MinScore {
		return fmt.Errorf("max score must not be below min score")
	}
	if q.Image != nil && !q.Image.Fit.IsValid() {
		return fmt.Errorf("unknown image fit mode %q", string(q.Image.Fit))
	}

	switch q.Ty {
	case QuestionSingle, QuestionMultiple:
		if len(q.Answers) < MinAnswers || len(q.Answers) > MaxAnswers {
			return fmt.Errorf("must have between %d and %d answers", MinAnswers, MaxAnswers)
		}
		for _, answer := range q.Answers {
			if len(answer.Value) == 0 || len(answer.Value) > MaxAnswerValueLength {
				return fmt.Errorf("answer text must be between 1 and %d characters", MaxAnswerValueLength)
			}
		}
		correct := q.CorrectCount()
		if q.Ty == QuestionSingle && correct != 1 {
			return fmt.Errorf("single choice questions must have exactly one correct answer")
		}
		if q.Ty == QuestionMultiple && correct < 1 {
			return fmt.Errorf("multiple choice questions must have at least one correct answer")
		}
	case QuestionTrueFalse:
		// Nothing beyond the shared fields
	case QuestionTyper:
		if len(q.TyperAnswers) < MinAnswers || len(q.TyperAnswers) > MaxAnswers {
			return fmt.Errorf("must have between %d and %d accepted answers", MinAnswers, MaxAnswers)
		}
		for _, answer := range q.TyperAnswers {
			if len(answer) == 0 || len(answer) > MaxAnswerValueLength {
				return fmt.Errorf("accepted answer text must be between 1 and %d characters", MaxAnswerValueLength)
			}
		}
	}
	return nil
}
