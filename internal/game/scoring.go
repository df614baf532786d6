package game

import (
	"math"
	"strings"
	"time"

	"github.com/jacobtread/Quizler/internal/types"
)

// Mark computes the score for an answer to a question given the time
// elapsed since the question started. Pure and deterministic: the base
// score interpolates between the question's min and max scores by how
// quickly the answer arrived, a bonus is added when inside the bonus
// window, then the answer itself is checked against the question type.
func Mark(elapsed time.Duration, question *types.Question, answer *types.Answer) types.Score {
	elapsedMs := uint64(elapsed.Milliseconds())

	// Percent of the answer window remaining, clamped so answers that
	// land after the deadline still score the minimum
	timePercent := 1.0 - float64(elapsedMs)/float64(question.AnswerTime)
	if timePercent < 0 {
		timePercent = 0
	}

	scoring := &question.Scoring
	baseScore := scoring.MinScore +
		uint32(math.Round(float64(scoring.MaxScore-scoring.MinScore)*timePercent))

	if elapsedMs <= question.BonusScoreTime {
		baseScore += scoring.BonusScore
	}

	// Mismatched answer shapes are marked incorrect rather than
	// rejected; submission validated the shape already
	if !answer.Matches(question) {
		return types.ScoreIncorrect()
	}

	switch question.Ty {
	case types.QuestionSingle:
		return markSingle(baseScore, question, answer)
	case types.QuestionMultiple:
		return markMultiple(baseScore, question, answer)
	case types.QuestionTrueFalse:
		if answer.Bool == question.Answer {
			return types.ScoreCorrect(baseScore)
		}
		return types.ScoreIncorrect()
	case types.QuestionTyper:
		return markTyper(baseScore, question, answer)
	default:
		return types.ScoreIncorrect()
	}
}

func markSingle(baseScore uint32, question *types.Question, answer *types.Answer) types.Score {
	index := answer.Index
	if index < 0 || index >= len(question.Answers) {
		return types.ScoreIncorrect()
	}
	if question.Answers[index].Correct {
		return types.ScoreCorrect(baseScore)
	}
	return types.ScoreIncorrect()
}

func markMultiple(baseScore uint32, question *types.Question, answer *types.Answer) types.Score {
	countChosen := len(answer.Indexes)
	countExpected := question.CorrectCount()

	// Too few or too many picks
	if countChosen < 1 || countChosen > countExpected {
		return types.ScoreIncorrect()
	}

	countCorrect := 0
	for _, index := range answer.Indexes {
		if index < 0 || index >= len(question.Answers) {
			continue
		}
		if question.Answers[index].Correct {
			countCorrect++
		}
	}

	if countCorrect < 1 {
		return types.ScoreIncorrect()
	}
	if countCorrect == countExpected {
		return types.ScoreCorrect(baseScore)
	}

	percent := float64(countCorrect) / float64(countExpected)
	value := uint32(math.Round(float64(baseScore) * percent))
	return types.ScorePartial(value, uint32(countCorrect), uint32(countExpected))
}

func markTyper(baseScore uint32, question *types.Question, answer *types.Answer) types.Score {
	value := strings.TrimSpace(answer.Text)
	for _, expected := range question.TyperAnswers {
		if question.IgnoreCase {
			if strings.EqualFold(value, expected) {
				return types.ScoreCorrect(baseScore)
			}
		} else if value == expected {
			return types.ScoreCorrect(baseScore)
		}
	}
	return types.ScoreIncorrect()
}
