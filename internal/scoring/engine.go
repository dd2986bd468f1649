// Package scoring grades a finished attempt. Grade is a pure function over
// the attempt's question-set snapshot, its final answer map, and its settings;
// it never reads the live quiz, so mid-attempt edits cannot change a grade.
package scoring

import (
	"fmt"
	"math"

	"quiz-attempt-service/internal/domain"
)

// Grade computes the full result for a terminal attempt. The attempt must
// carry a submission timestamp (set by the status claim) and a structurally
// valid question snapshot; a snapshot whose correct option is missing is an
// authoring bug and is returned as an error, never scored as zero.
func Grade(attempt domain.Attempt) (domain.Result, error) {
	if attempt.SubmittedAt == nil {
		return domain.Result{}, fmt.Errorf("attempt %s: grade called before submission", attempt.ID)
	}

	settings := attempt.Settings
	result := domain.Result{
		AttemptID:      attempt.ID,
		QuizID:         attempt.QuizID,
		CourseID:       attempt.CourseID,
		StudentID:      attempt.StudentID,
		TotalQuestions: len(attempt.Questions),
		SubmittedAt:    *attempt.SubmittedAt,
		Questions:      make([]domain.QuestionResult, 0, len(attempt.Questions)),
	}

	for _, question := range attempt.Questions {
		if _, ok := question.Option(question.CorrectOptionID); !ok {
			return domain.Result{}, fmt.Errorf("question %s: %w: correct option %q missing",
				question.ID, domain.ErrInvalidQuestionSet, question.CorrectOptionID)
		}

		marks := settings.Marks(question)
		penalty := settings.Penalty(question)
		result.TotalMarks += marks

		qr := domain.QuestionResult{
			QuestionID:      question.ID,
			CorrectOptionID: question.CorrectOptionID,
			Explanation:     question.Explanation,
		}

		selected, answered := attempt.Answers[question.ID]
		switch {
		case !answered:
			result.UnansweredQuestions++
		case selected == question.CorrectOptionID:
			qr.Answered = true
			qr.SelectedOptionID = selected
			qr.IsCorrect = true
			qr.MarksAwarded = marks
			result.CorrectAnswers++
		default:
			qr.Answered = true
			qr.SelectedOptionID = selected
			// A wrong answer costs exactly the configured penalty; the
			// penalty never compounds, so one question can never contribute
			// less than -penalty.
			qr.MarksAwarded = -penalty
			result.IncorrectAnswers++
		}
		result.MarksObtained += qr.MarksAwarded
		result.Questions = append(result.Questions, qr)
	}

	if result.TotalMarks > 0 {
		result.Percentage = result.MarksObtained / result.TotalMarks * 100
	}
	result.IsPassed = result.Percentage >= settings.PassingPercent()
	result.TimeTakenSeconds = int64(math.Floor(attempt.SubmittedAt.Sub(attempt.StartedAt).Seconds()))
	result.Feedback = Feedback(result.Percentage)
	return result, nil
}

// Feedback maps a percentage to its encouragement band. Band boundaries are
// inclusive on the lower edge of each tier.
func Feedback(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Outstanding performance! You have excellent command of this topic."
	case percentage >= 75:
		return "Great job! You have a strong grasp of the material."
	case percentage >= 60:
		return "Good effort! Review the explanations to close the remaining gaps."
	case percentage >= 40:
		return "Keep practicing! Revisit the course material and try again."
	default:
		return "More practice needed. Go through the lessons once more before retrying."
	}
}
