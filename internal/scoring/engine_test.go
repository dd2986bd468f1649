package scoring_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/scoring"
)

func TestGradeMixedAnswers(t *testing.T) {
	attempt := twoQuestionAttempt(t, map[string]string{
		"q1": "o2", // correct
		"q2": "o1", // incorrect
	})

	result, err := scoring.Grade(attempt)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}

	if result.MarksObtained != 1.5 {
		t.Fatalf("expected 1.5 marks (2 - 0.5), got %v", result.MarksObtained)
	}
	if result.TotalMarks != 4 {
		t.Fatalf("expected total 4, got %v", result.TotalMarks)
	}
	if result.Percentage != 37.5 {
		t.Fatalf("expected 37.5%%, got %v", result.Percentage)
	}
	if result.IsPassed {
		t.Fatalf("expected fail at 37.5%% against passing 50")
	}
	if result.CorrectAnswers != 1 || result.IncorrectAnswers != 1 || result.UnansweredQuestions != 0 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
}

func TestGradeNothingAnswered(t *testing.T) {
	attempt := twoQuestionAttempt(t, nil)

	result, err := scoring.Grade(attempt)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if result.MarksObtained != 0 {
		t.Fatalf("expected 0 marks, got %v", result.MarksObtained)
	}
	if result.UnansweredQuestions != 2 {
		t.Fatalf("expected 2 unanswered, got %d", result.UnansweredQuestions)
	}
	if result.Percentage != 0 || result.IsPassed {
		t.Fatalf("expected 0%% fail, got %v passed=%v", result.Percentage, result.IsPassed)
	}
}

func TestGradeTallyInvariant(t *testing.T) {
	cases := []map[string]string{
		nil,
		{"q1": "o2"},
		{"q1": "o1", "q2": "o2"},
		{"q1": "o2", "q2": "o2"},
	}
	for _, answers := range cases {
		result, err := scoring.Grade(twoQuestionAttempt(t, answers))
		if err != nil {
			t.Fatalf("grade: %v", err)
		}
		sum := result.CorrectAnswers + result.IncorrectAnswers + result.UnansweredQuestions
		if sum != result.TotalQuestions {
			t.Fatalf("tallies %d+%d+%d != total %d", result.CorrectAnswers, result.IncorrectAnswers, result.UnansweredQuestions, result.TotalQuestions)
		}
		if result.MarksObtained > result.TotalMarks {
			t.Fatalf("marks %v exceed total %v", result.MarksObtained, result.TotalMarks)
		}
		if result.MarksObtained < -1 { // two questions, 0.5 penalty each
			t.Fatalf("marks %v below worst case -1", result.MarksObtained)
		}
	}
}

func TestGradePerQuestionOverrides(t *testing.T) {
	attempt := twoQuestionAttempt(t, map[string]string{"q1": "o1", "q2": "o2"})
	five := 5.0
	two := 2.0
	attempt.Questions[0].NegativeMarks = &two // wrong answer costs 2
	attempt.Questions[1].Marks = &five        // correct answer earns 5

	result, err := scoring.Grade(attempt)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if result.MarksObtained != 3 { // -2 + 5
		t.Fatalf("expected 3 marks, got %v", result.MarksObtained)
	}
	if result.TotalMarks != 7 { // 2 + 5
		t.Fatalf("expected total 7, got %v", result.TotalMarks)
	}
}

func TestGradeTimeTakenFloored(t *testing.T) {
	attempt := twoQuestionAttempt(t, nil)
	submitted := attempt.StartedAt.Add(90*time.Second + 700*time.Millisecond)
	attempt.SubmittedAt = &submitted

	result, err := scoring.Grade(attempt)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if result.TimeTakenSeconds != 90 {
		t.Fatalf("expected 90s floored, got %d", result.TimeTakenSeconds)
	}
}

func TestGradeZeroTotalMarksGuard(t *testing.T) {
	attempt := twoQuestionAttempt(t, nil)
	attempt.Questions = nil
	attempt.Settings = domain.Settings{}

	result, err := scoring.Grade(attempt)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if result.Percentage != 0 {
		t.Fatalf("expected 0%% on empty question set, got %v", result.Percentage)
	}
}

func TestGradeRejectsBrokenQuestionSet(t *testing.T) {
	attempt := twoQuestionAttempt(t, nil)
	attempt.Questions[0].CorrectOptionID = "missing"

	_, err := scoring.Grade(attempt)
	if !errors.Is(err, domain.ErrInvalidQuestionSet) {
		t.Fatalf("expected invalid question set error, got %v", err)
	}
}

func TestFeedbackBands(t *testing.T) {
	cases := []struct {
		percentage float64
		prefix     string
	}{
		{100, "Outstanding"},
		{90, "Outstanding"},
		{89.9, "Great job"},
		{75, "Great job"},
		{74.9, "Good effort"},
		{60, "Good effort"},
		{59.9, "Keep practicing"},
		{40, "Keep practicing"},
		{39.9, "More practice needed"},
		{0, "More practice needed"},
		{-1, "More practice needed"},
	}
	for _, tc := range cases {
		got := scoring.Feedback(tc.percentage)
		if !strings.HasPrefix(got, tc.prefix) {
			t.Fatalf("feedback(%v) = %q, want prefix %q", tc.percentage, got, tc.prefix)
		}
	}
}

// twoQuestionAttempt matches the reference scenario: two questions worth 2
// marks each, 0.5 negative marking, 50% to pass.
func twoQuestionAttempt(t *testing.T, answers map[string]string) domain.Attempt {
	t.Helper()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	submitted := started.Add(2 * time.Minute)
	if answers == nil {
		answers = map[string]string{}
	}
	return domain.Attempt{
		ID:          "attempt-1",
		QuizID:      "quiz-1",
		StudentID:   "student-1",
		Status:      domain.AttemptCompleted,
		StartedAt:   started,
		SubmittedAt: &submitted,
		Questions: []domain.Question{
			{
				ID:              "q1",
				Body:            "First",
				Options:         []domain.Option{{ID: "o1", Text: "wrong"}, {ID: "o2", Text: "right"}},
				CorrectOptionID: "o2",
			},
			{
				ID:              "q2",
				Body:            "Second",
				Options:         []domain.Option{{ID: "o1", Text: "wrong"}, {ID: "o2", Text: "right"}},
				CorrectOptionID: "o2",
			},
		},
		Settings: domain.Settings{
			MarksPerQuestion:  2,
			NegativeMarking:   0.5,
			TimeLimitMinutes:  10,
			PassingPercentage: 50,
		},
		Answers: answers,
	}
}
