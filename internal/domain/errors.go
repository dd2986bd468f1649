package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when no attempt exists for the given ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrResultNotFound is returned when a terminal attempt has no persisted result yet.
	ErrResultNotFound = errors.New("result not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the attempt.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidAnswer indicates a submitted option ID is not among the question's options.
	ErrInvalidAnswer = errors.New("option not among question options")
	// ErrForbidden is returned when a user touches another student's attempt or result.
	ErrForbidden = errors.New("forbidden")
	// ErrNotEnrolled is returned when a student starts a quiz in a course they are not enrolled in.
	ErrNotEnrolled = errors.New("student not enrolled in course")
	// ErrAttemptLimitExceeded is returned when the retake policy forbids a new attempt.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrAttemptExpired is returned when a mutation lands past the attempt deadline.
	// The caller must submit instead; the answer was not saved.
	ErrAttemptExpired = errors.New("attempt expired")
	// ErrAttemptClosed is returned when a mutation lands on a terminal attempt.
	ErrAttemptClosed = errors.New("attempt already closed")
	// ErrInvalidQuestionSet marks an authoring-data bug. It is never scored
	// around; callers surface it as an internal error.
	ErrInvalidQuestionSet = errors.New("invalid question set")
)
