package memory

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. It keeps
// one record per attempt plus an index of the single in-progress attempt per
// (quiz, student), which makes Create first-wins under the store lock.
type AttemptStore struct {
	mu         sync.RWMutex
	attempts   map[string]domain.Attempt
	inProgress map[string]string // quizID + "/" + studentID -> attemptID
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts:   make(map[string]domain.Attempt),
		inProgress: make(map[string]string),
	}
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return copyAttempt(attempt), nil
}

func (s *AttemptStore) InProgress(_ context.Context, quizID, studentID string) (domain.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.inProgress[sessionKey(quizID, studentID)]
	if !ok {
		return domain.Attempt{}, false, nil
	}
	return copyAttempt(s.attempts[id]), true, nil
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(attempt.QuizID, attempt.StudentID)
	if existingID, ok := s.inProgress[key]; ok {
		return copyAttempt(s.attempts[existingID]), nil
	}
	s.attempts[attempt.ID] = copyAttempt(attempt)
	s.inProgress[key] = attempt.ID
	return attempt, nil
}

func (s *AttemptStore) SaveAnswer(_ context.Context, attemptID, questionID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptClosed
	}
	attempt.Answers[questionID] = optionID
	return nil
}

func (s *AttemptStore) CountTerminal(_ context.Context, quizID, studentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, attempt := range s.attempts {
		if attempt.QuizID != quizID || attempt.StudentID != studentID {
			continue
		}
		// Abandoned sessions do not consume retake budget.
		if attempt.Status == domain.AttemptCompleted || attempt.Status == domain.AttemptExpired {
			count++
		}
	}
	return count, nil
}

func (s *AttemptStore) Claim(_ context.Context, attemptID string, status domain.AttemptStatus, submittedAt time.Time, auto bool) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, false, domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return copyAttempt(attempt), false, nil
	}
	attempt.Status = status
	at := submittedAt
	attempt.SubmittedAt = &at
	attempt.AutoSubmitted = auto
	s.attempts[attemptID] = attempt
	delete(s.inProgress, sessionKey(attempt.QuizID, attempt.StudentID))
	return copyAttempt(attempt), true, nil
}

func sessionKey(quizID, studentID string) string {
	return quizID + "/" + studentID
}

// copyAttempt detaches the answer map so callers cannot mutate stored state.
func copyAttempt(attempt domain.Attempt) domain.Attempt {
	answers := make(map[string]string, len(attempt.Answers))
	for q, o := range attempt.Answers {
		answers[q] = o
	}
	attempt.Answers = answers
	return attempt
}
