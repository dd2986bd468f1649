package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore. Results are
// immutable once created except for the rank column; Create is first-wins per
// attempt so a submit race can never produce two results.
type ResultStore struct {
	mu        sync.RWMutex
	results   map[string]domain.Result // by result ID
	byAttempt map[string]string        // attemptID -> result ID
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results:   make(map[string]domain.Result),
		byAttempt: make(map[string]string),
	}
}

func (s *ResultStore) Create(_ context.Context, result domain.Result) (domain.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byAttempt[result.AttemptID]; ok {
		return s.results[existingID], false, nil
	}
	s.results[result.ID] = result
	s.byAttempt[result.AttemptID] = result.ID
	return result, true, nil
}

func (s *ResultStore) ByAttempt(_ context.Context, attemptID string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAttempt[attemptID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return s.results[id], nil
}

func (s *ResultStore) ByQuiz(_ context.Context, quizID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Result
	for _, r := range s.results {
		if r.QuizID == quizID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ResultStore) ByQuizAndStudent(_ context.Context, quizID, studentID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Result{}
	for _, r := range s.results {
		if r.QuizID == quizID && r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ResultStore) UpdateRanks(_ context.Context, quizID string, ranks map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, newRank := range ranks {
		r, ok := s.results[id]
		if !ok || r.QuizID != quizID {
			continue
		}
		r.Rank = newRank
		s.results[id] = r
	}
	return nil
}
