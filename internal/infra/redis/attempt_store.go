package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is a Redis implementation of app.AttemptStore.
// Layout:
//   - attempt:{id}            JSON of the attempt minus answers
//   - attempt:{id}:answers    HSET questionID -> optionID (last write wins)
//   - attempt:{id}:claim      SETNX'd terminal transition record
//   - quiz:{q}:student:{s}:inprogress  pointer to the open attempt (SETNX)
//   - quiz:{q}:student:{s}:terminal    set of budget-consuming attempt IDs
//
// SETNX makes both the start and the submit races first-wins without a
// cross-instance lock: Create claims the in-progress pointer, Claim claims the
// transition record, and every reader overlays the claim onto the metadata so
// losers observe the terminal state even before the winner rewrites it.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAttemptStore returns a store whose session keys live for ttl
// (zero means no expiry). Budget sets never expire.
func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

type claimRecord struct {
	Status      domain.AttemptStatus `json:"status"`
	SubmittedAt time.Time            `json:"submittedAt"`
	Auto        bool                 `json:"auto"`
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	raw, err := s.client.Get(ctx, s.attemptKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}

	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}

	answers, err := s.client.HGetAll(ctx, s.answersKey(attemptID)).Result()
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load answers: %w", err)
	}
	attempt.Answers = make(map[string]string, len(answers))
	for q, o := range answers {
		attempt.Answers[q] = o
	}

	if claim, ok, err := s.claim(ctx, attemptID); err != nil {
		return domain.Attempt{}, err
	} else if ok {
		applyClaim(&attempt, claim)
	}
	return attempt, nil
}

func (s *AttemptStore) InProgress(ctx context.Context, quizID, studentID string) (domain.Attempt, bool, error) {
	id, err := s.client.Get(ctx, s.inProgressKey(quizID, studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("load in-progress pointer: %w", err)
	}
	attempt, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, err
	}
	return attempt, true, nil
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	pointer := s.inProgressKey(attempt.QuizID, attempt.StudentID)
	won, err := s.client.SetNX(ctx, pointer, attempt.ID, s.ttl).Result()
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("claim in-progress pointer: %w", err)
	}
	if !won {
		existing, ok, err := s.InProgress(ctx, attempt.QuizID, attempt.StudentID)
		if err != nil {
			return domain.Attempt{}, err
		}
		if ok {
			return existing, nil
		}
		// Pointer existed but the record is gone (expired mid-race); take over.
		if err := s.client.Set(ctx, pointer, attempt.ID, s.ttl).Err(); err != nil {
			return domain.Attempt{}, fmt.Errorf("reclaim in-progress pointer: %w", err)
		}
	}

	if err := s.putAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

func (s *AttemptStore) SaveAnswer(ctx context.Context, attemptID, questionID, optionID string) error {
	exists, err := s.client.Exists(ctx, s.attemptKey(attemptID)).Result()
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if exists == 0 {
		return domain.ErrAttemptNotFound
	}
	if _, claimed, err := s.claim(ctx, attemptID); err != nil {
		return err
	} else if claimed {
		return domain.ErrAttemptClosed
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.answersKey(attemptID), questionID, optionID)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.answersKey(attemptID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *AttemptStore) CountTerminal(ctx context.Context, quizID, studentID string) (int, error) {
	n, err := s.client.SCard(ctx, s.terminalKey(quizID, studentID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count terminal attempts: %w", err)
	}
	return int(n), nil
}

func (s *AttemptStore) Claim(ctx context.Context, attemptID string, status domain.AttemptStatus, submittedAt time.Time, auto bool) (domain.Attempt, bool, error) {
	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	if attempt.Status.Terminal() {
		return attempt, false, nil
	}

	record := claimRecord{Status: status, SubmittedAt: submittedAt, Auto: auto}
	raw, err := json.Marshal(record)
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("marshal claim: %w", err)
	}
	won, err := s.client.SetNX(ctx, s.claimKey(attemptID), raw, 0).Result()
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("claim transition: %w", err)
	}
	if !won {
		claim, _, err := s.claim(ctx, attemptID)
		if err != nil {
			return domain.Attempt{}, false, err
		}
		applyClaim(&attempt, claim)
		return attempt, false, nil
	}

	applyClaim(&attempt, record)
	if err := s.putAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, false, err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.inProgressKey(attempt.QuizID, attempt.StudentID))
	if status == domain.AttemptCompleted || status == domain.AttemptExpired {
		pipe.SAdd(ctx, s.terminalKey(attempt.QuizID, attempt.StudentID), attemptID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Attempt{}, false, fmt.Errorf("finalize claim: %w", err)
	}
	return attempt, true, nil
}

func (s *AttemptStore) putAttempt(ctx context.Context, attempt domain.Attempt) error {
	meta := attempt
	meta.Answers = nil // answers live in their own hash
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.client.Set(ctx, s.attemptKey(attempt.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) claim(ctx context.Context, attemptID string) (claimRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.claimKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return claimRecord{}, false, nil
	}
	if err != nil {
		return claimRecord{}, false, fmt.Errorf("load claim: %w", err)
	}
	var record claimRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return claimRecord{}, false, fmt.Errorf("unmarshal claim: %w", err)
	}
	return record, true, nil
}

func applyClaim(attempt *domain.Attempt, record claimRecord) {
	if attempt.Status.Terminal() {
		return
	}
	attempt.Status = record.Status
	at := record.SubmittedAt
	attempt.SubmittedAt = &at
	attempt.AutoSubmitted = record.Auto
}

func (s *AttemptStore) attemptKey(id string) string {
	return "attempt:" + id
}

func (s *AttemptStore) answersKey(id string) string {
	return "attempt:" + id + ":answers"
}

func (s *AttemptStore) claimKey(id string) string {
	return "attempt:" + id + ":claim"
}

func (s *AttemptStore) inProgressKey(quizID, studentID string) string {
	return "quiz:" + quizID + ":student:" + studentID + ":inprogress"
}

func (s *AttemptStore) terminalKey(quizID, studentID string) string {
	return "quiz:" + quizID + ":student:" + studentID + ":terminal"
}
