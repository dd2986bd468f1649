package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/rank"
	"quiz-attempt-service/internal/scoring"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptStore persists attempt sessions. Implementations must make Create
// first-wins per (quiz, student): a second in-progress attempt is never
// created, the existing one is returned. Claim must be an atomic
// compare-and-swap on the status so exactly one caller wins the terminal
// transition.
type AttemptStore interface {
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	InProgress(ctx context.Context, quizID, studentID string) (domain.Attempt, bool, error)
	Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	SaveAnswer(ctx context.Context, attemptID, questionID, optionID string) error
	CountTerminal(ctx context.Context, quizID, studentID string) (int, error)
	Claim(ctx context.Context, attemptID string, status domain.AttemptStatus, submittedAt time.Time, auto bool) (domain.Attempt, bool, error)
}

// ResultStore persists graded results. Create is first-wins per attempt:
// the boolean reports whether the given result was stored, and the returned
// result is whichever one is now persisted.
type ResultStore interface {
	Create(ctx context.Context, result domain.Result) (domain.Result, bool, error)
	ByAttempt(ctx context.Context, attemptID string) (domain.Result, error)
	ByQuiz(ctx context.Context, quizID string) ([]domain.Result, error)
	ByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]domain.Result, error)
	UpdateRanks(ctx context.Context, quizID string, ranks map[string]int) error
}

// EnrollmentChecker is the external course-membership collaborator.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

// Notifier is the external fire-and-forget notification sink.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, link string) error
}

// AttemptService contains the attempt lifecycle use cases.
type AttemptService struct {
	quizzes    QuizRepository
	attempts   AttemptStore
	results    ResultStore
	enrollment EnrollmentChecker
	notifier   Notifier
	now        func() time.Time
	seed       func() int64
	hub        *leaderboardHub

	// rankMu serializes leaderboard recomputation per quiz so concurrent
	// submits for the same quiz cannot interleave rank writes.
	rankMu   sync.Mutex
	rankLock map[string]*sync.Mutex
}

// Options tweak service construction; zero values pick sane defaults.
type Options struct {
	Now      func() time.Time
	Seed     func() int64
	Notifier Notifier
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptStore, results ResultStore, enrollment EnrollmentChecker, opts Options) *AttemptService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seed := opts.Seed
	if seed == nil {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		var mu sync.Mutex
		seed = func() int64 {
			mu.Lock()
			defer mu.Unlock()
			return rnd.Int63()
		}
	}
	return &AttemptService{
		quizzes:    quizzes,
		attempts:   attempts,
		results:    results,
		enrollment: enrollment,
		notifier:   opts.Notifier,
		now:        now,
		seed:       seed,
		hub:        newLeaderboardHub(),
		rankLock:   make(map[string]*sync.Mutex),
	}
}

// Preview is the pre-attempt view of a quiz: metadata plus the caller's prior
// results, never question content or answers.
type Preview struct {
	QuizID          string          `json:"quizId"`
	CourseID        string          `json:"courseId"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	TotalQuestions  int             `json:"totalQuestions"`
	Settings        domain.Settings `json:"settings"`
	CanAttempt      bool            `json:"canAttempt"`
	PreviousResults []domain.Result `json:"previousResults"`
}

// StartedAttempt is what the client receives when an attempt opens: the
// attempt identity plus the answer-stripped question set in attempt order.
type StartedAttempt struct {
	AttemptID        string                   `json:"attemptId"`
	QuizID           string                   `json:"quizId"`
	Status           domain.AttemptStatus     `json:"status"`
	StartedAt        time.Time                `json:"startedAt"`
	TimeLimitMinutes int                      `json:"timeLimitMinutes"`
	Questions        []domain.StudentQuestion `json:"questions"`
	Answers          map[string]string        `json:"answers"`
}

// Preview returns quiz metadata, whether the caller may open an attempt, and
// their previous results for the quiz.
func (s *AttemptService) Preview(ctx context.Context, user domain.User, quizID string) (Preview, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Preview{}, err
	}
	if err := s.checkEnrollment(ctx, user.ID, quiz.CourseID); err != nil {
		return Preview{}, err
	}

	previous, err := s.results.ByQuizAndStudent(ctx, quizID, user.ID)
	if err != nil {
		return Preview{}, err
	}

	canAttempt := true
	if _, resumable, err := s.attempts.InProgress(ctx, quizID, user.ID); err != nil {
		return Preview{}, err
	} else if !resumable {
		if err := s.checkBudget(ctx, quiz, user.ID); err != nil {
			if errors.Is(err, domain.ErrAttemptLimitExceeded) {
				canAttempt = false
			} else {
				return Preview{}, err
			}
		}
	}

	return Preview{
		QuizID:          quiz.ID,
		CourseID:        quiz.CourseID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		TotalQuestions:  len(quiz.Questions),
		Settings:        quiz.Settings,
		CanAttempt:      canAttempt,
		PreviousResults: previous,
	}, nil
}

// Start opens a new attempt or resumes the caller's in-progress one. The
// question set is snapshotted (and shuffled per settings) exactly once, at
// creation; resumed attempts always see the same order.
func (s *AttemptService) Start(ctx context.Context, user domain.User, quizID string) (StartedAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartedAttempt{}, err
	}
	if err := quiz.Validate(); err != nil {
		return StartedAttempt{}, err
	}
	if err := s.checkEnrollment(ctx, user.ID, quiz.CourseID); err != nil {
		return StartedAttempt{}, err
	}

	if existing, ok, err := s.attempts.InProgress(ctx, quizID, user.ID); err != nil {
		return StartedAttempt{}, err
	} else if ok {
		if s.now().After(existing.Deadline()) {
			// The previous session ran out while nobody was looking: close it
			// through the normal submit path so it is graded exactly once,
			// then fall through to the budget check for a fresh attempt.
			if _, err := s.Submit(ctx, user, existing.ID, true); err != nil {
				return StartedAttempt{}, err
			}
		} else {
			return startedView(existing), nil
		}
	}

	if err := s.checkBudget(ctx, quiz, user.ID); err != nil {
		return StartedAttempt{}, err
	}

	terminal, err := s.attempts.CountTerminal(ctx, quizID, user.ID)
	if err != nil {
		return StartedAttempt{}, err
	}

	seed := s.seed()
	attempt := domain.Attempt{
		ID:            uuid.NewString(),
		QuizID:        quiz.ID,
		CourseID:      quiz.CourseID,
		StudentID:     user.ID,
		AttemptNumber: terminal + 1,
		Status:        domain.AttemptInProgress,
		StartedAt:     s.now(),
		Seed:          seed,
		Questions:     quiz.SnapshotQuestions(seed),
		Settings:      quiz.Settings,
		Answers:       map[string]string{},
	}

	// Create is first-wins: a concurrent Start for the same (quiz, student)
	// returns whichever attempt won, never a duplicate.
	created, err := s.attempts.Create(ctx, attempt)
	if err != nil {
		return StartedAttempt{}, err
	}
	return startedView(created), nil
}

// SaveAnswer upserts one answer into an open attempt. Re-saving a question
// overwrites the previous selection. Past the deadline the answer is rejected
// with ErrAttemptExpired so the client knows it was not saved and must submit.
func (s *AttemptService) SaveAnswer(ctx context.Context, user domain.User, attemptID, questionID, optionID string) error {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.StudentID != user.ID {
		return domain.ErrForbidden
	}
	if attempt.Status.Terminal() {
		return domain.ErrAttemptClosed
	}
	if !s.now().Before(attempt.Deadline()) {
		return domain.ErrAttemptExpired
	}

	question, ok := attempt.Question(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if _, ok := question.Option(optionID); !ok {
		return domain.ErrInvalidAnswer
	}
	return s.attempts.SaveAnswer(ctx, attemptID, questionID, optionID)
}

// Submit closes the attempt and produces its result exactly once. A submit
// that lands past the deadline is still graded in full but records the
// transition as expired. Retries and concurrent submits return the result the
// winning call created; a zero-answer submission is valid and fully scored.
func (s *AttemptService) Submit(ctx context.Context, user domain.User, attemptID string, auto bool) (domain.Result, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Result{}, err
	}
	if attempt.StudentID != user.ID && !user.Admin() {
		return domain.Result{}, domain.ErrForbidden
	}

	if !attempt.Status.Terminal() {
		submittedAt := s.now()
		status := domain.AttemptCompleted
		if submittedAt.After(attempt.Deadline()) {
			status = domain.AttemptExpired
		}
		// Only the caller that wins the CAS transition grades the attempt;
		// losers fall through and pick up the winner's result below.
		attempt, _, err = s.attempts.Claim(ctx, attemptID, status, submittedAt, auto)
		if err != nil {
			return domain.Result{}, err
		}
	}

	if existing, err := s.results.ByAttempt(ctx, attemptID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrResultNotFound) {
		return domain.Result{}, err
	}

	graded, err := scoring.Grade(attempt)
	if err != nil {
		return domain.Result{}, err
	}
	graded.ID = uuid.NewString()

	persisted, created, err := s.results.Create(ctx, graded)
	if err != nil {
		return domain.Result{}, err
	}
	if !created {
		return persisted, nil
	}

	ranked, err := s.recomputeRanks(ctx, attempt.QuizID)
	if err != nil {
		return domain.Result{}, err
	}
	for _, r := range ranked {
		if r.AttemptID == attemptID {
			persisted = r
		}
	}

	s.notify(ctx, attempt.StudentID, persisted)
	return persisted, nil
}

// Abandon is the administrative cleanup transition for sessions that were
// neither submitted nor revisited. It never grades.
func (s *AttemptService) Abandon(ctx context.Context, attemptID string) error {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status.Terminal() {
		return domain.ErrAttemptClosed
	}
	_, _, err = s.attempts.Claim(ctx, attemptID, domain.AttemptAbandoned, s.now(), false)
	return err
}

// Result returns the graded outcome of an attempt. Only the attempt's owner
// or an admin may read it.
func (s *AttemptService) Result(ctx context.Context, user domain.User, attemptID string) (domain.Result, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Result{}, err
	}
	if attempt.StudentID != user.ID && !user.Admin() {
		return domain.Result{}, domain.ErrForbidden
	}
	return s.results.ByAttempt(ctx, attemptID)
}

// Leaderboard returns the quiz's ranked result set, rank ascending.
func (s *AttemptService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	all, err := s.results.ByQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Rank < all[j].Rank })
	return domain.Leaderboard{
		QuizID:    quizID,
		Entries:   rank.Entries(all),
		UpdatedAt: s.now(),
	}, nil
}

// Subscribe returns a channel that receives leaderboard updates for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(quizID, initial)
	return ch, cancel, nil
}

func (s *AttemptService) checkEnrollment(ctx context.Context, studentID, courseID string) error {
	enrolled, err := s.enrollment.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return domain.ErrNotEnrolled
	}
	return nil
}

// checkBudget enforces the retake policy against terminal attempts.
// Abandoned sessions do not consume budget.
func (s *AttemptService) checkBudget(ctx context.Context, quiz domain.Quiz, studentID string) error {
	terminal, err := s.attempts.CountTerminal(ctx, quiz.ID, studentID)
	if err != nil {
		return err
	}
	if !quiz.Settings.AllowRetake && terminal >= 1 {
		return domain.ErrAttemptLimitExceeded
	}
	if quiz.Settings.MaxAttempts > 0 && terminal >= quiz.Settings.MaxAttempts {
		return domain.ErrAttemptLimitExceeded
	}
	return nil
}

// recomputeRanks reorders every result of the quiz under the per-quiz lock,
// persists the new ranks, and pushes the fresh leaderboard to subscribers.
func (s *AttemptService) recomputeRanks(ctx context.Context, quizID string) ([]domain.Result, error) {
	lock := s.quizLock(quizID)
	lock.Lock()
	defer lock.Unlock()

	all, err := s.results.ByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	ordered := rank.Assign(all)

	ranks := make(map[string]int, len(ordered))
	for _, r := range ordered {
		ranks[r.ID] = r.Rank
	}
	if err := s.results.UpdateRanks(ctx, quizID, ranks); err != nil {
		return nil, err
	}

	s.hub.broadcast(quizID, domain.Leaderboard{
		QuizID:    quizID,
		Entries:   rank.Entries(ordered),
		UpdatedAt: s.now(),
	})
	return ordered, nil
}

func (s *AttemptService) quizLock(quizID string) *sync.Mutex {
	s.rankMu.Lock()
	defer s.rankMu.Unlock()
	lock, ok := s.rankLock[quizID]
	if !ok {
		lock = &sync.Mutex{}
		s.rankLock[quizID] = lock
	}
	return lock
}

// notify is fire-and-forget: delivery failures are logged and swallowed.
func (s *AttemptService) notify(ctx context.Context, studentID string, result domain.Result) {
	if s.notifier == nil {
		return
	}
	message := fmt.Sprintf("You scored %.2f of %.2f (%.1f%%).", result.MarksObtained, result.TotalMarks, result.Percentage)
	link := "/attempts/" + result.AttemptID + "/result"
	if err := s.notifier.Notify(ctx, studentID, "Your quiz result is ready", message, link); err != nil {
		log.Printf("notify %s: %v", studentID, err)
	}
}

func startedView(attempt domain.Attempt) StartedAttempt {
	answers := make(map[string]string, len(attempt.Answers))
	for q, o := range attempt.Answers {
		answers[q] = o
	}
	return StartedAttempt{
		AttemptID:        attempt.ID,
		QuizID:           attempt.QuizID,
		Status:           attempt.Status,
		StartedAt:        attempt.StartedAt,
		TimeLimitMinutes: attempt.Settings.TimeLimitMinutes,
		Questions:        attempt.StudentView(),
		Answers:          answers,
	}
}
