package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionType is presentational only and never affects scoring.
type QuestionType string

const (
	QuestionText    QuestionType = "text"
	QuestionImage   QuestionType = "image"
	QuestionFormula QuestionType = "formula"
	QuestionDiagram QuestionType = "diagram"
)

// Question models an MCQ question with exactly one correct option.
// Marks and NegativeMarks override the quiz-level settings when present.
type Question struct {
	ID              string       `json:"id"`
	Type            QuestionType `json:"type,omitempty"`
	Body            string       `json:"body"`
	Options         []Option     `json:"options"`
	CorrectOptionID string       `json:"correctOptionId"`
	Explanation     string       `json:"explanation,omitempty"`
	Marks           *float64     `json:"marks,omitempty"`
	NegativeMarks   *float64     `json:"negativeMarks,omitempty"`
	Order           int          `json:"order"`
}

// Option returns the option with the given ID, if it belongs to the question.
func (q Question) Option(optionID string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return Option{}, false
}

// Settings hold quiz-level attempt and scoring policy.
type Settings struct {
	MarksPerQuestion  float64 `json:"marksPerQuestion"`
	NegativeMarking   float64 `json:"negativeMarking"`
	TimeLimitMinutes  int     `json:"timeLimitMinutes"`
	PassingPercentage float64 `json:"passingPercentage"`
	ShuffleQuestions  bool    `json:"shuffleQuestions"`
	ShuffleOptions    bool    `json:"shuffleOptions"`
	AllowRetake       bool    `json:"allowRetake"`
	MaxAttempts       int     `json:"maxAttempts"`
}

// Marks resolves the marks awarded for a correct answer to q.
func (s Settings) Marks(q Question) float64 {
	if q.Marks != nil {
		return *q.Marks
	}
	if s.MarksPerQuestion > 0 {
		return s.MarksPerQuestion
	}
	return 1
}

// Penalty resolves the marks deducted for an incorrect answer to q.
func (s Settings) Penalty(q Question) float64 {
	if q.NegativeMarks != nil {
		return *q.NegativeMarks
	}
	return s.NegativeMarking
}

// PassingPercent returns the configured pass threshold, defaulting to 40.
func (s Settings) PassingPercent() float64 {
	if s.PassingPercentage > 0 {
		return s.PassingPercentage
	}
	return 40
}

// TimeLimit returns the attempt duration.
func (s Settings) TimeLimit() time.Duration {
	return time.Duration(s.TimeLimitMinutes) * time.Minute
}

// Quiz is authored content: an ordered question set plus attempt policy.
type Quiz struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"courseId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	Settings    Settings   `json:"settings"`
}

// Validate checks authoring invariants. A violation is a data bug, not a
// recoverable request error.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz %s: %w: no questions", q.ID, ErrInvalidQuestionSet)
	}
	for _, question := range q.Questions {
		if len(question.Options) < 2 || len(question.Options) > 6 {
			return fmt.Errorf("question %s: %w: has %d options, want 2-6", question.ID, ErrInvalidQuestionSet, len(question.Options))
		}
		if _, ok := question.Option(question.CorrectOptionID); !ok {
			return fmt.Errorf("question %s: %w: correct option %q not among options", question.ID, ErrInvalidQuestionSet, question.CorrectOptionID)
		}
	}
	return nil
}

// SnapshotQuestions copies the question set in the order a given attempt will
// see it. The seed keeps the shuffle stable across repeated fetches within one
// attempt while different attempts may see different orders.
func (q Quiz) SnapshotQuestions(seed int64) []Question {
	rnd := rand.New(rand.NewSource(seed))
	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	if q.Settings.ShuffleQuestions {
		rnd.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	for i := range questions {
		options := make([]Option, len(questions[i].Options))
		copy(options, questions[i].Options)
		if q.Settings.ShuffleOptions {
			rnd.Shuffle(len(options), func(a, b int) {
				options[a], options[b] = options[b], options[a]
			})
		}
		questions[i].Options = options
	}
	return questions
}

// AttemptStatus enumerates the attempt state machine.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether the status admits no further transitions.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptExpired || s == AttemptAbandoned
}

// Attempt is one student's time-bounded run at a quiz. Questions and Settings
// are snapshotted at start time so mid-attempt quiz edits never change what is
// being graded. Answers is sparse: unanswered questions are absent.
type Attempt struct {
	ID            string            `json:"id"`
	QuizID        string            `json:"quizId"`
	CourseID      string            `json:"courseId"`
	StudentID     string            `json:"studentId"`
	AttemptNumber int               `json:"attemptNumber"`
	Status        AttemptStatus     `json:"status"`
	StartedAt     time.Time         `json:"startedAt"`
	SubmittedAt   *time.Time        `json:"submittedAt,omitempty"`
	Seed          int64             `json:"seed"`
	Questions     []Question        `json:"questions"`
	Settings      Settings          `json:"settings"`
	Answers       map[string]string `json:"answers"`
	AutoSubmitted bool              `json:"autoSubmitted"`
}

// Deadline is the instant after which mutations are rejected.
func (a Attempt) Deadline() time.Time {
	return a.StartedAt.Add(a.Settings.TimeLimit())
}

// Question returns the snapshot question with the given ID.
func (a Attempt) Question(questionID string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

// StudentQuestion is the answer-stripped view served to the client while an
// attempt is open.
type StudentQuestion struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type,omitempty"`
	Body    string       `json:"body"`
	Options []Option     `json:"options"`
	Order   int          `json:"order"`
}

// StudentView strips correct answers and explanations from the snapshot.
func (a Attempt) StudentView() []StudentQuestion {
	view := make([]StudentQuestion, 0, len(a.Questions))
	for _, q := range a.Questions {
		view = append(view, StudentQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Body:    q.Body,
			Options: q.Options,
			Order:   q.Order,
		})
	}
	return view
}

// QuestionResult is the graded outcome for a single question.
type QuestionResult struct {
	QuestionID       string  `json:"questionId"`
	SelectedOptionID string  `json:"selectedOptionId,omitempty"`
	CorrectOptionID  string  `json:"correctOptionId"`
	Answered         bool    `json:"answered"`
	IsCorrect        bool    `json:"isCorrect"`
	MarksAwarded     float64 `json:"marksAwarded"`
	Explanation      string  `json:"explanation,omitempty"`
}

// Result is the graded, immutable outcome of a terminal attempt. Rank is the
// only field mutated after creation, by the leaderboard resolver.
type Result struct {
	ID                  string           `json:"id"`
	AttemptID           string           `json:"attemptId"`
	QuizID              string           `json:"quizId"`
	CourseID            string           `json:"courseId"`
	StudentID           string           `json:"studentId"`
	TotalQuestions      int              `json:"totalQuestions"`
	CorrectAnswers      int              `json:"correctAnswers"`
	IncorrectAnswers    int              `json:"incorrectAnswers"`
	UnansweredQuestions int              `json:"unansweredQuestions"`
	TotalMarks          float64          `json:"totalMarks"`
	MarksObtained       float64          `json:"marksObtained"`
	Percentage          float64          `json:"percentage"`
	IsPassed            bool             `json:"isPassed"`
	TimeTakenSeconds    int64            `json:"timeTakenSeconds"`
	SubmittedAt         time.Time        `json:"submittedAt"`
	Rank                int              `json:"rank,omitempty"`
	Questions           []QuestionResult `json:"questions"`
	Feedback            string           `json:"feedback"`
}

// LeaderboardEntry is one row of a quiz's ranked result set.
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	StudentID        string    `json:"studentId"`
	AttemptID        string    `json:"attemptId"`
	MarksObtained    float64   `json:"marksObtained"`
	Percentage       float64   `json:"percentage"`
	TimeTakenSeconds int64     `json:"timeTakenSeconds"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// Leaderboard captures the ordered result set for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// User is the authenticated identity supplied by the external auth collaborator.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Admin reports whether the user may read any attempt's result.
func (u User) Admin() bool {
	return u.Role == "admin"
}
