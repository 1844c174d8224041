// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty selects the dot-count range for counting questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// GameType selects which question variant a session uses.
type GameType string

const (
	GameCounting   GameType = "counting"
	GameArithmetic GameType = "arithmetic"
)

// TimeoutAnswer is recorded when the countdown expires without an answer.
const TimeoutAnswer = -1

// Range is an inclusive integer range.
type Range struct {
	Min int
	Max int
}

var difficultyRanges = map[Difficulty]Range{
	DifficultyEasy:   {Min: 3, Max: 5},
	DifficultyMedium: {Min: 3, Max: 7},
	DifficultyHard:   {Min: 3, Max: 10},
}

// DotRange returns the inclusive dot-count range for a difficulty.
func (d Difficulty) DotRange() Range {
	if r, ok := difficultyRanges[d]; ok {
		return r
	}
	return difficultyRanges[DifficultyEasy]
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	_, ok := difficultyRanges[d]
	return ok
}

// ParseDifficulty parses a difficulty name.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", s)
	}
	return d, nil
}

// ParseGameType parses a game type, accepting the game names as aliases.
func ParseGameType(s string) (GameType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "counting", "subitisation", "subitization", "dots":
		return GameCounting, nil
	case "arithmetic", "manipulatives", "chips":
		return GameArithmetic, nil
	default:
		return "", fmt.Errorf("unknown game type %q (want counting or arithmetic)", s)
	}
}

// Settings configure a session. They are fixed once the session starts.
type Settings struct {
	Difficulty    Difficulty
	TimerDuration int
	SessionLength int
	AudioEnabled  bool
	GameType      GameType
}

// Timer returns the per-question countdown as a duration.
func (s Settings) Timer() time.Duration {
	return time.Duration(s.TimerDuration) * time.Second
}

// DotPosition is one dot of a counting question, in percent coordinates.
type DotPosition struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	ClusterID int     `json:"clusterId"`
}

// Question is either a CountingQuestion or an ArithmeticQuestion.
type Question interface {
	QuestionID() string
	// Answer returns the value a response is scored against.
	Answer() int
	StartedAt() time.Time
	isQuestion()
}

// CountingQuestion asks how many dots are shown.
type CountingQuestion struct {
	ID          string
	DotCount    int
	Dots        []DotPosition
	TimeStarted time.Time
}

func (q CountingQuestion) QuestionID() string   { return q.ID }
func (q CountingQuestion) Answer() int          { return q.DotCount }
func (q CountingQuestion) StartedAt() time.Time { return q.TimeStarted }
func (CountingQuestion) isQuestion()            {}

// Operation is an arithmetic operator.
type Operation string

const (
	OpAdd      Operation = "+"
	OpSubtract Operation = "-"
)

// Apply evaluates left op right.
func (o Operation) Apply(left, right int) int {
	if o == OpSubtract {
		return left - right
	}
	return left + right
}

// ArithmeticQuestion asks for the result of combining two chip groups.
type ArithmeticQuestion struct {
	ID            string
	LeftGroup     int
	RightGroup    int
	Operation     Operation
	CorrectAnswer int
	TimeStarted   time.Time
}

func (q ArithmeticQuestion) QuestionID() string   { return q.ID }
func (q ArithmeticQuestion) Answer() int          { return q.CorrectAnswer }
func (q ArithmeticQuestion) StartedAt() time.Time { return q.TimeStarted }
func (ArithmeticQuestion) isQuestion()            {}

// Response records how a single question was answered.
type Response struct {
	QuestionID    string
	UserAnswer    int
	CorrectAnswer int
	IsCorrect     bool
	ResponseTime  time.Duration
}

// TimedOut reports whether the response was produced by the countdown.
func (r Response) TimedOut() bool {
	return r.UserAnswer == TimeoutAnswer
}

// Session is one run of a fixed question sequence.
type Session struct {
	ID                   string
	Settings             Settings
	Questions            []Question
	Responses            []Response
	CurrentQuestionIndex int
	IsActive             bool
	IsPaused             bool
	StartTime            time.Time
	EndTime              time.Time
}

// Complete reports whether the last question's feedback window has elapsed.
func (s *Session) Complete() bool {
	return !s.EndTime.IsZero()
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Questions = append([]Question(nil), s.Questions...)
	out.Responses = append([]Response(nil), s.Responses...)
	return &out
}

// GameStats summarizes the responses of a session.
type GameStats struct {
	TotalQuestions      int
	CorrectAnswers      int
	AverageResponseTime time.Duration
	Accuracy            float64
}

// GameResult is the payload handed to the result reporter.
type GameResult struct {
	ChildID          int64
	GameID           int64
	Score            int
	TimeTakenSeconds float64
	Responses        []Response
	Stats            GameStats
}

// HistoryFilter selects stored sessions for reporting.
type HistoryFilter struct {
	GameType    GameType
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SessionAggregate summarizes a stored session.
type SessionAggregate struct {
	SessionID     int64
	UID           string
	GameType      GameType
	Difficulty    Difficulty
	StartedAt     time.Time
	EndedAt       time.Time
	Total         int
	Correct       int
	AvgResponseMs float64
	Reported      bool
}

// AnswerAggregate aggregates responses by the number that was asked for.
type AnswerAggregate struct {
	Answer        int
	Correct       int
	Incorrect     int
	Timeouts      int
	ResponseSumMs int64
	ResponseCount int64
}

// StoredResponse is a response row joined with its session.
type StoredResponse struct {
	SessionID     int64
	Index         int
	QuestionID    string
	UserAnswer    int
	CorrectAnswer int
	IsCorrect     bool
	ResponseMs    int64
}
