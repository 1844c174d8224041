// Package engine runs game sessions: question sequencing, the per-question
// countdown, scoring, feedback and pause handling.
//
// All state lives on the Engine and is guarded by one mutex. Timer
// callbacks carry the sequence number they were scheduled with and are
// dropped when a newer timer of the same kind has replaced them.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/stats"
)

const (
	// FeedbackDelay is how long feedback stays on screen before advancing.
	FeedbackDelay = 1500 * time.Millisecond
	tickInterval  = time.Second
)

// ErrNoSession is returned by Restart when no settings have been used yet.
var ErrNoSession = errors.New("no session to restart")

// QuestionSource builds questions for a session.
type QuestionSource interface {
	Question(settings model.Settings) model.Question
}

// Phase is the externally visible engine state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhasePaused
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhasePaused:
		return "paused"
	case PhaseComplete:
		return "complete"
	default:
		return "idle"
	}
}

// EventKind identifies what changed.
type EventKind int

const (
	EventStarted EventKind = iota
	EventTick
	EventAnswered
	EventAdvanced
	EventCompleted
	EventPaused
	EventResumed
	EventCleared
)

// Event is delivered to the listener after every state change.
type Event struct {
	Kind  EventKind
	State State
}

// State is a read-only copy of the engine state.
type State struct {
	Session         *model.Session
	Phase           Phase
	TimeRemaining   int
	ShowFeedback    bool
	FeedbackMessage string
	LastCorrect     bool
}

// Current returns the question being asked, if any.
func (s State) Current() (model.Question, bool) {
	if s.Session == nil || s.Session.CurrentQuestionIndex >= len(s.Session.Questions) {
		return nil, false
	}
	return s.Session.Questions[s.Session.CurrentQuestionIndex], true
}

// Engine owns one game session at a time.
type Engine struct {
	mu sync.Mutex

	source   QuestionSource
	clock    Clock
	rnd      *rand.Rand
	player   Player
	listener func(Event)
	newID    func() string

	session      *model.Session
	settings     model.Settings
	hasSettings  bool
	remaining    int
	showFeedback bool
	feedback     string
	lastCorrect  bool
	presentedAt  time.Time
	pausedAt     time.Time

	tick       Timer
	tickSeq    uint64
	advance    Timer
	advanceSeq uint64

	pendingEvents []Event
	pendingSounds []Sound
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRand sets the random source used to pick feedback messages.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Engine) {
		e.rnd = rnd
	}
}

// WithPlayer sets the audio cue player.
func WithPlayer(p Player) Option {
	return func(e *Engine) {
		e.player = p
	}
}

// WithListener registers a callback for state changes. It runs outside the
// engine lock and may call back into the engine.
func WithListener(fn func(Event)) Option {
	return func(e *Engine) {
		e.listener = fn
	}
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New returns an idle Engine.
func New(source QuestionSource, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		clock:  RealClock(),
		newID: func() string {
			return "session_" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(e.clock.Now().UnixNano()))
	}
	return e
}

// Allowed session settings.
const (
	MinTimerDuration = 3
	MaxTimerDuration = 10
)

// SessionLengths lists the allowed question counts.
var SessionLengths = []int{5, 10, 15}

// ValidateSettings reports settings the engine cannot run.
func ValidateSettings(s model.Settings) error {
	if !s.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", s.Difficulty)
	}
	if s.GameType != model.GameCounting && s.GameType != model.GameArithmetic {
		return fmt.Errorf("unknown game type %q", s.GameType)
	}
	if s.TimerDuration < MinTimerDuration || s.TimerDuration > MaxTimerDuration {
		return fmt.Errorf("timer duration must be between %d and %d seconds", MinTimerDuration, MaxTimerDuration)
	}
	if !slices.Contains(SessionLengths, s.SessionLength) {
		return fmt.Errorf("session length must be one of %v", SessionLengths)
	}
	return nil
}

// Start replaces any current session with a new one.
func (e *Engine) Start(settings model.Settings) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}

	e.mu.Lock()
	e.stopTimersLocked()
	questions := make([]model.Question, 0, settings.SessionLength)
	for i := 0; i < settings.SessionLength; i++ {
		questions = append(questions, e.source.Question(settings))
	}
	now := e.clock.Now()
	e.session = &model.Session{
		ID:        e.newID(),
		Settings:  settings,
		Questions: questions,
		IsActive:  true,
		StartTime: now,
	}
	e.settings = settings
	e.hasSettings = true
	e.remaining = settings.TimerDuration
	e.showFeedback = false
	e.feedback = ""
	e.lastCorrect = false
	e.presentedAt = now
	e.startTickLocked()
	if settings.AudioEnabled {
		e.pendingSounds = append(e.pendingSounds, SoundStart)
	}
	e.queueLocked(EventStarted)
	e.unlockAndFlush()
	return nil
}

// Restart starts a new session with the most recent settings.
func (e *Engine) Restart() error {
	e.mu.Lock()
	settings, ok := e.settings, e.hasSettings
	e.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	return e.Start(settings)
}

// SubmitAnswer scores an answer for the current question. It returns false
// when no answer is accepted right now.
func (e *Engine) SubmitAnswer(answer int) bool {
	e.mu.Lock()
	ok := e.submitLocked(answer)
	e.unlockAndFlush()
	return ok
}

// SubmitAnswerFor scores an answer only if questionID is still current.
func (e *Engine) SubmitAnswerFor(questionID string, answer int) bool {
	e.mu.Lock()
	ok := false
	if q, current := e.currentLocked(); current && q.QuestionID() == questionID {
		ok = e.submitLocked(answer)
	}
	e.unlockAndFlush()
	return ok
}

// Pause suspends the countdown and answer submission.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	if e.session == nil || !e.session.IsActive || e.session.IsPaused {
		e.mu.Unlock()
		return false
	}
	e.session.IsPaused = true
	e.pausedAt = e.clock.Now()
	e.stopTickLocked()
	e.queueLocked(EventPaused)
	e.unlockAndFlush()
	return true
}

// Resume continues the countdown from the value it was paused at.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	if e.session == nil || !e.session.IsActive || !e.session.IsPaused {
		e.mu.Unlock()
		return false
	}
	e.session.IsPaused = false
	e.presentedAt = e.presentedAt.Add(e.clock.Now().Sub(e.pausedAt))
	if !e.showFeedback {
		e.startTickLocked()
	}
	e.queueLocked(EventResumed)
	e.unlockAndFlush()
	return true
}

// TogglePause pauses an unpaused session and resumes a paused one.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	paused := e.session != nil && e.session.IsPaused
	e.mu.Unlock()
	if paused {
		return e.Resume()
	}
	return e.Pause()
}

// Clear discards the session and cancels all pending timers.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.stopTimersLocked()
	had := e.session != nil
	e.session = nil
	e.remaining = 0
	e.showFeedback = false
	e.feedback = ""
	e.lastCorrect = false
	if had {
		e.queueLocked(EventCleared)
	}
	e.unlockAndFlush()
}

// Close tears the engine down.
func (e *Engine) Close() {
	e.Clear()
}

// Stats summarizes the current session's responses.
func (e *Engine) Stats() (model.GameStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return model.GameStats{}, false
	}
	return stats.Compute(e.session.Responses)
}

// CurrentQuestion returns the question being asked.
func (e *Engine) CurrentQuestion() (model.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) currentLocked() (model.Question, bool) {
	if e.session == nil || e.session.CurrentQuestionIndex >= len(e.session.Questions) {
		return nil, false
	}
	return e.session.Questions[e.session.CurrentQuestionIndex], true
}

func (e *Engine) submitLocked(answer int) bool {
	if e.session == nil || !e.session.IsActive || e.session.IsPaused || e.showFeedback {
		return false
	}
	q, ok := e.currentLocked()
	if !ok {
		return false
	}
	timedOut := answer == model.TimeoutAnswer
	correct := !timedOut && answer == q.Answer()
	e.session.Responses = append(e.session.Responses, model.Response{
		QuestionID:    q.QuestionID(),
		UserAnswer:    answer,
		CorrectAnswer: q.Answer(),
		IsCorrect:     correct,
		ResponseTime:  e.clock.Now().Sub(e.presentedAt),
	})
	e.feedback = feedbackMessage(e.rnd, timedOut, correct)
	e.lastCorrect = correct
	e.showFeedback = true
	e.stopTickLocked()
	e.scheduleAdvanceLocked()
	if e.session.Settings.AudioEnabled {
		if correct {
			e.pendingSounds = append(e.pendingSounds, SoundCorrect)
		} else {
			e.pendingSounds = append(e.pendingSounds, SoundIncorrect)
		}
	}
	e.queueLocked(EventAnswered)
	return true
}

func (e *Engine) onTick(seq uint64) {
	e.mu.Lock()
	if seq != e.tickSeq {
		e.mu.Unlock()
		return
	}
	e.tick = nil
	if e.session == nil || !e.session.IsActive || e.session.IsPaused || e.showFeedback {
		e.mu.Unlock()
		return
	}
	e.remaining--
	if e.remaining <= 0 {
		e.remaining = 0
		e.queueLocked(EventTick)
		e.submitLocked(model.TimeoutAnswer)
	} else {
		e.queueLocked(EventTick)
		e.startTickLocked()
	}
	e.unlockAndFlush()
}

func (e *Engine) onAdvance(seq uint64) {
	e.mu.Lock()
	if seq != e.advanceSeq || e.session == nil {
		e.mu.Unlock()
		return
	}
	e.advance = nil
	e.showFeedback = false
	next := e.session.CurrentQuestionIndex + 1
	if next >= len(e.session.Questions) {
		e.session.IsActive = false
		e.session.IsPaused = false
		e.session.EndTime = e.clock.Now()
		e.queueLocked(EventCompleted)
		e.unlockAndFlush()
		return
	}
	e.session.CurrentQuestionIndex = next
	e.remaining = e.session.Settings.TimerDuration
	if e.session.IsPaused {
		e.presentedAt = e.pausedAt
	} else {
		e.presentedAt = e.clock.Now()
		e.startTickLocked()
	}
	e.queueLocked(EventAdvanced)
	e.unlockAndFlush()
}

func (e *Engine) startTickLocked() {
	e.stopTickLocked()
	seq := e.tickSeq
	e.tick = e.clock.AfterFunc(tickInterval, func() { e.onTick(seq) })
}

func (e *Engine) stopTickLocked() {
	e.tickSeq++
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
}

func (e *Engine) scheduleAdvanceLocked() {
	e.stopAdvanceLocked()
	seq := e.advanceSeq
	e.advance = e.clock.AfterFunc(FeedbackDelay, func() { e.onAdvance(seq) })
}

func (e *Engine) stopAdvanceLocked() {
	e.advanceSeq++
	if e.advance != nil {
		e.advance.Stop()
		e.advance = nil
	}
}

func (e *Engine) stopTimersLocked() {
	e.stopTickLocked()
	e.stopAdvanceLocked()
}

func (e *Engine) stateLocked() State {
	st := State{
		Session:         e.session.Clone(),
		TimeRemaining:   e.remaining,
		ShowFeedback:    e.showFeedback,
		FeedbackMessage: e.feedback,
		LastCorrect:     e.lastCorrect,
	}
	switch {
	case e.session == nil:
		st.Phase = PhaseIdle
	case e.session.Complete():
		st.Phase = PhaseComplete
	case e.session.IsPaused:
		st.Phase = PhasePaused
	default:
		st.Phase = PhaseActive
	}
	return st
}

func (e *Engine) queueLocked(kind EventKind) {
	if e.listener == nil {
		return
	}
	e.pendingEvents = append(e.pendingEvents, Event{Kind: kind, State: e.stateLocked()})
}

// unlockAndFlush releases the lock, then delivers queued sounds and events.
func (e *Engine) unlockAndFlush() {
	events, sounds := e.pendingEvents, e.pendingSounds
	e.pendingEvents, e.pendingSounds = nil, nil
	listener, player := e.listener, e.player
	e.mu.Unlock()

	if player != nil {
		for _, s := range sounds {
			player.Play(s)
		}
	}
	if listener != nil {
		for _, ev := range events {
			listener(ev)
		}
	}
}
