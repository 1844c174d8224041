package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/subitise/internal/engine"
	"github.com/verte-zerg/subitise/internal/model"
)

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.at.After(target) && (next == nil || t.at.Before(next.at)) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.stopped = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

type fixedSource struct {
	n int
}

func (s *fixedSource) Question(settings model.Settings) model.Question {
	s.n++
	if settings.GameType == model.GameArithmetic {
		return model.ArithmeticQuestion{ID: fmt.Sprintf("q%d", s.n), LeftGroup: 3, RightGroup: 4, Operation: model.OpAdd, CorrectAnswer: 7}
	}
	return model.CountingQuestion{
		ID:       fmt.Sprintf("q%d", s.n),
		DotCount: 4,
		Dots: []model.DotPosition{
			{X: 10, Y: 10, Color: "#3B82F6"},
			{X: 20, Y: 10, Color: "#3B82F6"},
			{X: 10, Y: 20, Color: "#3B82F6"},
			{X: 80, Y: 80, Color: "#EF4444", ClusterID: 1},
		},
	}
}

type fakeStore struct {
	inserted []*model.Session
	reported []int64
	aggs     []model.AnswerAggregate
	err      error
}

func (s *fakeStore) InsertSession(_ context.Context, session *model.Session, _ model.GameStats) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.inserted = append(s.inserted, session)
	return int64(len(s.inserted)), nil
}

func (s *fakeStore) MarkReported(_ context.Context, id int64) error {
	s.reported = append(s.reported, id)
	return nil
}

func (s *fakeStore) RecentAnswerAggregates(context.Context, int, model.GameType) ([]model.AnswerAggregate, error) {
	return s.aggs, nil
}

type fakeReporter struct {
	sent []model.GameResult
	err  error
}

func (r *fakeReporter) Send(_ context.Context, result model.GameResult) error {
	r.sent = append(r.sent, result)
	return r.err
}

type fakeWeak struct {
	weak   map[int]struct{}
	factor float64
}

func (w *fakeWeak) SetWeakSet(weak map[int]struct{}, factor float64) {
	w.weak = weak
	w.factor = factor
}

func testConfig(length int) Config {
	return Config{Settings: model.Settings{
		Difficulty:    model.DifficultyEasy,
		TimerDuration: 10,
		SessionLength: length,
		GameType:      model.GameCounting,
	}}
}

func newTestModel(t *testing.T, cfg Config, st SessionStore, rep Reporter, weak WeakBiaser) (*Model, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	eng := engine.New(&fixedSource{}, engine.WithClock(clock))
	t.Cleanup(eng.Close)
	return NewModel(cfg, eng, NewPump(), weak, st, rep), clock
}

// answerAll types answer for every question, leaving the final feedback
// window elapsed but not yet observed by the model.
func answerAll(m *Model, clock *manualClock, answer string) {
	n := len(m.state.Session.Questions)
	for i := 0; i < n; i++ {
		m.Update(key(answer))
		m.Update(key("enter"))
		clock.Advance(engine.FeedbackDelay)
		if i < n-1 {
			m.refresh()
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestEnterStartsSession(t *testing.T) {
	m, _ := newTestModel(t, testConfig(5), nil, nil, nil)
	if !strings.Contains(m.View(), "Press enter to start") {
		t.Fatalf("expected idle view, got %q", m.View())
	}
	m.Update(key("enter"))
	if m.state.Phase != engine.PhaseActive {
		t.Fatalf("expected active session, got %v", m.state.Phase)
	}
	if !strings.Contains(m.View(), "Question 1/5") {
		t.Fatalf("expected question header, got %q", m.View())
	}
}

func TestAnswerEditingAndSubmit(t *testing.T) {
	m, _ := newTestModel(t, testConfig(5), nil, nil, nil)
	m.Update(key("enter"))
	for _, k := range []string{"1", "2", "3", "4"} {
		m.Update(key(k))
	}
	if m.input != "123" {
		t.Fatalf("expected input capped at 3 digits, got %q", m.input)
	}
	m.Update(key("backspace"))
	m.Update(key("backspace"))
	m.Update(key("backspace"))
	m.Update(key("x"))
	m.Update(key("4"))
	if m.input != "4" {
		t.Fatalf("expected only digits, got %q", m.input)
	}
	m.Update(key("enter"))
	if m.input != "" {
		t.Fatalf("expected input cleared after submit")
	}
	if !m.state.ShowFeedback || !m.state.LastCorrect {
		t.Fatalf("expected positive feedback, got %+v", m.state)
	}
	m.Update(key("5"))
	if m.input != "" {
		t.Fatalf("digits must be ignored during feedback")
	}
}

func TestPauseKeys(t *testing.T) {
	m, _ := newTestModel(t, testConfig(5), nil, nil, nil)
	m.Update(key("enter"))
	m.Update(key("p"))
	if m.state.Phase != engine.PhasePaused || !strings.Contains(m.View(), "Paused") {
		t.Fatalf("expected paused view")
	}
	m.Update(key(" "))
	if m.state.Phase != engine.PhaseActive {
		t.Fatalf("expected space to resume")
	}
}

func TestEscClearsAndQuitRules(t *testing.T) {
	m, _ := newTestModel(t, testConfig(5), nil, nil, nil)
	m.Update(key("enter"))
	if _, cmd := m.Update(key("q")); isQuit(cmd) {
		t.Fatalf("q must not quit during a session")
	}
	m.Update(key("esc"))
	if m.state.Phase != engine.PhaseIdle {
		t.Fatalf("expected idle after esc")
	}
	if _, cmd := m.Update(key("q")); !isQuit(cmd) {
		t.Fatalf("expected q to quit when idle")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuit(cmd) {
		t.Fatalf("expected ctrl+c to quit")
	}
}

func TestRestartKey(t *testing.T) {
	m, _ := newTestModel(t, testConfig(5), nil, nil, nil)
	m.Update(key("enter"))
	first := m.state.Session.ID
	m.Update(key("4"))
	m.Update(key("enter"))
	m.Update(key("r"))
	if m.state.Session.ID == first || len(m.state.Session.Responses) != 0 {
		t.Fatalf("expected fresh session after restart")
	}
}

func TestCompletionSavesAndReportsOnce(t *testing.T) {
	st := &fakeStore{aggs: []model.AnswerAggregate{{Answer: 4, Correct: 1, Incorrect: 3}}}
	rep := &fakeReporter{}
	weak := &fakeWeak{}
	cfg := testConfig(5)
	cfg.ChildID = 7
	cfg.GameID = 2
	cfg.FocusWeak = true
	cfg.WeakTop = 3
	cfg.WeakFactor = 2
	cfg.WeakWindow = 10
	m, clock := newTestModel(t, cfg, st, rep, weak)

	m.Update(key("enter"))
	answerAll(m, clock, "4")

	saveCmd := m.refresh()
	if saveCmd == nil {
		t.Fatalf("expected save command on completion")
	}
	if m.refresh() != nil {
		t.Fatalf("completion must be handled once")
	}
	saved, ok := saveCmd().(savedMsg)
	if !ok || saved.err != nil || saved.rowID != 1 {
		t.Fatalf("unexpected save result %+v", saved)
	}
	_, reportCmd := m.Update(saved)
	if _, ok := weak.weak[4]; !ok || weak.factor != 2 {
		t.Fatalf("expected weak set refreshed, got %+v", weak)
	}
	if reportCmd == nil {
		t.Fatalf("expected report command")
	}
	msg := reportCmd()
	if r, ok := msg.(reportedMsg); !ok || r.err != nil {
		t.Fatalf("unexpected report result %+v", msg)
	}
	if len(rep.sent) != 1 || rep.sent[0].ChildID != 7 || rep.sent[0].GameID != 2 || rep.sent[0].Score != 5 {
		t.Fatalf("unexpected payload %+v", rep.sent)
	}
	if len(st.reported) != 1 || st.reported[0] != 1 {
		t.Fatalf("expected session marked reported, got %v", st.reported)
	}
	m.Update(msg)
	if !strings.Contains(m.View(), "Results sent") || !strings.Contains(m.View(), "Score 5/5") {
		t.Fatalf("unexpected results view %q", m.View())
	}
}

func TestReportingFailureIsSwallowed(t *testing.T) {
	st := &fakeStore{}
	rep := &fakeReporter{err: errors.New("offline")}
	cfg := testConfig(5)
	cfg.ChildID = 1
	cfg.GameID = 1
	m, clock := newTestModel(t, cfg, st, rep, nil)

	m.Update(key("enter"))
	clock.Advance(5 * (10*time.Second + engine.FeedbackDelay))
	saved := m.refresh()().(savedMsg)
	_, reportCmd := m.Update(saved)
	m.Update(reportCmd())
	if len(st.reported) != 0 {
		t.Fatalf("failed report must not mark the session")
	}
	if m.state.Phase != engine.PhaseComplete || !strings.Contains(m.View(), "Could not send results") {
		t.Fatalf("expected completed view with failure status, got %q", m.View())
	}
}

func TestReportingDisabledWithoutIDs(t *testing.T) {
	st := &fakeStore{}
	rep := &fakeReporter{}
	m, clock := newTestModel(t, testConfig(5), st, rep, nil)
	m.Update(key("enter"))
	answerAll(m, clock, "4")
	saved := m.refresh()().(savedMsg)
	if _, cmd := m.Update(saved); cmd != nil {
		t.Fatalf("reporting must be disabled without child and game ids")
	}
	if len(st.inserted) != 1 {
		t.Fatalf("expected session stored, got %d", len(st.inserted))
	}
}

func TestArithmeticView(t *testing.T) {
	cfg := testConfig(5)
	cfg.Settings.GameType = model.GameArithmetic
	m, _ := newTestModel(t, cfg, nil, nil, nil)
	m.Update(key("enter"))
	view := m.View()
	if strings.Count(view, chipGlyph) != 7 || !strings.Contains(view, "+") {
		t.Fatalf("expected 3 + 4 chips, got %q", view)
	}
}
