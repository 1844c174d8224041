// Package tui provides the Bubble Tea game interface.
package tui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/subitise/internal/engine"
	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/report"
	statsPkg "github.com/verte-zerg/subitise/internal/stats"
)

const (
	maxAnswerDigits = 3
	reportTimeout   = 15 * time.Second
	pumpBuffer      = 64
)

// Config holds the session settings and what happens after a session ends.
type Config struct {
	Settings   model.Settings
	ChildID    int64
	GameID     int64
	FocusWeak  bool
	WeakTop    int
	WeakFactor float64
	WeakWindow int
}

// ReportingEnabled reports whether finished sessions are sent upstream.
func (c Config) ReportingEnabled() bool {
	return c.ChildID > 0 && c.GameID > 0
}

// SessionStore persists finished sessions.
type SessionStore interface {
	InsertSession(ctx context.Context, session *model.Session, stats model.GameStats) (int64, error)
	MarkReported(ctx context.Context, id int64) error
	RecentAnswerAggregates(ctx context.Context, window int, gameType model.GameType) ([]model.AnswerAggregate, error)
}

// Reporter sends a finished session to the results service.
type Reporter interface {
	Send(ctx context.Context, result model.GameResult) error
}

// WeakBiaser accepts the numbers to practice more often.
type WeakBiaser interface {
	SetWeakSet(weak map[int]struct{}, factor float64)
}

// Pump hands engine events to the Bubble Tea loop.
type Pump struct {
	ch   chan engine.Event
	done chan struct{}
	once sync.Once
}

// NewPump returns an open Pump.
func NewPump() *Pump {
	return &Pump{
		ch:   make(chan engine.Event, pumpBuffer),
		done: make(chan struct{}),
	}
}

// Listener is passed to engine.WithListener.
func (p *Pump) Listener(ev engine.Event) {
	select {
	case p.ch <- ev:
	case <-p.done:
	}
}

// Close releases blocked senders and receivers.
func (p *Pump) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *Pump) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-p.ch:
			return eventMsg(ev)
		case <-p.done:
			return nil
		}
	}
}

type eventMsg engine.Event

type savedMsg struct {
	session *model.Session
	rowID   int64
	weak    map[int]struct{}
	err     error
}

type reportedMsg struct {
	err error
}

// Model implements the Bubble Tea game UI.
type Model struct {
	cfg      Config
	engine   *engine.Engine
	pump     *Pump
	weak     WeakBiaser
	store    SessionStore
	reporter Reporter

	state engine.State
	input string
	bar   progress.Model

	width  int
	height int

	handledSessionID  string
	status            string
	weakNoticePrinted bool
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	canvasStyle   = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#4A4A4A"))
	groupStyle    = lipgloss.NewStyle().Padding(0, 1)
	operatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Underline(true)
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a game TUI model. The engine must deliver its events
// to pump.Listener. store, reporter and weak may be nil.
func NewModel(cfg Config, eng *engine.Engine, pump *Pump, weak WeakBiaser, store SessionStore, reporter Reporter) *Model {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 40
	return &Model{
		cfg:      cfg,
		engine:   eng,
		pump:     pump,
		weak:     weak,
		store:    store,
		reporter: reporter,
		state:    eng.Snapshot(),
		bar:      bar,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.pump.wait()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clamp(msg.Width/2, 10, 60)
		return m, nil
	case eventMsg:
		return m, tea.Batch(m.pump.wait(), m.refresh())
	case savedMsg:
		return m, m.handleSaved(msg)
	case reportedMsg:
		if msg.err != nil {
			m.status = "Could not send results"
		} else {
			m.status = "Results sent"
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch m.state.Phase {
	case engine.PhaseIdle, engine.PhaseComplete:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter":
			m.startSession()
		case "r":
			if err := m.engine.Restart(); err != nil {
				m.startSession()
			}
		}
		return m, m.refresh()
	}

	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeyEnter:
		m.submit()
		return m, m.refresh()
	case tea.KeyEsc:
		m.engine.Clear()
		m.input = ""
		return m, m.refresh()
	case tea.KeySpace:
		m.engine.TogglePause()
		return m, m.refresh()
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			switch {
			case r >= '0' && r <= '9':
				m.appendDigit(r)
			case r == 'p':
				m.engine.TogglePause()
			case r == 'r':
				m.input = ""
				if err := m.engine.Restart(); err != nil {
					logErrf("failed to restart session: %v\n", err)
				}
			}
		}
		return m, m.refresh()
	}
	return m, nil
}

func (m *Model) startSession() {
	m.input = ""
	m.status = ""
	if err := m.engine.Start(m.cfg.Settings); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) appendDigit(r rune) {
	if m.state.Phase != engine.PhaseActive || m.state.ShowFeedback {
		return
	}
	if len(m.input) >= maxAnswerDigits {
		return
	}
	m.input += string(r)
}

func (m *Model) submit() {
	if m.input == "" {
		return
	}
	q, ok := m.engine.CurrentQuestion()
	if !ok {
		return
	}
	n, err := strconv.Atoi(m.input)
	if err != nil {
		m.input = ""
		return
	}
	if m.engine.SubmitAnswerFor(q.QuestionID(), n) {
		m.input = ""
	}
}

// refresh pulls the latest engine state and starts post-session work once
// per finished session.
func (m *Model) refresh() tea.Cmd {
	m.state = m.engine.Snapshot()
	if m.state.ShowFeedback {
		m.input = ""
	}
	if m.state.Phase != engine.PhaseComplete || m.state.Session == nil {
		return nil
	}
	if m.state.Session.ID == m.handledSessionID {
		return nil
	}
	m.handledSessionID = m.state.Session.ID
	return m.saveCmd(m.state.Session)
}

func (m *Model) saveCmd(session *model.Session) tea.Cmd {
	st := m.store
	cfg := m.cfg
	return func() tea.Msg {
		out := savedMsg{session: session}
		if st == nil {
			return out
		}
		gs, ok := statsPkg.Compute(session.Responses)
		if !ok {
			return out
		}
		ctx := context.Background()
		id, err := st.InsertSession(ctx, session, gs)
		if err != nil {
			logErrf("failed to save session: %v\n", err)
			out.err = err
			return out
		}
		out.rowID = id
		if cfg.FocusWeak {
			aggs, err := st.RecentAnswerAggregates(ctx, cfg.WeakWindow, session.Settings.GameType)
			if err != nil {
				logErrf("failed to load weak numbers: %v\n", err)
			} else {
				out.weak = statsPkg.SelectWeakAnswers(aggs, cfg.WeakTop)
			}
		}
		return out
	}
}

func (m *Model) handleSaved(msg savedMsg) tea.Cmd {
	if msg.err != nil {
		m.status = "Could not save session"
	} else if m.store != nil {
		m.status = "Session saved"
	}
	if m.cfg.FocusWeak && m.weak != nil && msg.weak != nil {
		if len(msg.weak) == 0 && !m.weakNoticePrinted {
			logErrln("no stats available for weak-number focus yet; using uniform draws")
			m.weakNoticePrinted = true
		}
		m.weak.SetWeakSet(msg.weak, m.cfg.WeakFactor)
	}
	if !m.cfg.ReportingEnabled() || m.reporter == nil {
		return nil
	}
	return m.reportCmd(msg.session, msg.rowID)
}

func (m *Model) reportCmd(session *model.Session, rowID int64) tea.Cmd {
	reporter := m.reporter
	st := m.store
	cfg := m.cfg
	return func() tea.Msg {
		payload, ok := report.BuildPayload(session, cfg.ChildID, cfg.GameID)
		if !ok {
			return reportedMsg{err: fmt.Errorf("session has no results")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := reporter.Send(ctx, payload); err != nil {
			logErrf("failed to report session: %v\n", err)
			return reportedMsg{err: err}
		}
		if st != nil && rowID > 0 {
			if err := st.MarkReported(ctx, rowID); err != nil {
				logErrf("failed to mark session reported: %v\n", err)
			}
		}
		return reportedMsg{}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.state.Phase {
	case engine.PhaseIdle:
		body = m.viewIdle()
	case engine.PhaseComplete:
		body = m.viewResults()
	default:
		body = m.viewQuestion()
	}
	if m.width == 0 || m.height == 0 {
		return body
	}
	footer := footerStyle.Render(m.keyHelp())
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	content := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, body)
	return content + "\n" + lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
}

func (m *Model) viewIdle() string {
	s := m.cfg.Settings
	lines := []string{
		titleStyle.Render("subitise"),
		"",
		fmt.Sprintf("%s · %s · %d questions · %ds per question", gameLabel(s.GameType), s.Difficulty, s.SessionLength, s.TimerDuration),
	}
	if m.status != "" {
		lines = append(lines, wrongStyle.Render(m.status))
	}
	lines = append(lines, "", mutedStyle.Render("Press enter to start"))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) viewQuestion() string {
	sess := m.state.Session
	if sess == nil {
		return ""
	}
	q, ok := m.state.Current()
	if !ok {
		return ""
	}
	header := fmt.Sprintf("Question %d/%d  ·  %ds", sess.CurrentQuestionIndex+1, len(sess.Questions), m.state.TimeRemaining)
	fraction := 0.0
	if sess.Settings.TimerDuration > 0 {
		fraction = float64(m.state.TimeRemaining) / float64(sess.Settings.TimerDuration)
	}

	var canvas string
	switch q := q.(type) {
	case model.CountingQuestion:
		canvas = renderDots(q.Dots, canvasCols, canvasRows)
	case model.ArithmeticQuestion:
		canvas = renderArithmetic(q)
	}

	lines := []string{
		mutedStyle.Render(header),
		m.bar.ViewAs(fraction),
		canvas,
	}
	switch {
	case m.state.Phase == engine.PhasePaused:
		lines = append(lines, titleStyle.Render("Paused. Press p to resume."))
	case m.state.ShowFeedback && m.state.LastCorrect:
		lines = append(lines, correctStyle.Render(m.state.FeedbackMessage))
	case m.state.ShowFeedback:
		lines = append(lines, wrongStyle.Render(m.state.FeedbackMessage))
	default:
		lines = append(lines, answerLine(m.input, maxAnswerDigits))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) viewResults() string {
	lines := []string{titleStyle.Render("Session complete"), ""}
	if gs, ok := m.engine.Stats(); ok {
		lines = append(lines,
			fmt.Sprintf("Score %d/%d", gs.CorrectAnswers, gs.TotalQuestions),
			fmt.Sprintf("Accuracy %.0f%%", gs.Accuracy),
			fmt.Sprintf("Avg response %.1fs", gs.AverageResponseTime.Seconds()),
		)
	}
	if m.status != "" {
		lines = append(lines, "", mutedStyle.Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) keyHelp() string {
	switch m.state.Phase {
	case engine.PhaseIdle:
		return "enter start  q quit"
	case engine.PhaseComplete:
		return "enter play again  q quit"
	default:
		return strings.Join([]string{"0-9 answer", "enter submit", "p pause", "r restart", "esc stop"}, "  ")
	}
}

func gameLabel(t model.GameType) string {
	if t == model.GameArithmetic {
		return "Chips"
	}
	return "Dots"
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
