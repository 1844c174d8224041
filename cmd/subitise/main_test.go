package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/store"
)

func TestParseHistoryFilter(t *testing.T) {
	filter, err := parseHistoryFilter("dots", "2024-05-01", 3, 5)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if filter.GameType != model.GameCounting || filter.Last != 3 || filter.CurveWindow != 5 {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if filter.Since == nil || filter.Since.Format("2006-01-02") != "2024-05-01" {
		t.Fatalf("unexpected since %v", filter.Since)
	}
	for _, bad := range []struct {
		gameType, since string
		last            int
	}{
		{"words", "", 0},
		{"", "yesterday", 0},
		{"", "", -1},
	} {
		if _, err := parseHistoryFilter(bad.gameType, bad.since, bad.last, 0); err == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}

func TestBuildSettingsUsesFlags(t *testing.T) {
	playType, playDifficulty, playTimer, playLength, playAudio = "chips", "medium", 7, 15, false
	t.Cleanup(func() {
		playType, playDifficulty, playTimer, playLength, playAudio = defaultGameType, defaultDifficulty, defaultTimer, defaultLength, defaultAudio
	})
	s, err := buildSettings()
	if err != nil {
		t.Fatalf("build settings: %v", err)
	}
	want := model.Settings{Difficulty: model.DifficultyMedium, TimerDuration: 7, SessionLength: 15, GameType: model.GameArithmetic}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}
	for _, bad := range []struct{ timer, length int }{{7, 0}, {7, 7}, {7, 100000}, {1, 10}, {60, 10}} {
		playTimer, playLength = bad.timer, bad.length
		if _, err := buildSettings(); err == nil {
			t.Fatalf("expected error for timer=%d length=%d", bad.timer, bad.length)
		}
	}
}

func TestConfigOverridesUnchangedFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Set("timer", "9"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	t.Cleanup(func() {
		playTimer, playLength = defaultTimer, defaultLength
	})
	fileTimer, fileLength := 3, 20
	applyIntConfig(cmd, "timer", &playTimer, &fileTimer)
	applyIntConfig(cmd, "length", &playLength, &fileLength)
	if playTimer != 9 {
		t.Fatalf("flag must win over config, got %d", playTimer)
	}
	if playLength != 20 {
		t.Fatalf("config must fill unchanged flag, got %d", playLength)
	}
}

func TestRenderPlainStats(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "subitise.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeStore(st)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	session := &model.Session{
		ID:        "session_1",
		Settings:  model.Settings{Difficulty: model.DifficultyEasy, TimerDuration: 5, SessionLength: 1, GameType: model.GameCounting},
		StartTime: start,
		EndTime:   start.Add(10 * time.Second),
		Responses: []model.Response{{QuestionID: "q", UserAnswer: 4, CorrectAnswer: 4, IsCorrect: true, ResponseTime: 2 * time.Second}},
	}
	if _, err := st.InsertSession(context.Background(), session, model.GameStats{TotalQuestions: 1, CorrectAnswers: 1, AverageResponseTime: 2 * time.Second, Accuracy: 100}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var buf bytes.Buffer
	if err := renderPlainStats(context.Background(), &buf, st, model.HistoryFilter{CurveWindow: 5}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sessions: 1", "Avg Accuracy: 100.00%", "Per-Number", "Unsent sessions: 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q:\n%s", want, out)
		}
	}
}

func TestPrintScores(t *testing.T) {
	var buf bytes.Buffer
	if err := printScores(&buf, map[string]float64{"manipulatives": 0.2, "subitisation": 0.8}); err != nil {
		t.Fatalf("print: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "subitisation") {
		t.Fatalf("expected descending scores, got %q", buf.String())
	}
	buf.Reset()
	if err := printScores(&buf, nil); err != nil || !strings.Contains(buf.String(), "No recommendations.") {
		t.Fatalf("expected empty message, got %q (%v)", buf.String(), err)
	}
}
