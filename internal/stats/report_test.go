package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/store"
)

func TestBuildReport(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "subitise.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		session := &model.Session{
			ID:        "s",
			Settings:  model.Settings{Difficulty: model.DifficultyEasy, TimerDuration: 5, SessionLength: 2, GameType: model.GameCounting},
			StartTime: start,
			EndTime:   start.Add(30 * time.Second),
			Responses: []model.Response{
				{QuestionID: "a", UserAnswer: 4, CorrectAnswer: 4, IsCorrect: true, ResponseTime: time.Second},
				{QuestionID: "b", UserAnswer: 2, CorrectAnswer: 3, ResponseTime: time.Second},
			},
		}
		id, err := st.InsertSession(ctx, session, model.GameStats{TotalQuestions: 2, CorrectAnswers: 1, AverageResponseTime: time.Second})
		if err != nil {
			t.Fatalf("insert session: %v", err)
		}
		ids = append(ids, id)
	}
	if err := st.MarkReported(ctx, ids[2]); err != nil {
		t.Fatalf("mark reported: %v", err)
	}

	report, err := BuildReport(ctx, st, model.HistoryFilter{GameType: model.GameCounting, Last: 2, CurveWindow: 1})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].SessionID != ids[1] || report.Sessions[1].SessionID != ids[2] {
		t.Fatalf("unexpected session ids: %+v", report.Sessions)
	}
	if len(report.WindowSessionIDs) != 1 || report.WindowSessionIDs[0] != ids[2] {
		t.Fatalf("unexpected window ids: %v", report.WindowSessionIDs)
	}
	if len(report.AnswerAggsAll) != 2 || len(report.AnswerAggsWindow) != 2 {
		t.Fatalf("expected aggregates for numbers 3 and 4, got %+v / %+v", report.AnswerAggsAll, report.AnswerAggsWindow)
	}
	if report.UnreportedSession != 1 {
		t.Fatalf("expected 1 unreported session, got %d", report.UnreportedSession)
	}
}
