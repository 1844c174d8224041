package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/subitise/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.xlsx")
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sessions := []model.SessionAggregate{
		{SessionID: 1, UID: "session_a", GameType: model.GameCounting, Difficulty: model.DifficultyEasy, StartedAt: start, EndedAt: start.Add(time.Minute), Total: 4, Correct: 3, AvgResponseMs: 1250},
	}
	responses := []model.StoredResponse{
		{SessionID: 1, Index: 0, QuestionID: "q1", UserAnswer: 4, CorrectAnswer: 4, IsCorrect: true, ResponseMs: 900},
		{SessionID: 1, Index: 1, QuestionID: "q2", UserAnswer: model.TimeoutAnswer, CorrectAnswer: 5, ResponseMs: 5000},
	}
	if err := WriteXLSX(path, sessions, responses); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SessionsSheet)
	if err != nil {
		t.Fatalf("sessions rows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Session" {
		t.Fatalf("unexpected sessions sheet %v", rows)
	}
	if rows[1][1] != "session_a" || rows[1][2] != "counting" || rows[1][8] != "75" || rows[1][9] != "1.25" {
		t.Fatalf("unexpected session row %v", rows[1])
	}

	rows, err = f.GetRows(ResponsesSheet)
	if err != nil {
		t.Fatalf("responses rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 responses, got %v", rows)
	}
	if rows[2][1] != "2" || rows[2][3] != "-1" || rows[2][6] != "TRUE" {
		t.Fatalf("unexpected timeout row %v", rows[2])
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := WriteXLSX(path, nil, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(ResponsesSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %v", rows)
	}
}
