// Package export writes play history to spreadsheet files.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/stats"
)

const (
	SessionsSheet  = "Sessions"
	ResponsesSheet = "Responses"
	timeLayout     = "2006-01-02 15:04:05"
)

var sessionHeaders = []any{"Session", "UID", "Game", "Difficulty", "Started", "Ended", "Questions", "Correct", "Accuracy %", "Avg Response s", "Reported"}

var responseHeaders = []any{"Session", "Index", "Question", "Answer", "Correct Answer", "Correct", "Timed Out", "Response ms"}

// WriteXLSX writes sessions and their responses to path.
func WriteXLSX(path string, sessions []model.SessionAggregate, responses []model.StoredResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SessionsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(ResponsesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	rows := make([][]any, 0, len(sessions)+1)
	rows = append(rows, sessionHeaders)
	for _, s := range sessions {
		accuracy, avgSeconds := stats.SessionMetrics(s)
		rows = append(rows, []any{
			s.SessionID,
			s.UID,
			string(s.GameType),
			string(s.Difficulty),
			formatTime(s.StartedAt),
			formatTime(s.EndedAt),
			s.Total,
			s.Correct,
			round2(accuracy * 100),
			round2(avgSeconds),
			s.Reported,
		})
	}
	if err := writeRows(f, SessionsSheet, rows, header); err != nil {
		return err
	}

	rows = make([][]any, 0, len(responses)+1)
	rows = append(rows, responseHeaders)
	for _, r := range responses {
		rows = append(rows, []any{
			r.SessionID,
			r.Index + 1,
			r.QuestionID,
			r.UserAnswer,
			r.CorrectAnswer,
			r.IsCorrect,
			r.UserAnswer == model.TimeoutAnswer,
			r.ResponseMs,
		})
	}
	if err := writeRows(f, ResponsesSheet, rows, header); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
