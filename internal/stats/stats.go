// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/subitise/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Compute derives game stats from a session's responses. It returns false
// when there is nothing to summarize.
func Compute(responses []model.Response) (model.GameStats, bool) {
	if len(responses) == 0 {
		return model.GameStats{}, false
	}
	correct := 0
	var total time.Duration
	for _, r := range responses {
		if r.IsCorrect {
			correct++
		}
		total += r.ResponseTime
	}
	n := len(responses)
	return model.GameStats{
		TotalQuestions:      n,
		CorrectAnswers:      correct,
		AverageResponseTime: total / time.Duration(n),
		Accuracy:            100 * float64(correct) / float64(n),
	}, true
}

// SessionMetrics computes accuracy (0-1) and the average response time in
// seconds for a stored session.
func SessionMetrics(s model.SessionAggregate) (accuracy, avgSeconds float64) {
	if s.Total > 0 {
		accuracy = float64(s.Correct) / float64(s.Total)
	}
	return accuracy, s.AvgResponseMs / 1000
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		den := i + 1
		if i >= window {
			sum -= values[i-window]
			den = window
		}
		out[i] = sum / float64(den)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	last := len(sparkChars) - 1
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		b.WriteByte(sparkChars[max(0, min(idx, last))])
	}
	return b.String()
}

// Summary holds totals over a set of stored sessions.
type Summary struct {
	Sessions    int
	Questions   int
	AvgAccuracy float64
	BestAcc     float64
	AvgSeconds  float64
}

// Summarize averages per-session metrics.
func Summarize(sessions []model.SessionAggregate) Summary {
	var s Summary
	if len(sessions) == 0 {
		return s
	}
	var accSum, secSum float64
	for _, sess := range sessions {
		acc, sec := SessionMetrics(sess)
		accSum += acc
		secSum += sec
		s.BestAcc = math.Max(s.BestAcc, acc)
		s.Questions += sess.Total
	}
	s.Sessions = len(sessions)
	s.AvgAccuracy = accSum / float64(len(sessions))
	s.AvgSeconds = secSum / float64(len(sessions))
	return s
}

// Curves returns the smoothed accuracy (percent) and response-time series.
func Curves(sessions []model.SessionAggregate, window int) (accuracy, seconds []float64) {
	accuracy = make([]float64, len(sessions))
	seconds = make([]float64, len(sessions))
	for i, s := range sessions {
		acc, sec := SessionMetrics(s)
		accuracy[i] = acc * 100
		seconds[i] = sec
	}
	return MovingAverage(accuracy, window), MovingAverage(seconds, window)
}

// RenderSummary prints a summary of stored sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate, window int) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	s := Summarize(sessions)
	acc, sec := Curves(sessions, window)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", s.Sessions),
		fmt.Sprintf("Questions: %d", s.Questions),
		fmt.Sprintf("Avg Accuracy: %.2f%%", s.AvgAccuracy*100),
		fmt.Sprintf("Best Accuracy: %.2f%%", s.BestAcc*100),
		fmt.Sprintf("Avg Response: %.2fs", s.AvgSeconds),
		"",
		fmt.Sprintf("Accuracy  %s", Sparkline(acc)),
		fmt.Sprintf("Response  %s", Sparkline(sec)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// AnswerRow is a display row for one target number.
type AnswerRow struct {
	Answer   int
	Accuracy float64
	AvgMs    float64
	Correct  int
	Wrong    int
	Timeouts int
}

// AnswerRows converts aggregates into rows sorted by ascending accuracy.
func AnswerRows(aggs []model.AnswerAggregate) []AnswerRow {
	rows := make([]AnswerRow, 0, len(aggs))
	for _, agg := range aggs {
		row := AnswerRow{
			Answer:   agg.Answer,
			Accuracy: answerAccuracy(agg),
			Correct:  agg.Correct,
			Wrong:    agg.Incorrect,
			Timeouts: agg.Timeouts,
		}
		if agg.ResponseCount > 0 {
			row.AvgMs = float64(agg.ResponseSumMs) / float64(agg.ResponseCount)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Accuracy == rows[j].Accuracy {
			return rows[i].Answer < rows[j].Answer
		}
		return rows[i].Accuracy < rows[j].Accuracy
	})
	return rows
}

// RenderAnswerTable prints per-number aggregates.
func RenderAnswerTable(w io.Writer, aggs []model.AnswerAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No answer stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Per-Number"); err != nil {
		return err
	}
	headers := []string{"Number", "Accuracy", "Avg Time (ms)", "Correct", "Wrong", "Timeouts"}
	var cells [][]string
	for _, r := range AnswerRows(aggs) {
		cells = append(cells, []string{
			fmt.Sprintf("%d", r.Answer),
			fmt.Sprintf("%.2f%%", r.Accuracy*100),
			fmt.Sprintf("%.0f", r.AvgMs),
			fmt.Sprintf("%d", r.Correct),
			fmt.Sprintf("%d", r.Wrong),
			fmt.Sprintf("%d", r.Timeouts),
		})
	}
	for _, line := range formatTable(headers, cells, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func answerAccuracy(agg model.AnswerAggregate) float64 {
	total := agg.Correct + agg.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(total)
}
