// Package store handles SQLite persistence of play history.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/verte-zerg/subitise/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session history.
type Store struct {
	db *sqlx.DB
}

type sessionRow struct {
	ID            int64   `db:"id"`
	UID           string  `db:"uid"`
	GameType      string  `db:"game_type"`
	Difficulty    string  `db:"difficulty"`
	StartedAt     string  `db:"started_at"`
	EndedAt       string  `db:"ended_at"`
	Total         int     `db:"total"`
	Correct       int     `db:"correct"`
	AvgResponseMs float64 `db:"avg_response_ms"`
	Reported      bool    `db:"reported"`
}

type responseRow struct {
	SessionID     int64  `db:"session_id"`
	Idx           int    `db:"idx"`
	QuestionID    string `db:"question_id"`
	UserAnswer    int    `db:"user_answer"`
	CorrectAnswer int    `db:"correct_answer"`
	IsCorrect     bool   `db:"is_correct"`
	ResponseMs    int64  `db:"response_ms"`
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return st, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			uid TEXT NOT NULL,
			game_type TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			timer_seconds INTEGER NOT NULL,
			session_length INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			total INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			avg_response_ms REAL NOT NULL,
			reported INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS responses (
			session_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			question_id TEXT NOT NULL,
			user_answer INTEGER NOT NULL,
			correct_answer INTEGER NOT NULL,
			is_correct INTEGER NOT NULL,
			response_ms INTEGER NOT NULL,
			PRIMARY KEY (session_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_responses_correct_answer ON responses(correct_answer);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a completed session and its responses.
func (s *Store) InsertSession(ctx context.Context, session *model.Session, stats model.GameStats) (id int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (uid, game_type, difficulty, timer_seconds, session_length, started_at, ended_at, total, correct, avg_response_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		string(session.Settings.GameType),
		string(session.Settings.Difficulty),
		session.Settings.TimerDuration,
		session.Settings.SessionLength,
		session.StartTime.Format(time.RFC3339Nano),
		session.EndTime.Format(time.RFC3339Nano),
		stats.TotalQuestions,
		stats.CorrectAnswers,
		float64(stats.AverageResponseTime.Microseconds())/1000,
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	rows := make([]responseRow, 0, len(session.Responses))
	for i, r := range session.Responses {
		rows = append(rows, responseRow{
			SessionID:     id,
			Idx:           i,
			QuestionID:    r.QuestionID,
			UserAnswer:    r.UserAnswer,
			CorrectAnswer: r.CorrectAnswer,
			IsCorrect:     r.IsCorrect,
			ResponseMs:    r.ResponseTime.Milliseconds(),
		})
	}
	if len(rows) > 0 {
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO responses (session_id, idx, question_id, user_answer, correct_answer, is_correct, response_ms)
			 VALUES (:session_id, :idx, :question_id, :user_answer, :correct_answer, :is_correct, :response_ms)`,
			rows); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// MarkReported flags a session as delivered to the reporting service.
func (s *Store) MarkReported(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET reported = 1 WHERE id = ?`, id)
	return err
}

// ListSessions returns session aggregates in chronological order.
func (s *Store) ListSessions(ctx context.Context, filter model.HistoryFilter) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.GameType != "" {
		clauses = append(clauses, "game_type = ?")
		args = append(args, string(filter.GameType))
	}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, uid, game_type, difficulty, started_at, ended_at, total, correct, avg_response_ms, reported
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]model.SessionAggregate, 0, len(rows))
	for _, row := range rows {
		agg, err := row.aggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	if filter.Last > 0 && len(out) > filter.Last {
		out = out[len(out)-filter.Last:]
	}
	return out, nil
}

// ListAnswerAggregates aggregates responses by target number across sessions.
func (s *Store) ListAnswerAggregates(ctx context.Context, sessionIDs []int64) ([]model.AnswerAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT correct_answer,
			SUM(is_correct) AS correct,
			SUM(CASE WHEN is_correct = 0 THEN 1 ELSE 0 END) AS incorrect,
			SUM(CASE WHEN user_answer = -1 THEN 1 ELSE 0 END) AS timeouts,
			SUM(response_ms) AS response_sum_ms,
			COUNT(*) AS response_count
		FROM responses
		WHERE session_id IN (?)
		GROUP BY correct_answer
		ORDER BY correct_answer`, sessionIDs)
	if err != nil {
		return nil, err
	}
	return s.selectAnswerAggregates(ctx, s.db.Rebind(query), args...)
}

// RecentAnswerAggregates aggregates responses over the most recent sessions.
func (s *Store) RecentAnswerAggregates(ctx context.Context, window int, gameType model.GameType) ([]model.AnswerAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_sessions AS (
		SELECT id FROM sessions
		WHERE (? = '' OR game_type = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT r.correct_answer,
		SUM(r.is_correct) AS correct,
		SUM(CASE WHEN r.is_correct = 0 THEN 1 ELSE 0 END) AS incorrect,
		SUM(CASE WHEN r.user_answer = -1 THEN 1 ELSE 0 END) AS timeouts,
		SUM(r.response_ms) AS response_sum_ms,
		COUNT(*) AS response_count
	FROM responses r
	JOIN recent_sessions rs ON rs.id = r.session_id
	GROUP BY r.correct_answer
	ORDER BY r.correct_answer`
	return s.selectAnswerAggregates(ctx, query, string(gameType), string(gameType), window)
}

// ListResponses returns the stored responses of the given sessions.
func (s *Store) ListResponses(ctx context.Context, sessionIDs []int64) ([]model.StoredResponse, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT session_id, idx, question_id, user_answer, correct_answer, is_correct, response_ms
		FROM responses
		WHERE session_id IN (?)
		ORDER BY session_id, idx`, sessionIDs)
	if err != nil {
		return nil, err
	}
	var rows []responseRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]model.StoredResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.StoredResponse{
			SessionID:     r.SessionID,
			Index:         r.Idx,
			QuestionID:    r.QuestionID,
			UserAnswer:    r.UserAnswer,
			CorrectAnswer: r.CorrectAnswer,
			IsCorrect:     r.IsCorrect,
			ResponseMs:    r.ResponseMs,
		})
	}
	return out, nil
}

func (s *Store) selectAnswerAggregates(ctx context.Context, query string, args ...any) ([]model.AnswerAggregate, error) {
	var rows []struct {
		Answer        int   `db:"correct_answer"`
		Correct       int   `db:"correct"`
		Incorrect     int   `db:"incorrect"`
		Timeouts      int   `db:"timeouts"`
		ResponseSumMs int64 `db:"response_sum_ms"`
		ResponseCount int64 `db:"response_count"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]model.AnswerAggregate, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AnswerAggregate(r))
	}
	return out, nil
}

func (r sessionRow) aggregate() (model.SessionAggregate, error) {
	started, err := time.Parse(time.RFC3339Nano, r.StartedAt)
	if err != nil {
		return model.SessionAggregate{}, err
	}
	ended, err := time.Parse(time.RFC3339Nano, r.EndedAt)
	if err != nil {
		return model.SessionAggregate{}, err
	}
	return model.SessionAggregate{
		SessionID:     r.ID,
		UID:           r.UID,
		GameType:      model.GameType(r.GameType),
		Difficulty:    model.Difficulty(r.Difficulty),
		StartedAt:     started,
		EndedAt:       ended,
		Total:         r.Total,
		Correct:       r.Correct,
		AvgResponseMs: r.AvgResponseMs,
		Reported:      r.Reported,
	}, nil
}
