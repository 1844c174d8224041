// Package report sends finished sessions to the results service and fetches
// practice recommendations from it.
package report

import (
	"time"

	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/stats"
)

// BuildPayload assembles the result for a finished session. It returns false
// when the session has not ended or has no responses.
func BuildPayload(session *model.Session, childID, gameID int64) (model.GameResult, bool) {
	if session == nil || session.EndTime.IsZero() {
		return model.GameResult{}, false
	}
	gs, ok := stats.Compute(session.Responses)
	if !ok {
		return model.GameResult{}, false
	}
	return model.GameResult{
		ChildID:          childID,
		GameID:           gameID,
		Score:            gs.CorrectAnswers,
		TimeTakenSeconds: session.EndTime.Sub(session.StartTime).Seconds(),
		Responses:        append([]model.Response(nil), session.Responses...),
		Stats:            gs,
	}, true
}

type responseJSON struct {
	QuestionID    string  `json:"questionId"`
	UserAnswer    int     `json:"userAnswer"`
	CorrectAnswer int     `json:"correctAnswer"`
	IsCorrect     bool    `json:"isCorrect"`
	ResponseTime  float64 `json:"responseTime"`
}

type feedbackData struct {
	Responses           []responseJSON `json:"responses"`
	TotalQuestions      int            `json:"totalQuestions"`
	CorrectAnswers      int            `json:"correctAnswers"`
	AverageResponseTime float64        `json:"averageResponseTime"`
	Accuracy            float64        `json:"accuracy"`
}

type sessionRequest struct {
	ChildID int64 `json:"child_id"`
	GameID  int64 `json:"game_id"`
}

type sessionResponse struct {
	SessionID int64 `json:"session_id"`
}

type resultRequest struct {
	SessionID        int64        `json:"session_id"`
	Score            int          `json:"score"`
	TimeTakenSeconds float64      `json:"time_taken_seconds"`
	FeedbackData     feedbackData `json:"feedback_data"`
}

// Response times travel as milliseconds.
func newFeedbackData(result model.GameResult) feedbackData {
	out := feedbackData{
		Responses:           make([]responseJSON, 0, len(result.Responses)),
		TotalQuestions:      result.Stats.TotalQuestions,
		CorrectAnswers:      result.Stats.CorrectAnswers,
		AverageResponseTime: millis(result.Stats.AverageResponseTime),
		Accuracy:            result.Stats.Accuracy,
	}
	for _, r := range result.Responses {
		out.Responses = append(out.Responses, responseJSON{
			QuestionID:    r.QuestionID,
			UserAnswer:    r.UserAnswer,
			CorrectAnswer: r.CorrectAnswer,
			IsCorrect:     r.IsCorrect,
			ResponseTime:  millis(r.ResponseTime),
		})
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
