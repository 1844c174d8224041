package stats

import (
	"context"

	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions          []model.SessionAggregate
	WindowSessionIDs  []int64
	AnswerAggsAll     []model.AnswerAggregate
	AnswerAggsWindow  []model.AnswerAggregate
	UnreportedSession int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, filter model.HistoryFilter) (Report, error) {
	sessions, err := st.ListSessions(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	allIDs := SessionIDs(sessions)
	windowIDs := lastSessionIDs(sessions, filter.CurveWindow)
	aggsAll, err := st.ListAnswerAggregates(ctx, allIDs)
	if err != nil {
		return Report{}, err
	}
	aggsWindow, err := st.ListAnswerAggregates(ctx, windowIDs)
	if err != nil {
		return Report{}, err
	}
	unreported := 0
	for _, s := range sessions {
		if !s.Reported {
			unreported++
		}
	}
	return Report{
		Sessions:          sessions,
		WindowSessionIDs:  windowIDs,
		AnswerAggsAll:     aggsAll,
		AnswerAggsWindow:  aggsWindow,
		UnreportedSession: unreported,
	}, nil
}

// SessionIDs returns the row ids of the sessions.
func SessionIDs(sessions []model.SessionAggregate) []int64 {
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.SessionID
	}
	return ids
}

func lastSessionIDs(sessions []model.SessionAggregate, window int) []int64 {
	if window <= 0 || len(sessions) <= window {
		return SessionIDs(sessions)
	}
	return SessionIDs(sessions[len(sessions)-window:])
}
