package stats

import (
	"sort"

	"github.com/verte-zerg/subitise/internal/model"
)

// SelectWeakAnswers picks the lowest-accuracy target numbers.
func SelectWeakAnswers(aggs []model.AnswerAggregate, top int) map[int]struct{} {
	weak := map[int]struct{}{}
	if len(aggs) == 0 {
		return weak
	}
	candidates := append([]model.AnswerAggregate(nil), aggs...)
	sort.Slice(candidates, func(i, j int) bool {
		ai, aj := answerAccuracy(candidates[i]), answerAccuracy(candidates[j])
		if ai == aj {
			return candidates[i].Answer < candidates[j].Answer
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for _, c := range candidates[:top] {
		// Perfect scores are not weak.
		if answerAccuracy(c) >= 1 {
			break
		}
		weak[c.Answer] = struct{}{}
	}
	return weak
}
