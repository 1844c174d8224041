package generator

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/subitise/internal/model"
)

func TestCountingWithinDifficultyRange(t *testing.T) {
	g := NewWithSource(rand.NewSource(1))
	for _, d := range []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		r := d.DotRange()
		seen := map[int]bool{}
		for i := 0; i < 500; i++ {
			q := g.Counting(d)
			if q.DotCount < r.Min || q.DotCount > r.Max {
				t.Fatalf("%s: dot count %d outside [%d,%d]", d, q.DotCount, r.Min, r.Max)
			}
			if len(q.Dots) != q.DotCount {
				t.Fatalf("%s: expected %d positions, got %d", d, q.DotCount, len(q.Dots))
			}
			seen[q.DotCount] = true
		}
		if len(seen) != r.Max-r.Min+1 {
			t.Fatalf("%s: expected every count in range, saw %v", d, seen)
		}
	}
}

func TestArithmeticInvariant(t *testing.T) {
	g := NewWithSource(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		q := g.Arithmetic(model.DifficultyHard)
		if q.LeftGroup < 1 || q.LeftGroup > 5 || q.RightGroup < 1 || q.RightGroup > 5 {
			t.Fatalf("operands out of range: %+v", q)
		}
		if q.Operation != model.OpAdd {
			t.Fatalf("expected addition, got %q", q.Operation)
		}
		if q.CorrectAnswer != q.LeftGroup+q.RightGroup {
			t.Fatalf("wrong answer: %+v", q)
		}
	}
}

func TestQuestionMatchesGameType(t *testing.T) {
	g := NewWithSource(rand.NewSource(3))
	if _, ok := g.Question(model.Settings{GameType: model.GameArithmetic, Difficulty: model.DifficultyEasy}).(model.ArithmeticQuestion); !ok {
		t.Fatalf("expected arithmetic question")
	}
	if _, ok := g.Question(model.Settings{GameType: model.GameCounting, Difficulty: model.DifficultyEasy}).(model.CountingQuestion); !ok {
		t.Fatalf("expected counting question")
	}
}

func TestQuestionIDAndTimestamp(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	g := NewWithSource(rand.NewSource(4), WithClock(func() time.Time { return fixed }))
	q := g.Counting(model.DifficultyEasy)
	if !q.TimeStarted.Equal(fixed) {
		t.Fatalf("expected timestamp %v, got %v", fixed, q.TimeStarted)
	}
	prefix := "q_1700000000123_"
	if !strings.HasPrefix(q.ID, prefix) || len(q.ID) != len(prefix)+idSuffixLen {
		t.Fatalf("unexpected id %q", q.ID)
	}
	other := g.Counting(model.DifficultyEasy)
	if other.ID == q.ID {
		t.Fatalf("expected distinct ids, got %q twice", q.ID)
	}
}

func TestWeakSetBiasesCounts(t *testing.T) {
	g := NewWithSource(rand.NewSource(5))
	g.SetWeakSet(map[int]struct{}{7: {}}, 20)
	hits := 0
	const n = 1000
	for i := 0; i < n; i++ {
		q := g.Counting(model.DifficultyMedium)
		if q.DotCount < 3 || q.DotCount > 7 {
			t.Fatalf("dot count %d escaped range", q.DotCount)
		}
		if q.DotCount == 7 {
			hits++
		}
	}
	// Weight 21 of 25 total.
	if hits < n*3/4 {
		t.Fatalf("expected weak count to dominate, got %d/%d", hits, n)
	}
}

func TestSameSeedSameQuestions(t *testing.T) {
	fixed := time.Unix(0, 0)
	a := NewWithSource(rand.NewSource(99), WithClock(func() time.Time { return fixed }))
	b := NewWithSource(rand.NewSource(99), WithClock(func() time.Time { return fixed }))
	for i := 0; i < 10; i++ {
		qa := a.Counting(model.DifficultyHard)
		qb := b.Counting(model.DifficultyHard)
		if qa.ID != qb.ID || qa.DotCount != qb.DotCount {
			t.Fatalf("question %d differs: %+v vs %+v", i, qa, qb)
		}
	}
}
