// Package generator builds randomized questions.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/subitise/internal/dots"
	"github.com/verte-zerg/subitise/internal/model"
)

const (
	alternativeChance = 0.3
	operandMin        = 1
	operandMax        = 5
	idSuffixLen       = 9
	base36            = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator produces counting and arithmetic questions.
type Generator struct {
	rnd  *rand.Rand
	dots *dots.Generator
	now  func() time.Time

	weakSet    map[int]struct{}
	weakFactor float64
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source used for question timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithSeparation enables enforced spacing between dot clusters.
func WithSeparation(enabled bool) Option {
	return func(g *Generator) {
		g.dots = dots.New(g.rnd, dots.WithSeparation(enabled))
	}
}

// New returns a Generator seeded with the current time.
func New(opts ...Option) *Generator {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()), opts...)
}

// NewWithSource returns a Generator drawing from src.
func NewWithSource(src rand.Source, opts ...Option) *Generator {
	rnd := rand.New(src)
	g := &Generator{
		rnd:  rnd,
		dots: dots.New(rnd),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetWeakSet biases counting questions toward the given dot counts. An
// empty set restores the uniform draw.
func (g *Generator) SetWeakSet(weak map[int]struct{}, factor float64) {
	g.weakSet = weak
	g.weakFactor = factor
}

// Question builds a question of the variant selected by the settings.
func (g *Generator) Question(settings model.Settings) model.Question {
	switch settings.GameType {
	case model.GameArithmetic:
		return g.Arithmetic(settings.Difficulty)
	default:
		return g.Counting(settings.Difficulty)
	}
}

// Counting draws a dot count from the difficulty range and lays it out.
func (g *Generator) Counting(difficulty model.Difficulty) model.CountingQuestion {
	count := g.drawCount(difficulty.DotRange())
	var positions []model.DotPosition
	if g.rnd.Float64() < alternativeChance {
		positions = g.dots.GenerateAlternative(count)
	} else {
		positions = g.dots.Generate(count)
	}
	return model.CountingQuestion{
		ID:          g.newID(),
		DotCount:    count,
		Dots:        positions,
		TimeStarted: g.now(),
	}
}

// Arithmetic builds an addition question. Operands do not depend on difficulty.
func (g *Generator) Arithmetic(_ model.Difficulty) model.ArithmeticQuestion {
	left := g.intBetween(operandMin, operandMax)
	right := g.intBetween(operandMin, operandMax)
	op := model.OpAdd
	return model.ArithmeticQuestion{
		ID:            g.newID(),
		LeftGroup:     left,
		RightGroup:    right,
		Operation:     op,
		CorrectAnswer: op.Apply(left, right),
		TimeStarted:   g.now(),
	}
}

func (g *Generator) drawCount(r model.Range) int {
	if len(g.weakSet) == 0 || g.weakFactor <= 0 {
		return g.intBetween(r.Min, r.Max)
	}
	weights := make([]float64, 0, r.Max-r.Min+1)
	total := 0.0
	for n := r.Min; n <= r.Max; n++ {
		w := 1.0
		if _, ok := g.weakSet[n]; ok {
			w += g.weakFactor
		}
		weights = append(weights, w)
		total += w
	}
	pick := g.rnd.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if pick < acc {
			return r.Min + i
		}
	}
	return r.Max
}

func (g *Generator) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rnd.Intn(hi-lo+1)
}

func (g *Generator) newID() string {
	var b strings.Builder
	for i := 0; i < idSuffixLen; i++ {
		b.WriteByte(base36[g.rnd.Intn(len(base36))])
	}
	return fmt.Sprintf("q_%d_%s", g.now().UnixMilli(), b.String())
}
