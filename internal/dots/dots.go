// Package dots lays out clustered dot patterns for counting questions.
package dots

import (
	"math"
	"math/rand"

	"github.com/verte-zerg/subitise/internal/model"
)

// Shape is the formation of a cluster.
type Shape int

const (
	ShapeLoose Shape = iota
	ShapeTriangle
	ShapeRectangle
)

const (
	centerMin = 20.0
	centerMax = 80.0

	triangleRadius = 8.0
	rectWidth      = 12.0
	rectHeight     = 8.0
	looseJitter    = 15.0

	minClusterDistance = 25.0
	separationAttempts = 20
)

// Palette holds the cluster colors, assigned by cluster creation order.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#FFB347",
	"#98D8C8",
}

type cluster struct {
	id    int
	size  int
	shape Shape
}

// Generator produces dot patterns from an injected random source.
type Generator struct {
	rnd      *rand.Rand
	separate bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeparation enables the cluster separation pass on every pattern.
func WithSeparation(enabled bool) Option {
	return func(g *Generator) {
		g.separate = enabled
	}
}

// New returns a Generator drawing from rnd.
func New(rnd *rand.Rand, opts ...Option) *Generator {
	g := &Generator{rnd: rnd}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate prefers rectangles, then triangles, then loose dots.
func (g *Generator) Generate(count int) []model.DotPosition {
	return g.build(g.partition(count, false))
}

// GenerateAlternative prefers triangles over rectangles.
func (g *Generator) GenerateAlternative(count int) []model.DotPosition {
	return g.build(g.partition(count, true))
}

func (g *Generator) partition(total int, preferTriangles bool) []cluster {
	var clusters []cluster
	remaining := total
	for id := 0; remaining > 0; id++ {
		c := cluster{id: id}
		switch {
		case preferTriangles && remaining >= 3 && g.rnd.Float64() > 0.2:
			c.size, c.shape = 3, ShapeTriangle
		case preferTriangles && remaining >= 4 && g.rnd.Float64() > 0.5:
			c.size, c.shape = 4, ShapeRectangle
		case !preferTriangles && remaining >= 4 && g.rnd.Float64() > 0.3:
			c.size, c.shape = 4, ShapeRectangle
		case !preferTriangles && remaining >= 3 && g.rnd.Float64() > 0.4:
			c.size, c.shape = 3, ShapeTriangle
		default:
			c.size, c.shape = min(remaining, 2), ShapeLoose
		}
		clusters = append(clusters, c)
		remaining -= c.size
	}
	return clusters
}

func (g *Generator) build(clusters []cluster) []model.DotPosition {
	groups := make([][]model.DotPosition, 0, len(clusters))
	for _, c := range clusters {
		groups = append(groups, g.place(c))
	}
	if g.separate {
		groups = Separate(g.rnd, groups)
	}
	var out []model.DotPosition
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}

func (g *Generator) place(c cluster) []model.DotPosition {
	cx := g.centerCoord()
	cy := g.centerCoord()
	color := Palette[c.id%len(Palette)]
	dot := func(x, y float64) model.DotPosition {
		return model.DotPosition{X: x, Y: y, Color: color, ClusterID: c.id}
	}

	switch c.shape {
	case ShapeTriangle:
		out := make([]model.DotPosition, 0, 3)
		for _, deg := range []float64{0, 120, 240} {
			rad := deg * math.Pi / 180
			out = append(out, dot(cx+math.Cos(rad)*triangleRadius, cy+math.Sin(rad)*triangleRadius))
		}
		return out
	case ShapeRectangle:
		hw, hh := rectWidth/2, rectHeight/2
		return []model.DotPosition{
			dot(cx-hw, cy-hh),
			dot(cx+hw, cy-hh),
			dot(cx-hw, cy+hh),
			dot(cx+hw, cy+hh),
		}
	default:
		out := make([]model.DotPosition, 0, c.size)
		for i := 0; i < c.size; i++ {
			out = append(out, dot(
				cx+(g.rnd.Float64()-0.5)*looseJitter,
				cy+(g.rnd.Float64()-0.5)*looseJitter,
			))
		}
		return out
	}
}

func (g *Generator) centerCoord() float64 {
	return centerMin + g.rnd.Float64()*(centerMax-centerMin)
}

// Separate moves clusters that sit closer than the minimum distance to an
// earlier cluster. Each cluster gets a bounded number of re-centering
// attempts; a cluster that never fits keeps its last position.
func Separate(rnd *rand.Rand, clusters [][]model.DotPosition) [][]model.DotPosition {
	placed := make([][]model.DotPosition, 0, len(clusters))
	for _, c := range clusters {
		current := append([]model.DotPosition(nil), c...)
		for attempt := 0; attempt < separationAttempts; attempt++ {
			if !tooClose(current, placed) {
				break
			}
			current = recenter(current,
				centerMin+rnd.Float64()*(centerMax-centerMin),
				centerMin+rnd.Float64()*(centerMax-centerMin))
		}
		placed = append(placed, current)
	}
	return placed
}

// MinClusterDistance returns the smallest distance between two dots of
// different clusters, or +Inf when there are fewer than two clusters.
func MinClusterDistance(positions []model.DotPosition) float64 {
	best := math.Inf(1)
	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			if positions[i].ClusterID == positions[j].ClusterID {
				continue
			}
			if d := distance(positions[i], positions[j]); d < best {
				best = d
			}
		}
	}
	return best
}

func tooClose(c []model.DotPosition, placed [][]model.DotPosition) bool {
	for _, other := range placed {
		for _, a := range c {
			for _, b := range other {
				if distance(a, b) < minClusterDistance {
					return true
				}
			}
		}
	}
	return false
}

func recenter(c []model.DotPosition, x, y float64) []model.DotPosition {
	if len(c) == 0 {
		return c
	}
	var sx, sy float64
	for _, d := range c {
		sx += d.X
		sy += d.Y
	}
	ox, oy := sx/float64(len(c)), sy/float64(len(c))
	out := make([]model.DotPosition, len(c))
	for i, d := range c {
		d.X = d.X - ox + x
		d.Y = d.Y - oy + y
		out[i] = d
	}
	return out
}

func distance(a, b model.DotPosition) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
