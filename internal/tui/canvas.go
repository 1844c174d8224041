package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/subitise/internal/dots"
	"github.com/verte-zerg/subitise/internal/model"
)

const (
	canvasCols = 24
	canvasRows = 12
	dotGlyph   = "●"
	chipGlyph  = "●"
)

type cell struct {
	row int
	col int
}

// layoutDots maps percent coordinates onto a cols x rows grid. Dots that
// land on an occupied cell move to the nearest free one so every dot stays
// visible.
func layoutDots(positions []model.DotPosition, cols, rows int) map[cell]string {
	out := make(map[cell]string, len(positions))
	for _, p := range positions {
		c := cell{row: scale(p.Y, rows), col: scale(p.X, cols)}
		if _, taken := out[c]; taken {
			c = nearestFree(out, c, cols, rows)
		}
		out[c] = p.Color
	}
	return out
}

func scale(pct float64, n int) int {
	if n <= 1 {
		return 0
	}
	v := int(pct/100*float64(n-1) + 0.5)
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return n - 1
	}
	return v
}

func nearestFree(taken map[cell]string, from cell, cols, rows int) cell {
	for radius := 1; radius < cols+rows; radius++ {
		for dr := -radius; dr <= radius; dr++ {
			for dc := -radius; dc <= radius; dc++ {
				if abs(dr) != radius && abs(dc) != radius {
					continue
				}
				c := cell{row: from.row + dr, col: from.col + dc}
				if c.row < 0 || c.row >= rows || c.col < 0 || c.col >= cols {
					continue
				}
				if _, ok := taken[c]; !ok {
					return c
				}
			}
		}
	}
	return from
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// renderDots draws a counting question. Each grid cell is two columns wide
// to keep the aspect ratio close to square.
func renderDots(positions []model.DotPosition, cols, rows int) string {
	grid := layoutDots(positions, cols, rows)
	lines := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		var b strings.Builder
		for c := 0; c < cols; c++ {
			color, ok := grid[cell{row: r, col: c}]
			if !ok {
				b.WriteString("  ")
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(dotGlyph))
			b.WriteString(" ")
		}
		lines = append(lines, b.String())
	}
	return canvasStyle.Render(strings.Join(lines, "\n"))
}

func renderChips(n int, color string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	chips := make([]string, n)
	for i := range chips {
		chips[i] = style.Render(chipGlyph)
	}
	return strings.Join(chips, " ")
}

// renderArithmetic draws the two chip groups with the operator between them.
func renderArithmetic(q model.ArithmeticQuestion) string {
	left := renderChips(q.LeftGroup, dots.Palette[0])
	right := renderChips(q.RightGroup, dots.Palette[1])
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		groupStyle.Render(left),
		operatorStyle.Render(" "+string(q.Operation)+" "),
		groupStyle.Render(right),
		operatorStyle.Render(" = ?"),
	)
	return canvasStyle.Render(line)
}

// answerLine renders the typed answer padded to a fixed width.
func answerLine(input string, width int) string {
	shown := input
	if shown == "" {
		shown = "_"
	}
	return "Answer: " + answerStyle.Render(runewidth.FillRight(shown, width))
}
