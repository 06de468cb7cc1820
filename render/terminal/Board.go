// Package terminal implements a terminal user interface which follows
// a training session through its published events
package terminal

import (
	"fmt"
	"strings"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/environment/snake"
)

// Board characters
const (
	emptyCell = '.'
	bodyCell  = 'o'
	fruitCell = '*'
)

var heads = map[snake.Direction]rune{
	snake.Left:  '<',
	snake.Up:    '^',
	snake.Right: '>',
	snake.Down:  'v',
}

// Board draws the Snake board of s as text, one line per row. The head
// points along the snake's heading. An empty string is returned if s
// holds no Snake state.
func Board(s agent.Snapshot) string {
	if s.Snake == nil || s.Height <= 0 || s.Width <= 0 {
		return ""
	}

	cells := make([][]rune, s.Height)
	for i := range cells {
		cells[i] = []rune(strings.Repeat(string(emptyCell), s.Width))
	}
	set := func(p snake.Point, r rune) {
		if p.Y >= 0 && p.Y < s.Height && p.X >= 0 && p.X < s.Width {
			cells[p.Y][p.X] = r
		}
	}

	for _, p := range s.Snake.Fruits {
		set(p, fruitCell)
	}
	for i := len(s.Snake.Snake) - 1; i >= 0; i-- {
		r := bodyCell
		if i == 0 {
			r = heads[s.Heading]
		}
		set(s.Snake.Snake[i], r)
	}

	var b strings.Builder
	for _, row := range cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// scores formats per-action values in action order
func scores(values []float64) string {
	if len(values) != snake.NumActions {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v=%.2f", snake.Action(i), v)
	}
	return strings.Join(parts, "  ")
}
