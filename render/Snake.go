// Package render draws game snapshots as images. Renderers are
// observers: they consume snapshots published by training sessions and
// never feed back into training.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/floats"

	"github.com/samuelfneumann/gamerl/agent"
	"github.com/samuelfneumann/gamerl/environment/snake"
)

// DefaultCellSize is the side length of a board cell in pixels
const DefaultCellSize int = 40

// Snake draws a Snake snapshot with cellSize pixels per board cell. The
// head is orange, the body blue and fruits green. If the snapshot holds
// one score per action, each score is written on the cell which the
// action moves the head to, shaded greener the higher the score.
func Snake(s agent.Snapshot, cellSize int) (image.Image, error) {
	if s.Snake == nil {
		return nil, fmt.Errorf("snake: snapshot holds no snake state")
	}
	if s.Height <= 0 || s.Width <= 0 || cellSize <= 0 {
		return nil, fmt.Errorf("snake: dimensions must be positive "+
			"\n\thave(%vx%v, cell %v)", s.Height, s.Width, cellSize)
	}
	if len(s.Scores) != 0 && len(s.Scores) != snake.NumActions {
		return nil, fmt.Errorf("snake: expected one score per action "+
			"\n\twant(%v) \n\thave(%v)", snake.NumActions, len(s.Scores))
	}

	cell := float64(cellSize)
	w, h := float64(s.Width)*cell, float64(s.Height)*cell
	dc := gg.NewContext(s.Width*cellSize, s.Height*cellSize)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Grid
	dc.SetHexColor("#aaaaaa")
	dc.SetLineWidth(1)
	for i := 0; i <= s.Height; i++ {
		dc.DrawLine(0, float64(i)*cell, w, float64(i)*cell)
	}
	for i := 0; i <= s.Width; i++ {
		dc.DrawLine(float64(i)*cell, 0, float64(i)*cell, h)
	}
	dc.Stroke()

	for i, p := range s.Snake.Snake {
		x, y := float64(p.X)*cell, float64(p.Y)*cell
		if i == 0 {
			dc.SetHexColor("#ffa500")
		} else {
			dc.SetRGB(0, 0, 1)
		}
		dc.DrawRectangle(x, y, cell, cell)
		dc.Fill()

		if i == 0 {
			dc.SetRGB(0, 0, 0)
			dc.SetLineWidth(2)
			dc.DrawLine(x+0.25*cell, y+0.5*cell, x+0.75*cell, y+0.5*cell)
			dc.Stroke()
			dc.DrawArc(x+0.5*cell, y+0.5*cell, 0.25*cell, 0, math.Pi)
			dc.Stroke()
		}
	}

	for _, p := range s.Snake.Fruits {
		x, y := float64(p.X)*cell, float64(p.Y)*cell
		dc.SetRGB(0, 0.5, 0)
		dc.DrawRectangle(x, y, cell, cell)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(2)
		dc.DrawCircle(x+0.5*cell, y+0.5*cell, 0.25*cell)
		dc.Stroke()
	}

	if len(s.Scores) > 0 && len(s.Snake.Snake) > 0 {
		drawScores(dc, s, cell)
	}

	return dc.Image(), nil
}

// ActionCell returns the cell which action a moves the snake's head to
func ActionCell(s agent.Snapshot, a snake.Action) snake.Point {
	return s.Snake.Head().Add(s.Heading.Turn(a).Delta())
}

// drawScores overlays the per-action scores of s on the cells next to
// the head. Cells off the board are clipped.
func drawScores(dc *gg.Context, s agent.Snapshot, cell float64) {
	lo, hi := floats.Min(s.Scores), floats.Max(s.Scores)

	for a, q := range s.Scores {
		norm := 1.0
		if hi > lo {
			norm = (q - lo) / (hi - lo)
		}

		p := ActionCell(s, snake.Action(a))
		x, y := float64(p.X)*cell, float64(p.Y)*cell

		dc.SetRGBA(1-norm, 1, 1-norm, 0.2)
		dc.DrawRectangle(x, y, cell, cell)
		dc.Fill()

		shade := ((1-norm)*100 + 64) / 255
		dc.SetRGB(shade, shade, shade)
		dc.DrawString(fmt.Sprintf("%.1f", q), x+0.15*cell, y+0.55*cell)
	}
}
