// Package snake implements the Snake game simulator on a rectangular
// grid. The snake moves one cell per step, grows when it eats a fruit and
// dies when it leaves the board or runs into itself.
package snake

import (
	"fmt"

	"golang.org/x/exp/rand"

	ts "github.com/samuelfneumann/gamerl/timestep"
)

const (
	DefaultHeight    int = 16
	DefaultWidth     int = 16
	DefaultNumFruits int = 1
	DefaultInitLen   int = 4

	NoFruitReward float64 = -0.2
	FruitReward   float64 = 10
	DeathReward   float64 = -10
)

// Config configures a Game
type Config struct {
	Height    int `json:"height"`
	Width     int `json:"width"`
	NumFruits int `json:"num_fruits"`
	InitLen   int `json:"init_len"`

	NoFruitReward float64 `json:"no_fruit_reward"`
	FruitReward   float64 `json:"fruit_reward"`
	DeathReward   float64 `json:"death_reward"`
}

// DefaultConfig returns the default game configuration
func DefaultConfig() Config {
	return Config{
		Height:        DefaultHeight,
		Width:         DefaultWidth,
		NumFruits:     DefaultNumFruits,
		InitLen:       DefaultInitLen,
		NoFruitReward: NoFruitReward,
		FruitReward:   FruitReward,
		DeathReward:   DeathReward,
	}
}

// Validate checks that a Config describes a playable game
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"height", c.Height},
		{"width", c.Width},
		{"numFruits", c.NumFruits},
		{"initLen", c.InitLen},
	}
	for _, v := range positive {
		if v.value <= 0 {
			return fmt.Errorf("validate: %v must be a positive integer "+
				"\n\twant(>0) \n\thave(%v)", v.name, v.value)
		}
	}

	if c.InitLen > c.Height && c.InitLen > c.Width {
		return fmt.Errorf("validate: initLen does not fit on the board "+
			"\n\twant(<= %v) \n\thave(%v)", max(c.Height, c.Width), c.InitLen)
	}

	if c.InitLen >= c.Height*c.Width {
		return fmt.Errorf("validate: board has no room for fruit "+
			"\n\twant(initLen < %v) \n\thave(%v)", c.Height*c.Width,
			c.InitLen)
	}
	return nil
}

// Game is a single Snake game. A Game is not safe for concurrent use.
type Game struct {
	config  Config
	rng     *rand.Rand
	snake   []Point // head first
	fruits  []Point
	heading Direction
	steps   int
}

// New creates a new Game and resets it
func New(c Config, seed uint64) (*Game, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	g := &Game{
		config: c,
		rng:    rand.New(rand.NewSource(seed)),
	}
	g.Reset()

	return g, nil
}

// Config returns the configuration of the game
func (g *Game) Config() Config {
	return g.config
}

// Heading returns the direction the snake is currently travelling in
func (g *Game) Heading() Direction {
	return g.heading
}

// State returns a copy of the current game state
func (g *Game) State() State {
	s := State{Snake: g.snake, Fruits: g.fruits}
	return s.Clone()
}

// Reset places a straight snake of the configured initial length at a
// random position with a random heading, then places the fruits on
// random empty cells.
func (g *Game) Reset() ts.TimeStep[State] {
	g.steps = 0
	g.fruits = g.fruits[:0]

	// Headings for which a straight snake fits on the board
	feasible := make([]Direction, 0, 4)
	for _, d := range directions {
		if d.vertical() && g.config.InitLen <= g.config.Height ||
			!d.vertical() && g.config.InitLen <= g.config.Width {
			feasible = append(feasible, d)
		}
	}
	g.heading = feasible[g.rng.Intn(len(feasible))]

	delta := g.heading.Delta()
	yLo, yHi := span(g.config.Height, delta.Y, g.config.InitLen)
	xLo, xHi := span(g.config.Width, delta.X, g.config.InitLen)
	head := Point{
		Y: yLo + g.rng.Intn(yHi-yLo),
		X: xLo + g.rng.Intn(xHi-xLo),
	}

	g.snake = make([]Point, g.config.InitLen)
	for i := range g.snake {
		g.snake[i] = Point{Y: head.Y - i*delta.Y, X: head.X - i*delta.X}
	}

	g.placeFruits(g.config.NumFruits)

	return ts.New(ts.First, 0, g.State(), g.steps)
}

// Step moves the snake one cell after turning it according to the
// relative action a. It returns the resulting TimeStep and whether a
// fruit was eaten.
//
// If the move takes the head off the board or into the snake's own body
// the returned TimeStep is Last, carries the death reward and the
// unchanged state. The game is not mutated in that case.
//
// Step panics if a is not a legal action.
func (g *Game) Step(a Action) (ts.TimeStep[State], bool) {
	if !a.Valid() {
		panic(fmt.Sprintf("step: illegal action %v ∉ (0, 1, 2)", int(a)))
	}

	heading := g.heading.Turn(a)
	head := g.snake[0].Add(heading.Delta())

	if !g.inBounds(head) || g.collides(head) {
		return ts.New(ts.Last, g.config.DeathReward, g.State(), g.steps+1),
			false
	}

	g.steps++
	g.heading = heading
	g.snake = append(g.snake, Point{})
	copy(g.snake[1:], g.snake)
	g.snake[0] = head

	reward := g.config.NoFruitReward
	eaten := false
	if i := indexOf(g.fruits, head); i >= 0 {
		g.fruits = append(g.fruits[:i], g.fruits[i+1:]...)
		g.placeFruits(1)
		reward = g.config.FruitReward
		eaten = true
	} else {
		g.snake = g.snake[:len(g.snake)-1]
	}

	return ts.New(ts.Mid, reward, g.State(), g.steps), eaten
}

// Load installs an explicit state and heading, replacing the current
// game. The state must satisfy every game invariant.
func (g *Game) Load(s State, heading Direction) error {
	if !heading.Valid() {
		return fmt.Errorf("load: illegal heading %v", int(heading))
	}
	if len(s.Snake) == 0 {
		return fmt.Errorf("load: snake cannot be empty")
	}

	occupied := make(map[Point]bool, len(s.Snake)+len(s.Fruits))
	for i, p := range s.Snake {
		if !g.inBounds(p) {
			return fmt.Errorf("load: snake cell out of bounds \n\thave(%v)",
				p)
		}
		if occupied[p] {
			return fmt.Errorf("load: snake overlaps itself at %v", p)
		}
		if i > 0 && !s.Snake[i-1].adjacent(p) {
			return fmt.Errorf("load: snake is not contiguous between %v "+
				"and %v", s.Snake[i-1], p)
		}
		occupied[p] = true
	}

	if len(s.Snake) > 1 && s.Snake[0].Add(heading.Delta()) == s.Snake[1] {
		return fmt.Errorf("load: heading %v points into the snake", heading)
	}

	for _, f := range s.Fruits {
		if !g.inBounds(f) {
			return fmt.Errorf("load: fruit out of bounds \n\thave(%v)", f)
		}
		if occupied[f] {
			return fmt.Errorf("load: fruit at %v overlaps the snake or "+
				"another fruit", f)
		}
		occupied[f] = true
	}

	s = s.Clone()
	g.snake = s.Snake
	g.fruits = s.Fruits
	g.heading = heading
	g.steps = 0

	return nil
}

// RandomAction returns an action chosen uniformly at random
func (g *Game) RandomAction() Action {
	return Action(g.rng.Intn(NumActions))
}

func (g *Game) inBounds(p Point) bool {
	return p.Y >= 0 && p.Y < g.config.Height && p.X >= 0 &&
		p.X < g.config.Width
}

// collides returns whether p lies on the snake, excluding the tail cell
// which is vacated by the same move
func (g *Game) collides(p Point) bool {
	return indexOf(g.snake[:len(g.snake)-1], p) >= 0
}

// placeFruits places up to n fruits on distinct empty cells chosen
// uniformly at random. Fewer are placed if the board runs out of room.
func (g *Game) placeFruits(n int) {
	empty := make([]Point, 0, g.config.Height*g.config.Width)
	for y := 0; y < g.config.Height; y++ {
		for x := 0; x < g.config.Width; x++ {
			p := Point{Y: y, X: x}
			if indexOf(g.snake, p) < 0 && indexOf(g.fruits, p) < 0 {
				empty = append(empty, p)
			}
		}
	}

	for i := 0; i < n && len(empty) > 0; i++ {
		j := g.rng.Intn(len(empty))
		g.fruits = append(g.fruits, empty[j])
		empty[j] = empty[len(empty)-1]
		empty = empty[:len(empty)-1]
	}
}

func (g *Game) String() string {
	return fmt.Sprintf("Snake  |  Length: %v  |  Heading: %v  |  Fruits: %v",
		len(g.snake), g.heading, g.fruits)
}

// span returns the half-open range of head coordinates along an axis of
// size n for which a straight snake of length l moving with velocity d
// along that axis stays on the board
func span(n, d, l int) (int, int) {
	switch d {
	case 1:
		return l - 1, n
	case -1:
		return 0, n - l + 1
	default:
		return 0, n
	}
}

func indexOf(points []Point, p Point) int {
	for i := range points {
		if points[i] == p {
			return i
		}
	}
	return -1
}
