package snake

import "fmt"

// Point is a cell on the board. Y grows downwards, so moving up
// decrements Y.
type Point struct {
	Y int `json:"y"`
	X int `json:"x"`
}

// Add returns p translated by q
func (p Point) Add(q Point) Point {
	return Point{Y: p.Y + q.Y, X: p.X + q.X}
}

func (p Point) adjacent(q Point) bool {
	dy, dx := p.Y-q.Y, p.X-q.X
	return dy*dy+dx*dx == 1
}

func (p Point) String() string {
	return fmt.Sprintf("[%d, %d]", p.Y, p.X)
}

// Direction is an absolute heading on the board
type Direction int

const (
	Left Direction = iota
	Up
	Right
	Down
)

var directions = [...]Direction{Left, Up, Right, Down}

// Valid returns whether d is one of the four headings
func (d Direction) Valid() bool {
	return d >= Left && d <= Down
}

// Turn returns the heading after taking relative action a. Going
// straight keeps the heading; a snake can never reverse.
func (d Direction) Turn(a Action) Direction {
	switch a {
	case TurnLeft:
		return (d + 3) % 4
	case TurnRight:
		return (d + 1) % 4
	default:
		return d
	}
}

// Delta returns the unit move along heading d
func (d Direction) Delta() Point {
	switch d {
	case Left:
		return Point{Y: 0, X: -1}
	case Up:
		return Point{Y: -1, X: 0}
	case Right:
		return Point{Y: 0, X: 1}
	default:
		return Point{Y: 1, X: 0}
	}
}

func (d Direction) vertical() bool {
	return d == Up || d == Down
}

func (d Direction) String() string {
	switch d {
	case Left:
		return "Left"
	case Up:
		return "Up"
	case Right:
		return "Right"
	case Down:
		return "Down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Action is a move relative to the current heading
type Action int

const (
	GoStraight Action = iota
	TurnLeft
	TurnRight
)

// NumActions is the number of legal actions
const NumActions int = 3

// Actions returns all legal actions
func Actions() []Action {
	return []Action{GoStraight, TurnLeft, TurnRight}
}

// Valid returns whether a is a legal action
func (a Action) Valid() bool {
	return a >= GoStraight && a <= TurnRight
}

func (a Action) String() string {
	switch a {
	case GoStraight:
		return "Straight"
	case TurnLeft:
		return "Left"
	case TurnRight:
		return "Right"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// State is an immutable snapshot of a game. Snake is ordered head first.
type State struct {
	Snake  []Point `json:"snake"`
	Fruits []Point `json:"fruits"`
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	return State{
		Snake:  append([]Point(nil), s.Snake...),
		Fruits: append([]Point(nil), s.Fruits...),
	}
}

// Head returns the head of the snake
func (s State) Head() Point {
	return s.Snake[0]
}

// Channels is the number of channels in an encoded state
const Channels int = 2

// Encode converts states into a dense NCHW tensor backing of shape
// (len(states), Channels, height, width). Channel 0 marks the snake with
// 2 at the head and 1 on the body; channel 1 marks fruits with 1.
func Encode(height, width int, states ...State) []float64 {
	plane := height * width
	out := make([]float64, len(states)*Channels*plane)

	for n, s := range states {
		snake := out[n*Channels*plane : (n*Channels+1)*plane]
		fruit := out[(n*Channels+1)*plane : (n*Channels+2)*plane]

		for i, p := range s.Snake {
			if i == 0 {
				snake[p.Y*width+p.X] = 2
			} else {
				snake[p.Y*width+p.X] = 1
			}
		}
		for _, p := range s.Fruits {
			fruit[p.Y*width+p.X] = 1
		}
	}
	return out
}
