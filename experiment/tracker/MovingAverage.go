package tracker

import "gonum.org/v1/gonum/floats"

// DefaultWindow is the number of recent episodes averaged when judging
// training progress
const DefaultWindow int = 100

// MovingAverage is the mean of the most recent values appended to it
// over a fixed window. Slots of the window which have not been filled
// yet count as zero, so the average of a partial window is scaled down.
type MovingAverage struct {
	buffer []float64
	next   int
	n      int
}

// NewMovingAverage returns a MovingAverage over the last window values
func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = DefaultWindow
	}
	return &MovingAverage{buffer: make([]float64, window)}
}

// Append adds a value, evicting the oldest value once the window is full
func (m *MovingAverage) Append(x float64) {
	m.buffer[m.next] = x
	m.next = (m.next + 1) % len(m.buffer)
	if m.n < len(m.buffer) {
		m.n++
	}
}

// Average returns the sum of the values in the window divided by the
// window size
func (m *MovingAverage) Average() float64 {
	return floats.Sum(m.buffer) / float64(len(m.buffer))
}

// Len returns the number of values in the window
func (m *MovingAverage) Len() int {
	return m.n
}

// Full returns whether the window is full
func (m *MovingAverage) Full() bool {
	return m.n == len(m.buffer)
}
