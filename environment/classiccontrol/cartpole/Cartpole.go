// Package cartpole implements the Cart-Pole classic control simulator
package cartpole

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	env "github.com/samuelfneumann/gamerl/environment"
)

const (
	// Physical constants
	Gravity    float64 = 9.8
	CartMass   float64 = 1.0
	PoleMass   float64 = 0.1
	Length     float64 = 0.5
	ForceMag   float64 = 10.0 // Magnification of force applied
	Tau        float64 = 0.02 // seconds between state updates
	CartWidth  float64 = 0.2
	CartHeight float64 = 0.1

	// Number of state variables: [x, ẋ, θ, θ̇]
	StateSize int = 4

	// Episode ends when the cart leaves ±XThreshold
	XThreshold float64 = 2.4

	// Bounds (+/-) on the random starting state
	StartPosition        float64 = 0.5
	StartSpeed           float64 = 0.5
	StartAngle           float64 = 6.0 / 360 * 2 * math.Pi
	StartAngularVelocity float64 = 0.25
)

// Physics holds the physical constants of the simulation
type Physics struct {
	Gravity        float64 `json:"gravity"`
	CartMass       float64 `json:"cart_mass"`
	PoleMass       float64 `json:"pole_mass"`
	Length         float64 `json:"length"`
	ForceMag       float64 `json:"force_mag"`
	Tau            float64 `json:"tau"`
	XThreshold     float64 `json:"x_threshold"`
	ThetaThreshold float64 `json:"theta_threshold"`

	// Geometry used only for rendering
	CartWidth  float64 `json:"cart_width"`
	CartHeight float64 `json:"cart_height"`
}

// DefaultPhysics returns the standard Cart-Pole constants
func DefaultPhysics() Physics {
	return Physics{
		Gravity:        Gravity,
		CartMass:       CartMass,
		PoleMass:       PoleMass,
		Length:         Length,
		ForceMag:       ForceMag,
		Tau:            Tau,
		XThreshold:     XThreshold,
		ThetaThreshold: FailAngle,
		CartWidth:      CartWidth,
		CartHeight:     CartHeight,
	}
}

// TotalMass returns the mass of the cart and pole together
func (p Physics) TotalMass() float64 {
	return p.CartMass + p.PoleMass
}

// PoleMoment returns the pole's mass times its length
func (p Physics) PoleMoment() float64 {
	return p.PoleMass * p.Length
}

// Validate checks that all physical constants are sensible
func (p Physics) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"cart mass", p.CartMass},
		{"pole mass", p.PoleMass},
		{"length", p.Length},
		{"tau", p.Tau},
		{"x threshold", p.XThreshold},
		{"theta threshold", p.ThetaThreshold},
	}
	for _, v := range positive {
		if v.value <= 0 {
			return fmt.Errorf("validate: %v must be positive \n\twant(>0) "+
				"\n\thave(%v)", v.name, v.value)
		}
	}
	return nil
}

// StartBounds returns the default box from which starting states are drawn
func StartBounds() []r1.Interval {
	return []r1.Interval{
		{Min: -StartPosition, Max: StartPosition},
		{Min: -StartSpeed, Max: StartSpeed},
		{Min: -StartAngle, Max: StartAngle},
		{Min: -StartAngularVelocity, Max: StartAngularVelocity},
	}
}

// NewStarter returns a Starter which draws starting states uniformly
// from StartBounds
func NewStarter(seed uint64) env.Starter {
	return env.NewUniformStarter(StartBounds(), seed)
}

// CartPole implements the classic Cart-Pole system. A pole is attached
// by an unactuated joint to a cart which moves along a frictionless
// track. The state is [x, ẋ, θ, θ̇] where θ = 0 is upright.
//
// Actions are bang-bang: any action > 0 pushes the cart right with
// ForceMag, otherwise it is pushed left.
type CartPole struct {
	env.Starter
	physics Physics
	ender   env.Ender

	x, xDot, theta, thetaDot float64
}

// New constructs a new CartPole and draws a random starting state
func New(p Physics, s env.Starter) (*CartPole, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("new: starter cannot be nil")
	}

	ender, err := env.NewIntervalLimit(
		[]r1.Interval{
			{Min: -p.XThreshold, Max: p.XThreshold},
			{Min: -p.ThetaThreshold, Max: p.ThetaThreshold},
		},
		[]int{0, 2},
	)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	c := &CartPole{Starter: s, physics: p, ender: ender}
	c.SetRandomState()

	return c, nil
}

// SetRandomState sets the state to one drawn from the Starter
func (c *CartPole) SetRandomState() {
	start := c.Start()
	c.SetState(start.AtVec(0), start.AtVec(1), start.AtVec(2), start.AtVec(3))
}

// SetState sets the system to an explicit state
func (c *CartPole) SetState(x, xDot, theta, thetaDot float64) {
	c.x, c.xDot, c.theta, c.thetaDot = x, xDot, theta, thetaDot
}

// State returns the current state [x, ẋ, θ, θ̇]
func (c *CartPole) State() *mat.VecDense {
	return mat.NewVecDense(StateSize, []float64{c.x, c.xDot, c.theta, c.thetaDot})
}

// Physics returns the physical constants of the system
func (c *CartPole) Physics() Physics {
	return c.physics
}

// Update advances the simulation by one Euler step of length Tau under
// the force selected by action, returning whether the new state is
// terminal
func (c *CartPole) Update(action float64) bool {
	force := -c.physics.ForceMag
	if action > 0 {
		force = c.physics.ForceMag
	}

	cosTheta := math.Cos(c.theta)
	sinTheta := math.Sin(c.theta)

	totalMass := c.physics.TotalMass()
	poleMoment := c.physics.PoleMoment()

	temp := (force + poleMoment*c.thetaDot*c.thetaDot*sinTheta) / totalMass
	thAcc := (c.physics.Gravity*sinTheta - cosTheta*temp) /
		(c.physics.Length * (4.0/3.0 -
			c.physics.PoleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMoment*thAcc*cosTheta/totalMass

	// Euler kinematic integration
	tau := c.physics.Tau
	c.x += tau * c.xDot
	c.xDot += tau * xAcc
	c.theta += tau * c.thetaDot
	c.thetaDot += tau * thAcc

	return c.IsDone()
}

// IsDone returns whether the cart or pole has left its legal interval
func (c *CartPole) IsDone() bool {
	return c.ender.End(c.State(), 0)
}

func (c *CartPole) String() string {
	msg := "CartPole  |  Position: %v  | Speed: %v  |  Angle: %v" +
		"  |  Angular Velocity: %v"

	return fmt.Sprintf(msg, c.x, c.xDot, c.theta, c.thetaDot)
}
