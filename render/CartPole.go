package render

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/samuelfneumann/gamerl/environment/classiccontrol/cartpole"
)

// Default size of a rendered Cart-Pole image in pixels
const (
	DefaultCartPoleWidth  int = 600
	DefaultCartPoleHeight int = 400
)

// trackDivisions is the number of hatches drawn under the track
const trackDivisions = 40

// CartPole draws the Cart-Pole state [x, ẋ, θ, θ̇] of a system with
// physics p. The horizontal extent of the image spans the legal cart
// positions and the red bars mark their limits.
func CartPole(state []float64, p cartpole.Physics, width,
	height int) (image.Image, error) {
	if len(state) != cartpole.StateSize {
		return nil, fmt.Errorf("cartPole: invalid state size \n\twant(%v) "+
			"\n\thave(%v)", cartpole.StateSize, len(state))
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("cartPole: dimensions must be positive "+
			"\n\thave(%vx%v)", width, height)
	}
	if p.XThreshold <= 0 {
		return nil, fmt.Errorf("cartPole: x threshold must be positive "+
			"\n\thave(%v)", p.XThreshold)
	}

	w, h := float64(width), float64(height)
	x, theta := state[0], state[2]

	scale := w / (2 * p.XThreshold)
	halfW := w / 2
	railY := h * 0.8

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Cart
	cartW, cartH := p.CartWidth*scale, p.CartHeight*scale
	cartX := x*scale + halfW
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawRectangle(cartX-cartW/2, railY-cartH/2, cartW, cartH)
	dc.Stroke()

	wheel := cartH / 4
	for _, offset := range []float64{-1, 1} {
		dc.DrawCircle(cartX-cartW/4*offset, railY+cartH/2+wheel, wheel)
		dc.Stroke()
	}

	// Pole
	angle := theta + math.Pi/2
	topX := halfW + scale*(x+math.Cos(angle)*p.Length)
	topY := railY - scale*(p.CartHeight/2+math.Sin(angle)*p.Length)
	dc.SetHexColor("#ffa500")
	dc.SetLineWidth(6)
	dc.DrawLine(cartX, railY-cartH/2, topX, topY)
	dc.Stroke()

	// Track
	groundY := railY + cartH/2 + wheel*2
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(0, groundY, w, groundY)
	div := w / trackDivisions
	for i := 0; i < trackDivisions; i++ {
		x0 := div * float64(i)
		dc.DrawLine(x0, groundY+div/2, x0+div/2, groundY)
	}
	dc.Stroke()

	// Limits
	limitY := groundY - h/2
	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawLine(1, groundY, 1, limitY)
	dc.DrawLine(w-1, groundY, w-1, limitY)
	dc.Stroke()

	return dc.Image(), nil
}
