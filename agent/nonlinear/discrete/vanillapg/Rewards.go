package vanillapg

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/gamerl/utils/floatutils"
)

// Gradients maps the name of each learnable parameter to its flattened
// gradient
type Gradients map[string][]float64

// DiscountRewards returns the discounted return from each step of a
// game: G_i = r_i + rate * G_{i+1}
func DiscountRewards(rewards []float64, rate float64) []float64 {
	return floatutils.DiscountCumSum(rewards, rate)
}

// DiscountAndNormalizeRewards discounts the rewards of each game and
// then normalizes all discounted rewards using the mean and population
// standard deviation over every step of every game. If all discounted
// rewards are equal they are only centred.
func DiscountAndNormalizeRewards(games [][]float64,
	rate float64) [][]float64 {
	discounted := make([][]float64, len(games))
	var concatenated []float64
	for i, rewards := range games {
		discounted[i] = DiscountRewards(rewards, rate)
		concatenated = append(concatenated, discounted[i]...)
	}
	if len(concatenated) == 0 {
		return discounted
	}

	mean, std := stat.PopMeanStdDev(concatenated, nil)
	for _, d := range discounted {
		floats.AddConst(-mean, d)
		if std > 0 {
			floats.Scale(1/std, d)
		}
	}
	return discounted
}

// ScaleAndAverageGradients scales the gradient of each step of each game
// by that step's normalized reward and averages the scaled gradients
// over all steps of all games
func ScaleAndAverageGradients(grads [][]Gradients,
	normalized [][]float64) (Gradients, error) {
	if len(grads) != len(normalized) {
		return nil, fmt.Errorf("scaleAndAverageGradients: number of games "+
			"\n\twant(%v) \n\thave(%v)", len(normalized), len(grads))
	}

	var avg Gradients
	steps := 0
	for g := range grads {
		if len(grads[g]) != len(normalized[g]) {
			return nil, fmt.Errorf("scaleAndAverageGradients: game %v: "+
				"number of steps \n\twant(%v) \n\thave(%v)", g,
				len(normalized[g]), len(grads[g]))
		}

		for s, step := range grads[g] {
			if avg == nil {
				avg = make(Gradients, len(step))
				for name, grad := range step {
					avg[name] = make([]float64, len(grad))
				}
			}
			if len(step) != len(avg) {
				return nil, fmt.Errorf("scaleAndAverageGradients: game %v "+
					"step %v: parameters \n\twant(%v) \n\thave(%v)", g, s,
					names(avg), names(step))
			}

			for name, grad := range step {
				sum, ok := avg[name]
				if !ok {
					return nil, fmt.Errorf("scaleAndAverageGradients: game "+
						"%v step %v: unknown parameter %v", g, s, name)
				}
				if len(sum) != len(grad) {
					return nil, fmt.Errorf("scaleAndAverageGradients: "+
						"parameter %v shape mismatch \n\twant(%v) "+
						"\n\thave(%v)", name, len(sum), len(grad))
				}
				floats.AddScaled(sum, normalized[g][s], grad)
			}
			steps++
		}
	}

	if steps == 0 {
		return nil, fmt.Errorf("scaleAndAverageGradients: no steps")
	}
	for _, sum := range avg {
		floats.Scale(1/float64(steps), sum)
	}
	return avg, nil
}

func names(g Gradients) []string {
	n := make([]string, 0, len(g))
	for name := range g {
		n = append(n, name)
	}
	sort.Strings(n)
	return n
}
