package wgtrain

import (
	"math"

	"github.com/chewxy/math32"
)

// sigmoid32 matches the kernel's f32 sig().
func sigmoid32(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// dsigmoid32 is the derivative expressed through the activation y.
func dsigmoid32(y float32) float32 {
	return y * (1 - y)
}

// sigmoid is the float64 variant the host evaluator accumulates in.
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
