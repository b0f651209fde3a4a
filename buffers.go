package wgtrain

import (
	"fmt"
	"math/rand"
)

// weightBuffers are the long-lived allocations owned by one trainer.
type weightBuffers struct {
	weightsIH    Buffer
	weightsHO    Buffer
	learningRate Buffer
}

func (b *weightBuffers) release() {
	releaseAll(b.weightsIH, b.weightsHO, b.learningRate)
	*b = weightBuffers{}
}

// randomWeights draws n values uniformly from [-0.05, 0.05].
func randomWeights(n int, rng *rand.Rand) []float32 {
	w := make([]float32, n)
	for i := range w {
		var r float32
		if rng != nil {
			r = rng.Float32()
		} else {
			r = rand.Float32()
		}
		w[i] = r*0.1 - 0.05
	}
	return w
}

// allocateWeights creates W_IH, W_HO and the learning-rate cell sized exactly
// to spec and fills both matrices with fresh random weights. Calling it again
// for the same trainer is destructive: the caller releases the old set first.
func allocateWeights(dev Device, spec ModelSpec, rng *rand.Rand) (*weightBuffers, error) {
	b := &weightBuffers{}
	var err error

	b.weightsIH, err = dev.NewBuffer("WeightsIH", uint64(spec.WeightsIHLen())*4,
		UsageStorage|UsageCopySrc|UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("%w: weightsIH for %s: %w", ErrAllocation, spec, err)
	}

	b.weightsHO, err = dev.NewBuffer("WeightsHO", uint64(spec.WeightsHOLen())*4,
		UsageStorage|UsageCopySrc|UsageCopyDst)
	if err != nil {
		b.release()
		return nil, fmt.Errorf("%w: weightsHO for %s: %w", ErrAllocation, spec, err)
	}

	b.learningRate, err = dev.NewBuffer("LearningRate", 4, UsageUniform|UsageCopyDst)
	if err != nil {
		b.release()
		return nil, fmt.Errorf("%w: learning rate cell: %w", ErrAllocation, err)
	}

	if err := dev.WriteBuffer(b.weightsIH, randomWeights(spec.WeightsIHLen(), rng)); err != nil {
		b.release()
		return nil, err
	}
	if err := dev.WriteBuffer(b.weightsHO, randomWeights(spec.WeightsHOLen(), rng)); err != nil {
		b.release()
		return nil, err
	}
	return b, nil
}
