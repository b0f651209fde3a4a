// metrics.go
package wgtrain

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Metrics summarizes how well a snapshot reproduces a set of labels.
type Metrics struct {
	Samples     int     `json:"samples"`
	MSE         float64 `json:"mse"`          // mean over every output value
	BitAccuracy float64 `json:"bit_accuracy"` // fraction of output values on the right side of 0.5
	ExactMatch  float64 `json:"exact_match"`  // fraction of samples with every bit right
}

func (m Metrics) String() string {
	return fmt.Sprintf("samples=%d mse=%.6f bits=%.2f%% exact=%.2f%%",
		m.Samples, m.MSE, m.BitAccuracy*100, m.ExactMatch*100)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// EvaluateSnapshot scores samples against snap with the host forward pass.
func EvaluateSnapshot(snap WeightsSnapshot, samples []Sample) Metrics {
	m := Metrics{Samples: len(samples)}
	if len(samples) == 0 {
		return m
	}
	K := snap.Meta.OutputSize
	diff := make([]float64, K)
	var sqErr float64
	bitsRight, exact := 0, 0
	for _, s := range samples {
		out := Forward(snap, s.Input)
		label := padRow(s.Label, K)

		floats.SubTo(diff, toFloat64(out), toFloat64(label))
		sqErr += floats.Dot(diff, diff)

		all := true
		for k := 0; k < K; k++ {
			if (out[k] > 0.5) == (label[k] > 0.5) {
				bitsRight++
			} else {
				all = false
			}
		}
		if all {
			exact++
		}
	}
	total := float64(len(samples) * K)
	if total > 0 {
		m.MSE = sqErr / total
		m.BitAccuracy = float64(bitsRight) / total
	}
	m.ExactMatch = float64(exact) / float64(len(samples))
	return m
}

// Evaluate exports the trainer's weights once and scores samples on the host.
func Evaluate(t *Trainer, samples []Sample) (Metrics, error) {
	snap, err := t.Export()
	if err != nil {
		return Metrics{}, err
	}
	return EvaluateSnapshot(snap, samples), nil
}

// ComputeAccuracy is the fraction of samples whose strongest output matches
// the strongest label value.
func ComputeAccuracy(snap WeightsSnapshot, samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		if ArgMax(Forward(snap, s.Input)) == ArgMax(padRow(s.Label, snap.Meta.OutputSize)) {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
