package wgtrain

import (
	"math"
	"math/rand"
	"testing"
)

func newHostTrainer(t *testing.T, spec ModelSpec) *Trainer {
	t.Helper()
	tr := NewTrainer(NewHostDevice())
	tr.Rand = rand.New(rand.NewSource(42))
	if err := tr.Init(spec); err != nil {
		t.Fatalf("Init(%s): %v", spec, err)
	}
	t.Cleanup(tr.Close)
	return tr
}

func constSnapshot(spec ModelSpec, v float32) WeightsSnapshot {
	s := WeightsSnapshot{
		Meta:      spec,
		WeightsIH: make([]float32, spec.WeightsIHLen()),
		WeightsHO: make([]float32, spec.WeightsHOLen()),
	}
	for i := range s.WeightsIH {
		s.WeightsIH[i] = v
	}
	for i := range s.WeightsHO {
		s.WeightsHO[i] = v
	}
	return s
}

func mustExport(t *testing.T, tr *Trainer) WeightsSnapshot {
	t.Helper()
	snap, err := tr.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	return snap
}

func sameWeights(a, b WeightsSnapshot) bool {
	if a.Meta != b.Meta || len(a.WeightsIH) != len(b.WeightsIH) || len(a.WeightsHO) != len(b.WeightsHO) {
		return false
	}
	for i := range a.WeightsIH {
		if a.WeightsIH[i] != b.WeightsIH[i] {
			return false
		}
	}
	for i := range a.WeightsHO {
		if a.WeightsHO[i] != b.WeightsHO[i] {
			return false
		}
	}
	return true
}

func sig64(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// referenceEpoch applies one in-order pass over samples in float64 using
// the update order of the training program.
func referenceEpoch(spec ModelSpec, wIH, wHO []float64, samples []Sample, lr float64) {
	H, M, K := spec.InputSize, spec.HiddenSize, spec.OutputSize
	for _, s := range samples {
		x := padRow(s.Input, H)
		y := padRow(s.Label, K)
		h := make([]float64, M)
		for j := 0; j < M; j++ {
			var sm float64
			for i := 0; i < H; i++ {
				sm += float64(x[i]) * wIH[j*H+i]
			}
			h[j] = sig64(sm)
		}
		o := make([]float64, K)
		for k := 0; k < K; k++ {
			var sm float64
			for j := 0; j < M; j++ {
				sm += h[j] * wHO[k*M+j]
			}
			o[k] = sig64(sm)
		}
		for k := 0; k < K; k++ {
			gO := (o[k] - float64(y[k])) * o[k] * (1 - o[k])
			for j := 0; j < M; j++ {
				wHO[k*M+j] -= lr * gO * h[j]
				gH := gO * wHO[k*M+j] * h[j] * (1 - h[j])
				for i := 0; i < H; i++ {
					wIH[j*H+i] -= lr * gH * float64(x[i])
				}
			}
		}
	}
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func assertClose(t *testing.T, name string, got []float32, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d values, got %d", name, len(want), len(got))
	}
	for i := range got {
		if math.Abs(float64(got[i])-want[i]) > tol {
			t.Errorf("%s[%d] = %.8f, expected %.8f", name, i, got[i], want[i])
		}
	}
}
