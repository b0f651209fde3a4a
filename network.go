package wgtrain

import "fmt"

// ModelSpec is the fixed topology of a trainer: input width, hidden width and
// output width. At the file boundary the hidden width is called nodesPerLayer.
type ModelSpec struct {
	InputSize  int `json:"inputSize"`
	HiddenSize int `json:"nodesPerLayer"`
	OutputSize int `json:"outputSize"`
}

// Valid reports whether every dimension is positive.
func (s ModelSpec) Valid() bool {
	return s.InputSize > 0 && s.HiddenSize > 0 && s.OutputSize > 0
}

// IsZero reports whether s is the zero value (a snapshot without meta).
func (s ModelSpec) IsZero() bool {
	return s == ModelSpec{}
}

// WeightsIHLen is the element count of the input→hidden matrix.
func (s ModelSpec) WeightsIHLen() int { return s.InputSize * s.HiddenSize }

// WeightsHOLen is the element count of the hidden→output matrix.
func (s ModelSpec) WeightsHOLen() int { return s.HiddenSize * s.OutputSize }

// SampleStride is the number of floats one packed sample occupies on the device.
func (s ModelSpec) SampleStride() int { return s.InputSize + s.OutputSize }

func (s ModelSpec) String() string {
	return fmt.Sprintf("%d-%d-%d", s.InputSize, s.HiddenSize, s.OutputSize)
}

// Sample is one supervised example. Input and Label are expected to already
// match the model widths; Train conforms them with the pad/truncate rule.
type Sample struct {
	Input []float32
	Label []float32
}

// WeightsSnapshot is a host copy of both weight matrices tagged with the
// spec that produced them.
//
// WeightsIH is laid out one row per hidden unit (j*InputSize+i), WeightsHO one
// row per output unit (k*HiddenSize+j).
type WeightsSnapshot struct {
	Meta      ModelSpec `json:"meta"`
	WeightsIH []float32 `json:"weightsIH"`
	WeightsHO []float32 `json:"weightsHO"`
}

// checkLengths verifies the flat arrays agree with Meta.
func (w *WeightsSnapshot) checkLengths() error {
	if len(w.WeightsIH) != w.Meta.WeightsIHLen() {
		return fmt.Errorf("%w: weightsIH has %d values, meta %s needs %d",
			ErrShapeMismatch, len(w.WeightsIH), w.Meta, w.Meta.WeightsIHLen())
	}
	if len(w.WeightsHO) != w.Meta.WeightsHOLen() {
		return fmt.Errorf("%w: weightsHO has %d values, meta %s needs %d",
			ErrShapeMismatch, len(w.WeightsHO), w.Meta, w.Meta.WeightsHOLen())
	}
	return nil
}

// Clone returns a deep copy.
func (w WeightsSnapshot) Clone() WeightsSnapshot {
	return WeightsSnapshot{
		Meta:      w.Meta,
		WeightsIH: append([]float32(nil), w.WeightsIH...),
		WeightsHO: append([]float32(nil), w.WeightsHO...),
	}
}
