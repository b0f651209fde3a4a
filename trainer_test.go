package wgtrain

import (
	"errors"
	"math"
	"testing"
)

func TestInitExportShapeAndRange(t *testing.T) {
	spec := ModelSpec{InputSize: 5, HiddenSize: 3, OutputSize: 4}
	tr := newHostTrainer(t, spec)

	snap := mustExport(t, tr)
	if snap.Meta != spec {
		t.Errorf("Expected meta %s, got %s", spec, snap.Meta)
	}
	if len(snap.WeightsIH) != 15 || len(snap.WeightsHO) != 12 {
		t.Fatalf("Expected 15/12 weights, got %d/%d", len(snap.WeightsIH), len(snap.WeightsHO))
	}
	for _, w := range append(snap.WeightsIH, snap.WeightsHO...) {
		if w < -0.05 || w > 0.05 {
			t.Errorf("weight %v outside [-0.05, 0.05]", w)
		}
	}
}

func TestReInitReplacesSpec(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 2, HiddenSize: 2, OutputSize: 2})
	next := ModelSpec{InputSize: 3, HiddenSize: 1, OutputSize: 1}
	if err := tr.Init(next); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got, ok := tr.Spec(); !ok || got != next {
		t.Errorf("Expected live spec %s, got %s (initialised=%v)", next, got, ok)
	}
	if snap := mustExport(t, tr); len(snap.WeightsIH) != 3 || len(snap.WeightsHO) != 1 {
		t.Errorf("Expected 3/1 weights after re-init, got %d/%d", len(snap.WeightsIH), len(snap.WeightsHO))
	}
}

func TestInitInvalidSpec(t *testing.T) {
	tr := NewTrainer(NewHostDevice())
	err := tr.Init(ModelSpec{InputSize: 0, HiddenSize: 2, OutputSize: 2})
	if !errors.Is(err, ErrKernelBuild) {
		t.Fatalf("Expected ErrKernelBuild, got %v", err)
	}
	if _, ok := tr.Spec(); ok {
		t.Error("trainer should stay uninitialised after a failed Init")
	}
}

func TestInitAllocationRefused(t *testing.T) {
	dev := NewHostDevice()
	dev.MaxBufferSize = 64
	tr := NewTrainer(dev)
	err := tr.Init(ModelSpec{InputSize: 100, HiddenSize: 100, OutputSize: 1})
	if !errors.Is(err, ErrAllocation) {
		t.Fatalf("Expected ErrAllocation, got %v", err)
	}
}

func TestNotInitialised(t *testing.T) {
	tr := NewTrainer(NewHostDevice())
	if err := tr.Train(nil, 1, nil); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("Train: expected ErrModelNotInitialized, got %v", err)
	}
	if _, err := tr.Export(); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("Export: expected ErrModelNotInitialized, got %v", err)
	}
	if _, err := tr.PredictCPU([]float32{1}); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("PredictCPU: expected ErrModelNotInitialized, got %v", err)
	}
}

func TestImportExportIdempotent(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 4, HiddenSize: 3, OutputSize: 2})
	first := mustExport(t, tr)
	if err := tr.Import(first); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if second := mustExport(t, tr); !sameWeights(first, second) {
		t.Error("export after import(export) differs")
	}
}

func TestImportShapeMismatch(t *testing.T) {
	spec := ModelSpec{InputSize: 4, HiddenSize: 3, OutputSize: 2}
	tr := newHostTrainer(t, spec)
	before := mustExport(t, tr)

	for name, meta := range map[string]ModelSpec{
		"inputSize":     {InputSize: 5, HiddenSize: 3, OutputSize: 2},
		"nodesPerLayer": {InputSize: 4, HiddenSize: 4, OutputSize: 2},
		"outputSize":    {InputSize: 4, HiddenSize: 3, OutputSize: 3},
	} {
		t.Run(name, func(t *testing.T) {
			err := tr.Import(constSnapshot(meta, 0.5))
			if !errors.Is(err, ErrShapeMismatch) {
				t.Fatalf("Expected ErrShapeMismatch, got %v", err)
			}
			var sme *ShapeMismatchError
			if !errors.As(err, &sme) || sme.Want != spec || sme.Got != meta {
				t.Errorf("Expected *ShapeMismatchError{%s, %s}, got %v", spec, meta, err)
			}
			if !sameWeights(before, mustExport(t, tr)) {
				t.Error("weights changed after a rejected import")
			}
		})
	}
}

func TestImportMissingMeta(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 2, HiddenSize: 2, OutputSize: 2})
	err := tr.Import(WeightsSnapshot{WeightsIH: []float32{1, 2, 3, 4}, WeightsHO: []float32{1, 2, 3, 4}})
	if !errors.Is(err, ErrMissingMeta) {
		t.Fatalf("Expected ErrMissingMeta, got %v", err)
	}
}

func TestImportLengthMismatch(t *testing.T) {
	tr := NewTrainer(NewHostDevice())
	snap := constSnapshot(ModelSpec{InputSize: 2, HiddenSize: 2, OutputSize: 1}, 0.1)
	snap.WeightsIH = snap.WeightsIH[:3]
	if err := tr.Import(snap); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Expected ErrShapeMismatch, got %v", err)
	}
	if _, ok := tr.Spec(); ok {
		t.Error("a rejected import must not initialise the trainer")
	}
}

func TestImportInitialisesFreshTrainer(t *testing.T) {
	tr := NewTrainer(NewHostDevice())
	defer tr.Close()
	snap := constSnapshot(ModelSpec{InputSize: 3, HiddenSize: 2, OutputSize: 2}, 0.25)
	if err := tr.Import(snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !sameWeights(snap, mustExport(t, tr)) {
		t.Error("exported weights differ from the imported snapshot")
	}
}

func TestTrainZeroEpochs(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 3, HiddenSize: 2, OutputSize: 1})
	before := mustExport(t, tr)
	calls := 0
	err := tr.Train([]Sample{{Input: []float32{1, 1, 1}, Label: []float32{1}}}, 0,
		func(int, int) error { calls++; return nil })
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no progress calls, got %d", calls)
	}
	if !sameWeights(before, mustExport(t, tr)) {
		t.Error("weights changed with zero epochs")
	}
}

func TestTrainEmptySamples(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 3, HiddenSize: 2, OutputSize: 1})
	before := mustExport(t, tr)
	var epochs []int
	err := tr.Train(nil, 3, func(e, total int) error {
		if total != 3 {
			t.Errorf("Expected total 3, got %d", total)
		}
		epochs = append(epochs, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(epochs) != 3 || epochs[0] != 1 || epochs[2] != 3 {
		t.Errorf("Expected progress 1..3, got %v", epochs)
	}
	if !sameWeights(before, mustExport(t, tr)) {
		t.Error("weights changed with no samples")
	}
}

func TestTrainProgressErrorStops(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 2, HiddenSize: 2, OutputSize: 1})
	stop := errors.New("stop")
	calls := 0
	err := tr.Train([]Sample{{Input: []float32{1, 0}, Label: []float32{1}}}, 10, func(e, _ int) error {
		calls++
		if e == 2 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Fatalf("Expected the callback error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 progress calls, got %d", calls)
	}
}

// All hidden activations are sigmoid(0) = 0.5 and every weight is 0.01, so
// each output starts at sigmoid(2 * 0.5 * 0.01) and W_IH cannot move.
func TestSingleStepZeroInput(t *testing.T) {
	spec := ModelSpec{InputSize: 4, HiddenSize: 2, OutputSize: 2}
	tr := newHostTrainer(t, spec)
	if err := tr.Import(constSnapshot(spec, 0.01)); err != nil {
		t.Fatalf("Import: %v", err)
	}

	pre, err := tr.PredictCPU([]float32{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("PredictCPU: %v", err)
	}
	o := sig64(0.01)
	assertClose(t, "o", pre, []float64{o, o}, 1e-6)

	if err := tr.Train([]Sample{{Input: []float32{0, 0, 0, 0}, Label: []float32{1, 0}}}, 1, nil); err != nil {
		t.Fatalf("Train: %v", err)
	}
	snap := mustExport(t, tr)

	g0 := (o - 1) * o * (1 - o)
	g1 := o * o * (1 - o)
	w0 := 0.01 - 0.1*g0*0.5
	w1 := 0.01 - 0.1*g1*0.5
	assertClose(t, "weightsHO", snap.WeightsHO, []float64{w0, w0, w1, w1}, 1e-5)
	assertClose(t, "weightsIH", snap.WeightsIH, []float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01}, 1e-7)
}

func TestSingleStepHandComputed(t *testing.T) {
	spec := ModelSpec{InputSize: 2, HiddenSize: 1, OutputSize: 1}
	tr := newHostTrainer(t, spec)
	if err := tr.Import(WeightsSnapshot{
		Meta:      spec,
		WeightsIH: []float32{0.2, 0.4},
		WeightsHO: []float32{0.3},
	}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := tr.Train([]Sample{{Input: []float32{1, 0.5}, Label: []float32{1}}}, 1, nil); err != nil {
		t.Fatalf("Train: %v", err)
	}
	snap := mustExport(t, tr)

	h := sig64(0.2*1 + 0.4*0.5)
	o := sig64(0.3 * h)
	gO := (o - 1) * o * (1 - o)
	wHO := 0.3 - 0.1*gO*h
	gH := gO * wHO * h * (1 - h)
	assertClose(t, "weightsHO", snap.WeightsHO, []float64{wHO}, 1e-5)
	assertClose(t, "weightsIH", snap.WeightsIH, []float64{0.2 - 0.1*gH*1, 0.4 - 0.1*gH*0.5}, 1e-5)
}

func TestTrainMatchesReference(t *testing.T) {
	spec := ModelSpec{InputSize: 3, HiddenSize: 4, OutputSize: 2}
	tr := newHostTrainer(t, spec)
	start := mustExport(t, tr)

	samples := []Sample{
		{Input: []float32{0.1, 0.9, 0.4}, Label: []float32{1, 0}},
		{Input: []float32{0.8, 0.2}, Label: []float32{0, 1}},       // padded
		{Input: []float32{0.5, 0.5, 0.5, 7}, Label: []float32{1}}, // truncated / padded
	}
	const epochs = 5
	if err := tr.Train(samples, epochs, nil); err != nil {
		t.Fatalf("Train: %v", err)
	}
	got := mustExport(t, tr)

	wIH, wHO := toF64(start.WeightsIH), toF64(start.WeightsHO)
	for e := 0; e < epochs; e++ {
		referenceEpoch(spec, wIH, wHO, samples, float64(LearningRate))
	}
	assertClose(t, "weightsIH", got.WeightsIH, wIH, 1e-5)
	assertClose(t, "weightsHO", got.WeightsHO, wHO, 1e-5)
}

func TestTrainTwiceReplacesBatch(t *testing.T) {
	spec := ModelSpec{InputSize: 2, HiddenSize: 2, OutputSize: 1}
	tr := newHostTrainer(t, spec)
	start := mustExport(t, tr)

	a := []Sample{{Input: []float32{1, 0}, Label: []float32{1}}, {Input: []float32{0, 1}, Label: []float32{0}}}
	b := []Sample{{Input: []float32{1, 1}, Label: []float32{1}}}
	if err := tr.Train(a, 2, nil); err != nil {
		t.Fatalf("Train a: %v", err)
	}
	if err := tr.Train(b, 3, nil); err != nil {
		t.Fatalf("Train b: %v", err)
	}

	wIH, wHO := toF64(start.WeightsIH), toF64(start.WeightsHO)
	for e := 0; e < 2; e++ {
		referenceEpoch(spec, wIH, wHO, a, 0.1)
	}
	for e := 0; e < 3; e++ {
		referenceEpoch(spec, wIH, wHO, b, 0.1)
	}
	got := mustExport(t, tr)
	assertClose(t, "weightsIH", got.WeightsIH, wIH, 1e-5)
	assertClose(t, "weightsHO", got.WeightsHO, wHO, 1e-5)
}

func TestPredictCPUPadTruncate(t *testing.T) {
	spec := ModelSpec{InputSize: 4, HiddenSize: 3, OutputSize: 2}
	tr := newHostTrainer(t, spec)

	base, err := tr.PredictCPU([]float32{0.3, 0.7, 0, 0})
	if err != nil {
		t.Fatalf("PredictCPU: %v", err)
	}
	if len(base) != 2 {
		t.Fatalf("Expected 2 outputs, got %d", len(base))
	}
	short, _ := tr.PredictCPU([]float32{0.3, 0.7})
	long, _ := tr.PredictCPU([]float32{0.3, 0.7, 0, 0, 5, 9})
	for k := range base {
		if short[k] != base[k] || long[k] != base[k] {
			t.Errorf("output %d: base %v, short %v, long %v", k, base[k], short[k], long[k])
		}
	}
	empty, _ := tr.PredictCPU(nil)
	if len(empty) != 2 {
		t.Errorf("Expected 2 outputs for empty input, got %d", len(empty))
	}
}

func TestForwardSanitizes(t *testing.T) {
	spec := ModelSpec{InputSize: 2, HiddenSize: 1, OutputSize: 1}
	snap := WeightsSnapshot{
		Meta:      spec,
		WeightsIH: []float32{float32(math.NaN()), float32(math.Inf(1))},
		WeightsHO: []float32{float32(math.Inf(-1))},
	}
	out := Forward(snap, []float32{1, 1})
	// every weight reads as 0: h = 0.5, o = sigmoid(0)
	if len(out) != 1 || out[0] != 0.5 {
		t.Errorf("Expected [0.5], got %v", out)
	}
}

func TestCloseIsReusable(t *testing.T) {
	tr := newHostTrainer(t, ModelSpec{InputSize: 2, HiddenSize: 2, OutputSize: 2})
	tr.Close()
	if _, err := tr.Export(); !errors.Is(err, ErrModelNotInitialized) {
		t.Errorf("Expected ErrModelNotInitialized after Close, got %v", err)
	}
	if err := tr.Init(ModelSpec{InputSize: 1, HiddenSize: 1, OutputSize: 1}); err != nil {
		t.Errorf("Init after Close: %v", err)
	}
}
