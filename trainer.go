package wgtrain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Trainer owns one model's device state: the compiled kernel, both weight
// matrices, the learning-rate cell and the most recent batch. It is not safe
// for concurrent use; callers serialize Train, Export, Import and PredictCPU.
type Trainer struct {
	Debug     bool       // If true, print debug logs during training
	Rand      *rand.Rand // Source for weight initialization; nil uses math/rand
	SessionID uuid.UUID

	dev     Device
	spec    ModelSpec
	kernel  Kernel
	weights *weightBuffers

	batch   Buffer
	cursor  Buffer
	binding Binding
}

// NewTrainer returns an uninitialized trainer on dev. The device stays owned
// by the caller and must outlive the trainer.
func NewTrainer(dev Device) *Trainer {
	return &Trainer{dev: dev, SessionID: uuid.New()}
}

// Spec returns the live spec and whether Init has run.
func (t *Trainer) Spec() (ModelSpec, bool) {
	return t.spec, t.weights != nil
}

// Device returns the device the trainer runs on.
func (t *Trainer) Device() Device { return t.dev }

func (t *Trainer) logf(format string, args ...any) {
	if t.Debug {
		fmt.Printf("[%s] "+format+"\n", append([]any{t.SessionID.String()[:8]}, args...)...)
	}
}

// Init compiles the training program for spec and allocates freshly randomized
// weights. Any previous state is released first, so a failed Init leaves the
// trainer uninitialized.
func (t *Trainer) Init(spec ModelSpec) error {
	t.Close()

	start := time.Now()
	kernel, err := BuildKernel(t.dev, spec)
	if err != nil {
		return err
	}
	weights, err := allocateWeights(t.dev, spec, t.Rand)
	if err != nil {
		kernel.Release()
		return err
	}

	t.spec = spec
	t.kernel = kernel
	t.weights = weights
	t.logf("initialised %s on %s in %v", spec, t.dev.Name(), time.Since(start))
	return nil
}

// releaseBatch drops the batch buffer, cursor and their binding.
func (t *Trainer) releaseBatch() {
	if t.binding != nil {
		t.binding.Release()
		t.binding = nil
	}
	releaseAll(t.batch, t.cursor)
	t.batch, t.cursor = nil, nil
}

// Close releases every device resource the trainer holds. The trainer can be
// initialised again afterwards.
func (t *Trainer) Close() {
	t.releaseBatch()
	if t.weights != nil {
		t.weights.release()
		t.weights = nil
	}
	if t.kernel != nil {
		t.kernel.Release()
		t.kernel = nil
	}
	t.spec = ModelSpec{}
}

// packSamples lays samples out as [input..., label...] per sample, conforming
// each row to the model widths.
func packSamples(spec ModelSpec, samples []Sample) []float32 {
	stride := spec.SampleStride()
	out := make([]float32, 0, len(samples)*stride)
	for _, s := range samples {
		out = append(out, padRow(s.Input, spec.InputSize)...)
		out = append(out, padRow(s.Label, spec.OutputSize)...)
	}
	return out
}

// Train runs epochs passes over samples, one kernel invocation per sample in
// order. progress, when non-nil, is called after each epoch's work has been
// submitted; an error from it stops the run and is returned as is.
func (t *Trainer) Train(samples []Sample, epochs int, progress ProgressFunc) error {
	if t.weights == nil {
		return ErrModelNotInitialized
	}
	if epochs <= 0 {
		return nil
	}

	t.releaseBatch()
	n := len(samples)
	if n > 0 {
		if err := t.uploadBatch(samples); err != nil {
			t.releaseBatch()
			return err
		}
	}

	start := time.Now()
	for e := 0; e < epochs; e++ {
		if n > 0 {
			// cursor[0] = 0u: a float32 zero has the same bits as u32 zero.
			if err := t.dev.WriteBuffer(t.cursor, []float32{0}); err != nil {
				return fmt.Errorf("epoch %d: reset cursor: %w", e+1, err)
			}
			if err := t.binding.Dispatch(n); err != nil {
				return fmt.Errorf("epoch %d: %w", e+1, err)
			}
		}
		if t.Debug && (e+1)%100 == 0 {
			t.logf("epoch %d/%d submitted (%v)", e+1, epochs, time.Since(start))
		}
		if progress != nil {
			if err := progress(e+1, epochs); err != nil {
				return err
			}
		}
	}
	t.logf("trained %d samples x %d epochs in %v", n, epochs, time.Since(start))
	return nil
}

func (t *Trainer) uploadBatch(samples []Sample) error {
	packed := packSamples(t.spec, samples)

	var err error
	t.batch, err = t.dev.NewBuffer("Samples", uint64(len(packed))*4, UsageStorage|UsageCopyDst)
	if err != nil {
		return fmt.Errorf("%w: batch of %d samples: %w", ErrAllocation, len(samples), err)
	}
	t.cursor, err = t.dev.NewBuffer("SampleCursor", 4, UsageStorage|UsageCopyDst)
	if err != nil {
		return fmt.Errorf("%w: sample cursor: %w", ErrAllocation, err)
	}
	if err := t.dev.WriteBuffer(t.batch, packed); err != nil {
		return err
	}
	if err := t.dev.WriteBuffer(t.weights.learningRate, []float32{LearningRate}); err != nil {
		return err
	}
	t.binding, err = t.kernel.Bind(
		t.weights.weightsIH,
		t.weights.weightsHO,
		t.batch,
		t.weights.learningRate,
		t.cursor,
	)
	if err != nil {
		return fmt.Errorf("bind training buffers: %w", err)
	}
	return nil
}

// Export reads both weight matrices back to the host.
func (t *Trainer) Export() (WeightsSnapshot, error) {
	if t.weights == nil {
		return WeightsSnapshot{}, ErrModelNotInitialized
	}
	wIH, err := t.dev.ReadBuffer(t.weights.weightsIH)
	if err != nil {
		return WeightsSnapshot{}, fmt.Errorf("read weightsIH: %w", err)
	}
	wHO, err := t.dev.ReadBuffer(t.weights.weightsHO)
	if err != nil {
		return WeightsSnapshot{}, fmt.Errorf("read weightsHO: %w", err)
	}
	return WeightsSnapshot{
		Meta:      t.spec,
		WeightsIH: wIH[:t.spec.WeightsIHLen()],
		WeightsHO: wHO[:t.spec.WeightsHOLen()],
	}, nil
}

// Import overwrites both weight matrices with snap. An uninitialized trainer
// is first initialised to snap.Meta. Nothing is written unless the snapshot
// fits: a differing meta yields *ShapeMismatchError.
func (t *Trainer) Import(snap WeightsSnapshot) error {
	if snap.Meta.IsZero() {
		return ErrMissingMeta
	}
	if t.weights != nil && snap.Meta != t.spec {
		return &ShapeMismatchError{Want: t.spec, Got: snap.Meta}
	}
	if err := snap.checkLengths(); err != nil {
		return err
	}
	if t.weights == nil {
		if err := t.Init(snap.Meta); err != nil {
			return err
		}
	}
	if err := t.dev.WriteBuffer(t.weights.weightsIH, snap.WeightsIH); err != nil {
		return fmt.Errorf("write weightsIH: %w", err)
	}
	if err := t.dev.WriteBuffer(t.weights.weightsHO, snap.WeightsHO); err != nil {
		return fmt.Errorf("write weightsHO: %w", err)
	}
	t.logf("imported weights for %s", snap.Meta)
	return nil
}

// PredictCPU scores one input on the host with the current device weights.
// input is truncated or zero-padded on the right to InputSize.
func (t *Trainer) PredictCPU(input []float32) ([]float32, error) {
	snap, err := t.Export()
	if err != nil {
		return nil, err
	}
	return Forward(snap, input), nil
}
