package wgtrain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BenchmarkResult is the throughput of one timed training run.
type BenchmarkResult struct {
	Device           string        `json:"device"`
	Spec             ModelSpec     `json:"spec"`
	Epochs           int           `json:"epochs"`
	Samples          int           `json:"samples"`
	Elapsed          time.Duration `json:"elapsed_ns"`
	SamplesPerSecond float64       `json:"samples_per_second"`
}

func (r BenchmarkResult) String() string {
	return fmt.Sprintf("%s %s: %d samples x %d epochs in %v (%.0f samples/s)",
		r.Device, r.Spec, r.Samples, r.Epochs, r.Elapsed, r.SamplesPerSecond)
}

// JSON returns the result as indented JSON.
func (r BenchmarkResult) JSON() string {
	b, _ := json.MarshalIndent(r, "", "  ")
	return string(b)
}

// BenchmarkEpochs trains for epochs and times it. Dispatches are queued
// asynchronously, so the clock stops only after an Export has waited for the
// queue to drain.
func BenchmarkEpochs(t *Trainer, samples []Sample, epochs int) (BenchmarkResult, error) {
	spec, ok := t.Spec()
	if !ok {
		return BenchmarkResult{}, ErrModelNotInitialized
	}
	start := time.Now()
	if err := t.Train(samples, epochs, nil); err != nil {
		return BenchmarkResult{}, err
	}
	if _, err := t.Export(); err != nil {
		return BenchmarkResult{}, err
	}
	elapsed := time.Since(start)

	r := BenchmarkResult{
		Device:  t.Device().Name(),
		Spec:    spec,
		Epochs:  epochs,
		Samples: len(samples),
		Elapsed: elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.SamplesPerSecond = float64(len(samples)*epochs) / secs
	}
	return r, nil
}
