package wgtrain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// SaveWeights exports the trainer and writes the snapshot to path. The
// format follows the extension: .gob, .bin, .onnx, anything else is JSON.
func (t *Trainer) SaveWeights(path string) error {
	snap, err := t.Export()
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gob":
		return snap.SaveGob(path)
	case ".bin":
		return snap.SaveBinary(path)
	case ".onnx":
		return snap.SaveONNX(path, "wgtrain session "+t.SessionID.String())
	default:
		return snap.SaveJSON(path)
	}
}

// LoadSnapshot reads a snapshot from path, choosing the format by extension
// as SaveWeights does. ONNX files cannot be loaded.
func LoadSnapshot(path string) (WeightsSnapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gob":
		return LoadGob(path)
	case ".bin":
		return LoadBinary(path)
	case ".onnx":
		return WeightsSnapshot{}, fmt.Errorf("%s: loading ONNX weights is not supported", path)
	default:
		return LoadJSON(path)
	}
}

// LoadWeights reads path and imports it into the trainer.
func (t *Trainer) LoadWeights(path string) error {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return err
	}
	if err := t.Import(snap); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// CheckpointEvery returns a ProgressFunc that saves the trainer to path every
// n epochs and after the last one, then calls next. The first "%d" in path is
// replaced by the epoch number; without one each checkpoint overwrites the
// last. Missing directories are created.
func CheckpointEvery(t *Trainer, n int, path string, next ProgressFunc) ProgressFunc {
	return func(epoch, total int) error {
		if n > 0 && (epoch%n == 0 || epoch == total) {
			p := strings.Replace(path, "%d", strconv.Itoa(epoch), 1)
			if err := t.SaveWeights(p); err != nil {
				return fmt.Errorf("checkpoint at epoch %d: %w", epoch, err)
			}
			if t.Debug {
				fmt.Printf("💾 Checkpoint %d/%d saved to %s\n", epoch, total, p)
			}
		}
		if next != nil {
			return next(epoch, total)
		}
		return nil
	}
}
