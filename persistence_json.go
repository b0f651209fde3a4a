package wgtrain

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveJSON writes the snapshot as {meta, weightsIH, weightsHO}, the same
// record earlier releases of the desktop app read and write.
func (w WeightsSnapshot) SaveJSON(path string) error {
	b, err := json.MarshalIndent(w, "", " ")
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

// LoadJSON reads a snapshot written by SaveJSON. A file without meta decodes
// to a zero Meta, which Import rejects with ErrMissingMeta.
func LoadJSON(path string) (WeightsSnapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return WeightsSnapshot{}, err
	}
	return UnmarshalWeights(b)
}

// MarshalWeights returns the compact JSON form of w.
func MarshalWeights(w WeightsSnapshot) ([]byte, error) {
	return json.Marshal(w)
}

// UnmarshalWeights decodes a snapshot produced by MarshalWeights or SaveJSON.
func UnmarshalWeights(b []byte) (WeightsSnapshot, error) {
	var w WeightsSnapshot
	if err := json.Unmarshal(b, &w); err != nil {
		return WeightsSnapshot{}, fmt.Errorf("decode weights: %w", err)
	}
	return w, nil
}
