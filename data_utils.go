// data_utils.go
package wgtrain

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"unicode/utf16"
)

// Record is one row of a text/label dataset file, e.g.
// {"text": "prediction", "label": "010"}.
type Record struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// LoadRecords reads a JSON array of records.
func LoadRecords(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []Record
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return rows, nil
}

// EncodeText maps each UTF-16 code unit of text to code/255, truncated or
// zero-padded to n values.
func EncodeText(text string, n int) []float32 {
	out := make([]float32, n)
	for i, c := range utf16.Encode([]rune(text)) {
		if i >= n {
			break
		}
		out[i] = float32(c) / 255
	}
	return out
}

// EncodeLabel maps each digit of label to its value, truncated or
// zero-padded to n values.
func EncodeLabel(label string, n int) ([]float32, error) {
	out := make([]float32, n)
	for i, c := range []rune(label) {
		if i >= n {
			break
		}
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("label %q: %q is not a digit", label, c)
		}
		out[i] = float32(c - '0')
	}
	return out, nil
}

// MaxLengths returns the longest text (in UTF-16 units) and label in rows.
func MaxLengths(rows []Record) (maxText, maxLabel int) {
	for _, r := range rows {
		if n := len(utf16.Encode([]rune(r.Text))); n > maxText {
			maxText = n
		}
		if n := len([]rune(r.Label)); n > maxLabel {
			maxLabel = n
		}
	}
	return maxText, maxLabel
}

// BuildSamples encodes rows to the widths of spec.
func BuildSamples(rows []Record, spec ModelSpec) ([]Sample, error) {
	samples := make([]Sample, 0, len(rows))
	for i, r := range rows {
		label, err := EncodeLabel(r.Label, spec.OutputSize)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		samples = append(samples, Sample{
			Input: EncodeText(r.Text, spec.InputSize),
			Label: label,
		})
	}
	return samples, nil
}

// SplitDataset shuffles samples and splits them into train/validation sets
// according to the given fraction (e.g., 0.8 for 80% train, 20% val). A nil
// rng uses math/rand.
func SplitDataset(samples []Sample, trainFrac float64, rng *rand.Rand) (train, val []Sample) {
	n := len(samples)
	if trainFrac < 0 {
		trainFrac = 0
	}
	if trainFrac > 1 {
		trainFrac = 1
	}
	trainSize := int(trainFrac * float64(n))

	var perm []int
	if rng != nil {
		perm = rng.Perm(n)
	} else {
		perm = rand.Perm(n)
	}
	train = make([]Sample, 0, trainSize)
	val = make([]Sample, 0, n-trainSize)
	for i, p := range perm {
		if i < trainSize {
			train = append(train, samples[p])
		} else {
			val = append(val, samples[p])
		}
	}
	return train, val
}

// Bits renders an output vector as a '0'/'1' string, one character per value,
// set when the value exceeds 0.5.
func Bits(output []float32) string {
	var sb strings.Builder
	sb.Grow(len(output))
	for _, v := range output {
		if v > 0.5 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
