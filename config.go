package wgtrain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config drives the command-line trainer. The first four keys match the
// cfg.json the desktop app writes next to its dataset.
type Config struct {
	MaxTextLen      int     `json:"max_text_len"`
	MaxLabelLen     int     `json:"max_lab_len"`
	Epochs          int     `json:"epochs"`
	Data            string  `json:"data"`
	NodesPerLayer   int     `json:"nodes_per_layer"`
	Weights         string  `json:"weights"`
	ONNX            string  `json:"onnx,omitempty"`
	Device          string  `json:"device"`
	Seed            int64   `json:"seed"`
	Split           float64 `json:"split"`
	CheckpointEvery int     `json:"checkpoint_every"`
	Debug           bool    `json:"debug"`
}

// DefaultConfig returns the settings used when no file is given. Text and
// label widths of zero are filled in from the dataset.
func DefaultConfig() Config {
	return Config{
		Epochs:        50,
		Data:          "datasets/cmu_stress.json",
		NodesPerLayer: 64,
		Weights:       "models/weights.json",
		Device:        "auto",
		Seed:          1,
		Split:         1,
	}
}

// LoadConfig overlays the JSON file at path on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c Config) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.MaxTextLen < 0 || c.MaxLabelLen < 0 {
		errs = append(errs, errors.New("max_text_len and max_lab_len must not be negative"))
	}
	if c.NodesPerLayer <= 0 {
		errs = append(errs, fmt.Errorf("nodes_per_layer must be positive, got %d", c.NodesPerLayer))
	}
	if c.Epochs < 0 {
		errs = append(errs, fmt.Errorf("epochs must not be negative, got %d", c.Epochs))
	}
	if c.Split <= 0 || c.Split > 1 {
		errs = append(errs, fmt.Errorf("split must be in (0, 1], got %g", c.Split))
	}
	if c.CheckpointEvery < 0 {
		errs = append(errs, fmt.Errorf("checkpoint_every must not be negative, got %d", c.CheckpointEvery))
	}
	switch c.Device {
	case "", "auto", "webgpu", "gpu", "browser", "host", "cpu":
	default:
		errs = append(errs, fmt.Errorf("unknown device %q", c.Device))
	}
	return errors.Join(errs...)
}

// ModelSpec returns the topology the config describes.
func (c Config) ModelSpec() ModelSpec {
	return ModelSpec{InputSize: c.MaxTextLen, HiddenSize: c.NodesPerLayer, OutputSize: c.MaxLabelLen}
}

// FitDataset fills zero text/label widths from rows.
func (c *Config) FitDataset(rows []Record) {
	maxText, maxLabel := MaxLengths(rows)
	if c.MaxTextLen == 0 {
		c.MaxTextLen = maxText
	}
	if c.MaxLabelLen == 0 {
		c.MaxLabelLen = maxLabel
	}
}
