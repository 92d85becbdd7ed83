package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
)

// loadJSON decodes a fitted artifact exported to JSON.
func loadJSON(path string, v interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArtifactInvalid, path, err)
	}
	return nil
}

// Imputer replaces missing (NaN) values with a fitted per-column statistic.
type Imputer struct {
	Strategy   string    `json:"strategy"`
	Columns    []string  `json:"columns"`
	Statistics []float64 `json:"statistics"`
}

func (im *Imputer) validate() error {
	switch im.Strategy {
	case "median", "most_frequent", "mean", "constant":
	default:
		return fmt.Errorf("%w: unsupported imputer strategy %q", ErrArtifactInvalid, im.Strategy)
	}
	if len(im.Columns) == 0 {
		return fmt.Errorf("%w: imputer has no columns", ErrArtifactInvalid)
	}
	if len(im.Columns) != len(im.Statistics) {
		return fmt.Errorf("%w: imputer has %d columns but %d statistics",
			ErrArtifactInvalid, len(im.Columns), len(im.Statistics))
	}
	for i, s := range im.Statistics {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: imputer statistic for %s is not finite", ErrArtifactInvalid, im.Columns[i])
		}
	}
	return nil
}

// Transform returns a copy of row with NaN entries imputed. row must be
// aligned with Columns.
func (im *Imputer) Transform(row []float64) ([]float64, error) {
	if len(row) != len(im.Columns) {
		return nil, fmt.Errorf("%w: imputer expects %d columns, got %d", ErrShapeMismatch, len(im.Columns), len(row))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		if math.IsNaN(v) {
			v = im.Statistics[i]
		}
		out[i] = v
	}
	return out, nil
}

// Statistic returns the fitted fill value for a column.
func (im *Imputer) Statistic(column string) (float64, bool) {
	for i, c := range im.Columns {
		if c == column {
			return im.Statistics[i], true
		}
	}
	return 0, false
}

// StandardScaler centers and scales columns with fitted mean and scale.
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func (s *StandardScaler) validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: scaler has no columns", ErrArtifactInvalid)
	}
	if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
		return fmt.Errorf("%w: scaler has %d columns, %d means, %d scales",
			ErrArtifactInvalid, len(s.Columns), len(s.Mean), len(s.Scale))
	}
	for i := range s.Columns {
		if math.IsNaN(s.Mean[i]) || math.IsNaN(s.Scale[i]) || s.Scale[i] < 0 {
			return fmt.Errorf("%w: scaler parameters for %s are invalid", ErrArtifactInvalid, s.Columns[i])
		}
	}
	return nil
}

func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Columns) {
		return nil, fmt.Errorf("%w: scaler expects %d columns, got %d", ErrShapeMismatch, len(s.Columns), len(row))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		scale := s.Scale[i]
		// Constant columns are fitted with zero scale; leave them centred only.
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
