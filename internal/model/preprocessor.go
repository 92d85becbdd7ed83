package model

import (
	"fmt"
	"math"
)

const (
	transformerStandardScaler = "standard_scaler"
	transformerOneHot         = "one_hot"
)

// ColumnTransform is one fitted step of a column transformer.
type ColumnTransform struct {
	Name       string      `json:"name"`
	Kind       string      `json:"kind"`
	Columns    []string    `json:"columns"`
	Mean       []float64   `json:"mean,omitempty"`
	Scale      []float64   `json:"scale,omitempty"`
	Categories [][]float64 `json:"categories,omitempty"`
}

func (t *ColumnTransform) width() int {
	switch t.Kind {
	case transformerOneHot:
		n := 0
		for _, cats := range t.Categories {
			n += len(cats)
		}
		return n
	default:
		return len(t.Columns)
	}
}

// Preprocessor applies its transforms in order and concatenates the
// outputs, like a fitted column transformer.
type Preprocessor struct {
	Transformers []ColumnTransform `json:"transformers"`
}

func (p *Preprocessor) validate() error {
	if len(p.Transformers) == 0 {
		return fmt.Errorf("%w: preprocessor has no transformers", ErrArtifactInvalid)
	}
	for _, t := range p.Transformers {
		if len(t.Columns) == 0 {
			return fmt.Errorf("%w: transformer %q has no columns", ErrArtifactInvalid, t.Name)
		}
		switch t.Kind {
		case transformerStandardScaler:
			scaler := StandardScaler{Columns: t.Columns, Mean: t.Mean, Scale: t.Scale}
			if err := scaler.validate(); err != nil {
				return fmt.Errorf("transformer %q: %w", t.Name, err)
			}
		case transformerOneHot:
			if len(t.Categories) != len(t.Columns) {
				return fmt.Errorf("%w: transformer %q has %d category lists for %d columns",
					ErrArtifactInvalid, t.Name, len(t.Categories), len(t.Columns))
			}
			for i, cats := range t.Categories {
				if len(cats) == 0 {
					return fmt.Errorf("%w: transformer %q column %s has no categories",
						ErrArtifactInvalid, t.Name, t.Columns[i])
				}
			}
		default:
			return fmt.Errorf("%w: transformer %q has unsupported kind %q", ErrArtifactInvalid, t.Name, t.Kind)
		}
	}
	return nil
}

// OutputWidth is the length of a transformed row.
func (p *Preprocessor) OutputWidth() int {
	n := 0
	for i := range p.Transformers {
		n += p.Transformers[i].width()
	}
	return n
}

// Columns returns every input column the preprocessor reads.
func (p *Preprocessor) Columns() []string {
	var cols []string
	for _, t := range p.Transformers {
		cols = append(cols, t.Columns...)
	}
	return cols
}

// Transform reads the named inputs and produces the model input row.
// Categories not seen during fitting encode to all zeros.
func (p *Preprocessor) Transform(input map[string]float64) ([]float64, error) {
	out := make([]float64, 0, p.OutputWidth())
	for _, t := range p.Transformers {
		row := make([]float64, len(t.Columns))
		for i, col := range t.Columns {
			v, ok := input[col]
			if !ok {
				return nil, fmt.Errorf("%w: preprocessor column %s missing", ErrShapeMismatch, col)
			}
			if math.IsNaN(v) {
				return nil, fmt.Errorf("%w: preprocessor column %s is NaN", ErrShapeMismatch, col)
			}
			row[i] = v
		}

		switch t.Kind {
		case transformerStandardScaler:
			scaler := StandardScaler{Columns: t.Columns, Mean: t.Mean, Scale: t.Scale}
			scaled, err := scaler.Transform(row)
			if err != nil {
				return nil, err
			}
			out = append(out, scaled...)
		case transformerOneHot:
			for i, cats := range t.Categories {
				for _, c := range cats {
					if row[i] == c {
						out = append(out, 1)
					} else {
						out = append(out, 0)
					}
				}
			}
		}
	}
	return out, nil
}
