package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OldStager01/heartrisk/pkg/models"
)

const ModelTypeField = "model_type"

// ValidationError reports every missing and malformed field of a request.
type ValidationError struct {
	MissingFields []string `json:"missing_fields"`
	InvalidTypes  []string `json:"invalid_types"`
	UserID        string   `json:"user_id,omitempty"`
	ModelType     string   `json:"model_type,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.MissingFields, ", "))
	}
	if len(e.InvalidTypes) > 0 {
		parts = append(parts, "invalid field types: "+strings.Join(e.InvalidTypes, ", "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.MissingFields) == 0 && len(e.InvalidTypes) == 0
}

// Validator coerces raw form fields into a FeatureSet according to the
// schema registered for each variant. It is read-only after construction.
type Validator struct {
	schemas map[models.ModelVariant]Schema
}

func NewValidator(schemas ...Schema) *Validator {
	v := &Validator{schemas: make(map[models.ModelVariant]Schema, len(schemas))}
	for _, s := range schemas {
		v.schemas[s.Variant] = s
	}
	return v
}

func (v *Validator) Schema(variant models.ModelVariant) (Schema, bool) {
	s, ok := v.schemas[variant]
	return s, ok
}

// Validate checks all fields before reporting, so one error lists every
// problem. Optional fields that are absent or blank take their default.
func (v *Validator) Validate(raw map[string]string, variant models.ModelVariant) (models.FeatureSet, error) {
	schema, ok := v.schemas[variant]
	if !ok {
		return models.FeatureSet{}, &ValidationError{
			MissingFields: []string{ModelTypeField},
			InvalidTypes:  []string{},
		}
	}

	verr := &ValidationError{MissingFields: []string{}, InvalidTypes: []string{}}
	values := make(map[string]float64, len(schema.Required)+len(schema.Optional))

	for _, name := range schema.Required {
		text, present := lookup(raw, name)
		if !present {
			verr.MissingFields = append(verr.MissingFields, name)
			continue
		}
		value, err := coerce(name, text)
		if err != nil {
			verr.InvalidTypes = append(verr.InvalidTypes, name)
			continue
		}
		values[name] = value
	}

	for _, name := range schema.Optional {
		text, present := lookup(raw, name)
		if !present {
			values[name] = schema.Defaults[name]
			continue
		}
		value, err := coerce(name, text)
		if err != nil {
			verr.InvalidTypes = append(verr.InvalidTypes, name)
			continue
		}
		values[name] = value
	}

	if !verr.empty() {
		return models.FeatureSet{}, verr
	}

	fs, err := models.NewFeatureSet(values)
	if err != nil {
		for _, name := range schema.Fields() {
			if _, ferr := models.NewFeatureSet(map[string]float64{name: values[name]}); ferr != nil {
				verr.InvalidTypes = append(verr.InvalidTypes, name)
			}
		}
		return models.FeatureSet{}, verr
	}
	return fs, nil
}

// lookup treats blank values the same as absent ones.
func lookup(raw map[string]string, name string) (string, bool) {
	text, ok := raw[name]
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}

// maxExactInt is the largest magnitude a float64 holds without rounding.
const maxExactInt = 1 << 53

func coerce(name, text string) (float64, error) {
	attr, ok := models.LookupAttribute(name)
	if !ok {
		return 0, fmt.Errorf("unknown attribute %q", name)
	}

	switch attr.Kind {
	case models.KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, err
		}
		if n > maxExactInt || n < -maxExactInt {
			return 0, fmt.Errorf("%s is out of range", name)
		}
		return float64(n), nil
	case models.KindFloat:
		if hasHexPrefix(text) {
			return 0, fmt.Errorf("%s must be a decimal number", name)
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%s must be finite", name)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("attribute %q has no coercion", name)
	}
}

// hasHexPrefix reports whether text is spelled as a hex literal.
func hasHexPrefix(text string) bool {
	text = strings.TrimLeft(text, "+-")
	return len(text) >= 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X')
}
