package model

import (
	"errors"
	"fmt"

	"github.com/OldStager01/heartrisk/pkg/models"
)

var (
	ErrArtifactMissing = errors.New("model artifact missing")
	ErrArtifactInvalid = errors.New("model artifact invalid")
	ErrShapeMismatch   = errors.New("feature shape mismatch")
)

// InferenceError wraps failures while loading artifacts or scoring features.
type InferenceError struct {
	Variant models.ModelVariant
	Op      string
	Err     error
}

func (e *InferenceError) Error() string {
	if e.Variant.Valid() {
		return fmt.Sprintf("%s model: %s: %v", e.Variant, e.Op, e.Err)
	}
	return fmt.Sprintf("model: %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func inferenceErr(variant models.ModelVariant, op string, err error) error {
	return &InferenceError{Variant: variant, Op: op, Err: err}
}
