package orchestrator

import (
	"fmt"

	"github.com/OldStager01/heartrisk/pkg/models"
)

// NotFoundError reports an unknown user or a record the caller does not own.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// UnsupportedModelError reports a model-type tag with no adapter.
type UnsupportedModelError struct {
	Tag string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model type %q", e.Tag)
}

// PersistenceError reports a failed store call. For prediction writes the
// computed result is still attached.
type PersistenceError struct {
	Op     string
	Result *models.PredictionResult
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
