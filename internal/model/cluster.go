package model

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/OldStager01/heartrisk/pkg/models"
)

const (
	ClusterDir                    = "cluster"
	ClusterForestFile             = "forest.json"
	ClusterScalerFile             = "scaler.json"
	ClusterNumericImputerFile     = "imputer_numeric.json"
	ClusterCategoricalImputerFile = "imputer_categorical.json"
)

// ClusterAdapter scores features with the tree-ensemble clustering model:
// median/most-frequent imputation, standard scaling of numeric columns,
// then a forest vote. All state is fitted at load and never written again,
// so Predict is safe for concurrent use.
type ClusterAdapter struct {
	numeric     Imputer
	categorical Imputer
	scaler      StandardScaler
	forest      Forest

	// positions of imputer/scaler columns inside the forest row
	numericPos     []int
	categoricalPos []int
	scalerPos      []int
}

// NewClusterAdapter loads the fitted artifacts from dir. Any missing or
// inconsistent artifact is returned as an InferenceError.
func NewClusterAdapter(dir string) (*ClusterAdapter, error) {
	a := &ClusterAdapter{}

	loads := []struct {
		file string
		into interface{}
	}{
		{ClusterNumericImputerFile, &a.numeric},
		{ClusterCategoricalImputerFile, &a.categorical},
		{ClusterScalerFile, &a.scaler},
		{ClusterForestFile, &a.forest},
	}
	for _, l := range loads {
		if err := loadJSON(filepath.Join(dir, l.file), l.into); err != nil {
			return nil, inferenceErr(models.VariantCluster, "load artifacts", err)
		}
	}

	if err := a.init(); err != nil {
		return nil, inferenceErr(models.VariantCluster, "load artifacts", err)
	}
	return a, nil
}

func (a *ClusterAdapter) init() error {
	for _, v := range []interface{ validate() error }{&a.numeric, &a.categorical, &a.scaler, &a.forest} {
		if err := v.validate(); err != nil {
			return err
		}
	}

	for _, c := range a.forest.Classes {
		if c <= 0 {
			return fmt.Errorf("%w: forest class %d is not a positive cluster", ErrArtifactInvalid, c)
		}
	}

	var err error
	if a.numericPos, err = positions(a.forest.FeatureNames, a.numeric.Columns); err != nil {
		return err
	}
	if a.categoricalPos, err = positions(a.forest.FeatureNames, a.categorical.Columns); err != nil {
		return err
	}
	if a.scalerPos, err = positions(a.forest.FeatureNames, a.scaler.Columns); err != nil {
		return err
	}

	covered := make(map[int]bool, len(a.forest.FeatureNames))
	for _, p := range append(append([]int{}, a.numericPos...), a.categoricalPos...) {
		covered[p] = true
	}
	for i, name := range a.forest.FeatureNames {
		if !covered[i] {
			return fmt.Errorf("%w: forest feature %s has no imputer", ErrArtifactInvalid, name)
		}
	}
	return nil
}

func positions(names, columns []string) ([]int, error) {
	pos := make([]int, len(columns))
	for i, c := range columns {
		p := indexOf(names, c)
		if p < 0 {
			return nil, fmt.Errorf("%w: column %s is not a forest feature", ErrArtifactInvalid, c)
		}
		pos[i] = p
	}
	return pos, nil
}

func (a *ClusterAdapter) Variant() models.ModelVariant {
	return models.VariantCluster
}

// ImputationDefaults exposes the fitted fill value for every imputed column.
func (a *ClusterAdapter) ImputationDefaults() map[string]float64 {
	out := make(map[string]float64, len(a.numeric.Columns)+len(a.categorical.Columns))
	for i, c := range a.numeric.Columns {
		out[c] = a.numeric.Statistics[i]
	}
	for i, c := range a.categorical.Columns {
		out[c] = a.categorical.Statistics[i]
	}
	return out
}

func (a *ClusterAdapter) Predict(fs models.FeatureSet) (*models.PredictionResult, error) {
	row, err := fs.Vector(a.forest.FeatureNames)
	if err != nil {
		return nil, inferenceErr(models.VariantCluster, "transform", fmt.Errorf("%w: %v", ErrShapeMismatch, err))
	}

	if err := a.imputeInto(row, &a.numeric, a.numericPos, false); err != nil {
		return nil, inferenceErr(models.VariantCluster, "impute", err)
	}
	if err := a.imputeInto(row, &a.categorical, a.categoricalPos, true); err != nil {
		return nil, inferenceErr(models.VariantCluster, "impute", err)
	}

	scaled, err := a.scaler.Transform(gather(row, a.scalerPos))
	if err != nil {
		return nil, inferenceErr(models.VariantCluster, "scale", err)
	}
	scatter(row, a.scalerPos, scaled)

	class, _, err := a.forest.Predict(row)
	if err != nil {
		return nil, inferenceErr(models.VariantCluster, "classify", err)
	}

	return models.NewPredictionResult(models.VariantCluster, class, fs), nil
}

func (a *ClusterAdapter) imputeInto(row []float64, im *Imputer, pos []int, truncate bool) error {
	filled, err := im.Transform(gather(row, pos))
	if err != nil {
		return err
	}
	if truncate {
		for i := range filled {
			filled[i] = math.Trunc(filled[i])
		}
	}
	scatter(row, pos, filled)
	return nil
}

func gather(row []float64, pos []int) []float64 {
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = row[p]
	}
	return out
}

func scatter(row []float64, pos []int, values []float64) {
	for i, p := range pos {
		row[p] = values[i]
	}
}
