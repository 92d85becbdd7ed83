package model

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/OldStager01/heartrisk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shippedModels = "../../models"

func clusterFeatures(t *testing.T) models.FeatureSet {
	t.Helper()
	fs, err := models.NewFeatureSet(map[string]float64{
		"age": 54, "sex": 1, "cp": 2, "chol": 230, "thalach": 150, "oldpeak": 1.2,
		"ca": 0, "thal": 2, "trestbps": 130, "exang": 0, "slope": 1,
	})
	require.NoError(t, err)
	return fs
}

func writeArtifact(t *testing.T, dir, name string, v interface{}) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), payload, 0o644))
}

// copyShipped copies one variant's shipped artifacts into a temp dir so a
// test can replace a single file.
func copyShipped(t *testing.T, variant string) string {
	t.Helper()
	dst := filepath.Join(t.TempDir(), variant)
	require.NoError(t, os.MkdirAll(dst, 0o755))
	entries, err := os.ReadDir(filepath.Join(shippedModels, variant))
	require.NoError(t, err)
	for _, e := range entries {
		payload, err := os.ReadFile(filepath.Join(shippedModels, variant, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), payload, 0o644))
	}
	return dst
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(shippedModels)
	require.NoError(t, err)

	for _, v := range models.Variants {
		adapter, err := reg.For(v)
		require.NoError(t, err)
		assert.Equal(t, v, adapter.Variant())
	}

	_, err = reg.For(models.ModelVariant(0))
	assert.Error(t, err)
}

func TestClusterAdapter_Predict(t *testing.T) {
	adapter, err := NewClusterAdapter(filepath.Join(shippedModels, ClusterDir))
	require.NoError(t, err)

	fs := clusterFeatures(t)
	result, err := adapter.Predict(fs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Cluster)
	assert.Equal(t, models.RiskLow, result.RiskLevel)
	assert.Equal(t, "Patient is predicted to be in Cluster 1 (Low Risk).", result.Message)
	assert.Equal(t, models.VariantCluster, result.ModelType)
	assert.Equal(t, fs.Values(), result.Input.Values())
	assert.NoError(t, result.Validate())
}

func TestClusterAdapter_Idempotent(t *testing.T) {
	adapter, err := NewClusterAdapter(filepath.Join(shippedModels, ClusterDir))
	require.NoError(t, err)

	fs := clusterFeatures(t)
	first, err := adapter.Predict(fs)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := adapter.Predict(fs)
			assert.NoError(t, err)
			assert.Equal(t, first, again)
		}()
	}
	wg.Wait()
}

func TestClusterAdapter_ImputesNaN(t *testing.T) {
	adapter, err := NewClusterAdapter(filepath.Join(shippedModels, ClusterDir))
	require.NoError(t, err)

	values := clusterFeatures(t).Values()
	values["trestbps"] = math.NaN()
	fs, err := models.NewFeatureSet(values)
	require.NoError(t, err)

	result, err := adapter.Predict(fs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cluster)
}

func TestClusterAdapter_ImputationDefaults(t *testing.T) {
	adapter, err := NewClusterAdapter(filepath.Join(shippedModels, ClusterDir))
	require.NoError(t, err)

	defaults := adapter.ImputationDefaults()
	assert.Equal(t, 130.0, defaults["trestbps"])
	assert.Equal(t, 0.0, defaults["exang"])
	assert.Equal(t, 1.0, defaults["slope"])
}

func TestClusterAdapter_UnmappedClassIsUnknownRisk(t *testing.T) {
	dir := copyShipped(t, ClusterDir)

	var forest Forest
	require.NoError(t, loadJSON(filepath.Join(dir, ClusterForestFile), &forest))
	forest.Classes = []int{1, 2, 7}
	forest.Trees = []Tree{{Nodes: []TreeNode{{Left: -1, Right: -1, Value: []float64{0, 1, 9}}}}}
	writeArtifact(t, dir, ClusterForestFile, forest)

	adapter, err := NewClusterAdapter(dir)
	require.NoError(t, err)

	result, err := adapter.Predict(clusterFeatures(t))
	require.NoError(t, err)
	assert.Equal(t, 7, result.Cluster)
	assert.Equal(t, models.RiskUnknown, result.RiskLevel)
	assert.NoError(t, result.Validate())
}

func TestClusterAdapter_MissingFeatureIsShapeMismatch(t *testing.T) {
	adapter, err := NewClusterAdapter(filepath.Join(shippedModels, ClusterDir))
	require.NoError(t, err)

	values := clusterFeatures(t).Values()
	delete(values, "thal")
	fs, err := models.NewFeatureSet(values)
	require.NoError(t, err)

	_, err = adapter.Predict(fs)
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, models.VariantCluster, ie.Variant)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNewClusterAdapter_MissingArtifact(t *testing.T) {
	dir := copyShipped(t, ClusterDir)
	require.NoError(t, os.Remove(filepath.Join(dir, ClusterScalerFile)))

	_, err := NewClusterAdapter(dir)
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	assert.True(t, errors.Is(err, ErrArtifactMissing))
}

func TestNewClusterAdapter_InconsistentArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string)
	}{
		{
			name: "statistics shorter than columns",
			mutate: func(t *testing.T, dir string) {
				writeArtifact(t, dir, ClusterNumericImputerFile, Imputer{
					Strategy: "median", Columns: []string{"age", "chol"}, Statistics: []float64{55},
				})
			},
		},
		{
			name: "scaler column outside forest",
			mutate: func(t *testing.T, dir string) {
				writeArtifact(t, dir, ClusterScalerFile, StandardScaler{
					Columns: []string{"bmi"}, Mean: []float64{25}, Scale: []float64{4},
				})
			},
		},
		{
			name: "child index before parent",
			mutate: func(t *testing.T, dir string) {
				var forest Forest
				require.NoError(t, loadJSON(filepath.Join(dir, ClusterForestFile), &forest))
				forest.Trees[0].Nodes[0].Left = 0
				writeArtifact(t, dir, ClusterForestFile, forest)
			},
		},
		{
			name: "non-positive class",
			mutate: func(t *testing.T, dir string) {
				var forest Forest
				require.NoError(t, loadJSON(filepath.Join(dir, ClusterForestFile), &forest))
				forest.Classes = []int{0, 1, 2}
				writeArtifact(t, dir, ClusterForestFile, forest)
			},
		},
		{
			name: "not json",
			mutate: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ClusterForestFile), []byte("{"), 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := copyShipped(t, ClusterDir)
			tt.mutate(t, dir)

			_, err := NewClusterAdapter(dir)
			var ie *InferenceError
			require.ErrorAs(t, err, &ie)
			assert.ErrorIs(t, err, ErrArtifactInvalid)
		})
	}
}

func TestNeuralAdapter_Predict(t *testing.T) {
	adapter, err := NewNeuralAdapter(filepath.Join(shippedModels, NeuralDir))
	require.NoError(t, err)

	fs := clusterFeatures(t)
	result, err := adapter.Predict(fs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Cluster)
	assert.Equal(t, models.RiskNeuralLow, result.RiskLevel)
	assert.Equal(t, models.VariantNeuralNetwork, result.ModelType)
	assert.NoError(t, result.Validate())

	again, err := adapter.Predict(fs)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestNeuralAdapter_ArgmaxMapsToCluster(t *testing.T) {
	dir := copyShipped(t, NeuralDir)

	// Zero weights, so the bias alone decides: index 2 wins.
	width := 21
	weights := make([][]float64, width)
	for i := range weights {
		weights[i] = []float64{0, 0, 0}
	}
	writeArtifact(t, dir, NeuralNetworkFile, DenseNetwork{Layers: []DenseLayer{
		{Activation: "softmax", Weights: weights, Bias: []float64{0.1, 0.2, 3}},
	}})

	adapter, err := NewNeuralAdapter(dir)
	require.NoError(t, err)

	result, err := adapter.Predict(clusterFeatures(t))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Cluster)
	assert.Equal(t, models.RiskNeuralHigh, result.RiskLevel)
	assert.Equal(t, "Patient is predicted to be in Cluster 3 (High Risk (Cluster 3)).", result.Message)
}

func TestNewNeuralAdapter_ShapeChecks(t *testing.T) {
	t.Run("input width", func(t *testing.T) {
		dir := copyShipped(t, NeuralDir)
		writeArtifact(t, dir, NeuralNetworkFile, DenseNetwork{Layers: []DenseLayer{
			{Activation: "softmax", Weights: [][]float64{{1, 0, 0}}, Bias: []float64{0, 0, 0}},
		}})

		_, err := NewNeuralAdapter(dir)
		assert.ErrorIs(t, err, ErrArtifactInvalid)
	})

	t.Run("output width", func(t *testing.T) {
		dir := copyShipped(t, NeuralDir)
		weights := make([][]float64, 21)
		for i := range weights {
			weights[i] = []float64{0, 0}
		}
		writeArtifact(t, dir, NeuralNetworkFile, DenseNetwork{Layers: []DenseLayer{
			{Activation: "softmax", Weights: weights, Bias: []float64{0, 0}},
		}})

		_, err := NewNeuralAdapter(dir)
		assert.ErrorIs(t, err, ErrArtifactInvalid)
	})

	t.Run("missing preprocessor", func(t *testing.T) {
		dir := copyShipped(t, NeuralDir)
		require.NoError(t, os.Remove(filepath.Join(dir, NeuralPreprocessorFile)))

		_, err := NewNeuralAdapter(dir)
		var ie *InferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, models.VariantNeuralNetwork, ie.Variant)
		assert.ErrorIs(t, err, ErrArtifactMissing)
	})
}

func TestNeuralAdapter_MissingFeature(t *testing.T) {
	adapter, err := NewNeuralAdapter(filepath.Join(shippedModels, NeuralDir))
	require.NoError(t, err)

	values := clusterFeatures(t).Values()
	delete(values, "trestbps")
	fs, err := models.NewFeatureSet(values)
	require.NoError(t, err)

	_, err = adapter.Predict(fs)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestForest_TieGoesToFirstClass(t *testing.T) {
	f := Forest{
		FeatureNames: []string{"age"},
		Classes:      []int{1, 2, 3},
		Trees: []Tree{
			{Nodes: []TreeNode{{Left: -1, Right: -1, Value: []float64{5, 5, 0}}}},
		},
	}
	require.NoError(t, f.validate())

	class, proba, err := f.Predict([]float64{40})
	require.NoError(t, err)
	assert.Equal(t, 1, class)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0}, proba, 1e-9)
}

func TestForest_ThresholdGoesLeft(t *testing.T) {
	f := Forest{
		FeatureNames: []string{"age"},
		Classes:      []int{1, 2},
		Trees: []Tree{{Nodes: []TreeNode{
			{Feature: 0, Threshold: 50, Left: 1, Right: 2},
			{Left: -1, Right: -1, Value: []float64{1, 0}},
			{Left: -1, Right: -1, Value: []float64{0, 1}},
		}}},
	}
	require.NoError(t, f.validate())

	class, _, err := f.Predict([]float64{50})
	require.NoError(t, err)
	assert.Equal(t, 1, class)

	class, _, err = f.Predict([]float64{50.1})
	require.NoError(t, err)
	assert.Equal(t, 2, class)

	_, _, err = f.Predict([]float64{1, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestForest_RejectsBadLeafDistributions(t *testing.T) {
	tests := []struct {
		name  string
		value []float64
	}{
		{"all zero", []float64{0, 0}},
		{"negative count", []float64{3, -1}},
		{"not a number", []float64{math.NaN(), 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Forest{
				FeatureNames: []string{"age"},
				Classes:      []int{1, 2},
				Trees: []Tree{{Nodes: []TreeNode{
					{Feature: 0, Threshold: 50, Left: 1, Right: 2},
					{Left: -1, Right: -1, Value: []float64{1, 0}},
					{Left: -1, Right: -1, Value: tt.value},
				}}},
			}
			assert.ErrorIs(t, f.validate(), ErrArtifactInvalid)
		})
	}
}

func TestForest_EmptyLeafFailsPrediction(t *testing.T) {
	f := Forest{
		FeatureNames: []string{"age"},
		Classes:      []int{1, 2},
		Trees:        []Tree{{Nodes: []TreeNode{{Left: -1, Right: -1, Value: []float64{0, 0}}}}},
	}

	_, _, err := f.Predict([]float64{40})
	assert.ErrorIs(t, err, ErrArtifactInvalid)
}

func TestStandardScaler_ZeroScale(t *testing.T) {
	s := StandardScaler{Columns: []string{"a", "b"}, Mean: []float64{1, 10}, Scale: []float64{0, 2}}
	require.NoError(t, s.validate())

	out, err := s.Transform([]float64{3, 14})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, out)
}

func TestPreprocessor_UnknownCategoryEncodesZeros(t *testing.T) {
	p := Preprocessor{Transformers: []ColumnTransform{
		{Name: "cat", Kind: transformerOneHot, Columns: []string{"cp"}, Categories: [][]float64{{0, 1, 2, 3}}},
	}}
	require.NoError(t, p.validate())

	out, err := p.Transform(map[string]float64{"cp": 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, out)

	out, err = p.Transform(map[string]float64{"cp": 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, out)
}

func TestDenseNetwork_Activations(t *testing.T) {
	probs := activate("softmax", []float64{1000, 1000, 1000})
	for _, p := range probs {
		assert.InDelta(t, 1.0/3, p, 1e-9)
	}

	assert.Equal(t, []float64{0, 2}, activate("relu", []float64{-1, 2}))
	assert.InDelta(t, 0.5, activate("sigmoid", []float64{0})[0], 1e-9)
	assert.Equal(t, []float64{-4}, activate("linear", []float64{-4}))
	assert.Equal(t, 2, argmax([]float64{0.1, 0.3, 0.6}))
	assert.Equal(t, 0, argmax([]float64{0.4, 0.4, 0.2}))

	bad := DenseNetwork{Layers: []DenseLayer{{Activation: "swish", Weights: [][]float64{{1}}, Bias: []float64{0}}}}
	assert.ErrorIs(t, bad.validate(), ErrArtifactInvalid)
}
