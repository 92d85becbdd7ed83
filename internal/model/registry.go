package model

import (
	"fmt"
	"path/filepath"

	"github.com/OldStager01/heartrisk/pkg/models"
)

// Adapter turns a validated FeatureSet into a prediction. Implementations
// hold only fitted parameters and are safe for concurrent use.
type Adapter interface {
	Variant() models.ModelVariant
	Predict(fs models.FeatureSet) (*models.PredictionResult, error)
}

// Registry holds one loaded adapter per model variant.
type Registry struct {
	Cluster *ClusterAdapter
	Neural  *NeuralAdapter
}

// LoadRegistry loads both adapters from dir/cluster and dir/neural.
func LoadRegistry(dir string) (*Registry, error) {
	cluster, err := NewClusterAdapter(filepath.Join(dir, ClusterDir))
	if err != nil {
		return nil, err
	}
	neural, err := NewNeuralAdapter(filepath.Join(dir, NeuralDir))
	if err != nil {
		return nil, err
	}
	return &Registry{Cluster: cluster, Neural: neural}, nil
}

// For returns the adapter serving variant.
func (r *Registry) For(variant models.ModelVariant) (Adapter, error) {
	switch variant {
	case models.VariantCluster:
		return r.Cluster, nil
	case models.VariantNeuralNetwork:
		return r.Neural, nil
	default:
		return nil, fmt.Errorf("no adapter for model variant %d", int(variant))
	}
}
