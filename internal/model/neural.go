package model

import (
	"fmt"
	"path/filepath"

	"github.com/OldStager01/heartrisk/pkg/models"
)

const (
	NeuralDir              = "neural"
	NeuralPreprocessorFile = "preprocessor.json"
	NeuralNetworkFile      = "dense_model.json"

	neuralClasses = 3
)

// NeuralAdapter scores features with the dense classifier. Output index i
// is reported as cluster i+1.
type NeuralAdapter struct {
	preprocessor Preprocessor
	network      DenseNetwork
}

func NewNeuralAdapter(dir string) (*NeuralAdapter, error) {
	a := &NeuralAdapter{}

	if err := loadJSON(filepath.Join(dir, NeuralPreprocessorFile), &a.preprocessor); err != nil {
		return nil, inferenceErr(models.VariantNeuralNetwork, "load artifacts", err)
	}
	if err := loadJSON(filepath.Join(dir, NeuralNetworkFile), &a.network); err != nil {
		return nil, inferenceErr(models.VariantNeuralNetwork, "load artifacts", err)
	}
	if err := a.init(); err != nil {
		return nil, inferenceErr(models.VariantNeuralNetwork, "load artifacts", err)
	}
	return a, nil
}

func (a *NeuralAdapter) init() error {
	if err := a.preprocessor.validate(); err != nil {
		return err
	}
	if err := a.network.validate(); err != nil {
		return err
	}
	if w := a.preprocessor.OutputWidth(); w != a.network.InputWidth() {
		return fmt.Errorf("%w: preprocessor emits %d values, network expects %d",
			ErrArtifactInvalid, w, a.network.InputWidth())
	}
	if w := a.network.OutputWidth(); w != neuralClasses {
		return fmt.Errorf("%w: network emits %d classes, want %d", ErrArtifactInvalid, w, neuralClasses)
	}
	return nil
}

func (a *NeuralAdapter) Variant() models.ModelVariant {
	return models.VariantNeuralNetwork
}

func (a *NeuralAdapter) Predict(fs models.FeatureSet) (*models.PredictionResult, error) {
	x, err := a.preprocessor.Transform(fs.Values())
	if err != nil {
		return nil, inferenceErr(models.VariantNeuralNetwork, "transform", err)
	}

	probs, err := a.network.Forward(x)
	if err != nil {
		return nil, inferenceErr(models.VariantNeuralNetwork, "classify", err)
	}

	return models.NewPredictionResult(models.VariantNeuralNetwork, argmax(probs)+1, fs), nil
}
