package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	RiskLow     = "Low Risk"
	RiskMid     = "Mid Risk"
	RiskHigh    = "High Risk"
	RiskUnknown = "Unknown Risk"

	RiskNeuralLow    = "Low Risk (Cluster 1)"
	RiskNeuralMedium = "Medium Risk (Cluster 2)"
	RiskNeuralHigh   = "High Risk (Cluster 3)"
)

var (
	clusterRiskLabels = map[int]string{1: RiskLow, 2: RiskMid, 3: RiskHigh}
	neuralRiskLabels  = map[int]string{1: RiskNeuralLow, 2: RiskNeuralMedium, 3: RiskNeuralHigh}
)

var ErrMalformedResult = errors.New("malformed prediction result")

// RiskLevelFor returns the label for a cluster number. The second return is
// false when the cluster has no label for the variant.
func RiskLevelFor(variant ModelVariant, cluster int) (string, bool) {
	switch variant {
	case VariantCluster:
		label, ok := clusterRiskLabels[cluster]
		if !ok {
			return RiskUnknown, false
		}
		return label, true
	case VariantNeuralNetwork:
		label, ok := neuralRiskLabels[cluster]
		return label, ok
	default:
		return "", false
	}
}

// PredictionResult is what a model adapter produces for one FeatureSet.
type PredictionResult struct {
	Cluster   int          `json:"cluster"`
	RiskLevel string       `json:"risk_level"`
	Message   string       `json:"message"`
	Input     FeatureSet   `json:"input"`
	ModelType ModelVariant `json:"model_type"`
}

// NewPredictionResult builds a result with the label and message derived
// from the cluster number.
func NewPredictionResult(variant ModelVariant, cluster int, input FeatureSet) *PredictionResult {
	label, _ := RiskLevelFor(variant, cluster)
	return &PredictionResult{
		Cluster:   cluster,
		RiskLevel: label,
		Message:   fmt.Sprintf("Patient is predicted to be in Cluster %d (%s).", cluster, label),
		Input:     input,
		ModelType: variant,
	}
}

// Validate checks that the cluster maps to the stored risk label. Unknown
// Risk is only legitimate for Cluster results whose class has no label.
func (r *PredictionResult) Validate() error {
	if !r.ModelType.Valid() {
		return fmt.Errorf("%w: invalid model type", ErrMalformedResult)
	}
	if r.Cluster <= 0 {
		return fmt.Errorf("%w: cluster must be positive, got %d", ErrMalformedResult, r.Cluster)
	}
	label, known := RiskLevelFor(r.ModelType, r.Cluster)
	if !known && r.ModelType != VariantCluster {
		return fmt.Errorf("%w: cluster %d has no %s label", ErrMalformedResult, r.Cluster, r.ModelType)
	}
	if r.RiskLevel != label {
		return fmt.Errorf("%w: risk level %q does not match cluster %d", ErrMalformedResult, r.RiskLevel, r.Cluster)
	}
	return nil
}

// PredictionRecord is a persisted prediction. Records are never updated.
type PredictionRecord struct {
	ID        int64            `json:"id"`
	UserID    int              `json:"user_id"`
	Username  string           `json:"username,omitempty"`
	Result    PredictionResult `json:"data"`
	ModelType ModelVariant     `json:"model_type"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewPredictionRecord(userID int, result *PredictionResult, at time.Time) *PredictionRecord {
	return &PredictionRecord{
		UserID:    userID,
		Result:    *result,
		ModelType: result.ModelType,
		Timestamp: at.UTC(),
	}
}
