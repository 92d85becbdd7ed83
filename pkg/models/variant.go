package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ModelVariant identifies one of the two prediction strategies.
type ModelVariant int

const (
	VariantCluster ModelVariant = iota + 1
	VariantNeuralNetwork
)

// Variants lists every supported variant.
var Variants = []ModelVariant{VariantCluster, VariantNeuralNetwork}

func (v ModelVariant) String() string {
	switch v {
	case VariantCluster:
		return "Cluster"
	case VariantNeuralNetwork:
		return "Neural Network"
	default:
		return fmt.Sprintf("ModelVariant(%d)", int(v))
	}
}

func (v ModelVariant) Valid() bool {
	switch v {
	case VariantCluster, VariantNeuralNetwork:
		return true
	default:
		return false
	}
}

// ParseModelVariant maps a request tag to a variant. Matching ignores case
// and surrounding whitespace.
func ParseModelVariant(tag string) (ModelVariant, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "cluster":
		return VariantCluster, true
	case "neural", "neural network", "neural_network", "neuralnetwork", "nn":
		return VariantNeuralNetwork, true
	default:
		return 0, false
	}
}

func (v ModelVariant) MarshalJSON() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid model variant %d", int(v))
	}
	return json.Marshal(v.String())
}

func (v *ModelVariant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseModelVariant(s)
	if !ok {
		return fmt.Errorf("unsupported model type %q", s)
	}
	*v = parsed
	return nil
}
