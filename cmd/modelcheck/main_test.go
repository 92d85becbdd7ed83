package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/model"
	"github.com/OldStager01/heartrisk/pkg/models"
)

func TestScore_ShippedArtifacts(t *testing.T) {
	registry, err := model.LoadRegistry("../../models")
	require.NoError(t, err)
	validator := features.NewValidator(
		features.ClusterSchema(registry.Cluster.ImputationDefaults()),
		features.NeuralSchema(),
	)

	for _, v := range models.Variants {
		res := score(registry, validator, v, samplePatient)
		require.Empty(t, res.Error, v.String())
		require.NotNil(t, res.Result)
		assert.Equal(t, 1, res.Result.Cluster, v.String())
		assert.Equal(t, v, res.Result.ModelType)
	}

	incomplete := map[string]string{models.AttrAge: "54"}
	res := score(registry, validator, models.VariantNeuralNetwork, incomplete)
	assert.Contains(t, res.Error, "missing required fields")
}
