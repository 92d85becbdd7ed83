package features

import (
	"github.com/OldStager01/heartrisk/pkg/models"
)

// Schema declares which attributes a model variant needs. Required fields
// are checked in order; optional fields fall back to Defaults.
type Schema struct {
	Variant  models.ModelVariant
	Required []string
	Optional []string
	Defaults map[string]float64
}

// ClusterSchema builds the schema for the tree-ensemble model. defaults
// usually carries the fitted imputer statistics; absent entries become zero.
func ClusterSchema(defaults map[string]float64) Schema {
	optional := []string{models.AttrTrestbps, models.AttrExang, models.AttrSlope}
	filled := make(map[string]float64, len(optional))
	for _, name := range optional {
		filled[name] = defaults[name]
	}

	return Schema{
		Variant: models.VariantCluster,
		Required: []string{
			models.AttrAge, models.AttrSex, models.AttrCP, models.AttrChol,
			models.AttrThalach, models.AttrOldpeak, models.AttrCA, models.AttrThal,
		},
		Optional: optional,
		Defaults: filled,
	}
}

// NeuralSchema builds the schema for the dense classifier, which needs every
// attribute.
func NeuralSchema() Schema {
	return Schema{
		Variant: models.VariantNeuralNetwork,
		Required: []string{
			models.AttrAge, models.AttrTrestbps, models.AttrChol, models.AttrThalach,
			models.AttrOldpeak, models.AttrCA, models.AttrSex, models.AttrCP,
			models.AttrExang, models.AttrSlope, models.AttrThal,
		},
		Defaults: map[string]float64{},
	}
}

// Fields returns required then optional names.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}
