// Command modelcheck loads the exported model artifacts and scores a sample
// patient with each model, so a deployment can be checked without a
// database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/model"
	"github.com/OldStager01/heartrisk/pkg/models"
)

// samplePatient is a complete record that every schema accepts.
var samplePatient = map[string]string{
	models.AttrAge:      "54",
	models.AttrSex:      "1",
	models.AttrCP:       "2",
	models.AttrTrestbps: "130",
	models.AttrChol:     "230",
	models.AttrThalach:  "150",
	models.AttrExang:    "0",
	models.AttrOldpeak:  "1.2",
	models.AttrSlope:    "1",
	models.AttrCA:       "0",
	models.AttrThal:     "2",
}

type checkResult struct {
	Model     string                   `json:"model"`
	Result    *models.PredictionResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
	ElapsedMS float64                  `json:"elapsed_ms"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("dir", "models", "model artifact directory")
	input := flag.String("input", "", "JSON file with field -> value strings (defaults to a built-in sample)")
	only := flag.String("model", "", "score only this model type (cluster or neural)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	closer := logger.Setup(logger.Options{Level: *logLevel, Mode: "development"})
	defer closer.Close()
	logger.SetOutput(os.Stderr)

	fields := samplePatient
	if *input != "" {
		data, err := os.ReadFile(*input)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		fields = map[string]string{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("failed to parse input: %w", err)
		}
	}

	variants := models.Variants
	if *only != "" {
		v, ok := models.ParseModelVariant(*only)
		if !ok {
			return fmt.Errorf("unsupported model type %q", *only)
		}
		variants = []models.ModelVariant{v}
	}

	registry, err := model.LoadRegistry(*dir)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	logger.WithField("dir", *dir).Info("Model artifacts loaded")

	validator := features.NewValidator(
		features.ClusterSchema(registry.Cluster.ImputationDefaults()),
		features.NeuralSchema(),
	)

	var (
		results []checkResult
		failed  bool
	)
	for _, v := range variants {
		res := score(registry, validator, v, fields)
		if res.Error != "" {
			failed = true
		}
		results = append(results, res)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("one or more models failed")
	}
	return nil
}

func score(registry *model.Registry, validator *features.Validator, v models.ModelVariant, fields map[string]string) checkResult {
	res := checkResult{Model: v.String()}

	fs, err := validator.Validate(fields, v)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	adapter, err := registry.For(v)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	started := time.Now()
	result, err := adapter.Predict(fs)
	res.ElapsedMS = float64(time.Since(started).Microseconds()) / 1000
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Result = result
	return res
}
