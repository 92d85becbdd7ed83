package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/OldStager01/heartrisk/api/middleware"
	"github.com/OldStager01/heartrisk/internal/events"
	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/orchestrator"
	"github.com/OldStager01/heartrisk/pkg/models"
	"github.com/gin-gonic/gin"
)

// PredictionService is implemented by *orchestrator.Orchestrator.
type PredictionService interface {
	HandlePredictionRequest(ctx context.Context, userID, tag string, raw map[string]string) (*models.PredictionResult, error)
	ListRecords(ctx context.Context, userID string) ([]*models.PredictionRecord, error)
	ListAllRecords(ctx context.Context) ([]*models.PredictionRecord, error)
	DeleteRecord(ctx context.Context, recordID int64, userID int) error
	Validator() *features.Validator
	Publisher(ctx context.Context) *events.Publisher
}

type PredictionHandler struct {
	service PredictionService
}

func NewPredictionHandler(service PredictionService) *PredictionHandler {
	return &PredictionHandler{service: service}
}

// ModelInfo describes one selectable model and the fields it takes.
type ModelInfo struct {
	ModelType string             `json:"model_type" example:"Cluster"`
	Tag       string             `json:"tag" example:"cluster"`
	Required  []string           `json:"required"`
	Optional  []string           `json:"optional"`
	Defaults  map[string]float64 `json:"defaults,omitempty"`
}

// PredictionResponse is a PredictionResult plus a warning when the result
// could not be stored.
type PredictionResponse struct {
	Cluster   int                 `json:"cluster" example:"1"`
	RiskLevel string              `json:"risk_level" example:"Low Risk"`
	Message   string              `json:"message" example:"Patient is predicted to be in Cluster 1 (Low Risk)."`
	Input     models.FeatureSet   `json:"input" swaggertype:"object"`
	ModelType models.ModelVariant `json:"model_type" swaggertype:"string" example:"Cluster"`
	Warning   string              `json:"warning,omitempty"`
}

var variantTags = map[models.ModelVariant]string{
	models.VariantCluster:       "cluster",
	models.VariantNeuralNetwork: "neural",
}

// Models godoc
// @Summary List prediction models
// @Description Selectable models with their required and optional fields
// @Tags Predictions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ModelInfo
// @Failure 401 {object} ErrorResponse
// @Router /prediction/models [get]
func (h *PredictionHandler) Models(c *gin.Context) {
	validator := h.service.Validator()
	out := make([]ModelInfo, 0, len(models.Variants))
	for _, v := range models.Variants {
		schema, ok := validator.Schema(v)
		if !ok {
			continue
		}
		out = append(out, ModelInfo{
			ModelType: v.String(),
			Tag:       variantTags[v],
			Required:  orEmpty(schema.Required),
			Optional:  orEmpty(schema.Optional),
			Defaults:  schema.Defaults,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Submit godoc
// @Summary Submit a prediction
// @Description Validates the clinical fields, runs the selected model and stores the result
// @Tags Predictions
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param model_type formData string true "cluster or neural"
// @Success 200 {object} PredictionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /prediction/submit [post]
func (h *PredictionHandler) Submit(c *gin.Context) {
	fields, err := readFields(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	userID := strconv.Itoa(middleware.GetUserID(c))
	result, warning, ok := predict(c, h.service, userID, fields)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, PredictionResponse{
		Cluster:   result.Cluster,
		RiskLevel: result.RiskLevel,
		Message:   result.Message,
		Input:     result.Input,
		ModelType: result.ModelType,
		Warning:   warning,
	})
}

// predict runs the request and writes the error response itself. A result
// that could not be stored is still returned, with a warning.
func predict(c *gin.Context, service PredictionService, userID string, fields map[string]string) (*models.PredictionResult, string, bool) {
	tag := fields[features.ModelTypeField]
	result, err := service.HandlePredictionRequest(c.Request.Context(), userID, tag, fields)
	if err != nil {
		var perr *orchestrator.PersistenceError
		if errors.As(err, &perr) && result != nil {
			logger.WarnCtxf(c.Request.Context(), "Prediction not stored: %v", err)
			return result, persistenceWarning, true
		}
		respondError(c, err)
		return nil, "", false
	}
	return result, "", true
}

func parseRecordID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id, err == nil && id > 0
}
