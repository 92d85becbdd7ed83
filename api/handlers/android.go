package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/OldStager01/heartrisk/internal/orchestrator"
	"github.com/OldStager01/heartrisk/pkg/models"
	"github.com/gin-gonic/gin"
)

// AndroidHandler serves the mobile client. Ids travel as strings and the
// input echo is rendered as strings.
type AndroidHandler struct {
	auth    *AuthHandler
	service PredictionService
}

func NewAndroidHandler(auth *AuthHandler, service PredictionService) *AndroidHandler {
	return &AndroidHandler{auth: auth, service: service}
}

type AndroidUser struct {
	ID        string `json:"id" example:"1"`
	Username  string `json:"username" example:"drhouse"`
	Name      string `json:"name" example:"Gregory House"`
	Specialty string `json:"specialty,omitempty" example:"Cardiology"`
	Message   string `json:"message,omitempty" example:"Login successful"`
	Token     string `json:"token,omitempty"`
}

type AndroidPrediction struct {
	Cluster   int               `json:"cluster" example:"1"`
	RiskLevel string            `json:"risk_level" example:"Low Risk"`
	Message   string            `json:"message"`
	Input     map[string]string `json:"input"`
	ModelType string            `json:"model_type" example:"Cluster"`
	Warning   string            `json:"warning,omitempty"`
}

type AndroidRecord struct {
	ID             int64  `json:"id" example:"12"`
	UserID         string `json:"user_id" example:"1"`
	Username       string `json:"username" example:"drhouse"`
	PredictionData string `json:"prediction_data"`
	ModelType      string `json:"model_type" example:"Neural Network"`
	Timestamp      string `json:"timestamp" example:"2024-05-01T09:30:00Z"`
}

func toAndroidPrediction(r *models.PredictionResult) AndroidPrediction {
	return AndroidPrediction{
		Cluster:   r.Cluster,
		RiskLevel: r.RiskLevel,
		Message:   r.Message,
		Input:     r.Input.Strings(),
		ModelType: r.ModelType.String(),
	}
}

func toAndroidRecord(rec *models.PredictionRecord) (AndroidRecord, error) {
	data, err := json.Marshal(toAndroidPrediction(&rec.Result))
	if err != nil {
		return AndroidRecord{}, err
	}
	return AndroidRecord{
		ID:             rec.ID,
		UserID:         strconv.Itoa(rec.UserID),
		Username:       rec.Username,
		PredictionData: string(data),
		ModelType:      rec.ModelType.String(),
		Timestamp:      rec.Timestamp.UTC().Format(time.RFC3339),
	}, nil
}

// Index godoc
// @Summary Mobile API liveness
// @Tags Android
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/android/ [get]
func (h *AndroidHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Android API is running"})
}

// Register godoc
// @Summary Register from the mobile app
// @Tags Android
// @Accept x-www-form-urlencoded
// @Produce json
// @Param name formData string true "Full name"
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param specialty formData string false "Specialty"
// @Success 201 {object} AndroidUser
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/android/register [post]
func (h *AndroidHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields"})
		return
	}

	user, ok := h.auth.register(c, req)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, AndroidUser{
		ID:        strconv.Itoa(user.ID),
		Username:  user.Username,
		Name:      user.Name,
		Specialty: user.Specialty,
	})
}

// Login godoc
// @Summary Log in from the mobile app
// @Tags Android
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Success 200 {object} AndroidUser
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/android/login [post]
func (h *AndroidHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing username or password"})
		return
	}

	user, token, ok := h.auth.authenticate(c, req)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, AndroidUser{
		ID:        strconv.Itoa(user.ID),
		Username:  user.Username,
		Name:      user.Name,
		Specialty: user.Specialty,
		Message:   "Login successful",
		Token:     token,
	})
}

// Predict godoc
// @Summary Submit a prediction from the mobile app
// @Tags Android
// @Accept x-www-form-urlencoded
// @Produce json
// @Param user_id formData string true "User ID"
// @Param model_type formData string true "Cluster or Neural Network"
// @Success 200 {object} AndroidPrediction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/android/predict [post]
func (h *AndroidHandler) Predict(c *gin.Context) {
	fields, err := readFields(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, warning, ok := predict(c, h.service, fields[orchestrator.UserIDField], fields)
	if !ok {
		return
	}

	resp := toAndroidPrediction(result)
	resp.Warning = warning
	c.JSON(http.StatusOK, resp)
}

// Records godoc
// @Summary A user's prediction records
// @Tags Android
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {array} AndroidRecord
// @Failure 404 {object} ErrorResponse
// @Router /api/android/records/{user_id} [get]
func (h *AndroidHandler) Records(c *gin.Context) {
	records, err := h.service.ListRecords(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeRecords(c, records)
}

// AllRecords godoc
// @Summary Every prediction record
// @Tags Android
// @Produce json
// @Success 200 {array} AndroidRecord
// @Router /api/android/records/all [get]
func (h *AndroidHandler) AllRecords(c *gin.Context) {
	records, err := h.service.ListAllRecords(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.writeRecords(c, records)
}

func (h *AndroidHandler) writeRecords(c *gin.Context, records []*models.PredictionRecord) {
	out := make([]AndroidRecord, 0, len(records))
	for _, rec := range records {
		ar, err := toAndroidRecord(rec)
		if err != nil {
			respondError(c, err)
			return
		}
		out = append(out, ar)
	}
	c.JSON(http.StatusOK, out)
}
