package handlers

import (
	"net/http"
	"strconv"

	"github.com/OldStager01/heartrisk/api/middleware"
	"github.com/gin-gonic/gin"
)

type RecordHandler struct {
	service PredictionService
}

func NewRecordHandler(service PredictionService) *RecordHandler {
	return &RecordHandler{service: service}
}

// List godoc
// @Summary List my prediction records
// @Description Newest first
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PredictionRecord
// @Failure 401 {object} ErrorResponse
// @Router /records [get]
func (h *RecordHandler) List(c *gin.Context) {
	records, err := h.service.ListRecords(c.Request.Context(), strconv.Itoa(middleware.GetUserID(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Delete godoc
// @Summary Delete a prediction record
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param id path int true "Record ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	id, ok := parseRecordID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid record id"})
		return
	}

	if err := h.service.DeleteRecord(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "record deleted", "id": id})
}
