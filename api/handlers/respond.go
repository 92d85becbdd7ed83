package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/OldStager01/heartrisk/internal/features"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/model"
	"github.com/OldStager01/heartrisk/internal/orchestrator"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const persistenceWarning = "prediction computed but could not be saved"

// ErrorResponse is the body of every non-2xx answer. The field lists are
// only present for validation failures.
type ErrorResponse struct {
	Error         string   `json:"error" example:"validation failed"`
	MissingFields []string `json:"missing_fields,omitempty"`
	InvalidTypes  []string `json:"invalid_types,omitempty"`
}

// respondError maps the service error taxonomy onto status codes.
func respondError(c *gin.Context, err error) {
	var (
		verr *features.ValidationError
		uerr *orchestrator.UnsupportedModelError
		nerr *orchestrator.NotFoundError
		ierr *model.InferenceError
		perr *orchestrator.PersistenceError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "validation failed",
			"missing_fields": orEmpty(verr.MissingFields),
			"invalid_types":  orEmpty(verr.InvalidTypes),
		})
	case errors.As(err, &uerr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: uerr.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("%s not found", nerr.Resource)})
	case errors.As(err, &ierr):
		logger.ErrorCtxf(c.Request.Context(), "Inference failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "prediction failed"})
	case errors.As(err, &perr):
		logger.ErrorCtxf(c.Request.Context(), "Store failure: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage unavailable"})
	default:
		logger.ErrorCtxf(c.Request.Context(), "Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// readFields flattens a form, multipart or JSON body into field -> text.
// JSON numbers keep their literal spelling; null becomes blank.
func readFields(c *gin.Context) (map[string]string, error) {
	switch c.ContentType() {
	case binding.MIMEJSON:
		var body map[string]interface{}
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		out := make(map[string]string, len(body))
		for k, v := range body {
			switch val := v.(type) {
			case nil:
				out[k] = ""
			case string:
				out[k] = val
			case json.Number:
				out[k] = val.String()
			case bool:
				out[k] = strconv.FormatBool(val)
			default:
				out[k] = fmt.Sprint(val)
			}
		}
		return out, nil

	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(1 << 20); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}

	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
	}

	out := make(map[string]string, len(c.Request.PostForm))
	for k, vs := range c.Request.PostForm {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out, nil
}
