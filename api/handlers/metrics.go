package handlers

import (
	"github.com/OldStager01/heartrisk/internal/metrics"
	"github.com/gin-gonic/gin"
)

// ClientCounter reports connected live-feed clients.
type ClientCounter interface {
	ClientCount() int
}

type MetricsHandler struct {
	metrics *metrics.Metrics
	clients ClientCounter
}

func NewMetricsHandler(m *metrics.Metrics, clients ClientCounter) *MetricsHandler {
	return &MetricsHandler{metrics: m, clients: clients}
}

// Expose godoc
// @Summary Service metrics
// @Description Counters and gauges in text exposition format
// @Tags Health
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *MetricsHandler) Expose(c *gin.Context) {
	if h.clients != nil {
		h.metrics.SetWebSocketClients(h.clients.ClientCount())
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
