package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics holds the service counters and gauges and renders them in the
// Prometheus text format.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	predictionsTotal   map[[2]string]int64 // model_type, risk_level
	predictionFailures map[string]int64    // stage
	recordsDeleted     int64
	usersRegistered    int64
	logins             map[string]int64 // outcome

	// Gauges
	circuitBreakerState map[string]int // 0=closed, 1=open, 2=half-open
	wsClients           int

	inferenceSeconds map[string]*summary // model_type
}

type summary struct {
	count int64
	sum   float64
}

func New() *Metrics {
	return &Metrics{
		predictionsTotal:    make(map[[2]string]int64),
		predictionFailures:  make(map[string]int64),
		logins:              make(map[string]int64),
		circuitBreakerState: make(map[string]int),
		inferenceSeconds:    make(map[string]*summary),
	}
}

func (m *Metrics) IncPrediction(modelType, riskLevel string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionsTotal[[2]string{modelType, riskLevel}]++
}

func (m *Metrics) IncPredictionFailure(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionFailures[stage]++
}

func (m *Metrics) ObserveInference(modelType string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.inferenceSeconds[modelType]
	if s == nil {
		s = &summary{}
		m.inferenceSeconds[modelType] = s
	}
	s.count++
	s.sum += d.Seconds()
}

func (m *Metrics) IncRecordDeleted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordsDeleted++
}

func (m *Metrics) IncUserRegistered() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersRegistered++
}

func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[outcome]++
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitBreakerState[name] = state
}

func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wsClients = n
}

// PredictionCount returns the counter for one model type and risk level.
func (m *Metrics) PredictionCount(modelType, riskLevel string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.predictionsTotal[[2]string{modelType, riskLevel}]
}

func (m *Metrics) FailureCount(stage string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.predictionFailures[stage]
}

func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.WriteTo(w)
	})
}

// WriteTo renders every series sorted by name and labels.
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	m.mu.RLock()
	var lines []string

	for key, count := range m.predictionsTotal {
		lines = append(lines, line("heartrisk_predictions_total",
			labels{"model_type", key[0], "risk_level", key[1]}, float64(count)))
	}
	for stage, count := range m.predictionFailures {
		lines = append(lines, line("heartrisk_prediction_failures_total", labels{"stage", stage}, float64(count)))
	}
	for modelType, s := range m.inferenceSeconds {
		lines = append(lines,
			line("heartrisk_inference_seconds_count", labels{"model_type", modelType}, float64(s.count)),
			line("heartrisk_inference_seconds_sum", labels{"model_type", modelType}, s.sum))
	}
	for outcome, count := range m.logins {
		lines = append(lines, line("heartrisk_logins_total", labels{"outcome", outcome}, float64(count)))
	}
	for name, state := range m.circuitBreakerState {
		lines = append(lines, line("heartrisk_circuit_breaker_state", labels{"name", name}, float64(state)))
	}
	lines = append(lines,
		line("heartrisk_records_deleted_total", nil, float64(m.recordsDeleted)),
		line("heartrisk_users_registered_total", nil, float64(m.usersRegistered)),
		line("heartrisk_websocket_clients", nil, float64(m.wsClients)))
	m.mu.RUnlock()

	sort.Strings(lines)
	n, err := io.WriteString(w, strings.Join(lines, ""))
	return int64(n), err
}

// labels is a flat list of key, value pairs.
type labels []string

func line(name string, l labels, value float64) string {
	var b strings.Builder
	b.WriteString(name)
	if len(l) > 0 {
		b.WriteByte('{')
		for i := 0; i+1 < len(l); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s=%q", l[i], l[i+1])
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	b.WriteByte('\n')
	return b.String()
}
