package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MustCounterValue returns the current value of a counter metric.
// If any error occurs, this function panics.
func MustCounterValue(m prometheus.Metric) float64 {
	var written dto.Metric
	if err := m.Write(&written); err != nil {
		panic("failed to read Prometheus counter: " + err.Error())
	}
	return *written.Counter.Value
}
