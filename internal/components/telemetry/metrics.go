package telemetry

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MeteredAPI forwards everything to an inner API and additionally records
// ReportCount values as otel histograms, one instrument per id.
type MeteredAPI struct {
	API
	meter metric.Meter

	mu          sync.Mutex
	instruments map[string]metric.Int64Histogram
}

func NewMeteredAPI(meterName string, inner API) *MeteredAPI {
	return &MeteredAPI{
		API:         inner,
		meter:       otel.Meter(meterName),
		instruments: map[string]metric.Int64Histogram{},
	}
}

func (m *MeteredAPI) histogram(id string) (metric.Int64Histogram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.instruments[id]; ok {
		return h, nil
	}
	name := strings.NewReplacer(": ", ".", " ", "_").Replace(id)
	h, err := m.meter.Int64Histogram(name)
	if err != nil {
		return nil, err
	}
	m.instruments[id] = h
	return h, nil
}

func (m *MeteredAPI) ReportCount(id string, count int64) {
	m.API.ReportCount(id, count)
	h, err := m.histogram(id)
	if err != nil {
		m.API.ReportWarning("telemetry.metered-count", err, id)
		return
	}
	h.Record(context.Background(), count)
}
