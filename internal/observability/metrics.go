package observability

import (
	"sort"
	"strings"
	"sync"
)

// Metrics collects counters and histograms for the orchestration core.
// HTTP-level request metrics live in internal/middleware; these cover worker
// invocations and run durations.
type Metrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('{')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte('}')
	}
	return b.String()
}

// Count increments a counter by 1.
func (m *Metrics) Count(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(name, labels)]++
}

// Observe records a histogram sample (durations in milliseconds).
func (m *Metrics) Observe(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := metricKey(name, labels)
	m.histograms[k] = append(m.histograms[k], value)
}

// Counter returns the current value of one counter.
func (m *Metrics) Counter(name string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metricKey(name, labels)]
}

// HistogramSummary is the aggregate view of one histogram series.
type HistogramSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Summary snapshots all counters and histogram aggregates.
func (m *Metrics) Summary() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := make(map[string]float64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}

	hists := make(map[string]HistogramSummary, len(m.histograms))
	for k, vals := range m.histograms {
		if len(vals) == 0 {
			continue
		}
		s := HistogramSummary{Count: len(vals), Min: vals[0], Max: vals[0]}
		sum := 0.0
		for _, v := range vals {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
			sum += v
		}
		s.Avg = sum / float64(len(vals))
		hists[k] = s
	}

	return map[string]any{
		"counters":   counters,
		"histograms": hists,
	}
}
