package observability_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/seo-analyzer/internal/observability"
)

func TestTraceLifecycle(t *testing.T) {
	t.Parallel()

	tracer := observability.NewTracer()
	tr := tracer.StartTrace("run")
	require.Equal(t, 1, tracer.TracesStarted())
	require.Equal(t, 0, tracer.TracesEnded())

	tr.End()
	require.Equal(t, 1, tracer.TracesEnded())

	spans := tracer.Spans(tr.ID)
	require.Len(t, spans, 1)
	require.Equal(t, "run", spans[0].Name)
	require.Equal(t, "completed", spans[0].Status)
	require.Empty(t, spans[0].ParentSpanID)
}

func TestSpanHierarchy(t *testing.T) {
	t.Parallel()

	tracer := observability.NewTracer()
	tr := tracer.StartTrace("run")

	batch := tr.StartSpan("parallel_analysis", nil)
	child := tr.StartSpan("worker/security", batch)
	tr.EndSpan(child, nil)
	tr.EndSpan(batch, nil)
	tr.End()

	spans := tracer.Spans(tr.ID)
	require.Len(t, spans, 3)

	byName := make(map[string]*observability.Span, len(spans))
	for _, sp := range spans {
		byName[sp.Name] = sp
	}
	// nil parent attaches to the root span
	require.Equal(t, byName["run"].SpanID, byName["parallel_analysis"].ParentSpanID)
	require.Equal(t, byName["parallel_analysis"].SpanID, byName["worker/security"].ParentSpanID)
	require.NotEqual(t, byName["parallel_analysis"].SpanID, byName["worker/security"].SpanID)
}

func TestWithSpanPropagatesError(t *testing.T) {
	t.Parallel()

	tracer := observability.NewTracer()
	tr := tracer.StartTrace("run")

	boom := errors.New("capability unavailable")
	err := tr.WithSpan("worker/content", nil, func(sp *observability.Span) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	tr.End()

	var errored *observability.Span
	for _, sp := range tracer.Spans(tr.ID) {
		if sp.Name == "worker/content" {
			errored = sp
		}
	}
	require.NotNil(t, errored)
	require.Equal(t, "error", errored.Status)
	require.Equal(t, "capability unavailable", errored.Attributes["error"])
}

func TestEndSpanIdempotent(t *testing.T) {
	t.Parallel()

	tracer := observability.NewTracer()
	tr := tracer.StartTrace("run")
	sp := tr.StartSpan("synthesis", nil)

	tr.EndSpan(sp, nil)
	tr.EndSpan(sp, errors.New("late fault"))

	require.Equal(t, "completed", sp.Status)
	require.Empty(t, sp.Attributes)
}

func TestConcurrentSpans(t *testing.T) {
	t.Parallel()

	tracer := observability.NewTracer()
	tr := tracer.StartTrace("run")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.WithSpan("worker", nil, func(sp *observability.Span) error {
				return nil
			})
		}()
	}
	wg.Wait()
	tr.End()

	spans := tracer.Spans(tr.ID)
	require.Len(t, spans, 21) // root + workers
	for _, sp := range spans {
		require.NotEqual(t, "in_progress", sp.Status)
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := observability.NewMetrics()
	m.Count("worker_completions", map[string]string{"worker": "security"})
	m.Count("worker_completions", map[string]string{"worker": "security"})
	m.Count("worker_completions", map[string]string{"worker": "onpage"})
	m.Observe("worker_duration_ms", 120, nil)
	m.Observe("worker_duration_ms", 80, nil)

	require.Equal(t, float64(2), m.Counter("worker_completions", map[string]string{"worker": "security"}))
	require.Equal(t, float64(1), m.Counter("worker_completions", map[string]string{"worker": "onpage"}))
	require.Equal(t, float64(0), m.Counter("worker_completions", map[string]string{"worker": "report"}))

	summary := m.Summary()
	require.Contains(t, summary, "counters")
	require.Contains(t, summary, "histograms")
}

func TestMetricsLabelOrderStable(t *testing.T) {
	t.Parallel()

	m := observability.NewMetrics()
	m.Count("requests", map[string]string{"a": "1", "b": "2"})
	m.Count("requests", map[string]string{"b": "2", "a": "1"})
	require.Equal(t, float64(2), m.Counter("requests", map[string]string{"a": "1", "b": "2"}))
}
