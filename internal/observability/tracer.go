package observability

import (
	"fmt"
	"sync"
	"time"
)

// Span is one node of the call tree for a single orchestration run.
type Span struct {
	Name         string            `json:"name"`
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time,omitempty"`
	DurationMS   int64             `json:"duration_ms"`
	Status       string            `json:"status"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

const (
	spanInProgress = "in_progress"
	spanCompleted  = "completed"
	spanError      = "error"
)

// Tracer keeps an in-memory record of traces and spans. It is safe for
// concurrent use; worker goroutines open child spans against the same trace.
type Tracer struct {
	mu       sync.Mutex
	spans    []*Span
	spanSeq  int
	traceSeq int
	started  int
	ended    int
}

func NewTracer() *Tracer {
	return &Tracer{}
}

// Trace is one top-level run. Exactly one trace is opened per run and exactly
// one is closed, regardless of faults inside the run.
type Trace struct {
	ID     string
	tracer *Tracer
	root   *Span
}

// StartTrace opens a new trace with a root span.
func (t *Tracer) StartTrace(name string) *Trace {
	t.mu.Lock()
	t.traceSeq++
	t.started++
	id := fmt.Sprintf("trace_%s_%04d", time.Now().Format("20060102150405"), t.traceSeq)
	t.mu.Unlock()

	tr := &Trace{ID: id, tracer: t}
	tr.root = tr.StartSpan(name, nil)
	return tr
}

// End closes the trace and its root span. Safe to call from a defer so the
// trace is closed exactly once even when the run faults.
func (tr *Trace) End() {
	tr.EndSpan(tr.root, nil)
	tr.tracer.mu.Lock()
	tr.tracer.ended++
	tr.tracer.mu.Unlock()
}

// Root returns the trace's root span, the parent for top-level stages.
func (tr *Trace) Root() *Span {
	return tr.root
}

// StartSpan opens a span under the given parent (nil means the root span).
func (tr *Trace) StartSpan(name string, parent *Span) *Span {
	t := tr.tracer
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spanSeq++
	sp := &Span{
		Name:      name,
		TraceID:   tr.ID,
		SpanID:    fmt.Sprintf("span_%08d", t.spanSeq),
		StartTime: time.Now(),
		Status:    spanInProgress,
	}
	if parent != nil {
		sp.ParentSpanID = parent.SpanID
	} else if tr.root != nil {
		sp.ParentSpanID = tr.root.SpanID
	}
	t.spans = append(t.spans, sp)
	return sp
}

// EndSpan closes a span; a non-nil err marks it as errored.
func (tr *Trace) EndSpan(sp *Span, err error) {
	t := tr.tracer
	t.mu.Lock()
	defer t.mu.Unlock()

	if sp.Status != spanInProgress {
		return
	}
	sp.EndTime = time.Now()
	sp.DurationMS = sp.EndTime.Sub(sp.StartTime).Milliseconds()
	if err != nil {
		sp.Status = spanError
		if sp.Attributes == nil {
			sp.Attributes = make(map[string]string)
		}
		sp.Attributes["error"] = err.Error()
	} else {
		sp.Status = spanCompleted
	}
}

// WithSpan runs fn inside a span. A fault closes the span as errored and is
// still returned to the caller; the observability layer never swallows it.
func (tr *Trace) WithSpan(name string, parent *Span, fn func(sp *Span) error) error {
	sp := tr.StartSpan(name, parent)
	err := fn(sp)
	tr.EndSpan(sp, err)
	return err
}

// Spans returns a snapshot of spans, optionally filtered by trace ID.
func (t *Tracer) Spans(traceID string) []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Span, 0, len(t.spans))
	for _, sp := range t.spans {
		if traceID == "" || sp.TraceID == traceID {
			cp := *sp
			out = append(out, &cp)
		}
	}
	return out
}

// TracesStarted returns how many traces have been opened.
func (t *Tracer) TracesStarted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// TracesEnded returns how many traces have been closed.
func (t *Tracer) TracesEnded() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}
