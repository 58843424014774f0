package taskspan

// SpanTracer is the narrow seam through which a Manager may mirror its
// persisted spans into an external tracer (e.g. OpenTelemetry) for
// correlation with other instrumented services. It is additive: the
// log sink and on-disk state remain the source of truth per spec.md
// §4.A, and a nil SpanTracer disables mirroring entirely.
//
// A concrete adapter over go.opentelemetry.io/otel/trace.Tracer lives
// outside this package (see cmd/contextcore) so that pkg/taskspan
// itself never imports the OTel SDK directly — only this interface
// seam does, keeping the engine usable without pulling in an exporter.
type SpanTracer interface {
	// MirrorStart opens an external span mirroring s, returning an
	// opaque handle to close on completion. Implementations must not
	// block or fail the caller; errors are the adapter's concern.
	MirrorStart(s *Span) any
	// MirrorEnd closes the external span previously opened for s.
	MirrorEnd(s *Span, handle any)
}

func (m *Manager) mirrorStart(s *Span) {
	if m.tracer == nil {
		return
	}
	handle := m.tracer.MirrorStart(s)
	m.mu.Lock()
	if m.mirrors == nil {
		m.mirrors = map[string]any{}
	}
	m.mirrors[s.TaskID] = handle
	m.mu.Unlock()
}

func (m *Manager) mirrorEnd(s *Span) {
	if m.tracer == nil {
		return
	}
	m.mu.Lock()
	handle := m.mirrors[s.TaskID]
	delete(m.mirrors, s.TaskID)
	m.mu.Unlock()
	m.tracer.MirrorEnd(s, handle)
}
