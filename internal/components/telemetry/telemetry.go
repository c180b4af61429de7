// Package telemetry is the single reporting surface of ldmonitor. Components
// never log directly, they report through an API so tests can assert on what
// was reported and the binary can fan reports out to slog and otel metrics.
package telemetry

// API receives every report a component makes.
//
// note: fault injection point
type API interface {
	// ReportBroken reports something that failed and needs fixing, like a page
	// whose markup no longer matches any recognizer.
	//
	// Ids name the component and operation, not the line that failed. A failed
	// summary.json request inside the trust level extractor is reported as
	// "extractor.summary", details go into params or a wrapped error. Ids are
	// lowercase with dots between the component and the operation and dashes
	// inside multi-word operations, see the report_... constants in each package.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that did not break anything,
	// like an undecodable value in the key value store.
	ReportWarning(id string, params ...any)

	// ReportDebug reports information only shown with --verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a gauge reading, readings are points over time and
	// are never summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace before passing it on.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
