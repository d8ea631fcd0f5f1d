package hxstream

import (
	"bytes"
	"errors"
	"net/http"
	"sync"

	"github.com/pthm/hxstream/lib/metrics"
)

// PoweredBy is sent in the X-Powered-By header of rendered pages.
const PoweredBy = "hxstream"

// TransformState is the state of a ResponseTransform.
type TransformState int

const (
	// Buffering holds output back until the page is known to be served.
	Buffering TransformState = iota
	// Initialized means the response was decided; output passes through.
	Initialized
)

func (s TransformState) String() string {
	if s == Initialized {
		return "INITIALIZED"
	}
	return "BUFFERING"
}

// ResponseTransform sits between the rendered output and the
// http.ResponseWriter.
//
// It buffers output until the head or any component has rendered, because
// until then a component may still decide to redirect or to report not
// found. The first write after that point (or Close, if it never comes)
// makes the irrevocable decision:
//   - redirect recorded: Location + 3xx, buffered output discarded
//   - not found recorded: the Middleware.Next handler serves the request
//   - otherwise: 200 with the pending Set-Cookie headers, buffered output
//     flushed, and passthrough from then on
//
// After a redirect or not-found, nothing more is written.
type ResponseTransform struct {
	rc *RenderingContext

	mu      sync.Mutex
	state   TransformState
	buf     bytes.Buffer
	closed  bool
	outcome string
}

// NewResponseTransform creates a transform writing to
// rc.Routing.Middleware.Response.
func NewResponseTransform(rc *RenderingContext) *ResponseTransform {
	return &ResponseTransform{rc: rc}
}

// State returns the current state.
func (t *ResponseTransform) State() TransformState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Outcome returns how the response was finalized: one of the
// metrics.Outcome values, or "" while still buffering.
func (t *ResponseTransform) Outcome() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Write implements io.Writer. Output written after the response was
// canceled is dropped and reported as written.
func (t *ResponseTransform) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrResponseState
	}
	if t.rc.IsCanceled() {
		return len(p), nil
	}

	if t.state == Buffering {
		t.buf.Write(p)
		if !t.rc.IsHeadRendered() && !t.rc.IsAnyComponentRendered() {
			return len(p), nil
		}
		if err := t.initialize(); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	w := t.rc.Routing.Middleware.Response
	if _, err := w.Write(p); err != nil {
		return 0, err
	}
	if err := flush(w); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close finalizes the response. A transform still buffering makes its
// decision now.
func (t *ResponseTransform) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.state == Buffering && !t.rc.IsCanceled() {
		return t.initialize()
	}
	return nil
}

// initialize must be called with t.mu held.
func (t *ResponseTransform) initialize() error {
	t.state = Initialized
	actions, cookies := t.rc.Routing.begin()
	mw := t.rc.Routing.Middleware
	w := mw.Response

	switch {
	case actions.RedirectedTo != "":
		t.rc.Cancel()
		t.buf.Reset()
		t.outcome = metrics.OutcomeRedirect

		status := actions.RedirectStatus
		if status < 300 || status > 399 {
			status = http.StatusFound
		}
		h := w.Header()
		for _, c := range cookies {
			h.Add("Set-Cookie", c)
		}
		h.Set("Location", actions.RedirectedTo)
		w.WriteHeader(status)
		return nil

	case actions.IsNotFoundCalled:
		t.rc.Cancel()
		t.buf.Reset()
		t.outcome = metrics.OutcomeNotFound

		next := mw.Next
		if next == nil {
			next = http.NotFoundHandler()
		}
		next.ServeHTTP(w, mw.Request)
		return nil
	}

	t.outcome = metrics.OutcomeOK
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Powered-By", PoweredBy)
	for _, c := range cookies {
		h.Add("Set-Cookie", c)
	}
	w.WriteHeader(http.StatusOK)

	if t.buf.Len() > 0 {
		_, err := w.Write(t.buf.Bytes())
		t.buf.Reset()
		if err != nil {
			return err
		}
	}
	return flush(w)
}

func flush(w http.ResponseWriter) error {
	err := http.NewResponseController(w).Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}
