package hxstream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// TestResult holds the outcome of a test render.
//
// Provides convenience methods for asserting on HTML content, headers,
// status codes, cookies, redirects and the events emitted while rendering.
type TestResult struct {
	HTML        string
	StatusCode  int
	Headers     http.Header
	RedirectURL string
	Events      []Event
	// WriteHeaderCalls counts how often the response status was written.
	WriteHeaderCalls int
}

// TestRender renders a template source against the components of reg.
//
//	result, err := hxstream.TestRender(reg, `<main><cat-news></cat-news></main>`)
//	if !result.HTMLContains("<li>") {
//	    t.Fatal("missing news items")
//	}
func TestRender(reg *Registry, source string, opts ...Option) (*TestResult, error) {
	return TestRenderRequest(httptest.NewRequest(http.MethodGet, "/", nil), reg, source, opts...)
}

// TestRenderRequest renders a template source for a specific request.
// Use it for components that read the request or store parameters:
//
//	r := httptest.NewRequest("GET", "/?feed.page=2", nil)
//	result, err := hxstream.TestRenderRequest(r, reg, `<cat-news cat-store="feed"></cat-news>`)
func TestRenderRequest(r *http.Request, reg *Registry, source string, opts ...Option) (*TestResult, error) {
	return testServe(r, reg, opts, func(e *Engine, w http.ResponseWriter, r *http.Request) error {
		return e.RenderSource(w, r, source, nil)
	})
}

// TestRenderDocument renders the registered document component for r.
func TestRenderDocument(r *http.Request, reg *Registry, opts ...Option) (*TestResult, error) {
	return testServe(r, reg, opts, func(e *Engine, w http.ResponseWriter, r *http.Request) error {
		return e.Render(w, r, nil)
	})
}

// TestComponent renders a single component with the given tag attributes.
// The component is registered in a fresh registry together with stores, so
// StoreData works as in a page.
//
//	result, err := hxstream.TestComponent(hxstream.Define[NewsData]("news", &News{}),
//	    map[string]string{"cat-store": "feed"}, feedStore)
func TestComponent(d *Descriptor, attrs map[string]string, stores ...Store) (*TestResult, error) {
	reg := NewRegistry()
	reg.Add(d)
	reg.AddStore(stores...)

	var b strings.Builder
	b.WriteString("<cat-")
	b.WriteString(d.Name())
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, k, strings.ReplaceAll(attrs[k], `"`, "&quot;"))
	}
	b.WriteString("></cat-")
	b.WriteString(d.Name())
	b.WriteString(">")

	return TestRender(reg, b.String())
}

func testServe(r *http.Request, reg *Registry, opts []Option, serve func(*Engine, http.ResponseWriter, *http.Request) error) (*TestResult, error) {
	var (
		mu     sync.Mutex
		events []Event
	)
	opts = append(opts, WithObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})))
	e := NewEngine(reg, opts...)

	rec := &countingRecorder{ResponseRecorder: httptest.NewRecorder()}
	if err := serve(e, rec, r); err != nil && r.Context().Err() == nil {
		return nil, err
	}

	result := &TestResult{
		HTML:             rec.Body.String(),
		StatusCode:       rec.Code,
		Headers:          rec.Header(),
		RedirectURL:      rec.Header().Get("Location"),
		WriteHeaderCalls: rec.writeHeaderCalls,
	}
	mu.Lock()
	result.Events = events
	mu.Unlock()
	return result, nil
}

// countingRecorder counts WriteHeader calls on top of httptest.ResponseRecorder.
type countingRecorder struct {
	*httptest.ResponseRecorder
	writeHeaderCalls int
}

func (r *countingRecorder) WriteHeader(code int) {
	r.writeHeaderCalls++
	r.ResponseRecorder.WriteHeader(code)
}

func (r *countingRecorder) Write(p []byte) (int, error) {
	if r.writeHeaderCalls == 0 {
		r.writeHeaderCalls++
	}
	return r.ResponseRecorder.Write(p)
}

func (r *countingRecorder) Flush() {
	if r.writeHeaderCalls == 0 {
		r.writeHeaderCalls++
	}
	r.ResponseRecorder.Flush()
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsInOrder checks that the substrings appear in the HTML in the
// given order.
func (r *TestResult) HTMLContainsInOrder(substrs ...string) bool {
	rest := r.HTML
	for _, s := range substrs {
		i := strings.Index(rest, s)
		if i < 0 {
			return false
		}
		rest = rest[i+len(s):]
	}
	return true
}

// WasRedirected checks if the response was a redirect.
func (r *TestResult) WasRedirected() bool {
	return r.RedirectURL != ""
}

// RedirectedTo checks if the response was redirected to a specific URL.
func (r *TestResult) RedirectedTo(url string) bool {
	return r.RedirectURL == url
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// HasHeader checks if a header is set with the given value.
func (r *TestResult) HasHeader(key, value string) bool {
	return r.Headers.Get(key) == value
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// Cookies returns the Set-Cookie header values.
func (r *TestResult) Cookies() []string {
	return r.Headers.Values("Set-Cookie")
}

// HasEvent checks if an event of the given kind was emitted for a
// component or store.
func (r *TestResult) HasEvent(kind EventKind, name string) bool {
	for _, e := range r.Events {
		if e.Kind == kind && (e.Component == name || e.Store == name) {
			return true
		}
	}
	return false
}

// Errors returns the errors reported while rendering.
func (r *TestResult) Errors() []error {
	var errs []error
	for _, e := range r.Events {
		if e.Kind == EventError {
			errs = append(errs, e.Err)
		}
	}
	return errs
}
