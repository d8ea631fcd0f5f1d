package hxstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pthm/hxstream/lib/metrics"
	"github.com/pthm/hxstream/lib/storecache"
	"github.com/pthm/hxstream/lib/tokenizer"
)

const tracerName = "github.com/pthm/hxstream"

// StateFunc extracts per-store parameters from a request.
type StateFunc func(r *http.Request) map[string]map[string]string

// Engine renders component pages into HTTP responses.
//
// Rendering starts from the "document" component. Its output is scanned for
// component tags; every component found starts loading concurrently and its
// output is spliced back in place of its tag, in document order. Output is
// streamed to the client as soon as the first component is ready.
type Engine struct {
	registry   *Registry
	logger     *zap.Logger
	metrics    *metrics.Collector
	observers  []Observer
	release    bool
	storeCache storecache.Cache
	stateFunc  StateFunc
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records Prometheus metrics through c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithRelease switches off the inline error details rendered in place of
// failed components.
func WithRelease(release bool) Option {
	return func(e *Engine) { e.release = release }
}

// WithStoreCache shares data of Cacheable stores between requests.
func WithStoreCache(c storecache.Cache) Option {
	return func(e *Engine) { e.storeCache = c }
}

// WithObserver adds an observer for rendering events.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithStateFunc sets how store parameters are read from the request.
func WithStateFunc(f StateFunc) Option {
	return func(e *Engine) { e.stateFunc = f }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// NewEngine creates an engine rendering the components of reg.
func NewEngine(reg *Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		logger:    zap.NewNop(),
		stateFunc: QueryState,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	e.logger = e.logger.With(zap.String("component", "hxstream"))
	e.observers = append([]Observer{logObserver{logger: e.logger}}, e.observers...)
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Render renders the document component to w. next serves the request if a
// component reports not found; it may be nil.
//
// An error is returned when the document component is not registered
// (nothing has been written) or when writing to the client fails.
func (e *Engine) Render(w http.ResponseWriter, r *http.Request, next http.Handler) error {
	doc, ok := e.registry.Component(tokenizer.DocumentTag)
	if !ok {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, tokenizer.DocumentTag)
	}
	return e.serve(w, r, next, func(req *request) []segment {
		req.rendering.claimDocument()
		return []segment{req.start(doc, tokenizer.Tag{Name: tokenizer.DocumentTag}, slotDocument)}
	})
}

// RenderSource renders a template source directly, without a document
// component.
func (e *Engine) RenderSource(w http.ResponseWriter, r *http.Request, source string, next http.Handler) error {
	return e.serve(w, r, next, func(req *request) []segment {
		return req.plan(source)
	})
}

// Handler returns middleware that renders every request. next handles
// requests a component reports as not found.
func (e *Engine) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := e.Render(w, r, next)
		switch {
		case err == nil:
		case errors.Is(err, ErrComponentNotFound):
			e.logger.Error("document component is not registered", zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
		case errors.Is(err, context.Canceled):
			e.logger.Debug("client went away", zap.String("path", r.URL.Path))
		default:
			e.logger.Warn("render failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
	})
}

func (e *Engine) serve(w http.ResponseWriter, r *http.Request, next http.Handler, build func(*request) []segment) error {
	rc := NewRenderingContext(uuid.NewString(), NewRoutingContext(w, r, next))
	transform := NewResponseTransform(rc)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(r.Context(), rc.Cancel)
	defer stop()

	req := &request{
		engine:    e,
		ctx:       ctx,
		rendering: rc,
		stores:    newStoreDispatcher(e, rc.ID, r, e.stateFunc(r)),
	}

	err := req.walk(transform, build(req))
	if err == nil && !rc.IsCanceled() {
		if script := rc.Routing.takeScript(); script != "" {
			_, err = transform.Write([]byte(script))
		}
	}
	if cerr := transform.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if outcome := transform.Outcome(); outcome != "" {
		e.metrics.RecordResponse(outcome)
	}
	return err
}

func (e *Engine) emit(ev Event) {
	for _, o := range e.observers {
		o.OnEvent(ev)
	}
}

// QueryState is the default StateFunc. Query parameters named
// "store.param" become parameter param of store; other parameters are
// ignored.
//
//	/news?feed.page=2&feed.lang=en  =>  {"feed": {"page": "2", "lang": "en"}}
func QueryState(r *http.Request) map[string]map[string]string {
	state := make(map[string]map[string]string)
	for key, values := range r.URL.Query() {
		store, param, ok := strings.Cut(key, ".")
		if !ok || store == "" || param == "" || len(values) == 0 {
			continue
		}
		if state[store] == nil {
			state[store] = make(map[string]string)
		}
		state[store][param] = values[0]
	}
	return state
}
