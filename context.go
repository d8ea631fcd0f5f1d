package hxstream

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// StoreAttribute names the store a component reads through its Context.
const StoreAttribute = "cat-store"

// RenderingContext is the per-request rendering state. It is created for
// every top-level render and discarded when the response finishes.
//
// The flags only ever go from false to true.
type RenderingContext struct {
	// ID identifies the render in logs and events.
	ID      string
	Routing *RoutingContext

	canceled         atomic.Bool
	headRendered     atomic.Bool
	anyRendered      atomic.Bool
	documentRendered atomic.Bool
	headClaimed      atomic.Bool
	documentClaimed  atomic.Bool
}

// NewRenderingContext creates a rendering context for one response.
func NewRenderingContext(id string, routing *RoutingContext) *RenderingContext {
	return &RenderingContext{ID: id, Routing: routing}
}

// IsCanceled reports whether output must stop.
func (rc *RenderingContext) IsCanceled() bool { return rc.canceled.Load() }

// Cancel stops all further output for this response.
func (rc *RenderingContext) Cancel() { rc.canceled.Store(true) }

// IsHeadRendered reports whether the head component's output was reached.
func (rc *RenderingContext) IsHeadRendered() bool { return rc.headRendered.Load() }

// MarkHeadRendered records that the head component's output was reached.
func (rc *RenderingContext) MarkHeadRendered() { rc.headRendered.Store(true) }

// IsAnyComponentRendered reports whether any component other than the
// document finished, successfully or not.
func (rc *RenderingContext) IsAnyComponentRendered() bool { return rc.anyRendered.Load() }

// MarkAnyComponentRendered records that a component finished.
func (rc *RenderingContext) MarkAnyComponentRendered() { rc.anyRendered.Store(true) }

// IsDocumentRendered reports whether the document component's output was
// reached.
func (rc *RenderingContext) IsDocumentRendered() bool { return rc.documentRendered.Load() }

func (rc *RenderingContext) markDocumentRendered() { rc.documentRendered.Store(true) }

// claimHead and claimDocument return true exactly once per request.
func (rc *RenderingContext) claimHead() bool { return rc.headClaimed.CompareAndSwap(false, true) }

func (rc *RenderingContext) claimDocument() bool {
	return rc.documentClaimed.CompareAndSwap(false, true)
}

// Middleware links a render to the surrounding HTTP handler chain.
type Middleware struct {
	Response http.ResponseWriter
	Request  *http.Request
	// Next handles the request when a component calls NotFound.
	// http.NotFound is used when nil.
	Next http.Handler
}

// Actions is a snapshot of the routing decisions made by components.
type Actions struct {
	RedirectedTo     string
	RedirectStatus   int
	IsNotFoundCalled bool
}

// RoutingContext records the routing decisions and cookies produced while a
// page renders. Components may call it concurrently.
//
// Until the response headers are written, a redirect or not-found replaces
// the whole response and cookies become Set-Cookie headers. Afterwards the
// same calls are turned into an inline script emitted with the next output.
type RoutingContext struct {
	Middleware Middleware

	mu        sync.Mutex
	actions   Actions
	setCookie []string
	script    []string
	started   bool
}

// NewRoutingContext creates a routing context bound to one request.
func NewRoutingContext(w http.ResponseWriter, r *http.Request, next http.Handler) *RoutingContext {
	return &RoutingContext{
		Middleware: Middleware{Response: w, Request: r, Next: next},
	}
}

// Redirect asks for a 302 redirect to location.
func (c *RoutingContext) Redirect(location string) {
	c.RedirectWithStatus(location, http.StatusFound)
}

// RedirectWithStatus asks for a redirect with a specific 3xx status.
func (c *RoutingContext) RedirectWithStatus(location string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.script = append(c.script, "window.location.assign('"+template.JSEscapeString(location)+"');")
		return
	}
	if c.actions.RedirectedTo == "" {
		c.actions.RedirectedTo = location
		c.actions.RedirectStatus = status
	}
}

// NotFound asks for the request to be handed to the not-found handler. It
// has no effect once the response has started.
func (c *RoutingContext) NotFound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.actions.IsNotFoundCalled = true
	}
}

// SetCookie queues a Set-Cookie header value.
func (c *RoutingContext) SetCookie(header string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.script = append(c.script, "document.cookie = '"+template.JSEscapeString(header)+"';")
		return
	}
	c.setCookie = append(c.setCookie, header)
}

// Actions returns the routing decisions recorded so far.
func (c *RoutingContext) Actions() Actions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions
}

// PendingCookies returns the Set-Cookie values not yet written.
func (c *RoutingContext) PendingCookies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.setCookie...)
}

// Started reports whether the response headers were written.
func (c *RoutingContext) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// begin marks the response as started and returns the decisions to apply
// together with the cookies, clearing the accumulator.
func (c *RoutingContext) begin() (Actions, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	cookies := c.setCookie
	c.setCookie = nil
	return c.actions, cookies
}

// takeScript returns the inline script queued since the last call, or "".
func (c *RoutingContext) takeScript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) == 0 {
		return ""
	}
	s := `<script class="hxstream-inline-script">` + strings.Join(c.script, "") + `</script>`
	c.script = nil
	return s
}

// Context is what a component's Load receives.
type Context struct {
	// Name is the canonical component name.
	Name string
	// Attributes are the attributes of the component's tag.
	Attributes map[string]string

	req *request
}

// Attr returns the value of an attribute of the component's tag.
func (c *Context) Attr(name string) string {
	return c.Attributes[strings.ToLower(name)]
}

// StoreName returns the store bound to the component through the cat-store
// attribute, or "".
func (c *Context) StoreName() string {
	return c.Attributes[StoreAttribute]
}

// StoreData returns the data of the component's store. A component without
// a store gets nil.
func (c *Context) StoreData(ctx context.Context) (any, error) {
	name := c.StoreName()
	if name == "" {
		return nil, nil
	}
	return c.req.stores.GetStoreData(ctx, name)
}

// GetStoreData returns the data of any registered store.
func (c *Context) GetStoreData(ctx context.Context, store string) (any, error) {
	return c.req.stores.GetStoreData(ctx, store)
}

// SendAction sends an action to the component's store.
func (c *Context) SendAction(ctx context.Context, action string, args any) (any, error) {
	return c.req.stores.SendAction(ctx, c.StoreName(), action, args)
}

// Redirect redirects the response with a 302.
func (c *Context) Redirect(location string) {
	c.req.rendering.Routing.Redirect(location)
}

// NotFound hands the request to the not-found handler.
func (c *Context) NotFound() {
	c.req.rendering.Routing.NotFound()
}

// SetCookie sets a cookie from a Set-Cookie header value.
func (c *Context) SetCookie(header string) {
	c.req.rendering.Routing.SetCookie(header)
}

// Request returns the HTTP request being rendered.
func (c *Context) Request() *http.Request {
	return c.req.rendering.Routing.Middleware.Request
}

// State returns the parameters of the component's store.
func (c *Context) State() map[string]string {
	return c.req.stores.stateOf(c.StoreName())
}

// RenderID returns the identifier of the current render.
func (c *Context) RenderID() string {
	return c.req.rendering.ID
}
