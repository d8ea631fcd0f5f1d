package hxstream

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxstream/lib/tokenizer"
)

// LoadFunc fetches the data a component's template is rendered with.
type LoadFunc func(ctx context.Context, c *Context) (any, error)

// Template renders loaded data.
type Template func(ctx context.Context, data any) templ.Component

// ErrorTemplate renders a component's failure in place of its output.
type ErrorTemplate func(ctx context.Context, err error) templ.Component

// Component combines the lifecycle interfaces a typed component implements.
type Component[D any] interface {
	Loader[D]
	Renderer[D]
}

// Descriptor is the registered form of a component: a name, a load
// operation, a template and optionally an error template. Descriptors are
// immutable once added to a Registry.
type Descriptor struct {
	name          string
	load          LoadFunc
	template      Template
	errorTemplate ErrorTemplate
}

// NewDescriptor creates a descriptor from plain functions. A nil load
// renders the template with nil data.
//
//	hxstream.NewDescriptor("clock", nil, func(ctx context.Context, _ any) templ.Component {
//	    return templ.Raw(time.Now().Format(time.Kitchen))
//	})
func NewDescriptor(name string, load LoadFunc, tmpl Template) *Descriptor {
	return &Descriptor{
		name:     canonicalName(name),
		load:     load,
		template: tmpl,
	}
}

// Define creates a descriptor from a typed component. If c also implements
// ErrorRenderer, it becomes the error template.
//
//	reg.Add(hxstream.Define[NewsData]("news", &News{}))
func Define[D any](name string, c Component[D]) *Descriptor {
	d := NewDescriptor(name,
		func(ctx context.Context, cc *Context) (any, error) {
			return c.Load(ctx, cc)
		},
		func(ctx context.Context, data any) templ.Component {
			typed, _ := data.(D)
			return c.Render(ctx, typed)
		},
	)
	if er, ok := c.(ErrorRenderer); ok {
		d.errorTemplate = er.RenderError
	}
	return d
}

// WithErrorTemplate sets the error template and returns d.
func (d *Descriptor) WithErrorTemplate(t ErrorTemplate) *Descriptor {
	d.errorTemplate = t
	return d
}

// Name returns the canonical component name.
func (d *Descriptor) Name() string {
	return d.name
}

// HasErrorTemplate reports whether failures render an error template.
func (d *Descriptor) HasErrorTemplate() bool {
	return d.errorTemplate != nil
}

// canonicalName maps a tag or component name to its registry key:
// lower-cased, without the component prefix, with html aliased to document.
func canonicalName(tag string) string {
	name := strings.ToLower(strings.TrimSpace(tag))
	name = strings.TrimPrefix(name, tokenizer.ComponentPrefix)
	if name == "html" {
		return tokenizer.DocumentTag
	}
	return name
}
