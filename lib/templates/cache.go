// Package templates loads component templates from files.
//
// Files are parsed with html/template on first use and kept in a Cache until
// invalidated. A Watcher polls the template directory and invalidates
// changed files, so edits show up on the next render without a restart.
//
// A component named "news" uses news.html for its output and, when present,
// news--error.html for its error output.
package templates

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sync"

	"github.com/a-h/templ"
	"go.uber.org/zap"
)

// Extension is appended to component names to find their template file.
const Extension = ".html"

// ErrorSuffix marks the error template of a component.
const ErrorSuffix = "--error"

// ErrTemplateNotFound is returned when no file exists for a template name.
var ErrTemplateNotFound = errors.New("templates: template not found")

// Cache holds parsed templates keyed by file name. It is safe for concurrent
// use.
type Cache struct {
	fsys   fs.FS
	funcs  template.FuncMap
	logger *zap.Logger

	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// Option configures a Cache.
type Option func(*Cache)

// WithFuncs makes funcs available to every template.
func WithFuncs(funcs template.FuncMap) Option {
	return func(c *Cache) { c.funcs = funcs }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// NewCache creates a cache reading templates from fsys.
func NewCache(fsys fs.FS, opts ...Option) *Cache {
	c := &Cache{
		fsys:   fsys,
		logger: zap.NewNop(),
		parsed: make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "templates"))
	return c
}

// Get returns the parsed template for file, parsing it on first use.
func (c *Cache) Get(file string) (*template.Template, error) {
	c.mu.RLock()
	t, ok := c.parsed[file]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	src, err := fs.ReadFile(c.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, file)
		}
		return nil, fmt.Errorf("templates: read %s: %w", file, err)
	}

	t, err = template.New(path.Base(file)).Funcs(c.funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", file, err)
	}

	c.mu.Lock()
	c.parsed[file] = t
	c.mu.Unlock()

	c.logger.Debug("template parsed", zap.String("file", file))
	return t, nil
}

// Exists reports whether a template file is present.
func (c *Cache) Exists(file string) bool {
	_, err := fs.Stat(c.fsys, file)
	return err == nil
}

// Invalidate drops the parsed template for file.
func (c *Cache) Invalidate(file string) {
	c.mu.Lock()
	delete(c.parsed, file)
	c.mu.Unlock()
}

// Reset drops every parsed template.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.parsed = make(map[string]*template.Template)
	c.mu.Unlock()
}

// Len returns the number of parsed templates held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.parsed)
}

// Template returns a renderer for file. The file is resolved on every
// render, so an invalidated template is re-read.
func (c *Cache) Template(file string) func(ctx context.Context, data any) templ.Component {
	return func(_ context.Context, data any) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			t, err := c.Get(file)
			if err != nil {
				return err
			}
			return t.Execute(w, data)
		})
	}
}

// ErrorData is passed to error templates.
type ErrorData struct {
	Message string
}

// ErrorTemplate returns an error renderer for file.
func (c *Cache) ErrorTemplate(file string) func(ctx context.Context, err error) templ.Component {
	tmpl := c.Template(file)
	return func(ctx context.Context, err error) templ.Component {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		return tmpl(ctx, ErrorData{Message: msg})
	}
}

// Watch invalidates templates reported by w until ctx ends.
func (c *Cache) Watch(ctx context.Context, w *Watcher) {
	w.OnChange(func(files []string) {
		for _, f := range files {
			c.Invalidate(f)
		}
		c.logger.Info("templates invalidated", zap.Strings("files", files))
	})
	go w.Run(ctx)
}
