// Package components is the todo application: one store shared by every
// component on the page, file templates, and a typed stats component.
package components

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/a-h/templ"
	"github.com/pthm/hxstream"
	"github.com/pthm/hxstream/lib/templates"
)

//go:embed templates/*.html
var files embed.FS

// Templates returns a template cache over the embedded files.
func Templates(opts ...templates.Option) *templates.Cache {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return templates.NewCache(sub, opts...)
}

// Register adds the todo store and components to reg.
func Register(reg *hxstream.Registry, db *DB, tmpl *templates.Cache) {
	reg.AddStore(NewStore(db))
	reg.Add(
		templates.Component(tmpl, "document", loadDocument),
		templates.Component(tmpl, "head", loadHead),
		templates.Component(tmpl, "sidebar", loadView),
		templates.Component(tmpl, "todo-list", loadView),
		templates.Component(tmpl, "add-todo", loadAddTodo),
		hxstream.Define[TodoStats]("stats", stats{}),
	)
}

func loadDocument(ctx context.Context, c *hxstream.Context) (any, error) {
	if c.Request().URL.Path != "/" {
		c.NotFound()
	}
	return nil, nil
}

type head struct {
	Title string
}

func loadHead(ctx context.Context, c *hxstream.Context) (any, error) {
	data, err := c.GetStoreData(ctx, StoreName)
	if err != nil {
		return head{Title: "Todos"}, nil
	}
	v := data.(View)
	return head{Title: fmt.Sprintf("Todos (%d pending)", v.Stats.Pending)}, nil
}

func loadView(ctx context.Context, c *hxstream.Context) (any, error) {
	return c.StoreData(ctx)
}

// loadAddTodo handles the form post and redirects back to the list.
func loadAddTodo(ctx context.Context, c *hxstream.Context) (any, error) {
	r := c.Request()
	if r.Method != http.MethodPost {
		return nil, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	var err error
	switch {
	case r.PostForm.Has("title"):
		_, err = c.SendAction(ctx, "add", r.PostForm.Get("title"))
	case r.PostForm.Has("toggle"):
		_, err = c.SendAction(ctx, "toggle", r.PostForm.Get("toggle"))
	case r.PostForm.Has("delete"):
		_, err = c.SendAction(ctx, "delete", r.PostForm.Get("delete"))
	}
	if err != nil {
		return nil, err
	}
	c.Redirect(r.URL.RequestURI())
	return nil, nil
}

// stats is a typed component rendered without a template file.
type stats struct{}

func (stats) Load(ctx context.Context, c *hxstream.Context) (TodoStats, error) {
	data, err := c.StoreData(ctx)
	if err != nil {
		return TodoStats{}, err
	}
	return data.(View).Stats, nil
}

func (stats) Render(ctx context.Context, s TodoStats) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<p class="stats">%d of %d done</p>`, s.Completed, s.Total)
		return err
	})
}

func (stats) RenderError(ctx context.Context, err error) templ.Component {
	return templ.Raw(`<p class="stats">stats unavailable</p>`)
}
