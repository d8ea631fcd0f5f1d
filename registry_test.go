package hxstream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/a-h/templ"
)

type newsData struct {
	Items []string
}

type newsComponent struct {
	items []string
	err   error
}

func (c *newsComponent) Load(ctx context.Context, cc *Context) (newsData, error) {
	return newsData{Items: c.items}, c.err
}

func (c *newsComponent) Render(ctx context.Context, data newsData) templ.Component {
	return templ.Raw(fmt.Sprintf("%d items", len(data.Items)))
}

type guardedComponent struct {
	newsComponent
}

func (c *guardedComponent) RenderError(ctx context.Context, err error) templ.Component {
	return templ.Raw("unavailable")
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cat-news", "news"},
		{"CAT-News", "news"},
		{"news", "news"},
		{"head", "head"},
		{"HTML", "document"},
		{"document", "document"},
		{" cat-x ", "x"},
	}
	for _, tt := range tests {
		if got := canonicalName(tt.in); got != tt.want {
			t.Errorf("canonicalName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistry_Component(t *testing.T) {
	reg := NewRegistry()
	reg.Add(NewDescriptor("cat-news", nil, raw("")), NewDescriptor("html", nil, raw("")))

	for _, tag := range []string{"cat-news", "CAT-NEWS", "news"} {
		d, ok := reg.Component(tag)
		if !ok || d.Name() != "news" {
			t.Errorf("Component(%q) = (%v, %v)", tag, d, ok)
		}
	}
	if _, ok := reg.Component("document"); !ok {
		t.Error("html should register as document")
	}
	if _, ok := reg.Component("cat-missing"); ok {
		t.Error("unexpected component")
	}

	names := reg.ComponentNames()
	if len(names) != 2 || names[0] != "document" || names[1] != "news" {
		t.Errorf("ComponentNames() = %v", names)
	}
}

func TestRegistry_AddPanics(t *testing.T) {
	tests := []struct {
		name string
		add  func(*Registry)
	}{
		{"collision", func(reg *Registry) {
			reg.Add(NewDescriptor("x", nil, raw("")))
			reg.Add(NewDescriptor("cat-X", nil, raw("")))
		}},
		{"empty name", func(reg *Registry) {
			reg.Add(NewDescriptor("", nil, raw("")))
		}},
		{"no template", func(reg *Registry) {
			reg.Add(NewDescriptor("x", nil, nil))
		}},
		{"store collision", func(reg *Registry) {
			reg.AddStore(&countingStore{name: "s"}, &countingStore{name: "s"})
		}},
		{"empty store name", func(reg *Registry) {
			reg.AddStore(&countingStore{})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.add(NewRegistry())
		})
	}
}

func TestDefine(t *testing.T) {
	d := Define[newsData]("news", &newsComponent{items: []string{"a", "b"}})
	if d.HasErrorTemplate() {
		t.Error("plain component should not have an error template")
	}

	result, err := TestComponent(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.HTML != "2 items" {
		t.Errorf("HTML = %q", result.HTML)
	}
}

func TestDefine_ErrorRenderer(t *testing.T) {
	c := &guardedComponent{newsComponent{err: errors.New("feed down")}}
	d := Define[newsData]("news", c)
	if !d.HasErrorTemplate() {
		t.Fatal("ErrorRenderer should become the error template")
	}

	result, err := TestComponent(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.HTML != "unavailable" {
		t.Errorf("HTML = %q, want error template output", result.HTML)
	}
	if len(result.Errors()) != 1 {
		t.Errorf("errors = %v, want one", result.Errors())
	}
}
