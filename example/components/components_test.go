package components

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pthm/hxstream"
)

func newRegistry(db *DB) *hxstream.Registry {
	reg := hxstream.NewRegistry()
	Register(reg, db, Templates())
	return reg
}

func TestDocument(t *testing.T) {
	db := NewDB("first", "second")
	db.Toggle("todo-2")

	result, err := hxstream.TestRenderDocument(httptest.NewRequest(http.MethodGet, "/", nil), newRegistry(db))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsOK() {
		t.Fatalf("status = %d", result.StatusCode)
	}
	if errs := result.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !result.HTMLContainsInOrder(
		"<head><title>Todos (1 pending)</title>",
		"<nav>",
		`<li id="todo-1">`,
		`<li id="todo-2" class="done">`,
		`<input name="title"`,
		`<p class="stats">1 of 2 done</p>`,
		"</body>",
	) {
		t.Errorf("unexpected page:\n%s", result.HTML)
	}
	if strings.Contains(result.HTML, "cat-") {
		t.Errorf("component tags left in output:\n%s", result.HTML)
	}
}

func TestDocument_StoreLoadedOnce(t *testing.T) {
	result, err := hxstream.TestRenderDocument(httptest.NewRequest(http.MethodGet, "/", nil), newRegistry(NewDB("a")))
	if err != nil {
		t.Fatal(err)
	}
	loads := 0
	for _, ev := range result.Events {
		if ev.Kind == hxstream.EventStoreDataLoad && ev.Store == StoreName {
			loads++
		}
	}
	if loads != 1 {
		t.Errorf("store loaded %d times, want 1", loads)
	}
}

func TestDocument_Filter(t *testing.T) {
	db := NewDB("first", "second")
	db.Toggle("todo-1")

	r := httptest.NewRequest(http.MethodGet, "/?todos.status=pending", nil)
	result, err := hxstream.TestRenderDocument(r, newRegistry(db))
	if err != nil {
		t.Fatal(err)
	}
	if result.HTMLContains(`id="todo-1"`) || !result.HTMLContains(`id="todo-2"`) {
		t.Errorf("filter not applied:\n%s", result.HTML)
	}
	if !result.HTMLContains(`href="/?todos.status=pending" class="active"`) {
		t.Errorf("active filter not marked:\n%s", result.HTML)
	}
}

func TestDocument_BadFilterUsesErrorTemplates(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?todos.status=someday", nil)
	result, err := hxstream.TestRenderDocument(r, newRegistry(NewDB("a")))
	if err != nil {
		t.Fatal(err)
	}
	if !result.HTMLContainsAll(
		`<nav><a href="/">All</a></nav>`,
		`Could not load todos: `,
		`stats unavailable`,
	) {
		t.Errorf("error templates not rendered:\n%s", result.HTML)
	}
}

func TestDocument_NotFound(t *testing.T) {
	result, err := hxstream.TestRenderDocument(httptest.NewRequest(http.MethodGet, "/nope", nil), newRegistry(NewDB()))
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasStatus(http.StatusNotFound) {
		t.Errorf("status = %d, want 404", result.StatusCode)
	}
}

func TestAddTodo_PostAddsAndRedirects(t *testing.T) {
	db := NewDB()
	form := url.Values{"title": {"write tests"}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result, err := hxstream.TestRenderDocument(r, newRegistry(db))
	if err != nil {
		t.Fatal(err)
	}

	todos := db.List("")
	if len(todos) != 1 || todos[0].Title != "write tests" {
		t.Fatalf("todos = %+v", todos)
	}
	if !result.RedirectedTo("/") && !result.HTMLContains(`window.location.assign('/');`) {
		t.Errorf("expected a redirect to /, got status %d:\n%s", result.StatusCode, result.HTML)
	}
}

func TestStore_Actions(t *testing.T) {
	ctx := context.Background()
	db := NewDB("a")
	s := NewStore(db)

	if _, err := s.Handle(ctx, nil, "add", ""); err == nil {
		t.Error("empty title should fail")
	}
	if ok, _ := s.Handle(ctx, nil, "toggle", "todo-1"); ok != true {
		t.Error("toggle should succeed")
	}
	if st := db.Stats(); st.Completed != 1 {
		t.Errorf("stats = %+v", st)
	}
	if ok, _ := s.Handle(ctx, nil, "delete", "todo-9"); ok != false {
		t.Error("deleting a missing todo should report false")
	}
	if _, err := s.Handle(ctx, nil, "archive", nil); err == nil {
		t.Error("unknown action should fail")
	}
}
