package hxstream

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sink records everything written to it, including repeated WriteHeader
// calls that a real ResponseWriter would ignore.
type sink struct {
	header   http.Header
	statuses []int
	body     bytes.Buffer
	writes   int
	flushes  int
}

func newSink() *sink {
	return &sink{header: make(http.Header)}
}

func (s *sink) Header() http.Header { return s.header }

func (s *sink) WriteHeader(code int) { s.statuses = append(s.statuses, code) }

func (s *sink) Write(p []byte) (int, error) {
	if len(s.statuses) == 0 {
		s.statuses = append(s.statuses, http.StatusOK)
	}
	s.writes++
	return s.body.Write(p)
}

func (s *sink) Flush() { s.flushes++ }

func newTransform(w http.ResponseWriter, next http.Handler) (*ResponseTransform, *RenderingContext) {
	r := httptest.NewRequest(http.MethodGet, "/page", nil)
	rc := NewRenderingContext("test", NewRoutingContext(w, r, next))
	return NewResponseTransform(rc), rc
}

func TestResponseTransform_FlushOnlyWritesOne200(t *testing.T) {
	s := newSink()
	tr, _ := newTransform(s, nil)

	tr.Write([]byte("<p>"))
	tr.Write([]byte("static</p>"))
	if len(s.statuses) != 0 || s.body.Len() != 0 {
		t.Fatalf("nothing should be written while buffering, got statuses %v body %q", s.statuses, s.body.String())
	}
	if tr.State() != Buffering {
		t.Fatalf("State() = %v, want BUFFERING", tr.State())
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(s.statuses) != 1 || s.statuses[0] != http.StatusOK {
		t.Fatalf("statuses = %v, want exactly [200]", s.statuses)
	}
	if got := s.body.String(); got != "<p>static</p>" {
		t.Errorf("body = %q", got)
	}
	if got := s.header.Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := s.header.Get("X-Powered-By"); got != PoweredBy {
		t.Errorf("X-Powered-By = %q", got)
	}
	if tr.State() != Initialized {
		t.Errorf("State() = %v, want INITIALIZED", tr.State())
	}
	if tr.Outcome() != "ok" {
		t.Errorf("Outcome() = %q, want ok", tr.Outcome())
	}
}

func TestResponseTransform_RedirectBeforeFirstChunk(t *testing.T) {
	s := newSink()
	tr, rc := newTransform(s, nil)

	rc.Routing.Redirect("/login")
	rc.MarkAnyComponentRendered()

	n, err := tr.Write([]byte("<html>secret"))
	if err != nil || n != len("<html>secret") {
		t.Fatalf("Write() = (%d, %v)", n, err)
	}
	tr.Write([]byte("more"))
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(s.statuses) != 1 || s.statuses[0] != http.StatusFound {
		t.Fatalf("statuses = %v, want exactly [302]", s.statuses)
	}
	if got := s.header.Get("Location"); got != "/login" {
		t.Errorf("Location = %q, want /login", got)
	}
	if s.writes != 0 || s.body.Len() != 0 {
		t.Errorf("no body bytes expected, got %q", s.body.String())
	}
	if !rc.IsCanceled() {
		t.Error("rendering context should be canceled")
	}
	if tr.Outcome() != "redirect" {
		t.Errorf("Outcome() = %q, want redirect", tr.Outcome())
	}
}

func TestResponseTransform_RedirectRecordedOnlyAtClose(t *testing.T) {
	s := newSink()
	tr, rc := newTransform(s, nil)

	tr.Write([]byte("buffered"))
	rc.Routing.RedirectWithStatus("/moved", http.StatusMovedPermanently)
	tr.Close()

	if len(s.statuses) != 1 || s.statuses[0] != http.StatusMovedPermanently {
		t.Fatalf("statuses = %v, want [301]", s.statuses)
	}
	if s.body.Len() != 0 {
		t.Errorf("buffered bytes leaked: %q", s.body.String())
	}
}

func TestResponseTransform_InvalidRedirectStatusFallsBackTo302(t *testing.T) {
	s := newSink()
	tr, rc := newTransform(s, nil)

	rc.Routing.RedirectWithStatus("/x", http.StatusOK)
	tr.Close()

	if len(s.statuses) != 1 || s.statuses[0] != http.StatusFound {
		t.Fatalf("statuses = %v, want [302]", s.statuses)
	}
}

func TestResponseTransform_NotFoundDelegates(t *testing.T) {
	s := newSink()
	var called int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		if r.URL.Path != "/page" {
			t.Errorf("next got path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("custom 404"))
	})
	tr, rc := newTransform(s, next)

	tr.Write([]byte("<html>"))
	rc.Routing.NotFound()
	rc.MarkHeadRendered()
	tr.Write([]byte("<title>"))
	tr.Write([]byte("dropped"))
	tr.Close()

	if called != 1 {
		t.Fatalf("next called %d times, want 1", called)
	}
	if len(s.statuses) != 1 || s.statuses[0] != http.StatusNotFound {
		t.Errorf("statuses = %v, want [404]", s.statuses)
	}
	if got := s.body.String(); got != "custom 404" {
		t.Errorf("body = %q, want only the next handler's output", got)
	}
	if tr.Outcome() != "not_found" {
		t.Errorf("Outcome() = %q", tr.Outcome())
	}
}

func TestResponseTransform_NotFoundDefaultHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	tr, rc := newTransform(rec, nil)

	rc.Routing.NotFound()
	tr.Close()

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestResponseTransform_Passthrough(t *testing.T) {
	s := newSink()
	tr, rc := newTransform(s, nil)

	tr.Write([]byte("a"))
	rc.MarkHeadRendered()
	tr.Write([]byte("b"))

	if tr.State() != Initialized {
		t.Fatalf("State() = %v after head rendered", tr.State())
	}
	if got := s.body.String(); got != "ab" {
		t.Fatalf("body after transition = %q, want %q", got, "ab")
	}
	flushes := s.flushes
	if flushes == 0 {
		t.Error("transition should flush")
	}

	tr.Write([]byte("c"))
	if got := s.body.String(); got != "abc" {
		t.Errorf("body = %q, want abc", got)
	}
	if s.flushes <= flushes {
		t.Error("passthrough writes should flush")
	}
	tr.Close()
	if len(s.statuses) != 1 {
		t.Errorf("statuses = %v, want one", s.statuses)
	}
}

func TestResponseTransform_Cookies(t *testing.T) {
	s := newSink()
	tr, rc := newTransform(s, nil)

	rc.Routing.SetCookie("a=1; Path=/")
	rc.Routing.SetCookie("b=2")
	tr.Close()

	got := s.header.Values("Set-Cookie")
	if strings.Join(got, "|") != "a=1; Path=/|b=2" {
		t.Errorf("Set-Cookie = %v", got)
	}
	if pending := rc.Routing.PendingCookies(); len(pending) != 0 {
		t.Errorf("cookies should be cleared after flush, got %v", pending)
	}

	rc.Routing.SetCookie("late=1")
	script := rc.Routing.takeScript()
	if !strings.Contains(script, `document.cookie = 'late\u003D1';`) {
		t.Errorf("late cookie should become inline script, got %q", script)
	}
	if rc.Routing.takeScript() != "" {
		t.Error("script should be taken once")
	}
}

func TestResponseTransform_CanceledBeforeStart(t *testing.T) {
	s := newSink()
	tr, rc := newTransform(s, nil)

	rc.Cancel()
	n, err := tr.Write([]byte("x"))
	if n != 1 || err != nil {
		t.Errorf("Write after cancel = (%d, %v), want (1, nil)", n, err)
	}
	tr.Close()

	if len(s.statuses) != 0 || s.body.Len() != 0 {
		t.Errorf("canceled transform wrote statuses %v body %q", s.statuses, s.body.String())
	}
	if tr.Outcome() != "" {
		t.Errorf("Outcome() = %q, want empty", tr.Outcome())
	}
}

func TestResponseTransform_WriteAfterClose(t *testing.T) {
	tr, _ := newTransform(newSink(), nil)
	tr.Close()

	if _, err := tr.Write([]byte("x")); !errors.Is(err, ErrResponseState) {
		t.Errorf("Write after Close error = %v, want ErrResponseState", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestRoutingContext_LateActions(t *testing.T) {
	rc := NewRoutingContext(newSink(), httptest.NewRequest(http.MethodGet, "/", nil), nil)

	rc.Redirect("/first")
	rc.Redirect("/second")
	if got := rc.Actions().RedirectedTo; got != "/first" {
		t.Errorf("RedirectedTo = %q, first redirect should win", got)
	}

	rc.begin()
	if !rc.Started() {
		t.Fatal("Started() should be true after begin")
	}
	rc.Redirect("/o'clock")
	rc.NotFound()
	if rc.Actions().IsNotFoundCalled {
		t.Error("NotFound after start should have no effect")
	}

	script := rc.takeScript()
	want := `<script class="hxstream-inline-script">window.location.assign('/o\'clock');</script>`
	if script != want {
		t.Errorf("script = %q, want %q", script, want)
	}
}
