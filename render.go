package hxstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/hxstream/lib/metrics"
	"github.com/pthm/hxstream/lib/tokenizer"
)

type segmentKind int

const (
	segText segmentKind = iota
	segComponent
	// segScript marks where queued inline script may be emitted.
	segScript
)

type slotKind int

const (
	slotComponent slotKind = iota
	slotHead
	slotDocument
)

// segment is one piece of planned output: literal text or the reserved
// place of a component being rendered.
type segment struct {
	kind segmentKind
	text string
	slot *slot
}

// slot receives a component's planned output. segments must only be read
// after done is closed.
type slot struct {
	name     string
	kind     slotKind
	done     chan struct{}
	segments []segment
}

// request is the state of one top-level render.
type request struct {
	engine    *Engine
	ctx       context.Context
	rendering *RenderingContext
	stores    *StoreDispatcher
}

// plan splits source into segments, starting every component it finds.
// Comments are dropped. An unterminated tag or comment is kept as text
// together with the rest of the source.
func (req *request) plan(source string) []segment {
	var segs []segment
	z := tokenizer.New(source)
	for {
		tok := z.Next()
		switch tok.State {
		case tokenizer.End:
			return segs
		case tokenizer.Illegal:
			return appendText(segs, z.Remaining())
		case tokenizer.Content:
			segs = appendText(segs, tok.Value)
		case tokenizer.Comment:
			if z.State() == tokenizer.Illegal {
				segs = appendText(segs, tok.Value)
			}
		case tokenizer.Component:
			if z.State() == tokenizer.Illegal {
				segs = appendText(segs, tok.Value)
				continue
			}
			var skip int
			segs, skip = req.planComponent(segs, tok.Value, source[tok.End:])
			if skip > 0 {
				source = source[tok.End+skip:]
				z.SetSource(source)
			}
		}
	}
}

// planComponent appends the segments for one component tag. It returns how
// many bytes following the tag were replaced along with it.
func (req *request) planComponent(segs []segment, raw, rest string) ([]segment, int) {
	tag, err := tokenizer.ParseTag(raw)
	if err != nil {
		return appendText(segs, raw), 0
	}
	reg := req.engine.registry

	switch tag.Name {
	case tokenizer.BodyTag:
		return append(appendText(segs, raw), segment{kind: segScript}), 0

	case tokenizer.HeadTag:
		segs = appendText(segs, raw)
		if d, ok := reg.Component(tokenizer.HeadTag); ok && req.rendering.claimHead() {
			segs = append(segs, req.start(d, tag, slotHead))
		}
		return segs, 0

	case tokenizer.DocumentTag:
		d, ok := reg.Component(tokenizer.DocumentTag)
		if !ok || !req.rendering.claimDocument() {
			return appendText(segs, raw), 0
		}
		return append(segs, req.start(d, tag, slotDocument)), elementTail(tag, rest)
	}

	d, ok := reg.Component(tag.Name)
	if !ok || d.Name() == tokenizer.DocumentTag || d.Name() == tokenizer.HeadTag {
		return appendText(segs, raw), 0
	}
	return append(segs, req.start(d, tag, slotComponent)), elementTail(tag, rest)
}

// start renders d in the background and returns the segment reserving its
// place.
func (req *request) start(d *Descriptor, tag tokenizer.Tag, kind slotKind) segment {
	s := &slot{name: d.Name(), kind: kind, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		s.segments = req.render(d, tag, kind)
	}()
	return segment{kind: segComponent, slot: s}
}

// render loads and renders one component, falling back to its error
// template, then to empty output. The output is planned in turn so nested
// components start right away.
func (req *request) render(d *Descriptor, tag tokenizer.Tag, kind slotKind) []segment {
	e := req.engine
	id := req.rendering.ID
	name := d.Name()

	ctx, span := e.tracer.Start(req.ctx, "hxstream.component",
		trace.WithAttributes(attribute.String("hxstream.component", name)))
	defer span.End()

	e.emit(Event{Kind: EventComponentRender, RenderID: id, Component: name})
	start := time.Now()

	attrs := tag.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	cc := &Context{Name: name, Attributes: attrs, req: req}

	out, err := safely(func() (string, error) {
		var data any
		if d.load != nil {
			var err error
			if data, err = d.load(ctx, cc); err != nil {
				return "", err
			}
		}
		return renderComponent(ctx, d.template(ctx, data))
	})

	status := metrics.StatusOK
	if err != nil {
		cerr := &ComponentError{Component: name, Err: err}
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Error())
		e.emit(Event{Kind: EventError, RenderID: id, Component: name, Err: cerr})
		out, status = req.fallback(ctx, d, kind, cerr)
	}

	elapsed := time.Since(start)
	e.metrics.RecordComponent(name, status, elapsed)
	e.emit(Event{Kind: EventComponentRendered, RenderID: id, Component: name, Duration: elapsed, Err: err})

	if req.rendering.IsCanceled() {
		return nil
	}
	return req.plan(out)
}

func (req *request) fallback(ctx context.Context, d *Descriptor, kind slotKind, cerr *ComponentError) (string, string) {
	if d.errorTemplate != nil {
		out, err := safely(func() (string, error) {
			return renderComponent(ctx, d.errorTemplate(ctx, cerr.Err))
		})
		if err == nil {
			return out, metrics.StatusFallback
		}
		req.engine.emit(Event{
			Kind:      EventError,
			RenderID:  req.rendering.ID,
			Component: d.Name(),
			Err:       &ComponentError{Component: d.Name(), Err: fmt.Errorf("error template: %w", err)},
		})
		return "", metrics.StatusError
	}

	if !req.engine.release && kind == slotComponent {
		return `<div class="hxstream-error"><pre>` + html.EscapeString(cerr.Error()) + `</pre></div>`, metrics.StatusError
	}
	return "", metrics.StatusError
}

// walk writes segments to w in order, waiting for each component at its
// slot. It stops as soon as the render is canceled.
func (req *request) walk(w io.Writer, segs []segment) error {
	for _, seg := range segs {
		if req.rendering.IsCanceled() {
			return nil
		}

		switch seg.kind {
		case segText:
			if _, err := io.WriteString(w, seg.text); err != nil {
				return err
			}

		case segScript:
			if err := req.writeScript(w); err != nil {
				return err
			}

		case segComponent:
			select {
			case <-seg.slot.done:
			case <-req.ctx.Done():
				return req.ctx.Err()
			}

			switch seg.slot.kind {
			case slotHead:
				req.rendering.MarkHeadRendered()
			case slotDocument:
				req.rendering.markDocumentRendered()
			default:
				req.rendering.MarkAnyComponentRendered()
			}

			if err := req.writeScript(w); err != nil {
				return err
			}
			if err := req.walk(w, seg.slot.segments); err != nil {
				return err
			}
		}
	}
	return nil
}

func (req *request) writeScript(w io.Writer) error {
	script := req.rendering.Routing.takeScript()
	if script == "" {
		return nil
	}
	_, err := io.WriteString(w, script)
	return err
}

// safely runs f, turning a panic into an error.
func safely(f func() (string, error)) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return f()
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", errors.New("template returned no component")
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func appendText(segs []segment, text string) []segment {
	if text == "" {
		return segs
	}
	if n := len(segs); n > 0 && segs[n-1].kind == segText {
		segs[n-1].text += text
		return segs
	}
	return append(segs, segment{kind: segText, text: text})
}

// elementTail returns the length of rest up to and including the closing
// tag matching an open component tag, or 0 when the tag is self-closing or
// never closed.
func elementTail(tag tokenizer.Tag, rest string) int {
	if tag.SelfClosing {
		return 0
	}
	n, ok := matchingClose(rest, tag.Name)
	if !ok {
		return 0
	}
	return n
}

// matchingClose finds the end of the closing tag for name in s, skipping
// nested elements of the same name and comments.
func matchingClose(s, name string) (int, bool) {
	depth := 1
	i := 0
	for i < len(s) {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			return 0, false
		}
		i += j
		rest := s[i:]

		switch {
		case strings.HasPrefix(rest, "<!--"):
			k := strings.Index(rest[4:], "-->")
			if k < 0 {
				return 0, false
			}
			i += 4 + k + 3
			continue

		case len(rest) > 1 && rest[1] == '/' && hasTagName(rest[2:], name):
			k := strings.IndexByte(rest, '>')
			if k < 0 {
				return 0, false
			}
			depth--
			if depth == 0 {
				return i + k + 1, true
			}
			i += k + 1
			continue

		case hasTagName(rest[1:], name):
			k := strings.IndexByte(rest, '>')
			if k < 0 {
				return 0, false
			}
			if rest[k-1] != '/' {
				depth++
			}
			i += k + 1
			continue
		}
		i++
	}
	return 0, false
}

func hasTagName(s, name string) bool {
	if len(s) <= len(name) || !strings.EqualFold(s[:len(name)], name) {
		return false
	}
	switch s[len(name)] {
	case ' ', '\t', '\n', '\r', '\f', '/', '>':
		return true
	}
	return false
}
