// Package hxstream renders pages of nested server-side components and
// streams them to the client as they complete.
//
// A page is plain HTML with component tags in it. Tags with the cat- prefix
// name a registered component; head, body and the document component are
// handled structurally.
//
//	<!DOCTYPE html>
//	<html>
//	<head></head>
//	<body>
//	    <cat-news cat-store="feed"></cat-news>
//	    <cat-weather city="Oslo"></cat-weather>
//	</body>
//	</html>
//
// # Components
//
// A component fetches data, then fills a template with it. Typed components
// implement two interfaces:
//   - Loader[D]: Load(ctx, *Context) fetches the data
//   - Renderer[D]: Render(ctx, D) produces the templ.Component output
//
// and are registered with Define:
//
//	reg := hxstream.NewRegistry()
//	reg.Add(hxstream.Define[NewsData]("news", &News{}))
//
// A component that also implements ErrorRenderer renders its error template
// when Load or Render fails. Without one, a failed component renders
// nothing (or an error block outside release mode). A failure never affects
// other components.
//
// # Stores
//
// Stores are named data sources shared by components. A component reads the
// store named by its cat-store attribute with Context.StoreData. When
// several components read the same store during a request, the store's Load
// runs once and all of them receive the result.
//
// # Streaming
//
// Every component on a page starts loading as soon as its tag is found, and
// its output is written in place of the tag in document order. Nothing is
// sent until the head or the first component has rendered; until then a
// component may still call Context.Redirect or Context.NotFound, and the
// page is replaced by a redirect or by the not-found handler. After that
// point output streams to the client as it is produced, and a late redirect
// or cookie is delivered as an inline script.
//
//	engine := hxstream.NewEngine(reg, hxstream.WithLogger(logger))
//	http.Handle("/", engine.Handler(http.NotFoundHandler()))
//
// # Testing
//
// TestRender and TestComponent render without a server:
//
//	result, err := hxstream.TestComponent(hxstream.Define[NewsData]("news", &News{}), nil)
//	if !result.HTMLContains("<li>") {
//	    t.Fatal("missing items")
//	}
package hxstream
