package hxstream

import (
	"context"
	"time"

	"github.com/a-h/templ"
)

// Loader is implemented by components to fetch the data their template
// needs. Load runs concurrently with the loads of sibling components.
//
// Example:
//
//	func (c *News) Load(ctx context.Context, cc *hxstream.Context) (NewsData, error) {
//	    feed, err := cc.StoreData(ctx)
//	    if err != nil {
//	        return NewsData{}, err
//	    }
//	    return NewsData{Items: feed.([]Item)}, nil
//	}
//
// Load may call cc.Redirect or cc.NotFound. If the response has not been
// started yet the whole page is replaced by a 302 or by the not-found
// handler.
type Loader[D any] interface {
	Load(ctx context.Context, c *Context) (D, error)
}

// Renderer is implemented by components to produce templ output from the
// loaded data. Render should be pure.
//
//	func (c *News) Render(ctx context.Context, data NewsData) templ.Component {
//	    return newsTemplate(data)
//	}
//
// The output may itself contain component tags; they are rendered in turn.
type Renderer[D any] interface {
	Render(ctx context.Context, data D) templ.Component
}

// ErrorRenderer is optionally implemented by components to render something
// in place of their output when Load or Render fails.
type ErrorRenderer interface {
	RenderError(ctx context.Context, err error) templ.Component
}

// Store is a named data source shared by components. Within one request a
// store is loaded at most once at a time, however many components ask.
type Store interface {
	Name() string
	Load(ctx context.Context, sc *StoreContext) (any, error)
}

// Lifetimer is optionally implemented by stores to control how long loaded
// data is reused within a request (and in the shared cache, if any).
type Lifetimer interface {
	Lifetime() time.Duration
}

// ActionHandler is optionally implemented by stores that accept actions
// sent from components.
type ActionHandler interface {
	Handle(ctx context.Context, sc *StoreContext, action string, args any) (any, error)
}

// Cacheable is implemented by stores whose data may be kept in the shared
// store cache. The data must survive msgpack encoding.
//
// A cache hit decodes into generic msgpack values (map[string]any, []any)
// unless the store also implements CacheTarget.
type Cacheable interface {
	Cacheable() bool
}

// CacheTarget is implemented by cacheable stores whose data has a concrete
// type. NewCacheValue returns a pointer to a zero value; a cache hit is
// decoded into it and the pointed-to value becomes the store data, so hits
// and loads produce the same type.
//
//	func (s *FeedStore) NewCacheValue() any { return &Feed{} }
type CacheTarget interface {
	NewCacheValue() any
}
