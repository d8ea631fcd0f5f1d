package hxstream

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pthm/hxstream/lib/serial"
	"github.com/pthm/hxstream/lib/storecache"
)

// DefaultStoreLifetime is how long loaded store data is reused when the
// store does not implement Lifetimer.
const DefaultStoreLifetime = 60 * time.Second

// StoreContext is what a store's Load and Handle receive.
type StoreContext struct {
	// Name is the store's name.
	Name string
	// State holds the store's parameters for this request.
	State map[string]string

	dispatcher *StoreDispatcher
}

// GetStoreData returns the data of another store. Asking for the store's
// own data returns nil.
func (sc *StoreContext) GetStoreData(ctx context.Context, store string) (any, error) {
	if store == sc.Name {
		return nil, nil
	}
	return sc.dispatcher.GetStoreData(ctx, store)
}

// Request returns the HTTP request being rendered.
func (sc *StoreContext) Request() *http.Request {
	return sc.dispatcher.request
}

type storeEntry struct {
	data     any
	loadedAt time.Time
}

// StoreDispatcher loads store data for one request. Concurrent requests for
// the same store share one Load; loaded data is reused for the store's
// lifetime.
type StoreDispatcher struct {
	engine   *Engine
	renderID string
	request  *http.Request
	state    map[string]map[string]string
	wrapper  *serial.Wrapper[any]

	mu     sync.Mutex
	loaded map[string]storeEntry
	now    func() time.Time
}

func newStoreDispatcher(e *Engine, renderID string, r *http.Request, state map[string]map[string]string) *StoreDispatcher {
	d := &StoreDispatcher{
		engine:   e,
		renderID: renderID,
		request:  r,
		state:    state,
		wrapper:  serial.New[any](),
		loaded:   make(map[string]storeEntry),
		now:      time.Now,
	}
	for _, s := range e.registry.storeList() {
		store := s
		d.wrapper.Add(store.Name(), func(ctx context.Context) (any, error) {
			// a burst that settled between the caller's check and its
			// invocation already remembered the data
			if data, ok := d.fresh(store.Name()); ok {
				return data, nil
			}
			return d.load(ctx, store)
		})
	}
	return d
}

// GetStoreData returns the data of the named store.
func (d *StoreDispatcher) GetStoreData(ctx context.Context, name string) (any, error) {
	if !d.wrapper.IsRegistered(name) {
		return nil, fmt.Errorf("%w: %q", ErrStoreNotFound, name)
	}

	if data, ok := d.fresh(name); ok {
		return data, nil
	}

	select {
	case res := <-d.wrapper.InvokeAsync(ctx, name):
		if res.Shared {
			d.engine.metrics.RecordShared(name)
		}
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendAction sends an action to the named store. On success the store's
// data is dropped so the next read loads it again.
func (d *StoreDispatcher) SendAction(ctx context.Context, storeName, action string, args any) (any, error) {
	store, ok := d.engine.registry.Store(storeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStoreNotFound, storeName)
	}
	handler, ok := store.(ActionHandler)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActionNotSupported, storeName)
	}

	d.engine.emit(Event{Kind: EventActionSend, RenderID: d.renderID, Store: storeName, Action: action})
	start := time.Now()
	result, err := handler.Handle(ctx, d.storeContext(storeName), action, args)
	d.engine.emit(Event{Kind: EventActionSent, RenderID: d.renderID, Store: storeName, Action: action, Duration: time.Since(start), Err: err})
	if err != nil {
		d.engine.emit(Event{Kind: EventError, RenderID: d.renderID, Store: storeName, Action: action, Err: err})
		return nil, err
	}

	d.mu.Lock()
	delete(d.loaded, storeName)
	d.mu.Unlock()
	return result, nil
}

func (d *StoreDispatcher) load(ctx context.Context, store Store) (any, error) {
	name := store.Name()
	lifetime := lifetimeOf(store)
	sc := d.storeContext(name)

	cache := d.engine.storeCache
	key := ""
	if cache != nil && isCacheable(store) {
		key = storecache.Key(name, sc.State)
		dst := cacheTarget(store)
		hit, err := cache.Get(ctx, key, dst)
		if err != nil {
			d.engine.logger.Warn("store cache lookup failed", zap.String("store", name), zap.Error(err))
			hit = false
		}
		d.engine.metrics.RecordStoreCache(name, hit)
		if hit {
			cached := reflect.ValueOf(dst).Elem().Interface()
			d.remember(name, cached)
			return cached, nil
		}
	}

	ctx, span := d.engine.tracer.Start(ctx, "hxstream.store",
		trace.WithAttributes(attribute.String("hxstream.store", name)))
	defer span.End()

	d.engine.emit(Event{Kind: EventStoreDataLoad, RenderID: d.renderID, Store: name})
	start := time.Now()
	data, err := store.Load(ctx, sc)
	elapsed := time.Since(start)
	d.engine.metrics.RecordStoreLoad(name, err, elapsed)
	d.engine.emit(Event{Kind: EventStoreDataLoaded, RenderID: d.renderID, Store: name, Duration: elapsed, Err: err})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.engine.emit(Event{Kind: EventError, RenderID: d.renderID, Store: name, Err: err})
		return nil, err
	}

	d.remember(name, data)
	if key != "" {
		if err := cache.Set(ctx, key, data, lifetime); err != nil {
			d.engine.logger.Warn("store cache write failed", zap.String("store", name), zap.Error(err))
		}
	}
	return data, nil
}

// fresh returns the remembered data of a store while it is within its
// lifetime.
func (d *StoreDispatcher) fresh(name string) (any, bool) {
	d.mu.Lock()
	entry, ok := d.loaded[name]
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	store, _ := d.engine.registry.Store(name)
	if d.now().Sub(entry.loadedAt) >= lifetimeOf(store) {
		return nil, false
	}
	return entry.data, true
}

func (d *StoreDispatcher) remember(name string, data any) {
	d.mu.Lock()
	d.loaded[name] = storeEntry{data: data, loadedAt: d.now()}
	d.mu.Unlock()
}

func (d *StoreDispatcher) storeContext(name string) *StoreContext {
	return &StoreContext{Name: name, State: d.stateOf(name), dispatcher: d}
}

func (d *StoreDispatcher) stateOf(name string) map[string]string {
	if s, ok := d.state[name]; ok {
		return s
	}
	return map[string]string{}
}

func lifetimeOf(s Store) time.Duration {
	if lt, ok := s.(Lifetimer); ok && lt.Lifetime() > 0 {
		return lt.Lifetime()
	}
	return DefaultStoreLifetime
}

// cacheTarget returns the pointer a cache hit for s is decoded into.
func cacheTarget(s Store) any {
	if ct, ok := s.(CacheTarget); ok {
		if dst := ct.NewCacheValue(); dst != nil {
			if v := reflect.ValueOf(dst); v.Kind() == reflect.Pointer && !v.IsNil() {
				return dst
			}
		}
	}
	return new(any)
}

func isCacheable(s Store) bool {
	c, ok := s.(Cacheable)
	return ok && c.Cacheable()
}
