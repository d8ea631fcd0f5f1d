package hxstream

import (
	"time"

	"go.uber.org/zap"
)

// EventKind identifies a rendering event.
type EventKind string

const (
	EventComponentRender   EventKind = "componentRender"
	EventComponentRendered EventKind = "componentRendered"
	EventStoreDataLoad     EventKind = "storeDataLoad"
	EventStoreDataLoaded   EventKind = "storeDataLoaded"
	EventActionSend        EventKind = "actionSend"
	EventActionSent        EventKind = "actionSent"
	EventError             EventKind = "error"
)

// Event describes something that happened during a render.
type Event struct {
	Kind     EventKind
	RenderID string
	// Component is set for component events, Store for store and action
	// events.
	Component string
	Store     string
	Action    string
	// Duration is set on the completion events.
	Duration time.Duration
	Err      error
}

// Observer receives rendering events. OnEvent is called from the goroutines
// doing the work and must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// logObserver writes events to a zap logger. Errors are logged at error
// level, everything else at debug.
type logObserver struct {
	logger *zap.Logger
}

func (o logObserver) OnEvent(e Event) {
	fields := make([]zap.Field, 0, 6)
	fields = append(fields, zap.String("event", string(e.Kind)), zap.String("render_id", e.RenderID))
	if e.Component != "" {
		fields = append(fields, zap.String("component", e.Component))
	}
	if e.Store != "" {
		fields = append(fields, zap.String("store", e.Store))
	}
	if e.Action != "" {
		fields = append(fields, zap.String("action", e.Action))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("duration", e.Duration))
	}

	if e.Kind == EventError {
		o.logger.Error("render error", append(fields, zap.Error(e.Err))...)
		return
	}
	o.logger.Debug("render event", fields...)
}
