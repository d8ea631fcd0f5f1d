package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pthm/hxstream"
)

// StoreName is the store every todo component reads.
const StoreName = "todos"

// View is the data of the todos store.
type View struct {
	Filter Status
	Todos  []Todo
	Stats  TodoStats
}

// Store exposes a DB to components. The filter comes from the
// todos.status query parameter.
type Store struct {
	db *DB
}

// NewStore creates the todos store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string { return StoreName }

func (s *Store) Lifetime() time.Duration { return 5 * time.Second }

func (s *Store) Load(ctx context.Context, sc *hxstream.StoreContext) (any, error) {
	filter := Status(sc.State["status"])
	switch filter {
	case "", StatusPending, StatusCompleted:
	default:
		return nil, fmt.Errorf("unknown status filter %q", filter)
	}
	return View{
		Filter: filter,
		Todos:  s.db.List(filter),
		Stats:  s.db.Stats(),
	}, nil
}

// Handle implements the add, toggle and delete actions. Arguments are the
// todo title for add and the todo ID otherwise.
func (s *Store) Handle(ctx context.Context, sc *hxstream.StoreContext, action string, args any) (any, error) {
	arg, _ := args.(string)
	switch action {
	case "add":
		if arg == "" {
			return nil, errors.New("title is required")
		}
		return s.db.Add(arg), nil
	case "toggle":
		return s.db.Toggle(arg), nil
	case "delete":
		return s.db.Delete(arg), nil
	}
	return nil, fmt.Errorf("%w: %s", hxstream.ErrActionNotSupported, action)
}
