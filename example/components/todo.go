package components

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the completion status of a todo.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Todo is a single todo item.
type Todo struct {
	ID        string
	Title     string
	Status    Status
	CreatedAt time.Time
}

// IsCompleted reports whether the todo is done.
func (t Todo) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// TodoStats summarizes the list.
type TodoStats struct {
	Total     int
	Completed int
	Pending   int
}

// DB is an in-memory todo database.
type DB struct {
	mu     sync.RWMutex
	todos  map[string]*Todo
	nextID int
	now    func() time.Time
}

// NewDB creates a database holding the given titles.
func NewDB(titles ...string) *DB {
	db := &DB{
		todos:  make(map[string]*Todo),
		nextID: 1,
		now:    time.Now,
	}
	for _, title := range titles {
		db.Add(title)
	}
	return db
}

// Add creates a pending todo and returns its ID.
func (db *DB) Add(title string) string {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := fmt.Sprintf("todo-%d", db.nextID)
	db.nextID++
	db.todos[id] = &Todo{ID: id, Title: title, Status: StatusPending, CreatedAt: db.now()}
	return id
}

// Toggle flips the status of a todo.
func (db *DB) Toggle(id string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	todo, ok := db.todos[id]
	if !ok {
		return false
	}
	if todo.Status == StatusCompleted {
		todo.Status = StatusPending
	} else {
		todo.Status = StatusCompleted
	}
	return true
}

// Delete removes a todo.
func (db *DB) Delete(id string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.todos[id]; !ok {
		return false
	}
	delete(db.todos, id)
	return true
}

// List returns copies of the todos with the given status, oldest first. An
// empty status matches every todo.
func (db *DB) List(status Status) []Todo {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Todo
	for _, t := range db.todos {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stats counts todos by status.
func (db *DB) Stats() TodoStats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var s TodoStats
	for _, t := range db.todos {
		s.Total++
		if t.Status == StatusCompleted {
			s.Completed++
		} else {
			s.Pending++
		}
	}
	return s
}
