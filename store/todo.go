package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/model"
	"github.com/taskmill/taskmill/remote"
)

const keyTodos = "todos"

// TodoStats is the aggregated view over the canonical todo collection.
type TodoStats struct {
	Total          int
	Completed      int
	Pending        int
	InProgress     int
	HighPriority   int
	CompletionRate float64
}

// TodoStore owns the canonical todo collection. It observes the
// simulated remote (a write-permitted effect mirrors the remote's data
// into the canonical cell) and persists the collection so a session
// survives a reload.
type TodoStore struct {
	api    *remote.API
	gw     kv.Gateway
	auth   *AuthStore
	notify *Notifier
	log    zerolog.Logger

	todos     *cell.Cell[[]model.Todo]
	isLoading *cell.Cell[bool]
	lastError *cell.Cell[string]

	pending    *cell.Derived[[]model.Todo]
	inProgress *cell.Derived[[]model.Todo]
	completed  *cell.Derived[[]model.Todo]
	stats      *cell.Derived[TodoStats]
	loading    *cell.Derived[bool]
	errView    *cell.Derived[string]
}

type TodoOption func(*TodoStore)

func WithTodoLogger(log zerolog.Logger) TodoOption {
	return func(s *TodoStore) { s.log = log }
}

func NewTodoStore(rt *cell.Runtime, api *remote.API, gw kv.Gateway, auth *AuthStore, notify *Notifier, opts ...TodoOption) *TodoStore {
	s := &TodoStore{
		api:    api,
		gw:     gw,
		auth:   auth,
		notify: notify,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.todos = cell.NewCell(rt, []model.Todo{})
	s.isLoading = cell.NewCell(rt, false)
	s.lastError = cell.NewCell(rt, "")

	s.pending = s.filtered(rt, model.StatusTodo)
	s.inProgress = s.filtered(rt, model.StatusInProgress)
	s.completed = s.filtered(rt, model.StatusDone)

	s.stats = cell.NewDerived(rt, func() TodoStats {
		todos := s.todos.Read()
		st := TodoStats{Total: len(todos)}
		for _, t := range todos {
			switch t.Status {
			case model.StatusDone:
				st.Completed++
			case model.StatusTodo:
				st.Pending++
			case model.StatusInProgress:
				st.InProgress++
			}
			if t.Priority == model.PriorityHigh {
				st.HighPriority++
			}
		}
		if st.Total > 0 {
			st.CompletionRate = float64(st.Completed) / float64(st.Total) * 100
		}
		return st
	})

	// Combined views: the store is busy/broken when either it or the
	// remote is.
	s.loading = cell.NewDerived(rt, func() bool {
		return s.isLoading.Read() || s.api.Loading()
	})
	s.errView = cell.NewDerived(rt, func() string {
		if msg := s.lastError.Read(); msg != "" {
			return msg
		}
		return s.api.Err()
	})

	s.setupEffects(rt)
	return s
}

func (s *TodoStore) filtered(rt *cell.Runtime, status model.Status) *cell.Derived[[]model.Todo] {
	return cell.NewDerived(rt, func() []model.Todo {
		var out []model.Todo
		for _, t := range s.todos.Read() {
			if t.Status == status {
				out = append(out, t)
			}
		}
		return out
	})
}

func (s *TodoStore) setupEffects(rt *cell.Runtime) {
	// Store observes remote: mirror the remote collection into the
	// canonical cell. One-directional by contract; the effect writes
	// only cells outside its read set.
	cell.NewEffect(rt, func() error {
		mock := s.api.WatchTodos()
		if len(mock) > 0 {
			s.todos.Write(mock)
		}
		return nil
	}, cell.WithWrites())

	kv.PersistEffect(rt, s.gw, keyTodos, s.todos.Read)

	// Observability only; never writes.
	cell.NewEffect(rt, func() error {
		st := s.stats.Read()
		s.log.Debug().
			Int("total", st.Total).
			Int("completed", st.Completed).
			Float64("completionRate", st.CompletionRate).
			Msg("todo stats")
		return nil
	})
}

// Load fetches the collection from the remote, falling back to the
// persisted copy when the remote rejects.
func (s *TodoStore) Load() error {
	s.isLoading.Write(true)
	s.lastError.Write("")
	defer s.isLoading.Write(false)

	todos, err := s.api.Todos()
	if err != nil {
		s.lastError.Write(err.Error())
		if saved, ok := kv.Get[[]model.Todo](s.gw, keyTodos); ok {
			s.todos.Write(saved)
		}
		return err
	}
	s.todos.Write(todos)
	return nil
}

// Refresh re-fetches from the remote with no gateway fallback; a
// refresh that fails keeps whatever the session already shows.
func (s *TodoStore) Refresh() error {
	s.isLoading.Write(true)
	s.lastError.Write("")
	defer s.isLoading.Write(false)

	todos, err := s.api.Todos()
	if err != nil {
		s.lastError.Write(err.Error())
		return err
	}
	s.todos.Write(todos)
	return nil
}

// Create validates locally, then creates through the remote. The
// canonical cell picks the new entity up via the mirror effect.
func (s *TodoStore) Create(title, description string, priority model.Priority, assignedTo *int, deadline *time.Time) (model.Todo, error) {
	user := s.auth.CurrentUser()
	if user == nil {
		s.notify.Error("Sign in to create tasks")
		return model.Todo{}, ErrNotSignedIn
	}
	if strings.TrimSpace(title) == "" {
		s.notify.Error("Task title must not be empty")
		return model.Todo{}, ErrEmptyTitle
	}

	s.isLoading.Write(true)
	s.lastError.Write("")
	defer s.isLoading.Write(false)

	created, err := s.api.CreateTodo(model.Todo{
		Title:       strings.TrimSpace(title),
		Description: description,
		Priority:    priority,
		AssignedTo:  assignedTo,
		CreatedBy:   user.ID,
		Deadline:    deadline,
	})
	if err != nil {
		s.notify.Error("Could not create the task")
		return model.Todo{}, err
	}
	s.notify.Success(fmt.Sprintf("Task %q created", created.Title))
	return created, nil
}

func (s *TodoStore) Update(id int, patch model.TodoPatch) (model.Todo, error) {
	s.isLoading.Write(true)
	s.lastError.Write("")
	defer s.isLoading.Write(false)

	updated, err := s.api.UpdateTodo(id, patch)
	if err != nil {
		s.notify.Error("Could not update the task")
		return model.Todo{}, err
	}
	s.notify.Success(fmt.Sprintf("Task %q updated", updated.Title))
	return updated, nil
}

// Delete reports false, without notifying success, for an unknown id.
func (s *TodoStore) Delete(id int) (bool, error) {
	s.isLoading.Write(true)
	s.lastError.Write("")
	defer s.isLoading.Write(false)

	ok, err := s.api.DeleteTodo(id)
	if err != nil {
		s.notify.Error("Could not delete the task")
		return false, err
	}
	if ok {
		s.notify.Success("Task deleted")
	}
	return ok, nil
}

// Advance moves a todo one step forward: todo → in-progress → done.
// Done is terminal.
func (s *TodoStore) Advance(id int) (model.Todo, error) {
	var current *model.Todo
	for _, t := range s.todos.Peek() {
		if t.ID == id {
			t := t
			current = &t
			break
		}
	}
	if current == nil {
		return model.Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	next, ok := current.Status.Next()
	if !ok {
		return model.Todo{}, ErrDoneIsFinal
	}
	return s.Update(id, model.TodoPatch{Status: &next})
}

// Assign points the todo at a user id. The reference is weak: the
// assignee may be deleted later and the todo keeps the id.
func (s *TodoStore) Assign(id, userID int) (model.Todo, error) {
	return s.Update(id, model.TodoPatch{AssignedTo: &userID})
}

// Todos reads the canonical collection reactively.
func (s *TodoStore) Todos() []model.Todo { return s.todos.Read() }

func (s *TodoStore) Pending() []model.Todo { return s.pending.Read() }

func (s *TodoStore) InProgress() []model.Todo { return s.inProgress.Read() }

func (s *TodoStore) Completed() []model.Todo { return s.completed.Read() }

func (s *TodoStore) Stats() TodoStats { return s.stats.Read() }

func (s *TodoStore) Loading() bool { return s.loading.Read() }

// Err reads the combined store/remote error view; empty means healthy.
func (s *TodoStore) Err() string { return s.errView.Read() }

func (s *TodoStore) ClearError() {
	s.lastError.Write("")
	s.api.ClearError()
}

// AssigneeName resolves the weak assignee reference for display.
func (s *TodoStore) AssigneeName(t model.Todo) string {
	return s.auth.UserName(t.AssignedTo)
}

// ToggleAPIFailure flips the remote failure mode, for exercising the
// error paths.
func (s *TodoStore) ToggleAPIFailure() {
	s.api.ToggleFailureMode()
}
