// Package remote is an in-memory stand-in for a network API. Every
// operation sleeps an artificial delay, increments a request counter
// and can be forced to fail for resilience testing. Canonical data is
// only mutated on success; an induced failure leaves it untouched.
package remote

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/model"
)

var (
	// ErrSimulated is the induced failure; the wrapped message names
	// the failing endpoint.
	ErrSimulated = errors.New("simulated failure")
	// ErrNotFound is returned for lookups of ids the mock data set
	// does not contain.
	ErrNotFound = errors.New("not found")
)

// Per-endpoint artificial delays, as shipped by the mock backend.
const (
	delayDefault    = 1500 * time.Millisecond
	delayCreateTodo = 2500 * time.Millisecond
	delayUpdateTodo = 2000 * time.Millisecond
	delayDeleteTodo = 1000 * time.Millisecond
	delayCreateUser = 2000 * time.Millisecond
	delayDeleteUser = 1500 * time.Millisecond
)

// Stats is the reactive health snapshot of the mock API.
type Stats struct {
	TotalRequests int
	FailureMode   bool
	TodosCount    int
	UsersCount    int
	HasError      bool
	IsHealthy     bool
}

// StatusCounts groups the mock todos by status.
type StatusCounts struct {
	Todo       int
	InProgress int
	Done       int
}

// API owns the mock data set in cells so dependents can observe it
// reactively, and threads every operation through one call helper.
type API struct {
	log        zerolog.Logger
	delayScale float64
	now        func() time.Time

	todos      *cell.Cell[[]model.Todo]
	users      *cell.Cell[[]model.User]
	requests   *cell.Cell[int]
	shouldFail *cell.Cell[bool]
	loading    *cell.Cell[bool]
	lastError  *cell.Cell[string]

	stats        *cell.Derived[Stats]
	byStatus     *cell.Derived[StatusCounts]
	highPriority *cell.Derived[[]model.Todo]
}

type Option func(*API)

func WithLogger(log zerolog.Logger) Option {
	return func(a *API) { a.log = log }
}

// WithDelayScale multiplies every artificial delay; tests pass 0 to
// make calls immediate.
func WithDelayScale(scale float64) Option {
	return func(a *API) { a.delayScale = scale }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

func New(rt *cell.Runtime, opts ...Option) *API {
	a := &API{
		log:        zerolog.Nop(),
		delayScale: 1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.todos = cell.NewCell(rt, seedTodos())
	a.users = cell.NewCell(rt, seedUsers())
	a.requests = cell.NewCell(rt, 0)
	a.shouldFail = cell.NewCell(rt, false)
	a.loading = cell.NewCell(rt, false)
	a.lastError = cell.NewCell(rt, "")

	a.stats = cell.NewDerived(rt, func() Stats {
		reqs := a.requests.Read()
		failing := a.shouldFail.Read()
		return Stats{
			TotalRequests: reqs,
			FailureMode:   failing,
			TodosCount:    len(a.todos.Read()),
			UsersCount:    len(a.users.Read()),
			HasError:      a.lastError.Read() != "",
			IsHealthy:     reqs > 0 && !failing,
		}
	})
	a.byStatus = cell.NewDerived(rt, func() StatusCounts {
		var counts StatusCounts
		for _, t := range a.todos.Read() {
			switch t.Status {
			case model.StatusTodo:
				counts.Todo++
			case model.StatusInProgress:
				counts.InProgress++
			case model.StatusDone:
				counts.Done++
			}
		}
		return counts
	})
	a.highPriority = cell.NewDerived(rt, func() []model.Todo {
		var high []model.Todo
		for _, t := range a.todos.Read() {
			if t.Priority == model.PriorityHigh {
				high = append(high, t)
			}
		}
		return high
	})

	a.setupMonitoring(rt)
	return a
}

// setupMonitoring registers the read-only observability effects.
func (a *API) setupMonitoring(rt *cell.Runtime) {
	// Usage log every 5th request.
	cell.NewEffect(rt, func() error {
		s := a.stats.Read()
		if s.TotalRequests > 0 && s.TotalRequests%5 == 0 {
			a.log.Info().
				Int("requests", s.TotalRequests).
				Int("todos", s.TodosCount).
				Msg("mock api usage")
		}
		return nil
	})

	cell.NewEffect(rt, func() error {
		if msg := a.lastError.Read(); msg != "" {
			a.log.Error().Str("error", msg).Msg("mock api error")
		}
		return nil
	})

	cell.NewEffect(rt, func() error {
		if high := a.highPriority.Read(); len(high) > 3 {
			a.log.Warn().Int("count", len(high)).Msg("too many high priority todos")
		}
		return nil
	})
}

// call wraps one simulated endpoint: request accounting, latency,
// induced failure, then the operation itself. op runs only when the
// call succeeds, so failures never leave partial state behind.
func call[T any](a *API, endpoint string, delay time.Duration, op func() (T, error)) (T, error) {
	a.requests.Update(func(n int) int { return n + 1 })
	a.loading.Write(true)
	a.lastError.Write("")
	defer a.loading.Write(false)

	a.log.Debug().Str("endpoint", endpoint).Msg("mock api call")
	time.Sleep(time.Duration(float64(delay) * a.delayScale))

	var zero T
	if a.shouldFail.Peek() {
		err := fmt.Errorf("%w for %s", ErrSimulated, endpoint)
		a.lastError.Write(err.Error())
		return zero, err
	}

	v, err := op()
	if err != nil {
		a.lastError.Write(fmt.Sprintf("%s - %s", endpoint, err))
		return zero, err
	}
	return v, nil
}

func (a *API) Todos() ([]model.Todo, error) {
	return call(a, "GET /todos", delayDefault, func() ([]model.Todo, error) {
		return a.todos.Peek(), nil
	})
}

func (a *API) TodoByID(id int) (model.Todo, error) {
	return call(a, fmt.Sprintf("GET /todos/%d", id), delayDefault, func() (model.Todo, error) {
		for _, t := range a.todos.Peek() {
			if t.ID == id {
				return t, nil
			}
		}
		return model.Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
	})
}

// CreateTodo assigns the id and timestamps server-side.
func (a *API) CreateTodo(todo model.Todo) (model.Todo, error) {
	return call(a, "POST /todos", delayCreateTodo, func() (model.Todo, error) {
		now := a.now()
		todo.ID = model.NextID(a.todos.Peek(), func(t model.Todo) int { return t.ID })
		if todo.Status == "" {
			todo.Status = model.StatusTodo
		}
		if todo.Priority == "" {
			todo.Priority = model.PriorityMedium
		}
		todo.CreatedAt = now
		todo.UpdatedAt = now
		a.todos.Update(func(todos []model.Todo) []model.Todo {
			return append(append([]model.Todo(nil), todos...), todo)
		})
		return todo, nil
	})
}

func (a *API) UpdateTodo(id int, patch model.TodoPatch) (model.Todo, error) {
	return call(a, fmt.Sprintf("PUT /todos/%d", id), delayUpdateTodo, func() (model.Todo, error) {
		var updated model.Todo
		found := false
		next := make([]model.Todo, 0, len(a.todos.Peek()))
		for _, t := range a.todos.Peek() {
			if t.ID == id {
				t = patch.Apply(t, a.now())
				updated = t
				found = true
			}
			next = append(next, t)
		}
		if !found {
			return model.Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
		}
		a.todos.Write(next)
		return updated, nil
	})
}

// DeleteTodo reports false, without error, for an unknown id.
func (a *API) DeleteTodo(id int) (bool, error) {
	return call(a, fmt.Sprintf("DELETE /todos/%d", id), delayDeleteTodo, func() (bool, error) {
		before := a.todos.Peek()
		next := make([]model.Todo, 0, len(before))
		for _, t := range before {
			if t.ID != id {
				next = append(next, t)
			}
		}
		a.todos.Write(next)
		return len(next) < len(before), nil
	})
}

func (a *API) Users() ([]model.User, error) {
	return call(a, "GET /users", delayDefault, func() ([]model.User, error) {
		return a.users.Peek(), nil
	})
}

func (a *API) CreateUser(user model.User) (model.User, error) {
	return call(a, "POST /users", delayCreateUser, func() (model.User, error) {
		user.ID = model.NextID(a.users.Peek(), func(u model.User) int { return u.ID })
		if user.Role == "" {
			user.Role = model.RoleUser
		}
		a.users.Update(func(users []model.User) []model.User {
			return append(append([]model.User(nil), users...), user)
		})
		return user, nil
	})
}

func (a *API) DeleteUser(id int) (bool, error) {
	return call(a, fmt.Sprintf("DELETE /users/%d", id), delayDeleteUser, func() (bool, error) {
		before := a.users.Peek()
		next := make([]model.User, 0, len(before))
		for _, u := range before {
			if u.ID != id {
				next = append(next, u)
			}
		}
		a.users.Write(next)
		return len(next) < len(before), nil
	})
}

// WatchTodos reads the mock todo collection, registering the calling
// computation as a dependent. Stores observe the remote through this.
func (a *API) WatchTodos() []model.Todo { return a.todos.Read() }

// WatchUsers is WatchTodos for the user collection.
func (a *API) WatchUsers() []model.User { return a.users.Read() }

// Loading reads the in-flight flag reactively.
func (a *API) Loading() bool { return a.loading.Read() }

// Err reads the last error message reactively; empty means healthy.
func (a *API) Err() string { return a.lastError.Read() }

func (a *API) Stats() Stats { return a.stats.Read() }

func (a *API) TodosByStatus() StatusCounts { return a.byStatus.Read() }

func (a *API) HighPriority() []model.Todo { return a.highPriority.Read() }

// ToggleFailureMode flips the induced-failure flag for the next calls.
func (a *API) ToggleFailureMode() {
	a.shouldFail.Update(func(f bool) bool { return !f })
	a.log.Warn().Bool("failing", a.shouldFail.Peek()).Msg("mock api failure mode")
}

func (a *API) FailureMode() bool { return a.shouldFail.Read() }

func (a *API) ClearError() { a.lastError.Write("") }

// ResetData restores the seed collections.
func (a *API) ResetData() {
	a.todos.Write(seedTodos())
	a.users.Write(seedUsers())
}

// ResetStats zeroes the request counter and last error.
func (a *API) ResetStats() {
	a.requests.Write(0)
	a.lastError.Write("")
}

func seedTodos() []model.Todo {
	one, two := 1, 2
	return []model.Todo{
		{
			ID:         1,
			Title:      "Implement HTTP interceptor",
			Status:     model.StatusInProgress,
			Priority:   model.PriorityHigh,
			AssignedTo: &one,
			CreatedAt:  time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:         2,
			Title:      "Create error handling service",
			Status:     model.StatusDone,
			Priority:   model.PriorityMedium,
			AssignedTo: &two,
			CreatedAt:  time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:         3,
			Title:      "Test API simulation with cells",
			Status:     model.StatusTodo,
			Priority:   model.PriorityLow,
			AssignedTo: &one,
			CreatedAt:  time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
			UpdatedAt:  time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		},
	}
}

func seedUsers() []model.User {
	return []model.User{
		{ID: 1, Name: "Admin User", Email: "admin@example.com", Role: model.RoleAdmin, Password: "admin123"},
		{ID: 2, Name: "Regular User", Email: "user@example.com", Role: model.RoleUser, Password: "user123"},
		{ID: 3, Name: "Test User", Email: "test@test.test", Role: model.RoleUser, Password: "testtest"},
	}
}
