package store_test

import (
	"testing"
	"time"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/remote"
	"github.com/taskmill/taskmill/store"
)

type fixture struct {
	rt       *cell.Runtime
	gw       *kv.Memory
	api      *remote.API
	notify   *store.Notifier
	auth     *store.AuthStore
	todos    *store.TodoStore
	comments *store.CommentStore
}

// newFixture wires the stores the way the app does, with delays
// zeroed so tests run instantly.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	rt := cell.New()
	gw := kv.NewMemory()
	api := remote.New(rt, remote.WithDelayScale(0))
	notify := store.NewNotifier(rt)
	auth := store.NewAuthStore(rt, gw)
	clock := fakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{
		rt:       rt,
		gw:       gw,
		api:      api,
		notify:   notify,
		auth:     auth,
		todos:    store.NewTodoStore(rt, api, gw, auth, notify),
		comments: store.NewCommentStore(rt, gw, auth, notify,
			store.WithCommentDelayScale(0), store.WithCommentClock(clock)),
	}
}

// fakeClock returns a clock that steps one second per call, so
// timestamps order deterministically.
func fakeClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func (f *fixture) signInAdmin(t *testing.T) {
	t.Helper()
	if _, err := f.auth.Login("admin@example.com", "admin123"); err != nil {
		t.Fatalf("admin login: %v", err)
	}
}

func (f *fixture) signInUser(t *testing.T) {
	t.Helper()
	if _, err := f.auth.Login("user@example.com", "user123"); err != nil {
		t.Fatalf("user login: %v", err)
	}
}
