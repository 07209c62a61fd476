package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/model"
	"github.com/taskmill/taskmill/store"
)

func TestStoreMirrorsRemoteSeed(t *testing.T) {
	f := newFixture(t)

	// The mirror effect picks the remote's seed collection up at
	// construction, before any Load.
	assert.Len(t, f.todos.Todos(), 3)

	st := f.todos.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.HighPriority)
}

func TestCreateRequiresSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.todos.Create("Buy milk", "", model.PriorityHigh, nil, nil)
	assert.ErrorIs(t, err, store.ErrNotSignedIn)
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	_, err := f.todos.Create("   ", "", model.PriorityLow, nil, nil)
	assert.ErrorIs(t, err, store.ErrEmptyTitle)
	assert.Len(t, f.todos.Todos(), 3)
}

func TestCreateUpdatesStats(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	before := f.todos.Stats()
	created, err := f.todos.Create("Buy milk", "2% please", model.PriorityHigh, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, model.StatusTodo, created.Status)

	after := f.todos.Stats()
	assert.Equal(t, before.Total+1, after.Total)
	assert.Equal(t, before.HighPriority+1, after.HighPriority)
	assert.Equal(t, before.Pending+1, after.Pending)
}

func TestCreateNotifiesSuccess(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	_, err := f.todos.Create("Buy milk", "", model.PriorityLow, nil, nil)
	require.NoError(t, err)

	got := f.notify.Notifications()
	require.NotEmpty(t, got)
	assert.Equal(t, model.SeveritySuccess, got[len(got)-1].Severity)
}

func TestFilteredViews(t *testing.T) {
	f := newFixture(t)

	assert.Len(t, f.todos.Pending(), 1)
	assert.Len(t, f.todos.InProgress(), 1)
	assert.Len(t, f.todos.Completed(), 1)
}

func TestUpdatePatchesAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	title := "Renamed"
	updated, err := f.todos.Update(1, model.TodoPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	var got *model.Todo
	for _, td := range f.todos.Todos() {
		if td.ID == 1 {
			td := td
			got = &td
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Title)
}

func TestDeleteUnknownIDReportsFalse(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	ok, err := f.todos.Delete(999999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.todos.Todos(), 3)
}

func TestDeleteRemovesAndUpdatesStats(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	ok, err := f.todos.Delete(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, f.todos.Stats().Total)
}

func TestAdvanceWalksForwardOnly(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	// Seed todo 3 starts at "todo".
	got, err := f.todos.Advance(3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	got, err = f.todos.Advance(3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)

	_, err = f.todos.Advance(3)
	assert.ErrorIs(t, err, store.ErrDoneIsFinal)
}

func TestAdvanceUnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.todos.Advance(424242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssignAndResolveName(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	got, err := f.todos.Assign(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Normal User", f.todos.AssigneeName(got))
}

func TestFailureModeSurfacesInErrorView(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	f.todos.ToggleAPIFailure()
	_, err := f.todos.Create("Doomed", "", model.PriorityLow, nil, nil)
	require.Error(t, err)
	assert.NotEmpty(t, f.todos.Err())
	assert.Len(t, f.todos.Todos(), 3)

	errs := f.notify.Notifications()
	require.NotEmpty(t, errs)
	assert.Equal(t, model.SeverityError, errs[len(errs)-1].Severity)

	f.todos.ClearError()
	assert.Empty(t, f.todos.Err())
}

func TestLoadFallsBackToPersistedCopy(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	// Populate the gateway through the persist effect, then make the
	// remote reject.
	_, err := f.todos.Create("Keep me", "", model.PriorityLow, nil, nil)
	require.NoError(t, err)
	saved, ok := kv.Get[[]model.Todo](f.gw, "todos")
	require.True(t, ok)
	require.Len(t, saved, 4)

	f.todos.ToggleAPIFailure()
	err = f.todos.Load()
	require.Error(t, err)
	assert.Len(t, f.todos.Todos(), 4)
	assert.False(t, f.todos.Loading())
}

func TestRefreshKeepsStateOnFailure(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	f.todos.ToggleAPIFailure()
	err := f.todos.Refresh()
	require.Error(t, err)
	assert.Len(t, f.todos.Todos(), 3)

	f.todos.ToggleAPIFailure()
	require.NoError(t, f.todos.Refresh())
	assert.Empty(t, f.todos.Err())
}

func TestStatsCompletionRate(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	// Seed: 1 of 3 done.
	assert.InDelta(t, 100.0/3.0, f.todos.Stats().CompletionRate, 0.001)

	_, err := f.todos.Advance(3) // todo → in-progress
	require.NoError(t, err)
	_, err = f.todos.Advance(3) // in-progress → done
	require.NoError(t, err)
	assert.InDelta(t, 200.0/3.0, f.todos.Stats().CompletionRate, 0.001)
}

func TestDeadlinePatchRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	deadline := time.Now().Add(48 * time.Hour)
	got, err := f.todos.Update(1, model.TodoPatch{Deadline: &deadline})
	require.NoError(t, err)
	require.NotNil(t, got.Deadline)

	got, err = f.todos.Update(1, model.TodoPatch{ClearDeadline: true})
	require.NoError(t, err)
	assert.Nil(t, got.Deadline)
}
