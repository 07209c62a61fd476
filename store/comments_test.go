package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/store"
)

func TestCommentRequiresSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.comments.Create(1, "hello")
	assert.ErrorIs(t, err, store.ErrNotSignedIn)
}

func TestCommentRejectsBlankContent(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	_, err := f.comments.Create(1, "   \n ")
	assert.ErrorIs(t, err, store.ErrEmptyContent)
}

func TestCommentCachesAuthorName(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	c, err := f.comments.Create(1, "  looks good  ")
	require.NoError(t, err)
	assert.Equal(t, "Normal User", c.UserName)
	assert.Equal(t, "looks good", c.Content)
	assert.False(t, c.Edited)
}

func TestThreadSortsNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	first, err := f.comments.Create(1, "first")
	require.NoError(t, err)
	second, err := f.comments.Create(1, "second")
	require.NoError(t, err)
	_, err = f.comments.Create(2, "other thread")
	require.NoError(t, err)

	thread := f.comments.ForTodo(1)
	require.Len(t, thread, 2)
	assert.Equal(t, second.ID, thread[0].ID)
	assert.Equal(t, first.ID, thread[1].ID)
	assert.Equal(t, 2, f.comments.CountFor(1))
	assert.Equal(t, 1, f.comments.CountFor(2))
}

func TestEditFlagsComment(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	c, err := f.comments.Create(1, "tpyo")
	require.NoError(t, err)

	edited, err := f.comments.Update(c.ID, "typo")
	require.NoError(t, err)
	assert.Equal(t, "typo", edited.Content)
	assert.True(t, edited.Edited)
}

func TestEditAuthorization(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)
	c, err := f.comments.Create(1, "mine")
	require.NoError(t, err)

	// Another non-admin user may not touch it; an admin may.
	_, err = f.auth.Register("Other", "other@example.com", "pw")
	require.NoError(t, err)
	_, err = f.comments.Update(c.ID, "stolen")
	assert.ErrorIs(t, err, store.ErrForbidden)
	err = f.comments.Delete(c.ID)
	assert.ErrorIs(t, err, store.ErrForbidden)

	f.signInAdmin(t)
	_, err = f.comments.Update(c.ID, "moderated")
	require.NoError(t, err)
	require.NoError(t, f.comments.Delete(c.ID))
	assert.Equal(t, 0, f.comments.CountFor(1))
}

func TestUpdateUnknownComment(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	_, err := f.comments.Update(12345, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommentsSurviveRestart(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	_, err := f.comments.Create(1, "durable")
	require.NoError(t, err)

	reloaded := store.NewCommentStore(cell.New(), f.gw, f.auth, f.notify, store.WithCommentDelayScale(0))
	require.Len(t, reloaded.All(), 1)
	assert.Equal(t, "durable", reloaded.All()[0].Content)
}

func TestCommentsLingerAfterTodoDelete(t *testing.T) {
	f := newFixture(t)
	f.signInUser(t)

	_, err := f.comments.Create(1, "orphan to be")
	require.NoError(t, err)
	ok, err := f.todos.Delete(1)
	require.NoError(t, err)
	require.True(t, ok)

	// No cascade: the thread stays until wiped explicitly.
	assert.Equal(t, 1, f.comments.CountFor(1))
	f.comments.ClearAll()
	assert.Equal(t, 0, f.comments.CountFor(1))
	_, ok = kv.Get[[]struct{}](f.gw, "app_comments")
	assert.True(t, ok)
}
