package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/model"
)

const keyComments = "app_comments"

const (
	commentCreateDelay = 300 * time.Millisecond
	commentUpdateDelay = 200 * time.Millisecond
	commentDeleteDelay = 200 * time.Millisecond
)

// CommentStore holds per-todo comment threads in one flat collection.
// Writes go through short simulated latencies like the remote does,
// but the data never leaves the store; it only persists locally.
type CommentStore struct {
	rt     *cell.Runtime
	gw     kv.Gateway
	auth   *AuthStore
	notify *Notifier
	log    zerolog.Logger

	delayScale float64
	now        func() time.Time

	comments *cell.Cell[[]model.Comment]

	// Derived views per todo id, created lazily and cached so repeated
	// lookups share one memo.
	forTodo map[int]*cell.Derived[[]model.Comment]
	counts  map[int]*cell.Derived[int]
}

type CommentOption func(*CommentStore)

func WithCommentLogger(log zerolog.Logger) CommentOption {
	return func(s *CommentStore) { s.log = log }
}

func WithCommentDelayScale(scale float64) CommentOption {
	return func(s *CommentStore) { s.delayScale = scale }
}

func WithCommentClock(now func() time.Time) CommentOption {
	return func(s *CommentStore) { s.now = now }
}

func NewCommentStore(rt *cell.Runtime, gw kv.Gateway, auth *AuthStore, notify *Notifier, opts ...CommentOption) *CommentStore {
	s := &CommentStore{
		rt:         rt,
		gw:         gw,
		auth:       auth,
		notify:     notify,
		log:        zerolog.Nop(),
		delayScale: 1,
		now:        time.Now,
		forTodo:    map[int]*cell.Derived[[]model.Comment]{},
		counts:     map[int]*cell.Derived[int]{},
	}
	for _, opt := range opts {
		opt(s)
	}

	var initial []model.Comment
	if saved, ok := kv.Get[[]model.Comment](gw, keyComments); ok {
		initial = saved
	}
	s.comments = cell.NewCell(rt, initial)

	kv.PersistEffect(rt, gw, keyComments, s.comments.Read)
	return s
}

func (s *CommentStore) sleep(d time.Duration) {
	time.Sleep(time.Duration(float64(d) * s.delayScale))
}

// ForTodo reads the thread for one todo, newest first.
func (s *CommentStore) ForTodo(todoID int) []model.Comment {
	d, ok := s.forTodo[todoID]
	if !ok {
		d = cell.NewDerived(s.rt, func() []model.Comment {
			var out []model.Comment
			for _, c := range s.comments.Read() {
				if c.TodoID == todoID {
					out = append(out, c)
				}
			}
			sort.SliceStable(out, func(i, j int) bool {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			})
			return out
		})
		s.forTodo[todoID] = d
	}
	return d.Read()
}

func (s *CommentStore) CountFor(todoID int) int {
	d, ok := s.counts[todoID]
	if !ok {
		d = cell.NewDerived(s.rt, func() int {
			n := 0
			for _, c := range s.comments.Read() {
				if c.TodoID == todoID {
					n++
				}
			}
			return n
		})
		s.counts[todoID] = d
	}
	return d.Read()
}

// Create appends a comment to a todo's thread. The author's name is
// cached on the comment at creation time.
func (s *CommentStore) Create(todoID int, content string) (model.Comment, error) {
	user := s.auth.CurrentUser()
	if user == nil {
		s.notify.Error("Sign in to comment")
		return model.Comment{}, ErrNotSignedIn
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, ErrEmptyContent
	}

	s.sleep(commentCreateDelay)

	all := s.comments.Peek()
	c := model.Comment{
		ID:        model.NextID(all, func(c model.Comment) int { return c.ID }),
		TodoID:    todoID,
		UserID:    user.ID,
		UserName:  user.Name,
		Content:   content,
		CreatedAt: s.now(),
	}
	next := make([]model.Comment, len(all), len(all)+1)
	copy(next, all)
	s.comments.Write(append(next, c))
	s.log.Debug().Int("todoId", todoID).Int("commentId", c.ID).Msg("comment created")
	return c, nil
}

// Update edits a comment's content. Only the author or an admin may
// edit; edits are flagged.
func (s *CommentStore) Update(id int, content string) (model.Comment, error) {
	user := s.auth.CurrentUser()
	if user == nil {
		return model.Comment{}, ErrNotSignedIn
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, ErrEmptyContent
	}

	s.sleep(commentUpdateDelay)

	all := s.comments.Peek()
	for i, c := range all {
		if c.ID != id {
			continue
		}
		if c.UserID != user.ID && user.Role != model.RoleAdmin {
			return model.Comment{}, ErrForbidden
		}
		next := make([]model.Comment, len(all))
		copy(next, all)
		next[i].Content = content
		next[i].Edited = true
		next[i].UpdatedAt = s.now()
		s.comments.Write(next)
		return next[i], nil
	}
	return model.Comment{}, fmt.Errorf("comment %d: %w", id, ErrNotFound)
}

func (s *CommentStore) Delete(id int) error {
	user := s.auth.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	s.sleep(commentDeleteDelay)

	all := s.comments.Peek()
	for i, c := range all {
		if c.ID != id {
			continue
		}
		if c.UserID != user.ID && user.Role != model.RoleAdmin {
			return ErrForbidden
		}
		next := make([]model.Comment, 0, len(all)-1)
		next = append(next, all[:i]...)
		next = append(next, all[i+1:]...)
		s.comments.Write(next)
		return nil
	}
	return fmt.Errorf("comment %d: %w", id, ErrNotFound)
}

// ClearAll wipes every thread. Comments for deleted todos linger
// otherwise; this is the only bulk cleanup.
func (s *CommentStore) ClearAll() {
	s.comments.Write([]model.Comment{})
}

// All reads the flat collection reactively.
func (s *CommentStore) All() []model.Comment { return s.comments.Read() }
