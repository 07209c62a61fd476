// Package model holds the domain entities shared by the simulated
// remote and the stores. Relations between entities are plain id
// fields resolved at read time; there is no cascade delete anywhere.
package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User. Passwords are kept in clear text by design; this is a demo
// data set, not an account system.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Password string `json:"password"`
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Next returns the forward transition for a status. Done is terminal;
// the flows only move forward.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusTodo:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusDone, true
	default:
		return s, false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Todo struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	AssignedTo  *int       `json:"assignedTo,omitempty"`
	CreatedBy   int        `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// TodoPatch is a partial update; nil fields are left untouched.
type TodoPatch struct {
	Title         *string
	Description   *string
	Status        *Status
	Priority      *Priority
	AssignedTo    *int
	Deadline      *time.Time
	ClearDeadline bool
}

// Apply merges the patch into t and stamps UpdatedAt.
func (p TodoPatch) Apply(t Todo, now time.Time) Todo {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		t.AssignedTo = p.AssignedTo
	}
	if p.Deadline != nil {
		t.Deadline = p.Deadline
	}
	if p.ClearDeadline {
		t.Deadline = nil
	}
	t.UpdatedAt = now
	return t
}

type Comment struct {
	ID        int       `json:"id"`
	TodoID    int       `json:"todoId"`
	UserID    int       `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Edited    bool      `json:"isEdited"`
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// NotificationAction is a labeled callback rendered alongside a
// notification.
type NotificationAction struct {
	Label  string
	Action func()
}

type Notification struct {
	ID        string               `json:"id"`
	Message   string               `json:"message"`
	Severity  Severity             `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Duration  time.Duration        `json:"duration"` // 0 disables auto-dismiss
	Actions   []NotificationAction `json:"-"`
}

type TableColumn struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Visible  bool   `json:"visible"`
	Required bool   `json:"required,omitempty"`
}

// NextID returns one more than the highest id in the collection, via
// the supplied id accessor. Unique within a store for the session.
func NextID[T any](items []T, id func(T) int) int {
	max := 0
	for _, it := range items {
		if v := id(it); v > max {
			max = v
		}
	}
	return max + 1
}
