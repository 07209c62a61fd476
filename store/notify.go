package store

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/model"
)

// DefaultNotificationDuration is the auto-dismiss window applied when
// a caller passes no explicit duration.
const DefaultNotificationDuration = 4 * time.Second

// Notifier owns the notification collection. lifecycle of entries is
// caller-pumped: Sweep removes expired ones, so the reactive graph
// stays single-goroutine.
type Notifier struct {
	log zerolog.Logger
	now func() time.Time
	seq int

	notifications *cell.Cell[[]model.Notification]
	has           *cell.Derived[bool]
}

type NotifierOption func(*Notifier)

func WithNotifierLogger(log zerolog.Logger) NotifierOption {
	return func(n *Notifier) { n.log = log }
}

func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) { n.now = now }
}

func NewNotifier(rt *cell.Runtime, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.notifications = cell.NewCell(rt, []model.Notification{})
	n.has = cell.NewDerived(rt, func() bool {
		return len(n.notifications.Read()) > 0
	})
	return n
}

// Show appends a notification and returns its id. duration 0 keeps it
// until removed explicitly.
func (n *Notifier) Show(message string, severity model.Severity, duration time.Duration, actions ...model.NotificationAction) string {
	now := n.now()
	n.seq++
	id := fmt.Sprintf("notif-%d-%d", now.UnixMilli(), n.seq)
	notif := model.Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		Timestamp: now,
		Duration:  duration,
		Actions:   actions,
	}
	n.notifications.Update(func(cur []model.Notification) []model.Notification {
		return append(append([]model.Notification(nil), cur...), notif)
	})
	n.log.Debug().Str("id", id).Str("severity", string(severity)).Msg(message)
	return id
}

func (n *Notifier) Success(message string) string {
	return n.Show(message, model.SeveritySuccess, DefaultNotificationDuration)
}

func (n *Notifier) Error(message string) string {
	return n.Show(message, model.SeverityError, DefaultNotificationDuration)
}

func (n *Notifier) Warning(message string) string {
	return n.Show(message, model.SeverityWarning, DefaultNotificationDuration)
}

func (n *Notifier) Info(message string) string {
	return n.Show(message, model.SeverityInfo, DefaultNotificationDuration)
}

func (n *Notifier) Remove(id string) {
	n.notifications.Update(func(cur []model.Notification) []model.Notification {
		next := make([]model.Notification, 0, len(cur))
		for _, notif := range cur {
			if notif.ID != id {
				next = append(next, notif)
			}
		}
		return next
	})
}

func (n *Notifier) Clear() {
	n.notifications.Write([]model.Notification{})
}

// Sweep drops notifications whose auto-dismiss window has passed. The
// app pump calls it on its tick.
func (n *Notifier) Sweep(now time.Time) {
	n.notifications.Update(func(cur []model.Notification) []model.Notification {
		next := make([]model.Notification, 0, len(cur))
		for _, notif := range cur {
			if notif.Duration > 0 && !now.Before(notif.Timestamp.Add(notif.Duration)) {
				continue
			}
			next = append(next, notif)
		}
		return next
	})
}

// Notifications reads the collection reactively.
func (n *Notifier) Notifications() []model.Notification {
	return n.notifications.Read()
}

func (n *Notifier) HasNotifications() bool {
	return n.has.Read()
}
