package store

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/model"
)

// DeadlineStatus classifies how close a todo's deadline is.
type DeadlineStatus string

const (
	DeadlineNone    DeadlineStatus = ""
	DeadlineNormal  DeadlineStatus = "normal"
	DeadlineWarning DeadlineStatus = "warning"
	DeadlineUrgent  DeadlineStatus = "urgent"
	DeadlineOverdue DeadlineStatus = "overdue"
)

// DaysUntil counts whole days remaining, rounding partial days up. A
// deadline later today counts as 1.
func DaysUntil(deadline, now time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

func IsOverdue(deadline, now time.Time) bool {
	return deadline.Before(now)
}

// Classify maps a deadline to a severity band. Overdue takes
// precedence over the day bands.
func Classify(deadline *time.Time, now time.Time) DeadlineStatus {
	if deadline == nil {
		return DeadlineNone
	}
	if IsOverdue(*deadline, now) {
		return DeadlineOverdue
	}
	switch days := DaysUntil(*deadline, now); {
	case days <= 1:
		return DeadlineUrgent
	case days <= 3:
		return DeadlineWarning
	case days <= 7:
		return DeadlineNormal
	default:
		return DeadlineNone
	}
}

// DeadlineTracker derives per-todo deadline alerts from the canonical
// collection and a clock cell. Ticking the clock re-evaluates every
// classification, so alerts shift bands as time passes even without
// any todo changing.
type DeadlineTracker struct {
	log    zerolog.Logger
	notify *Notifier

	clock  *cell.Cell[time.Time]
	alerts *cell.Derived[map[int]DeadlineStatus]

	overdueCount *cell.Derived[int]
	urgentCount  *cell.Derived[int]
}

type DeadlineOption func(*DeadlineTracker)

func WithDeadlineLogger(log zerolog.Logger) DeadlineOption {
	return func(t *DeadlineTracker) { t.log = log }
}

func NewDeadlineTracker(rt *cell.Runtime, todos *TodoStore, notify *Notifier, opts ...DeadlineOption) *DeadlineTracker {
	t := &DeadlineTracker{
		log:    zerolog.Nop(),
		notify: notify,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.clock = cell.NewCell(rt, time.Now())

	t.alerts = cell.NewDerived(rt, func() map[int]DeadlineStatus {
		now := t.clock.Read()
		out := map[int]DeadlineStatus{}
		for _, todo := range todos.Todos() {
			if todo.Status == model.StatusDone {
				continue
			}
			if status := Classify(todo.Deadline, now); status != DeadlineNone {
				out[todo.ID] = status
			}
		}
		return out
	})

	t.overdueCount = t.count(rt, DeadlineOverdue)
	t.urgentCount = t.count(rt, DeadlineUrgent)
	return t
}

func (t *DeadlineTracker) count(rt *cell.Runtime, status DeadlineStatus) *cell.Derived[int] {
	return cell.NewDerived(rt, func() int {
		n := 0
		for _, s := range t.alerts.Read() {
			if s == status {
				n++
			}
		}
		return n
	})
}

// Tick advances the clock cell. The caller owns the cadence; the app
// loop ticks once a minute.
func (t *DeadlineTracker) Tick(now time.Time) {
	t.clock.Write(now)
}

// Alerts reads the current id→status classification. Done todos never
// alert.
func (t *DeadlineTracker) Alerts() map[int]DeadlineStatus {
	return t.alerts.Read()
}

func (t *DeadlineTracker) StatusFor(todoID int) DeadlineStatus {
	return t.alerts.Read()[todoID]
}

func (t *DeadlineTracker) OverdueCount() int { return t.overdueCount.Read() }

func (t *DeadlineTracker) UrgentCount() int { return t.urgentCount.Read() }

// NotifyAlerts raises a warning notification summarizing overdue and
// urgent counts, if any.
func (t *DeadlineTracker) NotifyAlerts() {
	overdue := t.overdueCount.Read()
	urgent := t.urgentCount.Read()
	if overdue == 0 && urgent == 0 {
		return
	}
	msg := ""
	switch {
	case overdue > 0 && urgent > 0:
		msg = fmt.Sprintf("%d task(s) overdue, %d due within a day", overdue, urgent)
	case overdue > 0:
		msg = fmt.Sprintf("%d task(s) overdue", overdue)
	default:
		msg = fmt.Sprintf("%d task(s) due within a day", urgent)
	}
	t.log.Warn().Int("overdue", overdue).Int("urgent", urgent).Msg("deadline alerts")
	t.notify.Warning(msg)
}
