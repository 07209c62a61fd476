package store

import (
	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/model"
)

const keyColumns = "table-columns-config"

func defaultColumns() map[string][]model.TableColumn {
	return map[string][]model.TableColumn{
		"users": {
			{Key: "name", Label: "Name", Visible: true, Required: true},
			{Key: "email", Label: "Email", Visible: true},
			{Key: "role", Label: "Role", Visible: true},
			{Key: "actions", Label: "Actions", Visible: true, Required: true},
		},
		"todos": {
			{Key: "title", Label: "Title", Visible: true, Required: true},
			{Key: "status", Label: "Status", Visible: true},
			{Key: "priority", Label: "Priority", Visible: true},
			{Key: "assignedTo", Label: "Assigned To", Visible: true},
			{Key: "deadline", Label: "Deadline", Visible: true},
			{Key: "comments", Label: "Comments", Visible: true},
			{Key: "description", Label: "Description", Visible: false},
			{Key: "actions", Label: "Actions", Visible: true, Required: true},
		},
	}
}

// ColumnStore keeps per-table column visibility preferences. Saved
// preferences overlay the defaults per table key, so tables added in
// a later release still get their default layout.
type ColumnStore struct {
	rt  *cell.Runtime
	log zerolog.Logger

	configs *cell.Cell[map[string][]model.TableColumn]

	columns map[string]*cell.Derived[[]model.TableColumn]
	visible map[string]*cell.Derived[[]model.TableColumn]
}

type ColumnOption func(*ColumnStore)

func WithColumnLogger(log zerolog.Logger) ColumnOption {
	return func(s *ColumnStore) { s.log = log }
}

func NewColumnStore(rt *cell.Runtime, gw kv.Gateway, opts ...ColumnOption) *ColumnStore {
	s := &ColumnStore{
		rt:      rt,
		log:     zerolog.Nop(),
		columns: map[string]*cell.Derived[[]model.TableColumn]{},
		visible: map[string]*cell.Derived[[]model.TableColumn]{},
	}
	for _, opt := range opts {
		opt(s)
	}

	initial := defaultColumns()
	if saved, ok := kv.Get[map[string][]model.TableColumn](gw, keyColumns); ok {
		for table, defaults := range initial {
			initial[table] = overlayColumns(defaults, saved[table])
		}
	}
	s.configs = cell.NewCell(rt, initial)

	kv.PersistEffect(rt, gw, keyColumns, s.configs.Read)
	return s
}

// overlayColumns applies saved visibility onto the default list per
// key. Default columns missing from the saved config keep their
// defaults, so tables gaining columns in a later release still show
// them after a reload. Saved keys the defaults no longer know are
// dropped.
func overlayColumns(defaults, saved []model.TableColumn) []model.TableColumn {
	if len(saved) == 0 {
		return defaults
	}
	byKey := make(map[string]model.TableColumn, len(saved))
	for _, c := range saved {
		byKey[c.Key] = c
	}
	merged := make([]model.TableColumn, len(defaults))
	copy(merged, defaults)
	for i, c := range merged {
		if sc, ok := byKey[c.Key]; ok {
			merged[i].Visible = sc.Visible || c.Required
		}
	}
	return merged
}

// Columns reads the full column list for a table, hidden ones
// included.
func (s *ColumnStore) Columns(table string) []model.TableColumn {
	d, ok := s.columns[table]
	if !ok {
		d = cell.NewDerived(s.rt, func() []model.TableColumn {
			return s.configs.Read()[table]
		})
		s.columns[table] = d
	}
	return d.Read()
}

// VisibleColumns reads only the columns currently shown, in order.
func (s *ColumnStore) VisibleColumns(table string) []model.TableColumn {
	d, ok := s.visible[table]
	if !ok {
		d = cell.NewDerived(s.rt, func() []model.TableColumn {
			var out []model.TableColumn
			for _, c := range s.configs.Read()[table] {
				if c.Visible {
					out = append(out, c)
				}
			}
			return out
		})
		s.visible[table] = d
	}
	return d.Read()
}

// Toggle flips a column's visibility. Required columns stay visible;
// toggling one is a no-op.
func (s *ColumnStore) Toggle(table, key string) {
	cur := s.configs.Peek()
	cols, ok := cur[table]
	if !ok {
		return
	}
	next := make(map[string][]model.TableColumn, len(cur))
	for t, c := range cur {
		next[t] = c
	}
	copied := make([]model.TableColumn, len(cols))
	copy(copied, cols)
	for i, c := range copied {
		if c.Key != key {
			continue
		}
		if c.Required {
			s.log.Debug().Str("table", table).Str("column", key).Msg("column is required, ignoring toggle")
			return
		}
		copied[i].Visible = !c.Visible
	}
	next[table] = copied
	s.configs.Write(next)
}

// Reset restores one table to its default layout.
func (s *ColumnStore) Reset(table string) {
	defaults, ok := defaultColumns()[table]
	if !ok {
		return
	}
	cur := s.configs.Peek()
	next := make(map[string][]model.TableColumn, len(cur))
	for t, c := range cur {
		next[t] = c
	}
	next[table] = defaults
	s.configs.Write(next)
}
