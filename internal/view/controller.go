package view

import (
	"context"
	"errors"
	"sync"
)

// Mode is the list/detail position of a controller.
type Mode string

const (
	ModeList   Mode = "list"
	ModeDetail Mode = "detail"
)

var (
	ErrSaveInFlight = errors.New("save already in flight")
	ErrNoSelection  = errors.New("no item selected")
	ErrNotEditing   = errors.New("no edit in progress")
)

// Controller drives the selection/detail state machine for one collection:
// list to detail on select (with a fetch of the full record), detail back to
// list, and the edit buffer lifecycle. Detail mode is only entered after a
// successful fetch. Selecting a different item while in detail is treated as
// leave-then-enter, so nothing from the previous item's edit state can leak
// into the next one.
type Controller[T any] struct {
	mu         sync.Mutex
	col        *Collection[T]
	mode       Mode
	selectedID string
	detail     *T
	editing    bool
	buffer     map[string]string
	saving     bool
}

// State is the renderable snapshot of a controller.
type State[T any] struct {
	Mode       Mode              `json:"mode"`
	SelectedID string            `json:"selectedId,omitempty"`
	Detail     *T                `json:"detail,omitempty"`
	Editing    bool              `json:"editing"`
	Buffer     map[string]string `json:"editBuffer,omitempty"`
	Saving     bool              `json:"saving"`
}

func NewController[T any](col *Collection[T]) *Controller[T] {
	return &Controller[T]{col: col, mode: ModeList}
}

// Select discards any current detail state, fetches the full record for id
// and enters detail mode. On fetch failure the controller stays in list mode
// and the error is returned. A fetch that resolves after a later Select or
// Back superseded it is discarded.
func (c *Controller[T]) Select(ctx context.Context, id string, fetch func(context.Context, string) (T, error)) error {
	c.mu.Lock()
	c.detail = nil
	c.editing = false
	c.buffer = nil
	c.saving = false
	c.mode = ModeList
	c.selectedID = id
	c.mu.Unlock()

	item, err := fetch(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedID != id {
		// superseded; the newer operation owns the state now
		return nil
	}
	if err != nil {
		c.selectedID = ""
		return err
	}
	c.detail = &item
	c.mode = ModeDetail
	return nil
}

// Back returns to list mode. Always allowed; in-progress edit state is
// discarded.
func (c *Controller[T]) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Controller[T]) reset() {
	c.mode = ModeList
	c.selectedID = ""
	c.detail = nil
	c.editing = false
	c.buffer = nil
	c.saving = false
}

// StartEdit snapshots the current detail fields into the edit buffer.
func (c *Controller[T]) StartEdit(snapshot func(T) map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail == nil {
		return ErrNoSelection
	}
	c.buffer = snapshot(*c.detail)
	c.editing = true
	return nil
}

// SetField updates one field of the edit buffer.
func (c *Controller[T]) SetField(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.editing {
		return ErrNotEditing
	}
	c.buffer[key] = value
	return nil
}

// CancelEdit discards the edit buffer. The underlying item and the collection
// entry are untouched.
func (c *Controller[T]) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = false
	c.buffer = nil
}

// SaveFuncs carries the resource-specific pieces of a save: field validation,
// the full-replacement update call, the confirmatory single-item refetch, and
// the local merge used when that refetch fails.
type SaveFuncs[T any] struct {
	Validate func(fields map[string]string) error
	Update   func(ctx context.Context, current T, fields map[string]string) error
	Refetch  func(ctx context.Context, id string) (T, error)
	Merge    func(current T, fields map[string]string) T
}

// Save validates the edit buffer, issues the update, and reconciles the
// result into both the detail view and the collection entry. Only one save
// may be in flight per controller. On update failure the buffer keeps the
// user's last-entered values so the save can be retried. A failing
// confirmatory refetch is not an error: the buffer is merged locally instead,
// because the update itself already succeeded.
func (c *Controller[T]) Save(ctx context.Context, f SaveFuncs[T]) error {
	c.mu.Lock()
	if !c.editing {
		c.mu.Unlock()
		return ErrNotEditing
	}
	if c.saving {
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	id := c.selectedID
	current := *c.detail
	fields := make(map[string]string, len(c.buffer))
	for k, v := range c.buffer {
		fields[k] = v
	}
	c.saving = true
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		c.saving = false
		c.mu.Unlock()
		return err
	}

	if f.Validate != nil {
		if err := f.Validate(fields); err != nil {
			return fail(err)
		}
	}
	if err := f.Update(ctx, current, fields); err != nil {
		return fail(err)
	}

	updated := f.Merge(current, fields)
	if f.Refetch != nil {
		if fetched, err := f.Refetch(ctx, id); err == nil {
			updated = fetched
		}
	}

	c.mu.Lock()
	c.saving = false
	if c.selectedID == id {
		c.detail = &updated
		c.editing = false
		c.buffer = nil
	}
	c.mu.Unlock()

	c.col.Replace(id, updated)
	return nil
}

// HandleRemoved drops back to list mode when the removed item is the one
// currently open in detail.
func (c *Controller[T]) HandleRemoved(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedID == id {
		c.reset()
	}
}

// StillSelected reports whether id is the current selection. Resolution
// handlers of fetches issued for an older selection use this as their
// relevance guard.
func (c *Controller[T]) StillSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID == id
}

// State returns a renderable snapshot.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State[T]{
		Mode:       c.mode,
		SelectedID: c.selectedID,
		Editing:    c.editing,
		Saving:     c.saving,
	}
	if c.detail != nil {
		d := *c.detail
		s.Detail = &d
	}
	if c.buffer != nil {
		s.Buffer = make(map[string]string, len(c.buffer))
		for k, v := range c.buffer {
			s.Buffer[k] = v
		}
	}
	return s
}
