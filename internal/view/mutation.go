package view

import "context"

// CreatePolicy selects how a successful create reconciles the list.
type CreatePolicy int

const (
	// CreateRefetchFirstPage reloads page zero, where new items land.
	CreateRefetchFirstPage CreatePolicy = iota
	// CreateAppend appends to the in-memory page for immediate feedback.
	CreateAppend
)

// PageFetch loads one page of a collection from the authoritative source.
type PageFetch[T any] func(ctx context.Context, page int) (items []T, totalPages int, err error)

// Pipeline standardizes the create/update/delete reconciliation sequence for
// one collection so every resource behaves identically. Mutations that fail
// leave local state untouched; confirmatory refetches that fail degrade to a
// local patch and are never surfaced as errors, because the mutation itself
// already succeeded.
type Pipeline[T any] struct {
	col  *Collection[T]
	ctrl *Controller[T]
}

// NewPipeline builds a pipeline over col. ctrl may be nil when the collection
// has no detail view.
func NewPipeline[T any](col *Collection[T], ctrl *Controller[T]) *Pipeline[T] {
	return &Pipeline[T]{col: col, ctrl: ctrl}
}

// Create submits the new item and reconciles the list per policy. The error
// is the submit error only; callers keep the creation form populated on
// failure and clear it on success.
func (p *Pipeline[T]) Create(ctx context.Context, submit func(context.Context) (T, error), policy CreatePolicy, fetch PageFetch[T]) (T, error) {
	item, err := submit(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	switch policy {
	case CreateRefetchFirstPage:
		if fetch != nil {
			if items, totalPages, ferr := fetch(ctx, 0); ferr == nil {
				p.col.SetPage(items, 0, totalPages)
				return item, nil
			}
		}
		// refetch unavailable or failed; fall back to local append
		p.col.Append(item)
	case CreateAppend:
		p.col.Append(item)
	}
	return item, nil
}

// Update submits a full-replacement update for id, then re-reads the
// canonical record. When the secondary read fails the known edited fields are
// merged into the cached copy instead, so a confirmed-saved edit is never
// discarded over a read failure.
func (p *Pipeline[T]) Update(ctx context.Context, id string, submit func(context.Context) error, refetch func(context.Context, string) (T, error), merge func(T) T) error {
	if err := submit(ctx); err != nil {
		return err
	}

	if refetch != nil {
		if updated, err := refetch(ctx, id); err == nil {
			p.col.Replace(id, updated)
			return nil
		}
	}
	p.col.Patch(id, func(item *T) {
		*item = merge(*item)
	})
	return nil
}

// Delete issues the delete call and, on success, removes the item from the
// loaded page, clamps the page when the delete emptied it, and reloads the
// resulting page. If the item was open in a detail view the controller falls
// back to list mode. On failure the item stays in place and the error is
// returned for caller-side mapping (a 403 gets its own message).
func (p *Pipeline[T]) Delete(ctx context.Context, id string, del func(context.Context, string) error, fetch PageFetch[T]) error {
	if err := del(ctx, id); err != nil {
		return err
	}

	remaining, _ := p.col.Remove(id)
	page, _ := p.col.Page()
	next := PageAfterRemoval(page, remaining)

	if fetch != nil {
		if items, totalPages, err := fetch(ctx, next); err == nil {
			p.col.SetPage(items, next, totalPages)
		}
		// a failed reload keeps the locally patched page; the delete itself
		// succeeded and must not be reported as an error
	}

	if p.ctrl != nil {
		p.ctrl.HandleRemoved(id)
	}
	return nil
}
