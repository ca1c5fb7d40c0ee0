package view

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchFrom(store map[string]card) func(context.Context, string) (card, error) {
	return func(_ context.Context, id string) (card, error) {
		c, ok := store[id]
		if !ok {
			return card{}, errors.New("not found")
		}
		return c, nil
	}
}

func newTestController() (*Collection[card], *Controller[card]) {
	col := NewCollection(cardID)
	col.SetPage([]card{{"a", "one"}, {"b", "two"}}, 0, 1)
	return col, NewController(col)
}

func TestSelectEntersDetailOnSuccess(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one full"}}

	err := ctrl.Select(context.Background(), "a", fetchFrom(store))
	require.NoError(t, err)

	s := ctrl.State()
	assert.Equal(t, ModeDetail, s.Mode)
	assert.Equal(t, "a", s.SelectedID)
	require.NotNil(t, s.Detail)
	assert.Equal(t, "one full", s.Detail.Name)
}

func TestSelectStaysInListOnFetchFailure(t *testing.T) {
	_, ctrl := newTestController()

	err := ctrl.Select(context.Background(), "missing", fetchFrom(map[string]card{}))
	require.Error(t, err)

	s := ctrl.State()
	assert.Equal(t, ModeList, s.Mode)
	assert.Empty(t, s.SelectedID)
	assert.Nil(t, s.Detail)
}

func TestSelectDifferentItemDiscardsOldEditState(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}, "b": {"b", "two"}}

	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))
	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))
	require.NoError(t, ctrl.SetField("name", "half-typed edit"))

	require.NoError(t, ctrl.Select(context.Background(), "b", fetchFrom(store)))

	s := ctrl.State()
	assert.Equal(t, "b", s.SelectedID)
	assert.False(t, s.Editing)
	assert.Nil(t, s.Buffer)
	assert.Equal(t, "two", s.Detail.Name)
}

func TestBackClearsDetailState(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}}

	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))
	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))

	ctrl.Back()

	s := ctrl.State()
	assert.Equal(t, ModeList, s.Mode)
	assert.Nil(t, s.Detail)
	assert.False(t, s.Editing)
	assert.Nil(t, s.Buffer)
}

func TestEditCancelLeavesItemAndCollectionUntouched(t *testing.T) {
	col, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}}
	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))

	before := ctrl.State().Detail.Name
	beforeCol, _ := col.Get("a")

	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))
	require.NoError(t, ctrl.SetField("name", "scribbled over"))
	ctrl.CancelEdit()

	s := ctrl.State()
	assert.False(t, s.Editing)
	assert.Equal(t, before, s.Detail.Name)
	afterCol, _ := col.Get("a")
	assert.Equal(t, beforeCol, afterCol)
}

func TestSaveFailurePreservesBuffer(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}}
	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))
	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))
	require.NoError(t, ctrl.SetField("name", "user's latest input"))

	err := ctrl.Save(context.Background(), SaveFuncs[card]{
		Update: func(context.Context, card, map[string]string) error {
			return errors.New("upstream 500")
		},
		Merge: func(c card, f map[string]string) card { c.Name = f["name"]; return c },
	})
	require.Error(t, err)

	s := ctrl.State()
	assert.True(t, s.Editing)
	assert.Equal(t, "user's latest input", s.Buffer["name"])
	assert.False(t, s.Saving)
	// the item itself is unchanged until a save succeeds
	assert.Equal(t, "one", s.Detail.Name)
}

func TestSaveRefetchFailureFallsBackToLocalMerge(t *testing.T) {
	col, ctrl := newTestController()
	store := map[string]card{"a": {"a", "Checkout"}}
	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))
	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))
	require.NoError(t, ctrl.SetField("name", "Checkout Flow"))

	err := ctrl.Save(context.Background(), SaveFuncs[card]{
		Update: func(context.Context, card, map[string]string) error { return nil },
		Refetch: func(context.Context, string) (card, error) {
			return card{}, errors.New("secondary read failed")
		},
		Merge: func(c card, f map[string]string) card { c.Name = f["name"]; return c },
	})
	require.NoError(t, err)

	// the confirmed edit shows in both detail and the originating list
	s := ctrl.State()
	assert.False(t, s.Editing)
	assert.Equal(t, "Checkout Flow", s.Detail.Name)
	inCol, _ := col.Get("a")
	assert.Equal(t, "Checkout Flow", inCol.Name)
}

func TestSaveValidationRejectsBeforeUpdate(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}}
	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))
	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))
	require.NoError(t, ctrl.SetField("name", ""))

	updateCalled := false
	err := ctrl.Save(context.Background(), SaveFuncs[card]{
		Validate: func(f map[string]string) error {
			if f["name"] == "" {
				return errors.New("name required")
			}
			return nil
		},
		Update: func(context.Context, card, map[string]string) error {
			updateCalled = true
			return nil
		},
		Merge: func(c card, f map[string]string) card { return c },
	})
	require.Error(t, err)
	assert.False(t, updateCalled)
	assert.True(t, ctrl.State().Editing)
}

func TestOnlyOneSaveInFlight(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}}
	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))
	require.NoError(t, ctrl.StartEdit(func(c card) map[string]string {
		return map[string]string{"name": c.Name}
	}))

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Save(context.Background(), SaveFuncs[card]{
			Update: func(context.Context, card, map[string]string) error {
				<-release
				return nil
			},
			Merge: func(c card, f map[string]string) card { return c },
		})
	}()

	// wait until the first save has claimed the in-flight slot
	for !ctrl.State().Saving {
		runtime.Gosched()
	}

	err := ctrl.Save(context.Background(), SaveFuncs[card]{
		Update: func(context.Context, card, map[string]string) error { return nil },
		Merge:  func(c card, f map[string]string) card { return c },
	})
	assert.ErrorIs(t, err, ErrSaveInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, ctrl.State().Saving)
}

func TestHandleRemovedFallsBackToList(t *testing.T) {
	_, ctrl := newTestController()
	store := map[string]card{"a": {"a", "one"}}
	require.NoError(t, ctrl.Select(context.Background(), "a", fetchFrom(store)))

	ctrl.HandleRemoved("b")
	assert.Equal(t, ModeDetail, ctrl.State().Mode)

	ctrl.HandleRemoved("a")
	assert.Equal(t, ModeList, ctrl.State().Mode)
}
