// Package extraction holds the review state for extracted domain objects and
// actions: what the analyzer proposed, what the user kept, and what the user
// struck out, until the kept set is persisted upstream in one batch.
package extraction

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUnknownName = errors.New("name not present in review set")

// Membership identifies which set a name currently belongs to.
type Membership string

const (
	InActive    Membership = "active"
	InSuggested Membership = "suggested"
	InRemoved   Membership = "removed"
)

// Candidate is one reviewable name with its attribute list. Actions carry no
// attributes; for them Attributes stays empty.
type Candidate struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes,omitempty"`
}

// ReviewSet partitions extracted names into three ordered sets: active (kept,
// will be persisted), suggested (proposed, awaiting a decision) and removed
// (struck out). A name lives in exactly one set at a time and keeps its
// attribute list through every move, so striking a name out and bringing it
// back loses nothing.
type ReviewSet struct {
	mu        sync.Mutex
	active    []string
	suggested []string
	removed   []string
	attrs     map[string][]string
}

// NewReviewSet seeds a review from one extraction run. Confirmed candidates
// start active, tentative ones start suggested. Duplicate names keep their
// first occurrence.
func NewReviewSet(confirmed, tentative []Candidate) *ReviewSet {
	r := &ReviewSet{attrs: make(map[string][]string)}
	for _, c := range confirmed {
		if r.membership(c.Name) == "" {
			r.active = append(r.active, c.Name)
			r.attrs[c.Name] = append([]string(nil), c.Attributes...)
		}
	}
	for _, c := range tentative {
		if r.membership(c.Name) == "" {
			r.suggested = append(r.suggested, c.Name)
			r.attrs[c.Name] = append([]string(nil), c.Attributes...)
		}
	}
	return r
}

func (r *ReviewSet) membership(name string) Membership {
	for _, n := range r.active {
		if n == name {
			return InActive
		}
	}
	for _, n := range r.suggested {
		if n == name {
			return InSuggested
		}
	}
	for _, n := range r.removed {
		if n == name {
			return InRemoved
		}
	}
	return ""
}

func remove(set []string, name string) []string {
	for i, n := range set {
		if n == name {
			return append(set[:i], set[i+1:]...)
		}
	}
	return set
}

// Toggle flips an active name to removed or a removed name back to active.
// Suggested names are not toggleable; they must be accepted first.
func (r *ReviewSet) Toggle(name string) (Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.membership(name) {
	case InActive:
		r.active = remove(r.active, name)
		r.removed = append(r.removed, name)
		return InRemoved, nil
	case InRemoved:
		r.removed = remove(r.removed, name)
		r.active = append(r.active, name)
		return InActive, nil
	case InSuggested:
		return InSuggested, fmt.Errorf("%q is still a suggestion", name)
	}
	return "", ErrUnknownName
}

// Accept promotes a suggested name to active.
func (r *ReviewSet) Accept(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.membership(name) != InSuggested {
		return ErrUnknownName
	}
	r.suggested = remove(r.suggested, name)
	r.active = append(r.active, name)
	return nil
}

// Add inserts a user-authored name straight into the active set. Names are
// unique across all three sets.
func (r *ReviewSet) Add(name string, attributes []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.membership(name); m != "" {
		return fmt.Errorf("%q already present (%s)", name, m)
	}
	r.active = append(r.active, name)
	r.attrs[name] = append([]string(nil), attributes...)
	return nil
}

// SetAttributes replaces the attribute list of a known name in place, whatever
// set it is in.
func (r *ReviewSet) SetAttributes(name string, attributes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.membership(name) == "" {
		return ErrUnknownName
	}
	r.attrs[name] = append([]string(nil), attributes...)
	return nil
}

// Membership reports which set name is in, or "" when unknown.
func (r *ReviewSet) Membership(name string) Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membership(name)
}

func (r *ReviewSet) candidates(names []string) []Candidate {
	out := make([]Candidate, 0, len(names))
	for _, n := range names {
		out = append(out, Candidate{Name: n, Attributes: append([]string(nil), r.attrs[n]...)})
	}
	return out
}

// Active returns the kept candidates in insertion order.
func (r *ReviewSet) Active() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates(r.active)
}

// Suggested returns the undecided candidates in insertion order.
func (r *ReviewSet) Suggested() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates(r.suggested)
}

// Removed returns the struck-out candidates in insertion order.
func (r *ReviewSet) Removed() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates(r.removed)
}

// Snapshot returns all three sets at once for rendering.
func (r *ReviewSet) Snapshot() (active, suggested, removed []Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates(r.active), r.candidates(r.suggested), r.candidates(r.removed)
}

// Review is the full review state of one requirement's extraction run:
// domain objects and the actions extracted alongside them.
type Review struct {
	Objects *ReviewSet
	Actions *ReviewSet
}

// NewReview wraps one extraction result in fresh review state.
func NewReview(objects, suggestedObjects, actions, suggestedActions []Candidate) *Review {
	return &Review{
		Objects: NewReviewSet(objects, suggestedObjects),
		Actions: NewReviewSet(actions, suggestedActions),
	}
}
