// Package session keeps the per-user view state the gateway owns: which page
// of which list a user is on, what they have selected, in-progress edits,
// extraction reviews. None of it is authoritative data; losing a session only
// resets the user's position.
package session

import (
	"sync"
	"time"

	"github.com/reqflowly/reqflowly-gateway/internal/extraction"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
	"github.com/reqflowly/reqflowly-gateway/internal/view"
)

// RequirementView is the list/detail state of one project's requirements.
type RequirementView struct {
	Col      *view.Collection[upstream.Requirement]
	Ctrl     *view.Controller[upstream.Requirement]
	Pipe     *view.Pipeline[upstream.Requirement]
	Previews *view.AuxCache[[]string]
}

func newRequirementView() *RequirementView {
	col := view.NewCollection(func(r upstream.Requirement) string { return r.ID })
	ctrl := view.NewController(col)
	return &RequirementView{
		Col:      col,
		Ctrl:     ctrl,
		Pipe:     view.NewPipeline(col, ctrl),
		Previews: view.NewAuxCache[[]string](),
	}
}

// UseCaseView is the list/detail state of one requirement's use cases.
type UseCaseView struct {
	Col  *view.Collection[upstream.UseCase]
	Ctrl *view.Controller[upstream.UseCase]
	Pipe *view.Pipeline[upstream.UseCase]
}

func newUseCaseView() *UseCaseView {
	col := view.NewCollection(func(u upstream.UseCase) string { return u.ID })
	ctrl := view.NewController(col)
	return &UseCaseView{Col: col, Ctrl: ctrl, Pipe: view.NewPipeline(col, ctrl)}
}

// Session is one user's view state. Views and reviews are created lazily the
// first time they are asked for.
type Session struct {
	UserID string

	mu       sync.Mutex
	lastSeen time.Time
	reqViews map[string]*RequirementView // keyed by project id
	ucViews  map[string]*UseCaseView     // keyed by project id + requirement id
	reviews  map[string]*extraction.Review
	adhoc    *extraction.Review // standalone extraction, no project scope
}

func New(userID string) *Session {
	return &Session{
		UserID:   userID,
		lastSeen: time.Now(),
		reqViews: make(map[string]*RequirementView),
		ucViews:  make(map[string]*UseCaseView),
		reviews:  make(map[string]*extraction.Review),
	}
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// IdleSince reports the last time the session was touched.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// RequirementView returns the requirements view for a project.
func (s *Session) RequirementView(projectID string) *RequirementView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.reqViews[projectID]
	if !ok {
		v = newRequirementView()
		s.reqViews[projectID] = v
	}
	return v
}

// UseCaseView returns the use-cases view for a requirement.
func (s *Session) UseCaseView(projectID, requirementID string) *UseCaseView {
	key := projectID + ":" + requirementID
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.ucViews[key]
	if !ok {
		v = newUseCaseView()
		s.ucViews[key] = v
	}
	return v
}

// SetReview installs the review state produced by an extraction run for a
// requirement, replacing any previous run's state.
func (s *Session) SetReview(projectID, requirementID string, r *extraction.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[projectID+":"+requirementID] = r
}

// Review returns the review state for a requirement, or nil when no
// extraction has run yet.
func (s *Session) Review(projectID, requirementID string) *extraction.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviews[projectID+":"+requirementID]
}

// DropReview discards a requirement's review state, used once it is finalized.
func (s *Session) DropReview(projectID, requirementID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, projectID+":"+requirementID)
}

// SetAdhocReview installs the review state of a standalone extraction run.
func (s *Session) SetAdhocReview(r *extraction.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adhoc = r
}

// AdhocReview returns the standalone review state, or nil.
func (s *Session) AdhocReview() *extraction.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adhoc
}
