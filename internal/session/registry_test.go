package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqflowly/reqflowly-gateway/internal/extraction"
)

func TestGetCreatesAndReusesSessions(t *testing.T) {
	reg, err := NewRegistry(8, time.Hour, nil, nil)
	require.NoError(t, err)

	s1 := reg.Get("u1")
	s2 := reg.Get("u1")
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, reg.Len())

	reg.Get("u2")
	assert.Equal(t, 2, reg.Len())
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	dropped := []string{}
	reg, err := NewRegistry(2, time.Hour, func(userID string) {
		dropped = append(dropped, userID)
	}, nil)
	require.NoError(t, err)

	reg.Get("u1")
	reg.Get("u2")
	reg.Get("u1") // u2 is now the least recently used
	reg.Get("u3")

	assert.Equal(t, []string{"u2"}, dropped)
	assert.Equal(t, 2, reg.Len())
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	dropped := []string{}
	reg, err := NewRegistry(8, 50*time.Millisecond, func(userID string) {
		dropped = append(dropped, userID)
	}, nil)
	require.NoError(t, err)

	reg.Get("idle")
	time.Sleep(80 * time.Millisecond)
	fresh := reg.Get("fresh")

	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, []string{"idle"}, dropped)
	assert.Same(t, fresh, reg.Get("fresh"))
}

func TestSessionViewsAreLazyAndStable(t *testing.T) {
	s := New("u1")

	rv := s.RequirementView("p1")
	assert.Same(t, rv, s.RequirementView("p1"))
	assert.NotSame(t, rv, s.RequirementView("p2"))

	uv := s.UseCaseView("p1", "r1")
	assert.Same(t, uv, s.UseCaseView("p1", "r1"))
	assert.NotSame(t, uv, s.UseCaseView("p1", "r2"))
}

func TestReviewLifecycle(t *testing.T) {
	s := New("u1")
	assert.Nil(t, s.Review("p1", "r1"))

	rev := extraction.NewReview(
		[]extraction.Candidate{{Name: "Order"}}, nil, nil, nil)
	s.SetReview("p1", "r1", rev)
	assert.Same(t, rev, s.Review("p1", "r1"))
	assert.Nil(t, s.Review("p1", "r2"))

	s.DropReview("p1", "r1")
	assert.Nil(t, s.Review("p1", "r1"))
}
