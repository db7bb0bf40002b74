package pipeline

import (
	"testing"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func quake(id string, mag *float64) domain.Earthquake {
	return domain.Earthquake{ID: id, Magnitude: mag}
}

func mag(v float64) *float64 { return &v }

func TestSeenSet_MissHitRevised(t *testing.T) {
	s := newSeenSet(10)

	assert.Equal(t, seenMiss, s.check(quake("a", mag(4.1))))
	s.mark(quake("a", mag(4.1)))
	assert.Equal(t, seenHit, s.check(quake("a", mag(4.1))))
	assert.Equal(t, seenRevised, s.check(quake("a", mag(4.3))))
	assert.Equal(t, seenRevised, s.check(quake("a", nil)))

	s.mark(quake("a", mag(4.3)))
	assert.Equal(t, seenHit, s.check(quake("a", mag(4.3))))
	assert.Equal(t, 1, s.len())
}

func TestSeenSet_NilMagnitude(t *testing.T) {
	s := newSeenSet(10)
	s.mark(quake("x", nil))
	assert.Equal(t, seenHit, s.check(quake("x", nil)))
	assert.Equal(t, seenRevised, s.check(quake("x", mag(1.0))))
}

func TestSeenSet_MarkCopiesMagnitude(t *testing.T) {
	s := newSeenSet(10)
	m := mag(2.0)
	s.mark(quake("a", m))
	*m = 3.0
	assert.Equal(t, seenHit, s.check(quake("a", mag(2.0))))
}

func TestSeenSet_EvictsLeastRecentlyUsed(t *testing.T) {
	s := newSeenSet(2)
	s.mark(quake("a", nil))
	s.mark(quake("b", nil))

	// Touch "a" so "b" becomes the eviction candidate.
	s.check(quake("a", nil))
	s.mark(quake("c", nil))

	assert.Equal(t, 2, s.len())
	assert.Equal(t, seenHit, s.check(quake("a", nil)))
	assert.Equal(t, seenMiss, s.check(quake("b", nil)))
	assert.Equal(t, seenHit, s.check(quake("c", nil)))
}

func TestSeenSet_MinimumSize(t *testing.T) {
	s := newSeenSet(0)
	s.mark(quake("a", nil))
	s.mark(quake("b", nil))
	assert.Equal(t, 1, s.len())
	assert.Equal(t, seenHit, s.check(quake("b", nil)))
}
