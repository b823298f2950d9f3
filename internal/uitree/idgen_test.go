package uitree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGenerator_FirstSeenOrder(t *testing.T) {
	gen := NewIDGenerator()
	a := &Node{}
	b := &Node{}
	c := &Node{}

	assert.Equal(t, 0, gen.ID(a))
	assert.Equal(t, 1, gen.ID(b))
	assert.Equal(t, 2, gen.ID(c))
	assert.Equal(t, 3, gen.Count())
}

func TestIDGenerator_StableForSameHandle(t *testing.T) {
	gen := NewIDGenerator()
	a := &Node{}
	b := &Node{}

	first := gen.ID(a)
	gen.ID(b)

	// Re-presenting the same handle must not allocate.
	assert.Equal(t, first, gen.ID(a))
	assert.Equal(t, 2, gen.Count())
}

func TestIDGenerator_DistinctForEqualContent(t *testing.T) {
	gen := NewIDGenerator()

	// Identity is the handle, not the node contents.
	a := &Node{Text: "same"}
	b := &Node{Text: "same"}
	assert.NotEqual(t, gen.ID(a), gen.ID(b))
}

func TestIDGenerator_Seen(t *testing.T) {
	gen := NewIDGenerator()
	a := &Node{}

	assert.False(t, gen.Seen(a))
	gen.ID(a)
	assert.True(t, gen.Seen(a))
}
