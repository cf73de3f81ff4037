package routing

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestDuplicateFilter_ShouldPublish(t *testing.T) {
	clk := clock.NewMock()
	f := NewDuplicateFilter(time.Second, clk)

	assert.True(t, f.ShouldPublish("/t", "23"), "first value is never a duplicate")
	assert.False(t, f.ShouldPublish("/t", "23"), "same value within window")

	clk.Add(500 * time.Millisecond)
	assert.False(t, f.ShouldPublish("/t", "23"), "still within window")
	assert.True(t, f.ShouldPublish("/t", "24"), "different value within window")
	assert.True(t, f.ShouldPublish("/t", "23"), "value changed back")

	clk.Add(time.Second)
	assert.True(t, f.ShouldPublish("/t", "23"), "window elapsed")
}

func TestDuplicateFilter_WindowBoundary(t *testing.T) {
	clk := clock.NewMock()
	f := NewDuplicateFilter(time.Second, clk)

	assert.True(t, f.ShouldPublish("/t", "1"))
	clk.Add(999 * time.Millisecond)
	assert.False(t, f.ShouldPublish("/t", "1"))
	clk.Add(time.Millisecond)
	assert.True(t, f.ShouldPublish("/t", "1"), "suppression requires now < seen+window")
}

func TestDuplicateFilter_SuppressionDoesNotExtendWindow(t *testing.T) {
	clk := clock.NewMock()
	f := NewDuplicateFilter(time.Second, clk)

	assert.True(t, f.ShouldPublish("/t", "1"))
	for i := 0; i < 3; i++ {
		clk.Add(300 * time.Millisecond)
		assert.False(t, f.ShouldPublish("/t", "1"))
	}
	clk.Add(100 * time.Millisecond) // 1.0s after the accepted publish
	assert.True(t, f.ShouldPublish("/t", "1"))
}

func TestDuplicateFilter_TopicsIndependent(t *testing.T) {
	f := NewDuplicateFilter(time.Second, clock.NewMock())

	assert.True(t, f.ShouldPublish("/a", "1"))
	assert.True(t, f.ShouldPublish("/b", "1"))
	assert.False(t, f.ShouldPublish("/a", "1"))
	assert.Equal(t, 2, f.Len())
}

func TestDuplicateFilter_ZeroWindow(t *testing.T) {
	f := NewDuplicateFilter(0, clock.NewMock())

	assert.True(t, f.ShouldPublish("/t", "1"))
	assert.True(t, f.ShouldPublish("/t", "1"), "a zero window disables suppression")
}

func TestDuplicateFilter_Sweep(t *testing.T) {
	clk := clock.NewMock()
	f := NewDuplicateFilter(time.Second, clk)

	f.ShouldPublish("/old", "1")
	clk.Add(800 * time.Millisecond)
	f.ShouldPublish("/new", "1")
	clk.Add(300 * time.Millisecond)

	assert.Equal(t, 1, f.Sweep())
	assert.Equal(t, 1, f.Len())

	// The surviving entry still suppresses.
	assert.False(t, f.ShouldPublish("/new", "1"))
	// The swept entry behaves exactly as an expired one would have.
	assert.True(t, f.ShouldPublish("/old", "1"))
}

func TestDuplicateFilter_NilClock(t *testing.T) {
	f := NewDuplicateFilter(time.Minute, nil)
	assert.True(t, f.ShouldPublish("/t", "1"))
	assert.False(t, f.ShouldPublish("/t", "1"))
}
