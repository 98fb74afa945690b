package tracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceClockAdvance(t *testing.T) {
	t.Parallel()

	t.Run("first sample seeds the clock directly", func(t *testing.T) {
		var c deviceClock
		got := c.Advance(1000)
		assert.Equal(t, uint64(1000)*1000, got)
	})

	t.Run("monotonically increasing raw samples extend without wrapping", func(t *testing.T) {
		var c deviceClock
		c.Advance(100)
		got := c.Advance(200)
		assert.Equal(t, uint64(200)*1000, got)
	})

	t.Run("a raw decrease is treated as a 32-bit wraparound", func(t *testing.T) {
		var c deviceClock
		c.Advance(math.MaxUint32 - 10)
		got := c.Advance(5)

		want := (wrapSpan + 5) * 1000
		assert.Equal(t, want, got)
		assert.Equal(t, want, c.Last())
	})

	t.Run("a small same-epoch regression is clamped, not propagated", func(t *testing.T) {
		var c deviceClock
		first := c.Advance(1000)
		got := c.Advance(999)
		assert.Equal(t, first, got, "device time must never decrease")
	})
}
