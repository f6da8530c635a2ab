package concoursetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariables(t *testing.T) {
	t.Parallel()

	v := NewVariables()
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, "", v.Dump())

	v.Set("record", int64(42))
	v.Set("expected", "bar")
	v.Set("record", int64(43))

	assert.Equal(t, 2, v.Len())

	value, ok := v.Get("record")
	assert.True(t, ok)
	assert.Equal(t, int64(43), value)

	_, ok = v.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, "record = 43\nexpected = bar", v.Dump(),
		"overwriting keeps the original registration order")

	v.Clear()
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, "", v.Dump())
}
