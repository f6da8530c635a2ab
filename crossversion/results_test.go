package crossversion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResults_Empty(t *testing.T) {
	t.Parallel()

	r := NewResults([]string{"0.4.0", "0.5.0"})

	assert.Equal(t, []string{"0.4.0", "0.5.0"}, r.Versions())
	assert.Equal(t, "", r.Table(), "nothing recorded renders nothing")

	_, ok := r.Value("0.4.0", "latency")
	assert.False(t, ok)
}

func TestResults_RecordAndRender(t *testing.T) {
	t.Parallel()

	r := NewResults([]string{"0.4.0", "0.5.0"})
	r.Record("0.5.0", "writes", 120)
	r.Record("0.4.0", "writes", 100)
	r.Record("0.4.0", "reads", 340)
	r.Record("0.4.0", "writes", 101)

	value, ok := r.Value("0.4.0", "writes")
	assert.True(t, ok)
	assert.Equal(t, 101, value, "recording twice overwrites")

	rendered := r.Table()
	lines := strings.Split(rendered, "\n")
	assert.Contains(t, lines[1], "VERSION")
	assert.Contains(t, lines[1], "WRITES")
	assert.Contains(t, lines[1], "READS")

	// one row per version, declaration order
	first := strings.Index(rendered, "0.4.0")
	second := strings.Index(rendered, "0.5.0")
	assert.True(t, first >= 0 && second > first)
}
