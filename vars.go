package concoursetest

import (
	"fmt"
	"strings"
	"sync"
)

// Variables is an ordered registry of named debug values. A test registers
// intermediate state as it goes; the harness dumps the registry when the
// test fails, so the values that led to the failure are in the log without
// any instrumentation in the failing test itself.
type Variables struct {
	mu     sync.Mutex
	order  []string
	values map[string]any
}

// NewVariables returns an empty registry.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]any)}
}

// Set registers value under name. Registering an existing name overwrites
// the value but keeps the name's original position in the dump order.
func (v *Variables) Set(name string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.values[name]; !ok {
		v.order = append(v.order, name)
	}
	v.values[name] = value
}

// Get returns the value registered under name.
func (v *Variables) Get(name string) (any, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.values[name]
	return value, ok
}

// Len returns the number of registered names.
func (v *Variables) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order)
}

// Clear removes every registered value.
func (v *Variables) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = nil
	v.values = make(map[string]any)
}

// Dump renders the registry in registration order, one "name = value" line
// per entry. Returns "" when nothing is registered.
func (v *Variables) Dump() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var b strings.Builder
	for i, name := range v.order {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s = %v", name, v.values[name])
	}
	return b.String()
}
