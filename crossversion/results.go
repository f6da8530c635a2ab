package crossversion

import (
	"slices"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Results accumulates the values recorded by a definition's runs, keyed by
// version and stat name. Versions render in declaration order and stats in
// first-recorded order, so the table reads the way the test was written.
type Results struct {
	mu       sync.Mutex
	versions []string
	stats    []string
	values   map[string]map[string]any
}

// NewResults returns an empty Results covering the given versions.
func NewResults(versions []string) *Results {
	return &Results{
		versions: slices.Clone(versions),
		values:   make(map[string]map[string]any),
	}
}

// Record stores value under (version, stat), overwriting a prior value.
func (r *Results) Record(version, stat string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.stats, stat) {
		r.stats = append(r.stats, stat)
	}
	byStat, ok := r.values[version]
	if !ok {
		byStat = make(map[string]any)
		r.values[version] = byStat
	}
	byStat[stat] = value
}

// Value returns the value recorded under (version, stat).
func (r *Results) Value(version, stat string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.values[version][stat]
	return value, ok
}

// Versions returns the covered versions in declaration order.
func (r *Results) Versions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.versions)
}

// Table renders the results as one row per version with a column per
// recorded stat. Returns "" when nothing was recorded.
func (r *Results) Table() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stats) == 0 {
		return ""
	}

	tw := table.NewWriter()
	header := table.Row{"version"}
	for _, stat := range r.stats {
		header = append(header, stat)
	}
	tw.AppendHeader(header)

	for _, version := range r.versions {
		row := table.Row{version}
		for _, stat := range r.stats {
			row = append(row, r.values[version][stat])
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}
