package crossversion

import (
	"context"
	"fmt"
	"testing"

	concoursetest "github.com/dubex/concourse-test"
	"github.com/dubex/concourse-test/client"
	"github.com/dubex/concourse-test/internal/sentinel"
)

// ErrNoVersions is reported by Multiplex when a definition names no
// versions to run against.
const ErrNoVersions = sentinel.Error("no server versions to run against")

// Definition is one cross-version test: a body to execute and the server
// versions to execute it against.
type Definition struct {
	// Name labels the per-version subtests. Defaults to the parent test's
	// name when empty.
	Name string

	// Versions are the server versions to cover, each installed fresh and
	// run in declaration order.
	Versions []string

	// Body is the test logic, executed once per version. A returned error
	// fails that version's subtest without affecting the others.
	Body func(r *Run) error
}

// Run is one execution of a definition's body against one server version.
type Run struct {
	ctx     context.Context
	version string
	server  *concoursetest.Server
	client  client.Client
	results *Results
}

// Context returns the context the run's client calls should use.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Version returns the server version this run executes against.
func (r *Run) Version() string {
	return r.version
}

// Server returns the run's server instance.
func (r *Run) Server() *concoursetest.Server {
	return r.server
}

// Client returns a client connected to the run's server.
func (r *Run) Client() client.Client {
	return r.client
}

// Record stores a named value for this run's version in the results table.
func (r *Run) Record(stat string, value any) {
	r.results.Record(r.version, stat, value)
}

// Multiplex executes def against each of its versions in order, one
// isolated server per version, and returns the recorded results. Each
// version runs as a subtest named "<name> [<version>]"; a failing version
// fails its subtest only. When any values were recorded, the results table
// is written to the test log after the last version finishes.
func Multiplex(t *testing.T, def Definition, opts ...concoursetest.Option) *Results {
	t.Helper()

	if len(def.Versions) == 0 {
		t.Fatalf("cross-version definition %q: %v", def.Name, ErrNoVersions)
	}
	if def.Body == nil {
		t.Fatalf("cross-version definition %q: body must not be nil", def.Name)
	}
	name := def.Name
	if name == "" {
		name = t.Name()
	}

	results := NewResults(def.Versions)
	for _, version := range def.Versions {
		t.Run(subtestName(name, version), func(t *testing.T) {
			runVersion(t, version, def.Body, results, opts)
		})
	}

	if rendered := results.Table(); rendered != "" {
		t.Logf("cross-version results:\n%s", rendered)
	}
	return results
}

// subtestName labels one version's subtest.
func subtestName(name, version string) string {
	return fmt.Sprintf("%s [%s]", name, version)
}

// runVersion provisions a server for one version, executes the body, and
// tears the server down on every exit path.
func runVersion(t *testing.T, version string, body func(*Run) error, results *Results, opts []concoursetest.Option) {
	t.Helper()
	ctx := context.Background()

	server, err := concoursetest.Install(ctx, version, opts...)
	if err != nil {
		t.Fatalf("install server %s: %v", version, err)
	}
	defer func() {
		if err := server.Destroy(ctx); err != nil {
			t.Errorf("destroy server %s: %v", version, err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("start server %s: %v", version, err)
	}
	c, err := server.Connect(ctx)
	if err != nil {
		t.Fatalf("connect to server %s: %v", version, err)
	}

	run := &Run{ctx: ctx, version: version, server: server, client: c, results: results}
	if err := body(run); err != nil {
		t.Errorf("version %s: %v", version, err)
	}
}
