package concoursetest

import (
	"context"
	"testing"

	"github.com/dubex/concourse-test/client"
)

// TestContext is the environment ClientServerTest hands to a test body: a
// fresh installed-and-started server, a connected client, and a debug
// variable registry that is dumped if the test fails.
type TestContext struct {
	Ctx    context.Context
	Server *Server
	Client client.Client
	Vars   *Variables
}

// ClientServerTest runs body against its own server instance, installed
// from source and destroyed afterwards. The lifecycle holds on every exit
// path: a body that fails, calls t.Fatal, or panics still gets its server
// destroyed and, on failure, its registered variables dumped to the test
// log.
func ClientServerTest(t *testing.T, source string, body func(tc *TestContext), opts ...Option) {
	t.Helper()
	ctx := context.Background()

	server, err := Install(ctx, source, opts...)
	if err != nil {
		t.Fatalf("install server: %v", err)
	}

	vars := NewVariables()
	var c client.Client
	defer func() {
		r := recover()
		if r != nil || t.Failed() {
			if dump := vars.Dump(); dump != "" {
				t.Logf("debug variables:\n%s", dump)
			}
		}
		if c != nil {
			_ = c.Exit(ctx)
		}
		if err := server.Destroy(ctx); err != nil {
			t.Errorf("destroy server: %v", err)
		}
		if r != nil {
			panic(r)
		}
	}()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("start server: %v", err)
	}
	c, err = server.Connect(ctx)
	if err != nil {
		t.Fatalf("connect to server: %v", err)
	}

	body(&TestContext{Ctx: ctx, Server: server, Client: c, Vars: vars})
}
