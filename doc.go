// Package concoursetest manages ephemeral Concourse database servers for
// integration testing.
//
// Each server gets its own workspace directory, its own data directories,
// and two freshly allocated ports, so any number of instances can run side
// by side in one process or across processes on the same machine. A server
// is installed from a local installer binary or a released version (fetched
// and cached on first use), controlled through its own management scripts,
// and destroyed by deleting its workspace.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	server, err := concoursetest.Install(ctx, "0.5.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Destroy(ctx)
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	c, err := server.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
// The returned client speaks the server's own wire shapes regardless of the
// version under test; see the client package for how calls are translated.
//
// # Test Harness
//
// ClientServerTest wires the install-start-connect-destroy lifecycle into a
// single call, so a test only writes its body:
//
//	func TestWidget(t *testing.T) {
//	    concoursetest.ClientServerTest(t, "0.5.0", func(tc *concoursetest.TestContext) {
//	        added, err := tc.Client.Add(tc.Ctx, "name", "widget", 1)
//	        ...
//	    })
//	}
//
// The server is destroyed on every exit path, including panics, and
// registered debug variables are dumped when the test fails.
package concoursetest
