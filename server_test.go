package concoursetest

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dubex/concourse-test/client"
	"github.com/dubex/concourse-test/internal/netutil"
	"github.com/dubex/concourse-test/internal/testutil"
)

// installTestServer installs a server from the fake installer into a
// per-test home, with a loopback transport for client connections.
func installTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	ctx := context.Background()

	opts = append([]Option{
		WithInstallHome(t.TempDir()),
		WithDialer(client.NewLoopback("0.5.0").Dial),
	}, opts...)
	s, err := Install(ctx, testutil.WriteInstaller(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Destroy(context.Background())
	})
	return s
}

func TestInstall(t *testing.T) {
	t.Parallel()

	s := installTestServer(t)

	assert.DirExists(t, s.Workspace())
	assert.NotEqual(t, s.ClientPort(), s.ShutdownPort())
	for _, port := range []int{s.ClientPort(), s.ShutdownPort()} {
		assert.GreaterOrEqual(t, port, netutil.PortMin)
		assert.Less(t, port, netutil.PortMax)
	}
	assert.Equal(t, "", s.Version(), "local installer has no known version")
}

func TestInstall_BrokenInstaller(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := Install(ctx, testutil.WriteBrokenInstaller(t), WithInstallHome(t.TempDir()))
	require.ErrorIs(t, err, ErrInstallFailed)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := installTestServer(t)

	running, err := s.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running, "freshly installed server must not be running")

	require.NoError(t, s.Start(ctx))
	running, err = s.IsRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, s.Start(ctx), "starting a running server is a no-op")

	require.NoError(t, s.Stop(ctx))
	running, err = s.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, s.Stop(ctx), "stopping a stopped server is a no-op")
}

func TestServerConnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := installTestServer(t)
	require.NoError(t, s.Start(ctx))

	c, err := s.Connect(ctx)
	require.NoError(t, err)

	added, err := c.Add(ctx, "foo", "bar", 1)
	require.NoError(t, err)
	assert.True(t, added)

	value, err := c.Get(ctx, "foo", 1)
	require.NoError(t, err)
	assert.Equal(t, "bar", value)
}

func TestServerConnect_NoDialer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := Install(ctx, testutil.WriteInstaller(t), WithInstallHome(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Destroy(context.Background())
	})

	_, err = s.Connect(ctx)
	require.ErrorIs(t, err, client.ErrNoTransport)
}

func TestServerDestroy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := installTestServer(t)
	require.NoError(t, s.Start(ctx))

	c, err := s.Connect(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Destroy(ctx))
	assert.NoDirExists(t, s.Workspace())

	require.NoError(t, s.Destroy(ctx), "destroy is idempotent")

	require.ErrorIs(t, s.Start(ctx), ErrDestroyed)
	require.ErrorIs(t, s.Stop(ctx), ErrDestroyed)
	_, err = s.IsRunning(ctx)
	require.ErrorIs(t, err, ErrDestroyed)
	_, err = s.Connect(ctx)
	require.ErrorIs(t, err, ErrDestroyed)

	_, err = c.Get(ctx, "foo", 1)
	require.ErrorIs(t, err, client.ErrClientClosed, "destroy closes handed-out clients")
}

func TestServerDestroy_MissingWorkspace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := installTestServer(t)

	require.NoError(t, os.RemoveAll(s.Workspace()))
	require.NoError(t, s.Destroy(ctx))

	require.ErrorIs(t, s.Start(ctx), ErrDestroyed)
}

func TestAttach(t *testing.T) {
	t.Parallel()

	s := installTestServer(t)

	attached, err := Attach(s.Workspace(), WithVersion("0.4.2"))
	require.NoError(t, err)

	assert.Equal(t, s.ClientPort(), attached.ClientPort())
	assert.Equal(t, s.ShutdownPort(), attached.ShutdownPort())
	assert.Equal(t, "0.4.2", attached.Version())
}

func TestAttach_EmptyWorkspace(t *testing.T) {
	t.Parallel()

	_, err := Attach(t.TempDir())
	require.ErrorIs(t, err, ErrInstallFailed)
}

func TestInstall_WithVersionLabel(t *testing.T) {
	t.Parallel()

	s := installTestServer(t, WithVersion("0.4.2"))
	assert.Equal(t, "0.4.2", s.Version())
}

func TestServersDoNotSharePorts(t *testing.T) {
	t.Parallel()

	first := installTestServer(t)
	second := installTestServer(t)

	used := map[int]bool{
		first.ClientPort():    true,
		first.ShutdownPort():  true,
		second.ClientPort():   true,
		second.ShutdownPort(): true,
	}
	assert.Len(t, used, 4, "concurrent instances must get distinct ports")
}
