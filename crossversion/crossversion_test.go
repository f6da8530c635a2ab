package crossversion

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	concoursetest "github.com/dubex/concourse-test"
	"github.com/dubex/concourse-test/client"
	"github.com/dubex/concourse-test/internal/testutil"
)

// multiplexOptions wires a test-local release archive and transport: every
// version resolves to the same fake installer, served over HTTP so the
// download-and-cache path is exercised too.
func multiplexOptions(t *testing.T) []concoursetest.Option {
	t.Helper()

	installer, err := os.ReadFile(testutil.WriteInstaller(t))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(installer)
	}))
	t.Cleanup(srv.Close)

	return []concoursetest.Option{
		concoursetest.WithInstallHome(t.TempDir()),
		concoursetest.WithDialer(client.NewLoopback("").Dial),
		concoursetest.WithResolver(func(version string) (string, error) {
			return srv.URL + "/concourse-server-" + version + ".bin", nil
		}),
	}
}

func TestMultiplex(t *testing.T) {
	versions := []string{"0.4.0", "0.5.0"}
	var executed []string
	seen := make(map[string]string)

	results := Multiplex(t, Definition{
		Name:     "round trip",
		Versions: versions,
		Body: func(r *Run) error {
			executed = append(executed, r.Version())

			added, err := r.Client().Add(r.Context(), "name", "jeff", 1)
			if err != nil {
				return err
			}
			if !added {
				t.Error("value must be added to a fresh server")
			}
			seen[r.Version()] = r.Server().Workspace()
			r.Record("added", added)
			return nil
		},
	}, multiplexOptions(t)...)

	assert.Equal(t, versions, executed, "versions run in declaration order")
	assert.Len(t, seen, 2)
	assert.NotEqual(t, seen["0.4.0"], seen["0.5.0"], "each version gets its own workspace")
	for _, workspace := range seen {
		assert.NoDirExists(t, workspace, "servers are destroyed after their run")
	}

	for _, version := range versions {
		value, ok := results.Value(version, "added")
		assert.True(t, ok)
		assert.Equal(t, true, value)
	}
	assert.NotEqual(t, "", results.Table())
}

func TestSubtestName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "round trip [0.5.0]", subtestName("round trip", "0.5.0"))
}

func TestMultiplex_DefaultName(t *testing.T) {
	var ran bool

	Multiplex(t, Definition{
		Versions: []string{"0.5.0"},
		Body: func(r *Run) error {
			ran = true
			return nil
		},
	}, multiplexOptions(t)...)

	assert.True(t, ran)
}
