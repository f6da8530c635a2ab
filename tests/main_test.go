//go:build integration

package concoursetest_test

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	concoursetest "github.com/dubex/concourse-test"
)

// installerSource is what the integration tests install from: a released
// version (e.g. "0.5.0") or a path to an installer binary, taken from the
// CONCOURSE_TEST_INSTALLER environment variable.
var installerSource string

func TestMain(m *testing.M) {
	installerSource = os.Getenv("CONCOURSE_TEST_INSTALLER")
	if installerSource == "" {
		fmt.Fprintln(os.Stderr,
			"CONCOURSE_TEST_INSTALLER not set; set it to a released version (e.g. 0.5.0) or an installer path")
		os.Exit(1)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	concoursetest.SetLogger(slog.New(handler))

	os.Exit(m.Run())
}
