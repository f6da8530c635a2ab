package concoursetest

import (
	"github.com/dubex/concourse-test/internal/core"
	"github.com/dubex/concourse-test/internal/sentinel"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrInstallFailed is returned by Install when the installer ran but
	// left no application files behind.
	ErrInstallFailed = core.ErrInstallFailed

	// ErrDestroyed is returned by every Server operation after Destroy.
	// A destroyed server's workspace is gone; the instance cannot be
	// revived and a new one must be installed.
	ErrDestroyed = sentinel.Error("server has been destroyed")
)
