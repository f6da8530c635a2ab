package concoursetest

import (
	"log/slog"

	"github.com/dubex/concourse-test/internal/core"
)

// SetLogger replaces the package-level logger used by concoursetest and its
// subpackages. The provided logger should already carry any desired
// attributes; concoursetest will not add its own.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other operations, but for a
// strict happens-before guarantee call it before starting any servers
// (e.g., in TestMain before m.Run).
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
