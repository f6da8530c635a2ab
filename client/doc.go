// Package client provides a version-portable client for managed Concourse
// Server instances.
//
// Test code compiles against one stable capability interface, Client, while
// the server build under test may be any supported version. Version skew is
// handled out of process: every call travels over the server's own network
// protocol through a Transport, and a version-keyed driver translates the
// handful of version-sensitive parameter types (timestamps, comparison
// operators) into the exact wire shape that build expects. The same test
// source can therefore drive a 0.3.x and a 0.5.x server side by side
// without depending on two incompatible client libraries at once.
//
// Capability resolution is memoized per (operation, parameter shape), and
// any resolution, translation, or server-side failure surfaces as a single
// fatal error wrapping ErrCapability: a missing capability indicates a
// genuine incompatibility between the test's expectations and the target
// version, so there is no fallback path.
package client
