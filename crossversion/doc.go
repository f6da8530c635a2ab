// Package crossversion runs one test body against several server versions.
//
// A Definition names the versions to cover and a body to execute; Multiplex
// provisions a fresh server per version, runs the body as a labeled subtest,
// and destroys the server before moving on. A version that fails is
// isolated to its own subtest; later versions still run. Values the body
// records along the way come back in a Results, rendered as one table row
// per version after the last version finishes.
package crossversion
