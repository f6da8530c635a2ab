// Package prefs reads and rewrites a managed server's concourse.prefs file.
//
// The preference file uses the Java properties key=value format. Only the
// handful of keys the harness touches programmatically get typed accessors:
// the data directories, the client and shutdown ports, and the log level.
// All other keys and their comments pass through a rewrite untouched.
package prefs
