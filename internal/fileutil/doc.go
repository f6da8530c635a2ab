// Package fileutil provides file operation utilities for workspace management.
//
// EnsureDir creates directories recursively and CopyFile copies files with
// explicit permissions. These are used for laying out installation workspaces
// and placing installer payloads before execution.
package fileutil
