// Package run provides subprocess helpers for driving a managed server's
// control scripts and installer.
//
// Output runs a command to completion with stderr merged into stdout and
// returns the output lines. StartWithGrace runs a command for a fixed grace
// period and then kills it, which is how the interactive installer prompt is
// bypassed during unattended installation.
package run
