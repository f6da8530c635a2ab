package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// killDrainTimeout is the hard upper bound for waiting on the wait goroutine
// after SIGKILL has been sent. SIGKILL cannot be caught, so the process
// should exit almost immediately; this is a safety net against cmd.Wait
// blocking on stuck I/O.
const killDrainTimeout = 10 * time.Second

// pipeDrainDelay bounds how long Wait blocks on output pipes after the
// command itself has exited. A control script that launches a detached
// server daemon can leave a grandchild holding the stdout pipe open;
// without this bound, Wait would block until the daemon exits.
const pipeDrainDelay = 3 * time.Second

// Output runs a command with the given working directory, blocking until it
// exits, and returns its output split into lines. Stderr is merged into
// stdout so callers see the command's output in emission order.
//
// A failure to launch the command is returned as an error. A non-zero exit
// is also an error; the collected output lines are returned alongside it so
// callers can surface whatever the command printed before failing.
func Output(ctx context.Context, dir, name string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = pipeDrainDelay
	configureSysProcAttr(cmd)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	lines := splitLines(buf.String())
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		return lines, fmt.Errorf("run %s: %w", name, err)
	}
	return lines, nil
}

// StartWithGrace starts a command in the given working directory, lets it
// run for the grace period, then kills it unconditionally. The command's
// merged output is returned for logging.
//
// This exists for installer payloads that lay down all their files up front
// and then block on an optional interactive prompt that is never satisfied
// in unattended operation. A process that exits before the grace period
// elapses is not an error, regardless of its exit status; only a failure to
// launch is.
func StartWithGrace(ctx context.Context, dir string, grace time.Duration, name string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = pipeDrainDelay
	configureSysProcAttr(cmd)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case <-done:
		// Exited on its own before the grace period; exit status is
		// irrelevant because the payload has already been laid down.
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		drain(done)
		return splitLines(buf.String()), fmt.Errorf("start %s: %w", name, ctx.Err())
	case <-graceTimer.C:
		// Kill on a finished process returns "os: process already finished",
		// which is harmless and intentionally discarded.
		_ = cmd.Process.Kill()
		if !drain(done) {
			return splitLines(buf.String()), fmt.Errorf("%s: timed out waiting for process to exit after kill", name)
		}
	}

	return splitLines(buf.String()), nil
}

// drain waits for the cmd.Wait goroutine with killDrainTimeout as a hard
// upper bound. Reports whether the channel delivered in time.
func drain(done <-chan error) bool {
	t := time.NewTimer(killDrainTimeout)
	defer t.Stop()

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// splitLines splits command output into lines, dropping the trailing empty
// line produced by a final newline. Carriage returns are trimmed so the
// first-line token checks behave the same for CRLF output.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
