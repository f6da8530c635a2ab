// Package testutil provides helpers shared by the module's test suites,
// chiefly a scripted installer payload that stands in for a real Concourse
// Server installer so lifecycle tests can run without the actual binary.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeInstaller is a POSIX sh installer payload. Like the real installer it
// lays down the concourse-server application tree in its working directory
// and then blocks waiting for an interactive confirmation that unattended
// installs never provide; the harness is expected to kill it after its
// grace period.
//
// The installed control scripts emulate the real ones' observable contract:
// start/stop toggle a marker file and the status action's first output line
// contains "is running" only while the marker exists.
const fakeInstaller = `#!/bin/sh
echo "Concourse Server installer"
mkdir -p concourse-server/bin concourse-server/conf

cat > concourse-server/conf/concourse.prefs <<'PREFS'
# Concourse Server preferences
buffer_directory = /var/lib/concourse/buffer
database_directory = /var/lib/concourse/db
client_port = 1717
shutdown_port = 3434
log_level = INFO
PREFS

cat > concourse-server/bin/start <<'SCRIPT'
#!/bin/sh
touch ../.running
echo "Starting Concourse Server"
SCRIPT

cat > concourse-server/bin/stop <<'SCRIPT'
#!/bin/sh
rm -f ../.running
echo "Stopped Concourse Server"
SCRIPT

cat > concourse-server/bin/concourse <<'SCRIPT'
#!/bin/sh
if [ "$1" = "status" ]; then
    if [ -f ../.running ]; then
        echo "Concourse Server is running"
    else
        echo "Concourse Server is not running"
    fi
fi
SCRIPT

chmod +x concourse-server/bin/start concourse-server/bin/stop concourse-server/bin/concourse
echo "Press ENTER to install the system-wide launcher"
sleep 15
`

// brokenInstaller runs without laying down any application files, so
// post-install verification must fail.
const brokenInstaller = `#!/bin/sh
echo "nothing to see here"
`

// WriteInstaller writes the fake installer payload into a temp directory
// and returns its path.
func WriteInstaller(t testing.TB) string {
	t.Helper()
	return writeScript(t, fakeInstaller)
}

// WriteBrokenInstaller writes an installer payload that produces no
// application directory.
func WriteBrokenInstaller(t testing.TB) string {
	t.Helper()
	return writeScript(t, brokenInstaller)
}

func writeScript(t testing.TB, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "concourse-server-0.0.0-test.bin")
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write fake installer: %v", err)
	}
	return path
}
