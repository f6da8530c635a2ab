package prefs

import (
	"fmt"
	"os"
	"strconv"

	"github.com/magiconair/properties"
)

// Preference keys rewritten by the harness after installation.
const (
	keyBufferDirectory   = "buffer_directory"
	keyDatabaseDirectory = "database_directory"
	keyClientPort        = "client_port"
	keyShutdownPort      = "shutdown_port"
	keyLogLevel          = "log_level"
)

// Server defaults used when a key is absent from the file.
const (
	DefaultClientPort   = 1717
	DefaultShutdownPort = 3434
)

// Prefs is a handle on one concourse.prefs file. Mutations are held in
// memory until Store writes the file back.
type Prefs struct {
	path string
	p    *properties.Properties
}

// Load parses the preference file at path.
func Load(path string) (*Prefs, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load preferences %s: %w", path, err)
	}
	return &Prefs{path: path, p: p}, nil
}

// Path returns the file this handle reads from and writes to.
func (pr *Prefs) Path() string {
	return pr.path
}

// BufferDirectory returns the configured buffer directory, or "" if unset.
func (pr *Prefs) BufferDirectory() string {
	return pr.p.GetString(keyBufferDirectory, "")
}

// SetBufferDirectory sets the buffer directory.
func (pr *Prefs) SetBufferDirectory(dir string) {
	pr.set(keyBufferDirectory, dir)
}

// DatabaseDirectory returns the configured database directory, or "" if unset.
func (pr *Prefs) DatabaseDirectory() string {
	return pr.p.GetString(keyDatabaseDirectory, "")
}

// SetDatabaseDirectory sets the database directory.
func (pr *Prefs) SetDatabaseDirectory(dir string) {
	pr.set(keyDatabaseDirectory, dir)
}

// ClientPort returns the configured client port, falling back to the server
// default when the key is absent or malformed.
func (pr *Prefs) ClientPort() int {
	return pr.p.GetInt(keyClientPort, DefaultClientPort)
}

// SetClientPort sets the client port.
func (pr *Prefs) SetClientPort(port int) {
	pr.set(keyClientPort, strconv.Itoa(port))
}

// ShutdownPort returns the configured shutdown port, falling back to the
// server default when the key is absent or malformed.
func (pr *Prefs) ShutdownPort() int {
	return pr.p.GetInt(keyShutdownPort, DefaultShutdownPort)
}

// SetShutdownPort sets the shutdown port.
func (pr *Prefs) SetShutdownPort(port int) {
	pr.set(keyShutdownPort, strconv.Itoa(port))
}

// LogLevel returns the configured log verbosity, or "" if unset.
func (pr *Prefs) LogLevel() string {
	return pr.p.GetString(keyLogLevel, "")
}

// SetLogLevel sets the log verbosity (e.g. "DEBUG").
func (pr *Prefs) SetLogLevel(level string) {
	pr.set(keyLogLevel, level)
}

// set writes a key into the in-memory table. The properties library only
// reports an error when expansion of circular references fails, which cannot
// happen for the plain values the harness writes; it is treated as a
// programmer error.
func (pr *Prefs) set(key, value string) {
	if _, _, err := pr.p.Set(key, value); err != nil {
		panic(fmt.Sprintf("prefs: set %s: %v", key, err))
	}
}

// Store writes the preference table back to the file it was loaded from,
// preserving comments.
func (pr *Prefs) Store() (retErr error) {
	f, err := os.OpenFile(pr.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open preferences %s: %w", pr.path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close preferences %s: %w", pr.path, closeErr)
		}
	}()

	if _, err := pr.p.WriteComment(f, "# ", properties.UTF8); err != nil {
		return fmt.Errorf("write preferences %s: %w", pr.path, err)
	}
	return nil
}
