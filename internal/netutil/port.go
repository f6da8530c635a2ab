package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"syscall"
)

// Port range for allocated ports. Candidates are drawn uniformly from
// [PortMin, PortMax), the upper region of the ephemeral range, where
// collisions with well-known services are unlikely.
const (
	PortMin = 49512
	PortMax = 65535
)

// maxRegistryRetries is the maximum number of redraws when a candidate is
// already reserved in the registry. This guards against pathological cases;
// with ~16k candidate ports a registry-level collision is rare.
const maxRegistryRetries = 64

// Registry allocates ports and tracks the ones currently reserved by this
// process. The bind check alone leaves a TOCTOU window where two concurrent
// callers could both find the same port free (the first closes its listener
// before the second binds); the reservation map closes that window within
// the controlling process. The OS-level window against unrelated processes
// remains and is accepted: the managed server rebinds the port immediately
// at start time.
type Registry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewRegistry creates a Registry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// reserve attempts to register a port. Returns false if already taken.
func (r *Registry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release removes a port from the registry, allowing it to be reused.
func (r *Registry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// bindCandidate draws a random candidate from [PortMin, PortMax) and tries to
// bind it on the loopback interface. On success it returns the open listener,
// which the caller must close once the port number has been consumed. A port
// that is already in use (by this or any other process) reports retryable;
// any other bind failure signals an environment problem and is returned as a
// fatal error.
func (r *Registry) bindCandidate() (l *net.TCPListener, port int, retryable bool, err error) {
	port = PortMin + rand.IntN(PortMax-PortMin)
	if !r.reserve(port) {
		return nil, 0, true, nil
	}

	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	l, err = net.ListenTCP("tcp", addr)
	if err != nil {
		r.Release(port)
		if errors.Is(err, syscall.EADDRINUSE) {
			r.log.Debug("port already bound, retrying", "port", port)
			return nil, 0, true, nil
		}
		return nil, 0, false, fmt.Errorf("bind port %d: %w", port, err)
	}
	return l, port, false, nil
}

// Open allocates a single free port. The port stays reserved in the registry
// until Release is called; the underlying listener is closed before Open
// returns so the managed server can bind the port itself.
func (r *Registry) Open() (int, error) {
	l, port, err := r.open()
	if err != nil {
		return 0, err
	}
	if closeErr := l.Close(); closeErr != nil {
		r.log.Warn("close listener after port allocation", "port", port, "error", closeErr)
	}
	return port, nil
}

// open allocates a port and returns it with its listener still bound.
func (r *Registry) open() (*net.TCPListener, int, error) {
	for range maxRegistryRetries {
		l, port, retryable, err := r.bindCandidate()
		if err != nil {
			return nil, 0, err
		}
		if retryable {
			continue
		}
		return l, port, nil
	}
	return nil, 0, fmt.Errorf("allocate port: exhausted %d attempts", maxRegistryRetries)
}

// OpenPair allocates two distinct free ports.
//
// Both listeners are held open simultaneously before either is closed, so a
// second draw cannot land on the first port even without the registry check.
// Callers must Release both ports when the installation is destroyed.
func (r *Registry) OpenPair() (port1, port2 int, err error) {
	l1, p1, err := r.open()
	if err != nil {
		return 0, 0, fmt.Errorf("allocate first port: %w", err)
	}

	l2, p2, err := r.open()
	if err != nil {
		// Close the listener before releasing the registry reservation so
		// another goroutine cannot grab the port while it is still bound.
		if closeErr := l1.Close(); closeErr != nil {
			r.log.Warn("close listener after port allocation", "port", p1, "error", closeErr)
		}
		r.Release(p1)
		return 0, 0, fmt.Errorf("allocate second port: %w", err)
	}

	if closeErr := l1.Close(); closeErr != nil {
		r.log.Warn("close listener after port allocation", "port", p1, "error", closeErr)
	}
	if closeErr := l2.Close(); closeErr != nil {
		r.log.Warn("close listener after port allocation", "port", p2, "error", closeErr)
	}

	return p1, p2, nil
}
