package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/dubex/concourse-test/internal/sentinel"
)

// ErrUnsupportedVersion is returned by Dial when no registered driver
// covers the requested server version.
const ErrUnsupportedVersion = sentinel.Error("no client driver for server version")

// Codec translates the version-sensitive parameter types into the wire
// shapes one server line expects. Everything else passes through untouched.
type Codec interface {
	// EncodeTimestamp translates a Timestamp to its wire form.
	EncodeTimestamp(ts Timestamp) (any, error)

	// EncodeOperator translates an Operator to its wire form.
	EncodeOperator(op Operator) (any, error)
}

// Driver binds a semver range of server versions to the Codec that speaks
// their wire shapes. Ranges are half-open: a driver covers versions v with
// Min <= v < Max; an empty Max leaves the range unbounded above.
type Driver struct {
	// Name identifies the driver in errors and logs.
	Name string
	// Min and Max bound the covered version range ("vX.Y.Z" form).
	Min, Max string
	// Codec performs the version-sensitive translations.
	Codec Codec
}

// supports reports whether the driver covers the canonical version v.
func (d Driver) supports(v string) bool {
	if semver.Compare(v, d.Min) < 0 {
		return false
	}
	return d.Max == "" || semver.Compare(v, d.Max) < 0
}

// Registry state. The built-in drivers cover the 0.3 and 0.5 server lines;
// Register adds coverage for additional builds.
var (
	driverMu sync.RWMutex
	drivers  = []Driver{
		{Name: "concourse-0.3", Min: "v0.3.0", Max: "v0.5.0", Codec: ordinalCodec{}},
		{Name: "concourse-0.5", Min: "v0.5.0", Codec: symbolCodec{}},
	}
)

// Register adds a driver to the registry. Drivers registered later win ties
// with built-in drivers covering the same versions.
//
// Panics if the driver is structurally invalid (empty name, nil codec, or a
// malformed version bound); these are programmer errors caught at
// registration time, mirroring regexp.MustCompile.
func Register(d Driver) {
	if d.Name == "" {
		panic("client: driver name must not be empty")
	}
	if d.Codec == nil {
		panic(fmt.Sprintf("client: driver %s must have a codec", d.Name))
	}
	if !semver.IsValid(d.Min) {
		panic(fmt.Sprintf("client: driver %s has invalid min version %q", d.Name, d.Min))
	}
	if d.Max != "" && !semver.IsValid(d.Max) {
		panic(fmt.Sprintf("client: driver %s has invalid max version %q", d.Name, d.Max))
	}
	driverMu.Lock()
	defer driverMu.Unlock()
	drivers = append(drivers, d)
}

// canonicalVersion normalizes a user-supplied version string to the "vX.Y.Z"
// form semver comparisons need. Returns "" for a string that is not a
// semantic version (e.g. a local installer path).
func canonicalVersion(version string) string {
	if version == "" {
		return ""
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// driverFor selects the driver for a server version. A version that is not
// a semantic version (including the empty string, used when the server was
// installed from a local binary of unknown version) selects the driver with
// the newest range, on the assumption that local builds track the head of
// development. Among multiple matches the highest Min wins, with later
// registrations breaking ties.
func driverFor(version string) (Driver, error) {
	driverMu.RLock()
	defer driverMu.RUnlock()

	v := canonicalVersion(version)

	var best *Driver
	for i := range drivers {
		d := &drivers[i]
		if v != "" && !d.supports(v) {
			continue
		}
		if best == nil || semver.Compare(d.Min, best.Min) >= 0 {
			best = d
		}
	}
	if best == nil {
		return Driver{}, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}
	return *best, nil
}

// Dial connects to the server at addr, which runs the given version, and
// returns a Client whose calls are translated for that build. The dial
// function supplies the actual wire transport; passing nil returns
// ErrNoTransport.
func Dial(ctx context.Context, version, addr, username, password string, dial DialFunc) (Client, error) {
	if dial == nil {
		return nil, ErrNoTransport
	}
	driver, err := driverFor(version)
	if err != nil {
		return nil, err
	}
	transport, err := dial(ctx, addr, username, password)
	if err != nil {
		return nil, fmt.Errorf("dial server at %s (driver %s): %w", addr, driver.Name, err)
	}
	return newProxy(version, driver, transport), nil
}

// ordinalCodec speaks the 0.3 server line: timestamps travel as epoch
// microseconds and operators as their wire enum ordinal.
type ordinalCodec struct{}

func (ordinalCodec) EncodeTimestamp(ts Timestamp) (any, error) {
	if ts.IsZero() {
		return nil, fmt.Errorf("encode timestamp: zero timestamp")
	}
	return ts.Micros(), nil
}

func (ordinalCodec) EncodeOperator(op Operator) (any, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("encode operator: invalid operator %d", int(op))
	}
	return op.Ordinal(), nil
}

// symbolCodec speaks the 0.5 server line, which replaced operator ordinals
// with their symbolic form. Timestamps still travel as epoch microseconds.
type symbolCodec struct{}

func (symbolCodec) EncodeTimestamp(ts Timestamp) (any, error) {
	if ts.IsZero() {
		return nil, fmt.Errorf("encode timestamp: zero timestamp")
	}
	return ts.Micros(), nil
}

func (symbolCodec) EncodeOperator(op Operator) (any, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("encode operator: invalid operator %d", int(op))
	}
	return op.Symbol(), nil
}
