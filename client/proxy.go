package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dubex/concourse-test/internal/sentinel"
)

// ErrCapability is returned when a capability call cannot be served by the
// server version under test. It wraps translation and transport failures;
// callers treat it as fatal for the affected operation rather than probing
// for an alternative shape.
const ErrCapability = sentinel.Error("capability not supported by server version")

// callKey identifies one (operation, parameter shape) pair. Resolution of
// the argument translators for a key happens once per proxy and is reused by
// every subsequent call with the same shape.
type callKey struct {
	op    string
	shape string
}

// translator rewrites one argument slot into its wire form.
type translator func(arg any) (any, error)

// handler carries the resolved per-slot translators for a call shape.
type handler struct {
	translators []translator
}

// proxy implements Client by translating each call for the target server
// version and dispatching it through the transport.
type proxy struct {
	version   string
	driver    Driver
	transport Transport

	mu       sync.Mutex
	resolved map[callKey]*handler
	closed   atomic.Bool
}

func newProxy(version string, driver Driver, transport Transport) *proxy {
	return &proxy{
		version:   version,
		driver:    driver,
		transport: transport,
		resolved:  make(map[callKey]*handler),
	}
}

// argShape fingerprints the version-sensitive slots of an argument list.
// Only Timestamp and Operator need translation; every other argument is a
// pass-through and shares the "." shape character.
func argShape(args []any) string {
	shape := make([]byte, len(args))
	for i, arg := range args {
		switch arg.(type) {
		case Timestamp:
			shape[i] = 't'
		case Operator:
			shape[i] = 'o'
		default:
			shape[i] = '.'
		}
	}
	return string(shape)
}

// resolve returns the handler for the call shape, building and memoizing it
// on first use.
func (p *proxy) resolve(op string, args []any) *handler {
	key := callKey{op: op, shape: argShape(args)}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.resolved[key]; ok {
		return h
	}

	h := &handler{translators: make([]translator, len(args))}
	for i, arg := range args {
		switch arg.(type) {
		case Timestamp:
			h.translators[i] = func(a any) (any, error) {
				return p.driver.Codec.EncodeTimestamp(a.(Timestamp))
			}
		case Operator:
			h.translators[i] = func(a any) (any, error) {
				return p.driver.Codec.EncodeOperator(a.(Operator))
			}
		default:
			h.translators[i] = nil
		}
	}
	p.resolved[key] = h
	return h
}

// call translates args and dispatches op through the transport. Every
// failure surfaces wrapped in ErrCapability with the operation and driver
// named, since from the caller's perspective they all mean the same thing:
// this server build could not serve the call.
func (p *proxy) call(ctx context.Context, op string, args ...any) (any, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("%s: %w", op, ErrClientClosed)
	}

	h := p.resolve(op, args)
	wire := make([]any, len(args))
	for i, arg := range args {
		if h.translators[i] == nil {
			wire[i] = arg
			continue
		}
		translated, err := h.translators[i](arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s arg %d via driver %s: %v", ErrCapability, op, i, p.driver.Name, err)
		}
		wire[i] = translated
	}

	result, err := p.transport.Call(ctx, op, wire...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s via driver %s: %v", ErrCapability, op, p.driver.Name, err)
	}
	return result, nil
}

func (p *proxy) callBool(ctx context.Context, op string, args ...any) (bool, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s returned %T, want bool", ErrCapability, op, result)
	}
	return b, nil
}

func (p *proxy) callInt64(ctx context.Context, op string, args ...any) (int64, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return 0, err
	}
	n, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: %s returned %T, want int64", ErrCapability, op, result)
	}
	return n, nil
}

func (p *proxy) callString(ctx context.Context, op string, args ...any) (string, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return "", err
	}
	s, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %T, want string", ErrCapability, op, result)
	}
	return s, nil
}

func (p *proxy) callStrings(ctx context.Context, op string, args ...any) ([]string, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	ss, ok := result.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T, want []string", ErrCapability, op, result)
	}
	return ss, nil
}

func (p *proxy) callRecords(ctx context.Context, op string, args ...any) ([]int64, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	records, ok := result.([]int64)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T, want []int64", ErrCapability, op, result)
	}
	return records, nil
}

func (p *proxy) callValues(ctx context.Context, op string, args ...any) ([]any, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	values, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T, want []any", ErrCapability, op, result)
	}
	return values, nil
}

func (p *proxy) callAudit(ctx context.Context, op string, args ...any) ([]AuditEntry, error) {
	result, err := p.call(ctx, op, args...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	entries, ok := result.([]AuditEntry)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T, want []AuditEntry", ErrCapability, op, result)
	}
	return entries, nil
}

func (p *proxy) callVoid(ctx context.Context, op string, args ...any) error {
	_, err := p.call(ctx, op, args...)
	return err
}

func (p *proxy) Abort(ctx context.Context) error {
	return p.callVoid(ctx, "abort")
}

func (p *proxy) Add(ctx context.Context, key string, value any, record int64) (bool, error) {
	return p.callBool(ctx, "add", key, value, record)
}

func (p *proxy) Audit(ctx context.Context, record int64) ([]AuditEntry, error) {
	return p.callAudit(ctx, "audit", record)
}

func (p *proxy) AuditKey(ctx context.Context, key string, record int64) ([]AuditEntry, error) {
	return p.callAudit(ctx, "auditKey", key, record)
}

func (p *proxy) Clear(ctx context.Context, key string, record int64) error {
	return p.callVoid(ctx, "clear", key, record)
}

func (p *proxy) Commit(ctx context.Context) (bool, error) {
	return p.callBool(ctx, "commit")
}

func (p *proxy) Create(ctx context.Context) (int64, error) {
	return p.callInt64(ctx, "create")
}

func (p *proxy) Describe(ctx context.Context, record int64) ([]string, error) {
	return p.callStrings(ctx, "describe", record)
}

func (p *proxy) DescribeAt(ctx context.Context, record int64, ts Timestamp) ([]string, error) {
	return p.callStrings(ctx, "describe", record, ts)
}

func (p *proxy) Exit(ctx context.Context) error {
	err := p.callVoid(ctx, "exit")
	if closeErr := p.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (p *proxy) Fetch(ctx context.Context, key string, record int64) ([]any, error) {
	return p.callValues(ctx, "fetch", key, record)
}

func (p *proxy) FetchAt(ctx context.Context, key string, record int64, ts Timestamp) ([]any, error) {
	return p.callValues(ctx, "fetch", key, record, ts)
}

func (p *proxy) Find(ctx context.Context, key string, operator Operator, values ...any) ([]int64, error) {
	if err := checkOperands(operator, len(values)); err != nil {
		return nil, err
	}
	args := append([]any{key, operator}, values...)
	return p.callRecords(ctx, "find", args...)
}

func (p *proxy) FindAt(ctx context.Context, key string, operator Operator, ts Timestamp, values ...any) ([]int64, error) {
	if err := checkOperands(operator, len(values)); err != nil {
		return nil, err
	}
	args := append([]any{key, operator}, values...)
	args = append(args, ts)
	return p.callRecords(ctx, "find", args...)
}

func (p *proxy) Get(ctx context.Context, key string, record int64) (any, error) {
	return p.call(ctx, "get", key, record)
}

func (p *proxy) GetAt(ctx context.Context, key string, record int64, ts Timestamp) (any, error) {
	return p.call(ctx, "get", key, record, ts)
}

func (p *proxy) Link(ctx context.Context, key string, source, destination int64) (bool, error) {
	return p.callBool(ctx, "link", key, source, destination)
}

func (p *proxy) Ping(ctx context.Context, record int64) (bool, error) {
	return p.callBool(ctx, "ping", record)
}

func (p *proxy) Remove(ctx context.Context, key string, value any, record int64) (bool, error) {
	return p.callBool(ctx, "remove", key, value, record)
}

func (p *proxy) Revert(ctx context.Context, key string, record int64, ts Timestamp) error {
	return p.callVoid(ctx, "revert", key, record, ts)
}

func (p *proxy) Search(ctx context.Context, key, query string) ([]int64, error) {
	return p.callRecords(ctx, "search", key, query)
}

func (p *proxy) ServerVersion(ctx context.Context) (string, error) {
	return p.callString(ctx, "getServerVersion")
}

func (p *proxy) Set(ctx context.Context, key string, value any, record int64) error {
	return p.callVoid(ctx, "set", key, value, record)
}

func (p *proxy) Stage(ctx context.Context) error {
	return p.callVoid(ctx, "stage")
}

func (p *proxy) Unlink(ctx context.Context, key string, source, destination int64) (bool, error) {
	return p.callBool(ctx, "unlink", key, source, destination)
}

func (p *proxy) Verify(ctx context.Context, key string, value any, record int64) (bool, error) {
	return p.callBool(ctx, "verify", key, value, record)
}

func (p *proxy) VerifyAt(ctx context.Context, key string, value any, record int64, ts Timestamp) (bool, error) {
	return p.callBool(ctx, "verify", key, value, record, ts)
}

func (p *proxy) VerifyAndSwap(ctx context.Context, key string, expected any, record int64, replacement any) (bool, error) {
	return p.callBool(ctx, "verifyAndSwap", key, expected, record, replacement)
}

func (p *proxy) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.transport.Close()
}

// checkOperands validates the operand count for a Find query before any
// translation or transport work happens.
func checkOperands(operator Operator, got int) error {
	if !operator.IsValid() {
		return fmt.Errorf("%w: invalid operator %d", ErrCapability, int(operator))
	}
	if want := operator.OperandCount(); got != want {
		return fmt.Errorf("%w: operator %s takes %d operand(s), got %d", ErrCapability, operator, want, got)
	}
	return nil
}

var _ Client = (*proxy)(nil)
