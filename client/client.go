package client

import "context"

// Client is the stable capability surface test code compiles against,
// independent of the server version actually under test. Obtain one with
// Dial; the concrete value dispatches every call through a version-matched
// driver and the server's own network protocol.
//
// A Client is bound to one server instance and must not outlive it: the
// handle that created the server closes its clients on destroy.
//
// Operations taking a Timestamp act on historical state as of that instant;
// their shapes resolve independently from the present-state variants.
type Client interface {
	// Abort discards the staged transaction, if any.
	Abort(ctx context.Context) error

	// Add appends value to the values stored for key in record.
	// Reports whether the value was added (false if already present).
	Add(ctx context.Context, key string, value any, record int64) (bool, error)

	// Audit returns the change log for record, oldest first.
	Audit(ctx context.Context, record int64) ([]AuditEntry, error)

	// AuditKey returns the change log for key in record, oldest first.
	AuditKey(ctx context.Context, key string, record int64) ([]AuditEntry, error)

	// Clear removes every value stored for key in record.
	Clear(ctx context.Context, key string, record int64) error

	// Commit applies the staged transaction. Reports whether it applied.
	Commit(ctx context.Context) (bool, error)

	// Create returns a new, empty record's id.
	Create(ctx context.Context) (int64, error)

	// Describe returns the keys that currently have values in record.
	Describe(ctx context.Context, record int64) ([]string, error)

	// DescribeAt is Describe as of a historical timestamp.
	DescribeAt(ctx context.Context, record int64, ts Timestamp) ([]string, error)

	// Exit ends the server session and closes the client.
	Exit(ctx context.Context) error

	// Fetch returns every value stored for key in record.
	Fetch(ctx context.Context, key string, record int64) ([]any, error)

	// FetchAt is Fetch as of a historical timestamp.
	FetchAt(ctx context.Context, key string, record int64, ts Timestamp) ([]any, error)

	// Find returns the records whose key satisfies operator against the
	// operand values. Between consumes two operands, all others one.
	Find(ctx context.Context, key string, operator Operator, values ...any) ([]int64, error)

	// FindAt is Find as of a historical timestamp.
	FindAt(ctx context.Context, key string, operator Operator, ts Timestamp, values ...any) ([]int64, error)

	// Get returns the most recently added value for key in record, or nil.
	Get(ctx context.Context, key string, record int64) (any, error)

	// GetAt is Get as of a historical timestamp.
	GetAt(ctx context.Context, key string, record int64, ts Timestamp) (any, error)

	// Link stores a pointer to destination under key in source.
	Link(ctx context.Context, key string, source, destination int64) (bool, error)

	// Ping reports whether record currently has any populated keys.
	Ping(ctx context.Context, record int64) (bool, error)

	// Remove deletes value from the values stored for key in record.
	Remove(ctx context.Context, key string, value any, record int64) (bool, error)

	// Revert restores key in record to its state as of the timestamp.
	Revert(ctx context.Context, key string, record int64, ts Timestamp) error

	// Search returns records where key's string values match query.
	Search(ctx context.Context, key, query string) ([]int64, error)

	// ServerVersion reports the version of the server build under test.
	ServerVersion(ctx context.Context) (string, error)

	// Set makes value the only value stored for key in record.
	Set(ctx context.Context, key string, value any, record int64) error

	// Stage starts a transaction for the session.
	Stage(ctx context.Context) error

	// Unlink removes the pointer to destination under key in source.
	Unlink(ctx context.Context, key string, source, destination int64) (bool, error)

	// Verify reports whether value is stored for key in record.
	Verify(ctx context.Context, key string, value any, record int64) (bool, error)

	// VerifyAt is Verify as of a historical timestamp.
	VerifyAt(ctx context.Context, key string, value any, record int64, ts Timestamp) (bool, error)

	// VerifyAndSwap atomically replaces expected with replacement for key
	// in record, reporting whether the swap happened.
	VerifyAndSwap(ctx context.Context, key string, expected any, record int64, replacement any) (bool, error)

	// Close releases the client's transport without ending the server
	// session. Safe to call more than once.
	Close() error
}
