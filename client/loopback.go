package client

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Loopback is an in-memory stand-in for a server's network protocol. Each
// address dialed through it gets its own isolated store, so one Loopback can
// back several servers in a single test process. It honors the wire shapes
// both built-in drivers produce, including the historical variants, which
// makes it the reference transport for harness and proxy tests.
type Loopback struct {
	version string

	mu     sync.Mutex
	stores map[string]*loopbackStore
}

// NewLoopback returns a Loopback whose sessions report the given server
// version from getServerVersion.
func NewLoopback(version string) *Loopback {
	return &Loopback{
		version: version,
		stores:  make(map[string]*loopbackStore),
	}
}

// Dial is a DialFunc. Credentials are accepted but not checked.
func (l *Loopback) Dial(_ context.Context, addr, _, _ string) (Transport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	store, ok := l.stores[addr]
	if !ok {
		store = newLoopbackStore(l.version)
		l.stores[addr] = store
	}
	return &loopbackSession{store: store}, nil
}

type loopbackEntry struct {
	value  any
	added  bool
	micros int64
}

type loopbackRecord struct {
	fields map[string][]loopbackEntry
	audit  []AuditEntry
}

type loopbackStore struct {
	version string

	mu         sync.Mutex
	records    map[int64]*loopbackRecord
	nextRecord int64
	lastMicros int64
}

func newLoopbackStore(version string) *loopbackStore {
	return &loopbackStore{
		version:    version,
		records:    make(map[int64]*loopbackRecord),
		nextRecord: 1,
	}
}

// loopbackSession is one dialed connection. Staged writes buffer until
// commit; reads during a transaction see committed state only.
type loopbackSession struct {
	store  *loopbackStore
	staged []func()
	inTx   bool
	closed bool
}

func (s *loopbackSession) Call(_ context.Context, op string, args ...any) (any, error) {
	if s.closed {
		return nil, fmt.Errorf("session closed")
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	switch op {
	case "stage":
		s.inTx = true
		s.staged = nil
		return nil, nil
	case "commit":
		if !s.inTx {
			return false, nil
		}
		for _, apply := range s.staged {
			apply()
		}
		s.inTx = false
		s.staged = nil
		return true, nil
	case "abort":
		s.inTx = false
		s.staged = nil
		return nil, nil
	case "getServerVersion":
		return st.version, nil
	case "exit":
		s.closed = true
		return nil, nil
	}

	if s.inTx {
		if apply, result, buffered := s.bufferWrite(op, args); buffered {
			s.staged = append(s.staged, apply)
			return result, nil
		}
	}
	return st.dispatch(op, args)
}

func (s *loopbackSession) Close() error {
	s.closed = true
	return nil
}

// bufferWrite defers a mutating op until commit. The optimistic result
// mirrors what the op would report against an accepting store.
func (s *loopbackSession) bufferWrite(op string, args []any) (func(), any, bool) {
	switch op {
	case "add", "remove", "set", "clear", "link", "unlink", "revert":
		apply := func() { _, _ = s.store.dispatch(op, args) }
		var result any
		switch op {
		case "add", "remove", "link", "unlink":
			result = true
		}
		return apply, result, true
	}
	return nil, nil, false
}

func (st *loopbackStore) dispatch(op string, args []any) (any, error) {
	switch op {
	case "create":
		id := st.nextRecord
		st.nextRecord++
		st.record(id)
		return id, nil

	case "add":
		key, value, record, err := keyValueRecord(op, args)
		if err != nil {
			return nil, err
		}
		return st.add(key, value, record), nil

	case "remove":
		key, value, record, err := keyValueRecord(op, args)
		if err != nil {
			return nil, err
		}
		return st.remove(key, value, record), nil

	case "set":
		key, value, record, err := keyValueRecord(op, args)
		if err != nil {
			return nil, err
		}
		for _, existing := range st.valuesAt(record, key, 0) {
			st.remove(key, existing, record)
		}
		st.add(key, value, record)
		return nil, nil

	case "clear":
		key, record, err := keyRecord(op, args)
		if err != nil {
			return nil, err
		}
		for _, existing := range st.valuesAt(record, key, 0) {
			st.remove(key, existing, record)
		}
		return nil, nil

	case "get":
		key, record, micros, err := keyRecordAt(op, args)
		if err != nil {
			return nil, err
		}
		values := st.valuesAt(record, key, micros)
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil

	case "fetch":
		key, record, micros, err := keyRecordAt(op, args)
		if err != nil {
			return nil, err
		}
		return st.valuesAt(record, key, micros), nil

	case "describe":
		record, micros, err := recordAt(op, args)
		if err != nil {
			return nil, err
		}
		return st.describe(record, micros), nil

	case "verify":
		switch len(args) {
		case 3, 4:
		default:
			return nil, badArgs(op, args)
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, badArgs(op, args)
		}
		record, ok := asInt64(args[2])
		if !ok {
			return nil, badArgs(op, args)
		}
		var micros int64
		if len(args) == 4 {
			micros, ok = asInt64(args[3])
			if !ok {
				return nil, badArgs(op, args)
			}
		}
		return containsValue(st.valuesAt(record, key, micros), args[1]), nil

	case "verifyAndSwap":
		if len(args) != 4 {
			return nil, badArgs(op, args)
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, badArgs(op, args)
		}
		record, ok := asInt64(args[2])
		if !ok {
			return nil, badArgs(op, args)
		}
		expected, replacement := args[1], args[3]
		if !containsValue(st.valuesAt(record, key, 0), expected) {
			return false, nil
		}
		st.remove(key, expected, record)
		st.add(key, replacement, record)
		return true, nil

	case "ping":
		if len(args) != 1 {
			return nil, badArgs(op, args)
		}
		record, ok := asInt64(args[0])
		if !ok {
			return nil, badArgs(op, args)
		}
		return len(st.describe(record, 0)) > 0, nil

	case "link":
		key, source, destination, err := keyTwoRecords(op, args)
		if err != nil {
			return nil, err
		}
		return st.add(key, Link(destination), source), nil

	case "unlink":
		key, source, destination, err := keyTwoRecords(op, args)
		if err != nil {
			return nil, err
		}
		return st.remove(key, Link(destination), source), nil

	case "find":
		return st.find(args)

	case "search":
		if len(args) != 2 {
			return nil, badArgs(op, args)
		}
		key, ok1 := args[0].(string)
		query, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, badArgs(op, args)
		}
		return st.search(key, query), nil

	case "audit":
		if len(args) != 1 {
			return nil, badArgs(op, args)
		}
		record, ok := asInt64(args[0])
		if !ok {
			return nil, badArgs(op, args)
		}
		return slices.Clone(st.record(record).audit), nil

	case "auditKey":
		key, record, err := keyRecord(op, args)
		if err != nil {
			return nil, err
		}
		var entries []AuditEntry
		for _, entry := range st.record(record).audit {
			if strings.Contains(entry.Change, fmt.Sprintf("%q", key)) {
				entries = append(entries, entry)
			}
		}
		return entries, nil

	case "revert":
		if len(args) != 3 {
			return nil, badArgs(op, args)
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, badArgs(op, args)
		}
		record, ok := asInt64(args[1])
		if !ok {
			return nil, badArgs(op, args)
		}
		micros, ok := asInt64(args[2])
		if !ok {
			return nil, badArgs(op, args)
		}
		st.revert(key, record, micros)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

func (st *loopbackStore) record(id int64) *loopbackRecord {
	rec, ok := st.records[id]
	if !ok {
		rec = &loopbackRecord{fields: make(map[string][]loopbackEntry)}
		st.records[id] = rec
		if id >= st.nextRecord {
			st.nextRecord = id + 1
		}
	}
	return rec
}

// clock returns a strictly increasing microsecond timestamp so history
// replay never sees two writes at the same instant.
func (st *loopbackStore) clock() int64 {
	now := time.Now().UnixMicro()
	if now <= st.lastMicros {
		now = st.lastMicros + 1
	}
	st.lastMicros = now
	return now
}

func (st *loopbackStore) add(key string, value any, record int64) bool {
	if containsValue(st.valuesAt(record, key, 0), value) {
		return false
	}
	rec := st.record(record)
	micros := st.clock()
	rec.fields[key] = append(rec.fields[key], loopbackEntry{value: value, added: true, micros: micros})
	rec.audit = append(rec.audit, AuditEntry{
		Timestamp: FromMicros(micros),
		Change:    fmt.Sprintf("ADD %q AS %v IN %d", key, value, record),
	})
	return true
}

func (st *loopbackStore) remove(key string, value any, record int64) bool {
	if !containsValue(st.valuesAt(record, key, 0), value) {
		return false
	}
	rec := st.record(record)
	micros := st.clock()
	rec.fields[key] = append(rec.fields[key], loopbackEntry{value: value, added: false, micros: micros})
	rec.audit = append(rec.audit, AuditEntry{
		Timestamp: FromMicros(micros),
		Change:    fmt.Sprintf("REMOVE %q AS %v IN %d", key, value, record),
	})
	return true
}

// valuesAt replays the history of key in record up to and including micros.
// A zero micros means present state.
func (st *loopbackStore) valuesAt(record int64, key string, micros int64) []any {
	rec, ok := st.records[record]
	if !ok {
		return nil
	}
	var values []any
	for _, entry := range rec.fields[key] {
		if micros != 0 && entry.micros > micros {
			break
		}
		if entry.added {
			values = append(values, entry.value)
			continue
		}
		for i, v := range values {
			if reflect.DeepEqual(v, entry.value) {
				values = append(values[:i], values[i+1:]...)
				break
			}
		}
	}
	return values
}

func (st *loopbackStore) describe(record int64, micros int64) []string {
	rec, ok := st.records[record]
	if !ok {
		return nil
	}
	var keys []string
	for key := range rec.fields {
		if len(st.valuesAt(record, key, micros)) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (st *loopbackStore) revert(key string, record int64, micros int64) {
	past := st.valuesAt(record, key, micros)
	for _, value := range st.valuesAt(record, key, 0) {
		if !containsValue(past, value) {
			st.remove(key, value, record)
		}
	}
	for _, value := range past {
		st.add(key, value, record)
	}
}

// find handles args of the form (key, operator, operands..., [micros]). The
// operator arrives in whichever wire form the dialing driver produces.
func (st *loopbackStore) find(args []any) (any, error) {
	if len(args) < 3 {
		return nil, badArgs("find", args)
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, badArgs("find", args)
	}
	operator, ok := decodeOperator(args[1])
	if !ok {
		return nil, fmt.Errorf("find: unrecognized operator %v", args[1])
	}
	rest := args[2:]
	operands := rest
	var micros int64
	if len(rest) == operator.OperandCount()+1 {
		micros, ok = asInt64(rest[len(rest)-1])
		if !ok {
			return nil, badArgs("find", args)
		}
		operands = rest[:len(rest)-1]
	}
	if len(operands) != operator.OperandCount() {
		return nil, fmt.Errorf("find: operator %s takes %d operand(s), got %d", operator, operator.OperandCount(), len(operands))
	}

	var matches []int64
	for _, id := range st.recordIDs() {
		for _, value := range st.valuesAt(id, key, micros) {
			match, err := satisfies(value, operator, operands)
			if err != nil {
				return nil, err
			}
			if match {
				matches = append(matches, id)
				break
			}
		}
	}
	return matches, nil
}

func (st *loopbackStore) search(key, query string) []int64 {
	var matches []int64
	for _, id := range st.recordIDs() {
		for _, value := range st.valuesAt(id, key, 0) {
			s, ok := value.(string)
			if ok && strings.Contains(strings.ToLower(s), strings.ToLower(query)) {
				matches = append(matches, id)
				break
			}
		}
	}
	return matches
}

func (st *loopbackStore) recordIDs() []int64 {
	ids := make([]int64, 0, len(st.records))
	for id := range st.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func satisfies(value any, operator Operator, operands []any) (bool, error) {
	switch operator {
	case Equals:
		return reflect.DeepEqual(value, operands[0]), nil
	case NotEquals:
		return !reflect.DeepEqual(value, operands[0]), nil
	case Regex, NotRegex:
		s, ok := value.(string)
		if !ok {
			return operator == NotRegex, nil
		}
		pattern, ok := operands[0].(string)
		if !ok {
			return false, fmt.Errorf("find: %s operand must be a string pattern", operator)
		}
		match, err := regexp.MatchString(pattern, s)
		if err != nil {
			return false, fmt.Errorf("find: %w", err)
		}
		if operator == NotRegex {
			match = !match
		}
		return match, nil
	}

	cmp, ok := compareValues(value, operands[0])
	if !ok {
		return false, nil
	}
	switch operator {
	case GreaterThan:
		return cmp > 0, nil
	case GreaterThanOrEquals:
		return cmp >= 0, nil
	case LessThan:
		return cmp < 0, nil
	case LessThanOrEquals:
		return cmp <= 0, nil
	case Between:
		high, okHigh := compareValues(value, operands[1])
		return okHigh && cmp >= 0 && high < 0, nil
	}
	return false, fmt.Errorf("find: unsupported operator %s", operator)
}

// compareValues orders two values when they share a comparable kind.
func compareValues(a, b any) (int, bool) {
	if fa, ok := asFloat64(a); ok {
		fb, ok := asFloat64(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func containsValue(values []any, value any) bool {
	for _, v := range values {
		if reflect.DeepEqual(v, value) {
			return true
		}
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// decodeOperator accepts both wire forms: the enum ordinal older servers
// use and the symbolic form newer ones accept.
func decodeOperator(v any) (Operator, bool) {
	switch o := v.(type) {
	case int:
		op := Operator(o)
		return op, op.IsValid()
	case int64:
		op := Operator(o)
		return op, op.IsValid()
	case string:
		for op, symbol := range operatorSymbols {
			if symbol == o {
				return op, true
			}
		}
	}
	return 0, false
}

// Shape helpers for the common argument layouts.

func badArgs(op string, args []any) error {
	return fmt.Errorf("%s: unexpected arguments %v", op, args)
}

func keyValueRecord(op string, args []any) (string, any, int64, error) {
	if len(args) != 3 {
		return "", nil, 0, badArgs(op, args)
	}
	key, ok := args[0].(string)
	if !ok {
		return "", nil, 0, badArgs(op, args)
	}
	record, ok := asInt64(args[2])
	if !ok {
		return "", nil, 0, badArgs(op, args)
	}
	return key, args[1], record, nil
}

func keyRecord(op string, args []any) (string, int64, error) {
	if len(args) != 2 {
		return "", 0, badArgs(op, args)
	}
	key, ok := args[0].(string)
	if !ok {
		return "", 0, badArgs(op, args)
	}
	record, ok := asInt64(args[1])
	if !ok {
		return "", 0, badArgs(op, args)
	}
	return key, record, nil
}

func keyRecordAt(op string, args []any) (string, int64, int64, error) {
	if len(args) != 2 && len(args) != 3 {
		return "", 0, 0, badArgs(op, args)
	}
	key, ok := args[0].(string)
	if !ok {
		return "", 0, 0, badArgs(op, args)
	}
	record, ok := asInt64(args[1])
	if !ok {
		return "", 0, 0, badArgs(op, args)
	}
	var micros int64
	if len(args) == 3 {
		micros, ok = asInt64(args[2])
		if !ok {
			return "", 0, 0, badArgs(op, args)
		}
	}
	return key, record, micros, nil
}

func recordAt(op string, args []any) (int64, int64, error) {
	if len(args) != 1 && len(args) != 2 {
		return 0, 0, badArgs(op, args)
	}
	record, ok := asInt64(args[0])
	if !ok {
		return 0, 0, badArgs(op, args)
	}
	var micros int64
	if len(args) == 2 {
		micros, ok = asInt64(args[1])
		if !ok {
			return 0, 0, badArgs(op, args)
		}
	}
	return record, micros, nil
}

func keyTwoRecords(op string, args []any) (string, int64, int64, error) {
	if len(args) != 3 {
		return "", 0, 0, badArgs(op, args)
	}
	key, ok := args[0].(string)
	if !ok {
		return "", 0, 0, badArgs(op, args)
	}
	source, ok := asInt64(args[1])
	if !ok {
		return "", 0, 0, badArgs(op, args)
	}
	destination, ok := asInt64(args[2])
	if !ok {
		return "", 0, 0, badArgs(op, args)
	}
	return key, source, destination, nil
}

var _ DialFunc = (*Loopback)(nil).Dial
