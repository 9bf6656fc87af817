// Package efberr defines the typed failure taxonomy shared by the caching layer.
//
// Every failure carries a Kind so callers can tell "no data" from "bad input"
// from "collaborator down" without string matching. Kinds survive wrapping
// with eris or fmt.Errorf because Error implements Unwrap.
package efberr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = iota
	// NotFound means no cached or catalog entry exists.
	NotFound
	// Stale means data is available but past its freshness threshold.
	Stale
	// FetchFailed means a network or storage collaborator call failed; recoverable.
	FetchFailed
	// InvalidInput means the caller supplied bad arguments; never retried.
	InvalidInput
	// StorageUnavailable means the persistence collaborator is down.
	StorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Stale:
		return "stale"
	case FetchFailed:
		return "fetch_failed"
	case InvalidInput:
		return "invalid_input"
	case StorageUnavailable:
		return "storage_unavailable"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind and no Op, so that
// errors.Is(err, &Error{Kind: NotFound}) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// New creates an Error of the given kind with a plain message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap tags err with kind. Returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels for conditions callers commonly branch on.
var (
	ErrInsufficientWaypoints = &Error{Kind: InvalidInput, Op: "route", Err: errors.New("at least two waypoints are required")}
	ErrInvalidPerformance    = &Error{Kind: InvalidInput, Op: "route", Err: errors.New("cruise speed must be positive and burn rate non-negative")}
	ErrNetworkUnavailable    = &Error{Kind: FetchFailed, Op: "fetch", Err: errors.New("network unavailable")}
	ErrTimeout               = &Error{Kind: FetchFailed, Op: "fetch", Err: errors.New("timeout")}
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain carries the given Kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNotFound reports whether err's chain carries NotFound.
func IsNotFound(err error) bool { return IsKind(err, NotFound) }

// IsStale reports whether err's chain carries Stale.
func IsStale(err error) bool { return IsKind(err, Stale) }

// IsFetchFailed reports whether err's chain carries FetchFailed.
func IsFetchFailed(err error) bool { return IsKind(err, FetchFailed) }

// IsInvalidInput reports whether err's chain carries InvalidInput.
func IsInvalidInput(err error) bool { return IsKind(err, InvalidInput) }

// IsStorageUnavailable reports whether err's chain carries StorageUnavailable.
func IsStorageUnavailable(err error) bool { return IsKind(err, StorageUnavailable) }
