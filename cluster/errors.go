package cluster

import (
	"fmt"
)

// ErrorKind classifies failures surfaced by the plan router.
type ErrorKind int

const (
	_ ErrorKind = iota
	// UnsupportedPlan is returned for plans that cannot be routed by the
	// partition table, either because they must run locally or on every
	// group, or because routing them is not implemented.
	UnsupportedPlan
	// StorageGroupNotSet is returned when a path does not belong to any
	// storage group.
	StorageGroupNotSet
	// IllegalPath is returned for malformed paths.
	IllegalPath
	// IllegalPlan is returned for plans whose payload is malformed, such as
	// unsorted batch timestamps or misaligned columns.
	IllegalPlan
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedPlan:
		return "unsupported plan"
	case StorageGroupNotSet:
		return "storage group not set"
	case IllegalPath:
		return "illegal path"
	case IllegalPlan:
		return "illegal plan"
	default:
		return "unknown error"
	}
}

var (
	// ErrUnsupportedPlan matches any UnsupportedPlan error under errors.Is.
	ErrUnsupportedPlan = &Error{Kind: UnsupportedPlan}

	// ErrStorageGroupNotSet matches any StorageGroupNotSet error under errors.Is.
	ErrStorageGroupNotSet = &Error{Kind: StorageGroupNotSet}

	// ErrIllegalPath matches any IllegalPath error under errors.Is.
	ErrIllegalPath = &Error{Kind: IllegalPath}

	// ErrIllegalPlan matches any IllegalPlan error under errors.Is.
	ErrIllegalPlan = &Error{Kind: IllegalPlan}
)

// Error is a routing error. Errors of the same kind compare equal under
// errors.Is regardless of message.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewUnsupportedPlanError returns an UnsupportedPlan error describing plan.
func NewUnsupportedPlanError(plan fmt.Stringer) error {
	return &Error{Kind: UnsupportedPlan, Msg: plan.String()}
}

// NewStorageGroupNotSetError returns a StorageGroupNotSet error for path.
func NewStorageGroupNotSetError(path string) error {
	return &Error{Kind: StorageGroupNotSet, Msg: fmt.Sprintf("storage group is not set for current seriesPath: [%s]", path)}
}

// NewIllegalPathError returns an IllegalPath error for path.
func NewIllegalPathError(path string) error {
	return &Error{Kind: IllegalPath, Msg: fmt.Sprintf("%s is not a legal path", path)}
}

// NewIllegalPlanError returns an IllegalPlan error.
func NewIllegalPlanError(format string, args ...interface{}) error {
	return &Error{Kind: IllegalPlan, Msg: fmt.Sprintf(format, args...)}
}
