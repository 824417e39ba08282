package wickfs

import (
	"errors"
	"fmt"
)

// Kind names the storage operation that failed.
type Kind string

const (
	KindRead            Kind = "read"
	KindWrite           Kind = "write"
	KindDelete          Kind = "delete"
	KindRename          Kind = "rename"
	KindCopy            Kind = "copy"
	KindCreateDirectory Kind = "create-directory"
	KindReadDirectory   Kind = "read-directory"
)

var (
	ErrReadFailed            = errors.New("read failed")
	ErrWriteFailed           = errors.New("write failed")
	ErrDeleteFailed          = errors.New("delete failed")
	ErrRenameFailed          = errors.New("rename failed")
	ErrCopyFailed            = errors.New("copy failed")
	ErrCreateDirectoryFailed = errors.New("create directory failed")
	ErrReadDirectoryFailed   = errors.New("read directory failed")

	// ErrDirectoryOp matches both directory failure kinds.
	ErrDirectoryOp = errors.New("directory operation failed")
)

var kindSentinels = map[Kind]error{
	KindRead:            ErrReadFailed,
	KindWrite:           ErrWriteFailed,
	KindDelete:          ErrDeleteFailed,
	KindRename:          ErrRenameFailed,
	KindCopy:            ErrCopyFailed,
	KindCreateDirectory: ErrCreateDirectoryFailed,
	KindReadDirectory:   ErrReadDirectoryFailed,
}

// Error is returned by every FileSystem operation that fails at the storage layer.
type Error struct {
	Kind     Kind
	Resource Resource
	Target   *Resource // destination for rename and copy
	Err      error
}

func (e *Error) Error() string {
	if e.Target != nil {
		return fmt.Sprintf("%s %s -> %s: %v", e.Kind, e.Resource, *e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Resource, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	if target == ErrDirectoryOp {
		return e.Kind == KindCreateDirectory || e.Kind == KindReadDirectory
	}
	return kindSentinels[e.Kind] == target
}

func opError(kind Kind, r Resource, err error) error {
	return &Error{Kind: kind, Resource: r, Err: err}
}

func pairError(kind Kind, from, to Resource, err error) error {
	return &Error{Kind: kind, Resource: from, Target: &to, Err: err}
}

// KindOf returns the failure kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
