package keylock

import "errors"

var (
	ErrLockFailed  = errors.New("failed to acquire lock")
	ErrLockTimeout = errors.New("timed out waiting for lock")
)
