package async

import "errors"

var (
	// ErrTimeout is returned by AwaitWithTimeout when the function is still
	// running at the deadline. The goroutine itself is not stopped.
	ErrTimeout = errors.New("async: result not ready before deadline")
	// ErrPanic wraps the value recovered from a panicking function.
	ErrPanic = errors.New("async: recovered panic")
)
