package rdt

import "fmt"

// errorDef registers a sentinel error tagged with whether a caller
// should retry on it.
func errorDef(msg string, retryable bool) error {
	err := fmt.Errorf(msg)
	retryableMap[err] = retryable
	return err
}

var retryableMap = map[error]bool{}

// ErrorIsRetryable reports whether err is one of this package's
// sentinels that a caller should retry on.
func ErrorIsRetryable(err error) bool {
	return retryableMap[err]
}

var (
	// ErrWindowFull reports that the send window has no room. It is
	// marked retryable. No function in this package returns it: Send
	// blocks instead.
	ErrWindowFull = errorDef("rdt: send window is full", true)
	// ErrClosed reports that the transport has been stopped. No
	// function in this package returns it: Send and Receive return no
	// error.
	ErrClosed = errorDef("rdt: transport is closed", false)
)
