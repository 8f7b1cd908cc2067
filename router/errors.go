package router

import "fmt"

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
	// ErrUnknownLink names a neighbor index out of range for the
	// configured neighbor list. No function in this package returns
	// it: packets on such a link are dropped.
	ErrUnknownLink = errorDef("router: unknown link index", false)
)
