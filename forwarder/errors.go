package forwarder

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
	// ErrNoRoute names the case where no forwarding entry matches a
	// destination. No function in this package returns it: table
	// lookups report a miss with a false result and the packet is
	// dropped.
	ErrNoRoute = errorDef("forwarder: no matching forwarding table entry", false)
)
