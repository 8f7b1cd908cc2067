package dht

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
	// ErrNoRoute means the routing table was empty when a forward was
	// attempted. The packet is dropped.
	ErrNoRoute = errorDef("dht: no routing table entry to forward through", false)

	// ErrJoinRejected means the prospective predecessor did not answer
	// the join request with a matching success reply.
	ErrJoinRejected = errorDef("dht: join request rejected or mismatched", false)

	// ErrJoinTimeout means no reply to a join request arrived from the
	// contacted predecessor within joinReplyTimeout. It is retryable.
	ErrJoinTimeout = errorDef("dht: join request timed out", true)
)
