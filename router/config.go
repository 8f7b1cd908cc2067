package router

import (
	"errors"
	"time"

	"github.com/cse473/overlay/forwarder"
	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
)

// Neighbor describes one directly-connected overlay router reachable
// over a fixed link index.
type Neighbor struct {
	IP    uint32
	Delay float64 // initial link cost estimate, in seconds
}

// Config configures a Router.
type Config struct {
	Logger *zap.Logger
	MyIP   uint32
	Fwdr   *forwarder.Forwarder
	// Prefixes is the set of prefixes this router advertises as its
	// own.
	Prefixes []wire.Prefix
	// Neighbors is the ordered list of neighbor routers; neighbor i
	// is reachable over link i.
	Neighbors []Neighbor

	HelloInterval  time.Duration
	AdvertInterval time.Duration

	Debug bool
	// EnableFailureAdvert turns on link-failure advertisement
	// propagation when a link's hello counter reaches zero.
	EnableFailureAdvert bool
}

// Validate checks that cfg is usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("router: nil Config")
	}
	if c.Logger == nil {
		return errors.New("router: nil Logger")
	}
	if c.Fwdr == nil {
		return errors.New("router: nil Fwdr")
	}
	if c.HelloInterval <= 0 {
		return errors.New("router: HelloInterval must be positive")
	}
	if c.AdvertInterval <= 0 {
		return errors.New("router: AdvertInterval must be positive")
	}
	return nil
}
