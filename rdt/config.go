package rdt

import (
	"errors"
	"time"

	"github.com/cse473/overlay/internal/substrate"

	"go.uber.org/zap"
)

// maxWindowSize caps wSize at 2^14-1 so that the sequence space
// (2*wSize) fits in 15 bits.
const maxWindowSize = (1 << 14) - 1

// Config configures a Go-Back-N transport instance.
type Config struct {
	Logger    *zap.Logger
	Substrate substrate.Substrate
	// WindowSize is the protocol window size; the sequence number
	// space is twice this value.
	WindowSize int
	// Timeout is the retransmission deadline.
	Timeout time.Duration
}

// Validate checks that cfg is usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("rdt: nil Config")
	}
	if c.Logger == nil {
		return errors.New("rdt: nil Logger")
	}
	if c.Substrate == nil {
		return errors.New("rdt: nil Substrate")
	}
	if c.WindowSize <= 0 {
		return errors.New("rdt: WindowSize must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("rdt: Timeout must be positive")
	}
	return nil
}

func (c *Config) windowSize() int {
	if c.WindowSize > maxWindowSize {
		return maxWindowSize
	}
	return c.WindowSize
}
