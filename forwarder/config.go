package forwarder

import (
	"errors"

	"github.com/cse473/overlay/internal/substrate"

	"go.uber.org/zap"
)

// Config configures a Forwarder.
type Config struct {
	Logger    *zap.Logger
	MyIP      uint32
	Substrate substrate.Substrate
	NumLinks  int
	Debug     bool
}

// Validate checks that cfg is usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("forwarder: nil Config")
	}
	if c.Logger == nil {
		return errors.New("forwarder: nil Logger")
	}
	if c.Substrate == nil {
		return errors.New("forwarder: nil Substrate")
	}
	if c.NumLinks <= 0 {
		return errors.New("forwarder: NumLinks must be positive")
	}
	return nil
}
