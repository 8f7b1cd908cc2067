package dht

import (
	"errors"
	"net"

	"go.uber.org/zap"
)

// Config configures a Node. The node binds its own UDP socket on
// MyIP with an OS-assigned port.
type Config struct {
	Logger *zap.Logger
	MyIP   string

	// NumRoutes bounds the routing table; typically lg(numNodes).
	NumRoutes int

	// CacheOn enables the bounded result cache.
	CacheOn bool

	// Debug prints a copy of every packet sent/received, and the
	// routing table whenever it changes.
	Debug bool
}

// Validate checks that cfg is usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("dht: nil Config")
	}
	if c.Logger == nil {
		return errors.New("dht: nil Logger")
	}
	if net.ParseIP(c.MyIP) == nil {
		return errors.New("dht: MyIP must be a valid IP address")
	}
	if c.NumRoutes <= 0 {
		return errors.New("dht: NumRoutes must be positive")
	}
	return nil
}
