package api

import (
	"log/slog"
	"time"
)

const (
	DefaultVsockPort       = 5000
	DefaultTCPFallbackAddr = "127.0.0.1:15000"
	DefaultReadIdleTimeout = 5 * time.Second
	DefaultMaxRequestSize  = 16 << 20
)

// ServerConfig contains the configuration of the enclave protocol server.
type ServerConfig struct {
	// VsockPort is the vsock port accepted on any context id.
	VsockPort uint32

	// TCPFallbackAddr is used when vsock is not available, development only.
	// Empty disables the fallback.
	TCPFallbackAddr string

	// ReadIdleTimeout ends a request read when the peer stops sending
	// without half-closing.
	ReadIdleTimeout time.Duration

	// MaxRequestSize bounds the bytes read per connection.
	MaxRequestSize int64

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// connections during shutdown.
	GracefulShutdownDuration time.Duration

	Log *slog.Logger
}
