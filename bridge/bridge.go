package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"github.com/ruteri/enclave-prover/common"
	"go.uber.org/atomic"
)

const (
	DefaultListenPort          = 15000
	DefaultEnclaveCID          = 16
	DefaultEnclavePort         = 5000
	DefaultRequestIdleTimeout  = 5 * time.Second
	// The enclave is silent while it proves; this outlasts both tool runs at
	// their default 120 s timeout.
	DefaultResponseIdleTimeout = 250 * time.Second

	maxExchangeSize = 64 << 20
)

// Dialer opens the outbound connection for one exchange.
type Dialer func(ctx context.Context) (net.Conn, error)

// VsockDialer connects to the enclave's vsock listener.
func VsockDialer(cid, port uint32) Dialer {
	return func(context.Context) (net.Conn, error) {
		return vsock.Dial(cid, port, nil)
	}
}

type Config struct {
	// ListenAddr is the local TCP address, 127.0.0.1:15000 by default.
	ListenAddr string

	RequestIdleTimeout  time.Duration
	ResponseIdleTimeout time.Duration

	// Target names the outbound address in logs.
	Target string

	Log *slog.Logger
}

type Bridge struct {
	cfg     *Config
	dial    Dialer
	metrics *Metrics
	log     *slog.Logger

	listener net.Listener
	closing  atomic.Bool
	wg       sync.WaitGroup
}

// New listens on cfg.ListenAddr.
func New(cfg *Config, dial Dialer, metrics *Metrics) (*Bridge, error) {
	l, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", cfg.ListenAddr, err)
	}
	return NewWithListener(cfg, dial, metrics, l), nil
}

func NewWithListener(cfg *Config, dial Dialer, metrics *Metrics, l net.Listener) *Bridge {
	if cfg.RequestIdleTimeout <= 0 {
		cfg.RequestIdleTimeout = DefaultRequestIdleTimeout
	}
	if cfg.ResponseIdleTimeout <= 0 {
		cfg.ResponseIdleTimeout = DefaultResponseIdleTimeout
	}
	return &Bridge{
		cfg:      cfg,
		dial:     dial,
		metrics:  metrics,
		log:      cfg.Log,
		listener: l,
	}
}

func (b *Bridge) Addr() net.Addr {
	return b.listener.Addr()
}

func (b *Bridge) RunInBackground() {
	b.log.Info("Starting vsock bridge",
		"listenAddress", b.listener.Addr().String(),
		"target", b.cfg.Target)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			conn, err := b.listener.Accept()
			if err != nil {
				if b.closing.Load() || errors.Is(err, net.ErrClosed) {
					return
				}
				b.log.Error("TCP accept error", "err", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.Relay(conn)
			}()
		}
	}()
}

// Relay performs one exchange for an accepted inbound connection and closes
// it.
func (b *Bridge) Relay(inbound net.Conn) {
	start := time.Now()
	b.metrics.inFlight.Inc()
	defer b.metrics.inFlight.Dec()
	defer inbound.Close()

	log := b.log.With("remoteAddr", inbound.RemoteAddr().String())
	result := b.relay(log, inbound)
	b.metrics.connections.WithLabelValues(result).Inc()
	if result == resultOK {
		b.metrics.duration.Observe(time.Since(start).Seconds())
	}
}

func (b *Bridge) relay(log *slog.Logger, inbound net.Conn) string {
	outbound, err := b.dial(context.Background())
	if err != nil {
		log.Error("Bridge error: could not connect to enclave", "target", b.cfg.Target, "err", err)
		// Consume the request so closing inbound ends in EOF rather than a reset.
		_, _ = common.ReadUntilIdle(inbound, b.cfg.RequestIdleTimeout, maxExchangeSize)
		return resultDialError
	}
	defer outbound.Close()

	request, err := common.ReadUntilIdle(inbound, b.cfg.RequestIdleTimeout, maxExchangeSize)
	if err != nil {
		log.Error("Bridge error: could not read request", "err", err, "bytes", len(request))
		return resultReadError
	}
	b.metrics.bytes.WithLabelValues(directionRequest).Add(float64(len(request)))

	if _, err := outbound.Write(request); err != nil {
		log.Error("Bridge error: could not forward request", "err", err)
		return resultWriteError
	}
	if err := common.CloseWrite(outbound); err != nil {
		log.Error("Bridge error: could not half-close outbound connection", "err", err)
		return resultWriteError
	}

	response, err := common.ReadUntilIdle(outbound, b.cfg.ResponseIdleTimeout, maxExchangeSize)
	if err != nil {
		log.Error("Bridge error: could not read response", "err", err, "bytes", len(response))
		return resultReadError
	}
	b.metrics.bytes.WithLabelValues(directionResponse).Add(float64(len(response)))

	if _, err := inbound.Write(response); err != nil {
		log.Error("Bridge error: could not write response", "err", err)
		return resultWriteError
	}

	log.Debug("Exchange relayed", "requestBytes", len(request), "responseBytes", len(response))
	return resultOK
}

// Shutdown stops accepting and waits for in-flight exchanges until ctx is
// done.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.closing.Store(true)
	if err := b.listener.Close(); err != nil {
		b.log.Error("Could not close listener", "err", err)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
