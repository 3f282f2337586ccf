package servers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"github.com/ruteri/enclave-prover/api"
	"github.com/ruteri/enclave-prover/common"
	"go.uber.org/atomic"
)

const writeTimeout = 30 * time.Second

// RequestHandler turns one raw request document into a response.
type RequestHandler interface {
	Handle(ctx context.Context, raw []byte) *api.Response
}

type Server struct {
	cfg     *api.ServerConfig
	handler RequestHandler
	log     *slog.Logger

	listener  net.Listener
	transport string

	isReady  atomic.Bool
	closing  atomic.Bool
	inFlight atomic.Int64
	served   atomic.Uint64
	wg       sync.WaitGroup
}

// New listens on the configured vsock port, or on the TCP fallback address
// when vsock is unavailable.
func New(cfg *api.ServerConfig, handler RequestHandler) (*Server, error) {
	l, transport, err := listen(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithListener(cfg, handler, l, transport), nil
}

// NewWithListener serves connections from an existing listener.
func NewWithListener(cfg *api.ServerConfig, handler RequestHandler, l net.Listener, transport string) *Server {
	if cfg.ReadIdleTimeout <= 0 {
		cfg.ReadIdleTimeout = api.DefaultReadIdleTimeout
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = api.DefaultMaxRequestSize
	}
	return &Server{
		cfg:       cfg,
		handler:   handler,
		log:       cfg.Log,
		listener:  l,
		transport: transport,
	}
}

func listen(cfg *api.ServerConfig) (net.Listener, string, error) {
	vl, err := vsock.Listen(cfg.VsockPort, nil)
	if err == nil {
		return vl, "vsock", nil
	}
	if cfg.TCPFallbackAddr == "" {
		return nil, "", fmt.Errorf("could not listen on vsock port %d: %w", cfg.VsockPort, err)
	}

	cfg.Log.Warn("vsock not available, falling back to TCP (development only)",
		"vsockPort", cfg.VsockPort,
		"tcpAddress", cfg.TCPFallbackAddr,
		"err", err)
	l, err := net.Listen("tcp", cfg.TCPFallbackAddr)
	if err != nil {
		return nil, "", fmt.Errorf("could not listen on %s: %w", cfg.TCPFallbackAddr, err)
	}
	return l, "tcp", nil
}

// Addr is the address the server accepts connections on.
func (srv *Server) Addr() net.Addr {
	return srv.listener.Addr()
}

// Transport is "vsock" or "tcp".
func (srv *Server) Transport() string {
	return srv.transport
}

func (srv *Server) IsReady() bool {
	return srv.isReady.Load()
}

// InFlight is the number of connections currently being served.
func (srv *Server) InFlight() int64 {
	return srv.inFlight.Load()
}

func (srv *Server) RunInBackground() {
	srv.isReady.Store(true)
	srv.log.Info("Starting enclave server",
		"transport", srv.transport,
		"listenAddress", srv.listener.Addr().String())

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.acceptLoop()
	}()
}

func (srv *Server) acceptLoop() {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			if srv.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			srv.log.Error("Error accepting connection", "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		srv.wg.Add(1)
		go srv.serveConn(conn)
	}
}

func (srv *Server) serveConn(conn net.Conn) {
	srv.inFlight.Inc()
	defer func() {
		srv.inFlight.Dec()
		srv.served.Inc()
		srv.wg.Done()
	}()
	defer conn.Close()

	log := srv.log.With("remoteAddr", conn.RemoteAddr().String())
	log.Info("Connection accepted")

	defer func() {
		if r := recover(); r != nil {
			log.Error("Unhandled error in connection handler",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			srv.writeResponse(log, conn, api.NewErrorResponse("", fmt.Sprintf("Server error: %v", r)))
		}
	}()

	raw, err := common.ReadUntilIdle(conn, srv.cfg.ReadIdleTimeout, srv.cfg.MaxRequestSize)
	if errors.Is(err, common.ErrMessageTooLarge) {
		log.Error("Request too large", "limit", srv.cfg.MaxRequestSize)
		srv.writeResponse(log, conn, api.NewErrorResponse("", fmt.Sprintf("Request too large: limit is %d bytes", srv.cfg.MaxRequestSize)))
		return
	}
	if err != nil {
		log.Error("Error reading from connection", "err", err, "bytes", len(raw))
		return
	}
	log.Info("Received request", "bytes", len(raw))

	resp := srv.handler.Handle(context.Background(), raw)
	srv.writeResponse(log, conn, resp)
}

func (srv *Server) writeResponse(log *slog.Logger, conn net.Conn, resp *api.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("Could not encode response", "err", err)
		return
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		log.Error("Could not set write deadline", "err", err)
	}
	if _, err := conn.Write(data); err != nil {
		log.Error("Could not send response", "requestId", resp.RequestID, "err", err)
		return
	}
	if err := common.CloseWrite(conn); err != nil {
		log.Debug("Could not half-close connection", "err", err)
	}
	log.Info("Sent response", "type", resp.Type, "requestId", resp.RequestID, "bytes", len(data))
}

// Shutdown stops accepting and waits for in-flight connections up to the
// graceful shutdown duration.
func (srv *Server) Shutdown() {
	srv.isReady.Store(false)
	srv.closing.Store(true)
	if err := srv.listener.Close(); err != nil {
		srv.log.Error("Could not close listener", "err", err)
	}

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()

	timeout := srv.cfg.GracefulShutdownDuration
	if timeout <= 0 {
		<-done
		srv.log.Info("Enclave server gracefully stopped", "served", srv.served.Load())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	select {
	case <-done:
		srv.log.Info("Enclave server gracefully stopped", "served", srv.served.Load())
	case <-ctx.Done():
		srv.log.Error("Graceful enclave server shutdown timed out", "inFlight", srv.inFlight.Load())
	}
}
