package common

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// ErrMessageTooLarge is returned by ReadUntilIdle when the peer sends more
// than the allowed number of bytes.
var ErrMessageTooLarge = errors.New("message too large")

const readChunkSize = 64 * 1024

// ReadUntilIdle reads from conn until the peer half-closes its side or no
// data arrives for idle. Hitting the idle deadline counts as "done sending",
// so the bytes read so far are returned without an error.
// A limit <= 0 disables the size check.
func ReadUntilIdle(conn net.Conn, idle time.Duration, limit int64) ([]byte, error) {
	var data []byte
	buf := make([]byte, readChunkSize)
	for {
		if idle > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
				return data, fmt.Errorf("could not set read deadline: %w", err)
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			if limit > 0 && int64(len(data)) > limit {
				return data, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, limit)
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return data, nil
		case isTimeout(err):
			return data, nil
		default:
			return data, err
		}
	}
}

// CloseWrite half-closes conn when the transport supports it (TCP and vsock
// both do) and falls back to a full close otherwise.
func CloseWrite(conn net.Conn) error {
	if hc, ok := conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
