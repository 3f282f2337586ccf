package common

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpPair(t *testing.T) (client, server net.Conn) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	server = <-accepted
	require.NotNil(t, server)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestReadUntilIdle_HalfClose(t *testing.T) {
	client, server := tcpPair(t)

	payload := bytes.Repeat([]byte{0x00, 0xff, 0x42}, 100_000)
	go func() {
		client.Write(payload)
		CloseWrite(client)
	}()

	data, err := ReadUntilIdle(server, 5*time.Second, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestReadUntilIdle_IdleTimeoutIsDoneSending(t *testing.T) {
	client, server := tcpPair(t)

	_, err := client.Write([]byte("partial"))
	require.NoError(t, err)

	start := time.Now()
	data, err := ReadUntilIdle(server, 100*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("partial"), data)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestReadUntilIdle_Limit(t *testing.T) {
	client, server := tcpPair(t)

	go func() {
		client.Write(make([]byte, 1024))
		CloseWrite(client)
	}()

	_, err := ReadUntilIdle(server, time.Second, 100)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&LoggingOpts{JSON: true, Service: "svc", Version: "v1", Output: &buf})
	log.Info("hello", "k", 1)
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"service":"svc"`)
	assert.Contains(t, out, `"version":"v1"`)
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))

	var _ *slog.Logger = SetupLogger(&LoggingOpts{Output: io.Discard})
}
