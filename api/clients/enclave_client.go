package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/vsock"
	"github.com/ruteri/enclave-prover/api"
	"github.com/ruteri/enclave-prover/common"
)

const (
	// DefaultResponseTimeout covers both tool invocations of a proof at
	// their default timeouts.
	DefaultResponseTimeout = 5 * time.Minute

	maxResponseSize = 64 << 20
)

// Dialer opens a connection to the enclave server.
type Dialer func(ctx context.Context) (net.Conn, error)

// VsockDialer dials the enclave directly.
func VsockDialer(cid, port uint32) Dialer {
	return func(context.Context) (net.Conn, error) {
		return vsock.Dial(cid, port, nil)
	}
}

// TCPDialer dials the enclave through the bridge or the development
// fallback listener.
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

// ResponseError is an error response returned by the enclave.
type ResponseError struct {
	RequestID string
	Message   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("enclave returned error for request %q: %s", e.RequestID, e.Message)
}

type EnclaveClient struct {
	dial Dialer

	// ResponseTimeout bounds the wait for the response after the request
	// has been sent.
	ResponseTimeout time.Duration
}

func NewEnclaveClient(dial Dialer) *EnclaveClient {
	return &EnclaveClient{dial: dial, ResponseTimeout: DefaultResponseTimeout}
}

// Do sends one request and returns the decoded response, error responses
// included. An empty request id is replaced by a random one.
func (c *EnclaveClient) Do(ctx context.Context, req *api.Request) (*api.Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not encode request: %w", err)
	}

	raw, err := c.RoundTrip(ctx, payload)
	if err != nil {
		return nil, err
	}

	var resp api.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("could not parse enclave response: %w", err)
	}
	if resp.RequestID != req.RequestID && !resp.IsError() {
		return nil, fmt.Errorf("response for request %q, expected %q", resp.RequestID, req.RequestID)
	}
	return &resp, nil
}

// RoundTrip writes payload as is and returns the raw response bytes.
func (c *EnclaveClient) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not connect to enclave: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("could not set deadline: %w", err)
		}
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	if err := common.CloseWrite(conn); err != nil {
		return nil, fmt.Errorf("could not half-close connection: %w", err)
	}

	raw, err := common.ReadUntilIdle(conn, c.ResponseTimeout, maxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("enclave closed the connection without a response")
	}
	return raw, nil
}

// Health checks that the enclave server answers.
func (c *EnclaveClient) Health(ctx context.Context) error {
	resp, err := c.Do(ctx, &api.Request{Type: api.RequestHealth})
	if err != nil {
		return err
	}
	if err := asError(resp); err != nil {
		return err
	}
	if resp.Type != api.ResponseHealth || resp.Status != "ok" {
		return fmt.Errorf("unexpected health response %s/%s", resp.Type, resp.Status)
	}
	return nil
}

// Prove requests a proof. proverToml takes precedence over inputs.
func (c *EnclaveClient) Prove(ctx context.Context, circuitID string, inputs []string, proverToml string) (*api.Response, error) {
	resp, err := c.Do(ctx, &api.Request{
		Type:       api.RequestProve,
		CircuitID:  circuitID,
		Inputs:     inputs,
		ProverToml: proverToml,
	})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	if resp.Type != api.ResponseProof {
		return nil, fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return resp, nil
}

// Attestation requests a document binding proofHash, hex with or without 0x.
func (c *EnclaveClient) Attestation(ctx context.Context, proofHash string) ([]byte, error) {
	resp, err := c.Do(ctx, &api.Request{Type: api.RequestAttestation, ProofHash: proofHash})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	if resp.Type != api.ResponseAttestation {
		return nil, fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return resp.AttestationDocument, nil
}

func asError(resp *api.Response) error {
	if resp.IsError() {
		return &ResponseError{RequestID: resp.RequestID, Message: resp.Error}
	}
	return nil
}
