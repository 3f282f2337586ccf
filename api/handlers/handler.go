package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/enclave-prover/api"
	"github.com/ruteri/enclave-prover/interfaces"
	"github.com/ruteri/enclave-prover/prover"
)

const errAttestationUnavailable = "attestation not available"

// pipelineErrors are reported to the caller verbatim; anything else is
// reported as an internal error.
var pipelineErrors = []error{
	prover.ErrUnknownCircuit,
	prover.ErrMissingArtifact,
	prover.ErrInvalidInput,
	prover.ErrToolFailed,
	prover.ErrToolTimeout,
	prover.ErrMissingOutput,
}

// Handler decodes, validates and dispatches protocol requests.
type Handler struct {
	prover   interfaces.ProofGenerator
	attester interfaces.DocumentAttester
	log      *slog.Logger
}

func NewHandler(generator interfaces.ProofGenerator, attester interfaces.DocumentAttester, log *slog.Logger) *Handler {
	return &Handler{
		prover:   generator,
		attester: attester,
		log:      log,
	}
}

// Handle processes one raw request document.
func (h *Handler) Handle(ctx context.Context, raw []byte) *api.Response {
	req, errResp := h.Decode(raw)
	if errResp != nil {
		return errResp
	}
	return h.Dispatch(ctx, req)
}

// Decode parses raw into a request. On failure it returns the error response
// to send instead, with the request id salvaged when the document is a JSON
// object whose requestId is a string.
func (h *Handler) Decode(raw []byte) (*api.Request, *api.Response) {
	if len(bytes.TrimSpace(raw)) == 0 {
		h.log.Error("Empty request received")
		return nil, api.NewErrorResponse("", "Empty request")
	}
	if !utf8.Valid(raw) {
		h.log.Error("Request is not valid UTF-8", "bytes", len(raw))
		return nil, api.NewErrorResponse("", "Invalid JSON: request is not valid UTF-8")
	}

	var req api.Request
	err := json.Unmarshal(raw, &req)
	if err == nil {
		return &req, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		requestID := salvageRequestID(raw)
		h.log.Error("Invalid field in request", "requestId", requestID, "err", err)
		return nil, api.NewErrorResponse(requestID, fmt.Sprintf("Invalid request: %v", err))
	}

	h.log.Error("Invalid JSON in request", "err", err)
	return nil, api.NewErrorResponse("", fmt.Sprintf("Invalid JSON: %v", err))
}

func salvageRequestID(raw []byte) string {
	var partial struct {
		RequestID json.RawMessage `json:"requestId"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(partial.RequestID, &id); err != nil {
		return ""
	}
	return id
}

// Dispatch routes a decoded request by its type.
func (h *Handler) Dispatch(ctx context.Context, req *api.Request) *api.Response {
	h.log.Info("Dispatching request", "type", req.Type, "requestId", req.RequestID)

	switch req.Type {
	case api.RequestHealth:
		return &api.Response{Type: api.ResponseHealth, RequestID: req.RequestID, Status: "ok"}
	case api.RequestProve:
		return h.handleProve(ctx, req)
	case api.RequestAttestation:
		return h.handleAttestation(req)
	default:
		return api.NewErrorResponse(req.RequestID, fmt.Sprintf("Unknown request type: '%s'", req.Type))
	}
}

func (h *Handler) handleProve(ctx context.Context, req *api.Request) *api.Response {
	if req.CircuitID == "" {
		return api.NewErrorResponse(req.RequestID, "Missing circuitId")
	}
	if req.ProverToml == "" && len(req.Inputs) == 0 {
		return api.NewErrorResponse(req.RequestID, "Missing proverToml or inputs")
	}

	res, err := h.prover.GenerateProof(ctx, interfaces.ProofRequest{
		RequestID:  req.RequestID,
		CircuitID:  req.CircuitID,
		Inputs:     req.Inputs,
		ProverToml: req.ProverToml,
	})
	if err != nil {
		for _, known := range pipelineErrors {
			if errors.Is(err, known) {
				h.log.Error("Proof generation failed", "requestId", req.RequestID, "circuitId", req.CircuitID, "err", err)
				return api.NewErrorResponse(req.RequestID, err.Error())
			}
		}
		h.log.Error("Unexpected error in proof generation", "requestId", req.RequestID, "circuitId", req.CircuitID, "err", err)
		return api.NewErrorResponse(req.RequestID, fmt.Sprintf("Internal error: %v", err))
	}

	return &api.Response{
		Type:                api.ResponseProof,
		RequestID:           req.RequestID,
		Proof:               res.Proof,
		PublicInputs:        res.PublicInputs,
		AttestationDocument: res.AttestationDocument,
	}
}

func (h *Handler) handleAttestation(req *api.Request) *api.Response {
	userData, err := decodeProofHash(req.ProofHash)
	if err != nil {
		return api.NewErrorResponse(req.RequestID, fmt.Sprintf("Invalid proofHash: %v", err))
	}

	doc := h.attester.Document(userData, nil)
	if doc == nil {
		return api.NewErrorResponse(req.RequestID, errAttestationUnavailable)
	}

	return &api.Response{
		Type:                api.ResponseAttestation,
		RequestID:           req.RequestID,
		AttestationDocument: doc,
	}
}

// decodeProofHash accepts hex with or without a 0x prefix. Empty yields nil.
func decodeProofHash(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}
