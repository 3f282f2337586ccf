package nsm

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

const (
	attestationKey = "Attestation"
	errorKey       = "Error"
)

// attestationRequest is the payload of {"Attestation": {...}}. Nil slices
// encode as CBOR null, which the module reads as "field absent".
type attestationRequest struct {
	UserData  []byte `cbor:"user_data"`
	Nonce     []byte `cbor:"nonce"`
	PublicKey []byte `cbor:"public_key"`
}

type attestationResponse struct {
	Document []byte `cbor:"document"`
}

// Client speaks the NSM CBOR protocol over a Device.
type Client struct {
	dev Device
}

// NewClient returns a client for dev.
func NewClient(dev Device) *Client {
	return &Client{dev: dev}
}

// Attestation requests a signed attestation document binding userData and
// nonce. Empty values are sent as null. The public key field is always null.
func (c *Client) Attestation(userData, nonce []byte) ([]byte, error) {
	req, err := EncodeAttestationRequest(userData, nonce)
	if err != nil {
		return nil, err
	}

	resp, err := c.dev.Request(req)
	if err != nil {
		return nil, err
	}

	return DecodeAttestationResponse(resp)
}

// EncodeAttestationRequest builds the CBOR request envelope.
func EncodeAttestationRequest(userData, nonce []byte) ([]byte, error) {
	envelope := map[string]attestationRequest{
		attestationKey: {
			UserData: nilIfEmpty(userData),
			Nonce:    nilIfEmpty(nonce),
		},
	}
	data, err := cbor.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("could not encode nsm request: %w", err)
	}
	return data, nil
}

// DecodeAttestationResponse extracts the document from a CBOR response. An
// error envelope is returned as *DeviceError.
func DecodeAttestationResponse(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}

	var envelope map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("could not decode nsm response: %w", err)
	}

	if raw, ok := envelope[attestationKey]; ok {
		var att attestationResponse
		if err := cbor.Unmarshal(raw, &att); err != nil {
			return nil, fmt.Errorf("could not decode nsm attestation: %w", err)
		}
		if len(att.Document) == 0 {
			return nil, fmt.Errorf("%w: attestation without document", ErrUnexpectedResponse)
		}
		return att.Document, nil
	}

	if raw, ok := envelope[errorKey]; ok {
		var code any
		if err := cbor.Unmarshal(raw, &code); err != nil {
			code = fmt.Sprintf("undecodable error %x", []byte(raw))
		}
		return nil, &DeviceError{Code: code}
	}

	keys := make([]string, 0, len(envelope))
	for k := range envelope {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return nil, fmt.Errorf("%w: keys %v", ErrUnexpectedResponse, keys)
}

// IsDeviceError reports whether err came from the module's error envelope.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
