package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseJSON(t *testing.T) {
	for name, tc := range map[string]struct {
		resp Response
		want string
	}{
		"health": {
			Response{Type: ResponseHealth, RequestID: "1", Status: "ok"},
			`{"type":"health","requestId":"1","status":"ok"}`,
		},
		"proof without public inputs": {
			Response{Type: ResponseProof, RequestID: "2", Proof: "0x01"},
			`{"type":"proof","requestId":"2","proof":"0x01","publicInputs":[]}`,
		},
		"proof with document": {
			Response{Type: ResponseProof, RequestID: "2", Proof: "0x01", PublicInputs: []string{"0x02"}, AttestationDocument: []byte{0xde, 0xad}},
			`{"type":"proof","requestId":"2","proof":"0x01","publicInputs":["0x02"],"attestationDocument":"3q0="}`,
		},
		"attestation": {
			Response{Type: ResponseAttestation, RequestID: "3", AttestationDocument: []byte("doc")},
			`{"type":"attestation","requestId":"3","attestationDocument":"ZG9j"}`,
		},
		"error keeps empty request id": {
			*NewErrorResponse("", "Invalid JSON"),
			`{"type":"error","requestId":"","error":"Invalid JSON"}`,
		},
	} {
		data, err := json.Marshal(tc.resp)
		require.NoError(t, err, name)
		assert.JSONEq(t, tc.want, string(data), name)
	}
}

func TestResponseJSON_Decode(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"type":"proof","requestId":"x","proof":"0x01","publicInputs":[],"attestationDocument":"ZG9j"}`), &resp))
	assert.Equal(t, []byte("doc"), resp.AttestationDocument)
	assert.Equal(t, []string{}, resp.PublicInputs)
	assert.False(t, resp.IsError())
}
