package prover

import (
	"context"
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/enclave-prover/interfaces"
	"github.com/ruteri/enclave-prover/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	fakeNargo = `#!/bin/sh
[ "$1" = execute ] || exit 2
[ -f "$3/Prover.toml" ] || { echo "missing Prover.toml" >&2; exit 3; }
mkdir -p "$3/target"
printf 'witness' > "$3/target/circuit_one.gz"
`
	fakeNargoFallbackWitness = `#!/bin/sh
mkdir -p "$3/target"
printf 'witness' > "$3/target/witness.gz"
`
	fakeNargoBothWitnesses = `#!/bin/sh
mkdir -p "$3/target"
printf 'primary' > "$3/target/circuit_one.gz"
printf 'fallback' > "$3/target/witness.gz"
`
	fakeNargoNoWitness = `#!/bin/sh
exit 0
`
	fakeNargoFailing = `#!/bin/sh
echo "Failed constraint" >&2
exit 1
`
	fakeNargoSlow = `#!/bin/sh
exec sleep 5
`
	fakeBB = `#!/bin/sh
[ "$1" = prove ] || exit 2
[ "${10}" = --oracle_hash ] && [ "${11}" = keccak ] || { echo "wrong oracle hash" >&2; exit 3; }
[ -f "$3" ] || { echo "missing bytecode" >&2; exit 4; }
[ -f "$5" ] || { echo "missing witness" >&2; exit 5; }
[ -f "$9" ] || { echo "missing vk" >&2; exit 6; }
mkdir -p "$7"
printf '\001\002\003' > "$7/proof"
printf '\004\005' > "$7/public_inputs"
`
	fakeBBProofOnly = `#!/bin/sh
mkdir -p "$7"
printf '\252' > "$7/proof"
`
	fakeBBFileOutput = `#!/bin/sh
printf '\273' > "$7"
`
	fakeBBEchoWitness = `#!/bin/sh
mkdir -p "$7"
cat "$5" > "$7/proof"
`
	fakeBBSlow = `#!/bin/sh
exec sleep 5
`
	fakeBBNoOutput = `#!/bin/sh
exit 0
`
)

type mockAttester struct {
	mock.Mock
}

func (m *mockAttester) Document(userData, nonce []byte) []byte {
	args := m.Called(userData, nonce)
	doc, _ := args.Get(0).([]byte)
	return doc
}

type fixture struct {
	base     string
	registry *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}

	base := t.TempDir()
	dir := filepath.Join(base, "circuit-one")
	writeFile(t, filepath.Join(dir, "Nargo.toml"), "[package]\nname = \"circuit_one\"\ntype = \"bin\"\n")
	writeFile(t, filepath.Join(dir, "src", "main.nr"), "fn main(x: Field) { assert(x != 0); }\n")
	writeFile(t, filepath.Join(dir, "target", "circuit_one.json"), "{}")
	writeFile(t, filepath.Join(dir, "target", "vk", "vk"), "vk")

	reg, err := registry.New(base, []registry.Circuit{
		{ID: "circuit_one", Dir: "circuit-one", Bytecode: "circuit_one.json", VK: "vk/vk"},
		{ID: "circuit_two", Dir: "circuit-two", Bytecode: "circuit_two.json", VK: "vk/vk"},
	})
	require.NoError(t, err)

	return &fixture{base: base, registry: reg}
}

func (f *fixture) pipeline(t *testing.T, nargo, bb string, attester interfaces.DocumentAttester, timeout time.Duration) *Pipeline {
	t.Helper()
	tools := t.TempDir()
	nargoPath := filepath.Join(tools, "nargo")
	bbPath := filepath.Join(tools, "bb")
	require.NoError(t, os.WriteFile(nargoPath, []byte(nargo), 0o755))
	require.NoError(t, os.WriteFile(bbPath, []byte(bb), 0o755))

	return NewPipeline(Config{
		NargoPath: nargoPath,
		BBPath:    bbPath,
		BBHome:    tools,
		Timeout:   timeout,
	}, f.registry, attester, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// workspaces lists leftover per-request directories.
func (f *fixture) workspaces(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.base, "proof-*"))
	require.NoError(t, err)
	return matches
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func proveRequest() interfaces.ProofRequest {
	return interfaces.ProofRequest{
		RequestID:  "req-1",
		CircuitID:  "circuit_one",
		ProverToml: "x = \"1\"\n",
	}
}

func TestGenerateProof_Success(t *testing.T) {
	f := newFixture(t)

	digest := sha256.Sum256([]byte{1, 2, 3})
	att := &mockAttester{}
	att.On("Document", digest[:], []byte(nil)).Return([]byte("attestation")).Once()

	p := f.pipeline(t, fakeNargo, fakeBB, att, time.Minute)
	res, err := p.GenerateProof(context.Background(), proveRequest())
	require.NoError(t, err)

	assert.Equal(t, "0x010203", res.Proof)
	assert.Equal(t, []string{"0x0405"}, res.PublicInputs)
	assert.Equal(t, []byte("attestation"), res.AttestationDocument)
	att.AssertExpectations(t)

	assert.Empty(t, f.workspaces(t))
	assert.NoFileExists(t, filepath.Join(f.base, "circuit-one", "Prover.toml"))
	assert.NoFileExists(t, filepath.Join(f.base, "circuit-one", "target", "circuit_one.gz"))
}

func TestGenerateProof_Inputs(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, fakeNargo, fakeBB, nil, time.Minute)

	res, err := p.GenerateProof(context.Background(), interfaces.ProofRequest{
		CircuitID: "circuit_one",
		Inputs:    []string{"1", "21888242871839275222246405745257275088548364400416034343698204186575808495616"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0x010203", res.Proof)
	assert.Nil(t, res.AttestationDocument)
}

func TestGenerateProof_NoDocumentWithoutDevice(t *testing.T) {
	f := newFixture(t)
	att := &mockAttester{}
	att.On("Document", mock.Anything, mock.Anything).Return(nil)

	res, err := f.pipeline(t, fakeNargo, fakeBB, att, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Proof)
	assert.Nil(t, res.AttestationDocument)
}

func TestGenerateProof_RepeatedRequests(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, fakeNargo, fakeBB, nil, time.Minute)

	for range 2 {
		res, err := p.GenerateProof(context.Background(), proveRequest())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.Proof, "0x"))
		assert.Greater(t, len(res.Proof), 2)
	}
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_WitnessFallback(t *testing.T) {
	f := newFixture(t)
	res, err := f.pipeline(t, fakeNargoFallbackWitness, fakeBB, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.NoError(t, err)
	assert.Equal(t, "0x010203", res.Proof)
}

func TestGenerateProof_PackageWitnessPreferred(t *testing.T) {
	f := newFixture(t)
	res, err := f.pipeline(t, fakeNargoBothWitnesses, fakeBBEchoWitness, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.NoError(t, err)

	proof, err := hexutil.Decode(res.Proof)
	require.NoError(t, err)
	assert.Equal(t, []byte("primary"), proof)
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_MissingWitness(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline(t, fakeNargoNoWitness, fakeBB, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.ErrorIs(t, err, ErrMissingOutput)
	assert.Contains(t, err.Error(), "circuit_one.gz")
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_ProofOutputs(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipeline(t, fakeNargo, fakeBBProofOnly, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.NoError(t, err)
	assert.Equal(t, "0xaa", res.Proof)
	assert.NotNil(t, res.PublicInputs)
	assert.Empty(t, res.PublicInputs)

	res, err = f.pipeline(t, fakeNargo, fakeBBFileOutput, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.NoError(t, err)
	assert.Equal(t, "0xbb", res.Proof)
	assert.Empty(t, res.PublicInputs)

	_, err = f.pipeline(t, fakeNargo, fakeBBNoOutput, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	assert.ErrorIs(t, err, ErrMissingOutput)
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_ToolFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline(t, fakeNargoFailing, fakeBB, nil, time.Minute).GenerateProof(context.Background(), proveRequest())
	require.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "nargo execute failed (exit 1)")
	assert.Contains(t, err.Error(), "Failed constraint")
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_Timeout(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, fakeNargoSlow, fakeBB, nil, 200*time.Millisecond)

	start := time.Now()
	_, err := p.GenerateProof(context.Background(), proveRequest())
	require.ErrorIs(t, err, ErrToolTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_ProveTimeout(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, fakeNargo, fakeBBSlow, nil, 200*time.Millisecond)

	start := time.Now()
	_, err := p.GenerateProof(context.Background(), proveRequest())
	require.ErrorIs(t, err, ErrToolTimeout)
	assert.Contains(t, err.Error(), "bb prove")
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Empty(t, f.workspaces(t))
}

func TestGenerateProof_RejectedBeforeWorkspace(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, fakeNargo, fakeBB, nil, time.Minute)

	_, err := p.GenerateProof(context.Background(), interfaces.ProofRequest{CircuitID: "nope", Inputs: []string{"1"}})
	require.ErrorIs(t, err, ErrUnknownCircuit)
	assert.Contains(t, err.Error(), "'nope'")
	assert.Contains(t, err.Error(), "circuit_one, circuit_two")

	_, err = p.GenerateProof(context.Background(), interfaces.ProofRequest{CircuitID: "circuit_two", Inputs: []string{"1"}})
	require.ErrorIs(t, err, ErrMissingArtifact)
	assert.Contains(t, err.Error(), "bytecode")

	_, err = p.GenerateProof(context.Background(), interfaces.ProofRequest{CircuitID: "circuit_one"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.GenerateProof(context.Background(), interfaces.ProofRequest{CircuitID: "circuit_one", Inputs: []string{"1\"\nx = \"2"}})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.GenerateProof(context.Background(), interfaces.ProofRequest{CircuitID: "circuit_one", ProverToml: "x = = 1"})
	require.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.workspaces(t))
}

func TestCheckTools(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, fakeNargo, fakeBB, nil, time.Minute)
	for tool, err := range p.CheckTools() {
		assert.NoError(t, err, tool)
	}

	missing := NewPipeline(Config{NargoPath: "/nonexistent/nargo", BBPath: "/nonexistent/bb"}, f.registry, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	for tool, err := range missing.CheckTools() {
		assert.Error(t, err, tool)
	}
}
