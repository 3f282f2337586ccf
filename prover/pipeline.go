package prover

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/enclave-prover/interfaces"
	"github.com/ruteri/enclave-prover/registry"
)

const (
	DefaultTimeout    = 120 * time.Second
	DefaultBBHome     = "/root"
	DefaultOracleHash = "keccak"
)

// Config locates the external tools and bounds their execution.
type Config struct {
	NargoPath string
	BBPath    string

	// BBHome overrides HOME for bb, which caches its CRS there.
	BBHome string

	// OracleHash is passed to bb prove. keccak matches the Solidity verifier.
	OracleHash string

	// Timeout applies to each tool invocation separately.
	Timeout time.Duration

	// WorkspaceDir is where per-request workspaces are created. Defaults to
	// the registry base directory.
	WorkspaceDir string
}

func (c Config) withDefaults(reg *registry.Registry) Config {
	if c.NargoPath == "" {
		c.NargoPath = "nargo"
	}
	if c.BBPath == "" {
		c.BBPath = "bb"
	}
	if c.BBHome == "" {
		c.BBHome = DefaultBBHome
	}
	if c.OracleHash == "" {
		c.OracleHash = DefaultOracleHash
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = reg.BaseDir()
	}
	return c
}

// Pipeline generates proofs for the circuits of a registry.
type Pipeline struct {
	cfg      Config
	registry *registry.Registry
	attester interfaces.DocumentAttester
	log      *slog.Logger
}

var _ interfaces.ProofGenerator = (*Pipeline)(nil)

// NewPipeline returns a pipeline. attester may be nil, in which case proofs
// never carry an attestation document.
func NewPipeline(cfg Config, reg *registry.Registry, attester interfaces.DocumentAttester, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg.withDefaults(reg),
		registry: reg,
		attester: attester,
		log:      log,
	}
}

func (p *Pipeline) GenerateProof(ctx context.Context, req interfaces.ProofRequest) (*interfaces.ProofResult, error) {
	circuit, err := p.registry.Lookup(req.CircuitID)
	if err != nil {
		return nil, err
	}

	proverToml, err := RenderProverToml(req)
	if err != nil {
		return nil, err
	}

	paths := p.registry.Paths(circuit)
	for _, artifact := range []struct{ label, path string }{
		{"bytecode", paths.Bytecode},
		{"vk", paths.VK},
	} {
		if !exists(artifact.path) {
			return nil, fmt.Errorf("%w: %s at %s", ErrMissingArtifact, artifact.label, artifact.path)
		}
	}

	log := p.log.With("requestId", req.RequestID, "circuitId", req.CircuitID)

	ws, err := newWorkspace(p.cfg.WorkspaceDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.remove(); err != nil {
			log.Error("Could not remove workspace", "dir", ws.dir, "err", err)
		}
	}()

	log.Info("Starting proof generation", "workspace", filepath.Base(ws.dir))
	start := time.Now()

	if err := ws.writeProverToml(proverToml); err != nil {
		return nil, fmt.Errorf("could not write %s: %w", proverTomlName, err)
	}
	if req.ProverToml != "" {
		log.Info("Prover.toml written from proverToml field", "bytes", len(proverToml))
	} else {
		log.Info("Prover.toml written from inputs array", "inputCount", len(req.Inputs))
	}

	if err := ws.stage(paths.Dir); err != nil {
		return nil, err
	}

	if _, err := p.withLogger(log).runTool(ctx, "nargo execute", ws.dir, nil,
		p.cfg.NargoPath, "execute", "--program-dir", ws.dir); err != nil {
		return nil, err
	}

	witness, err := ws.witnessPath(circuit.PackageName())
	if err != nil {
		return nil, err
	}
	log.Debug("Witness file located", "path", witness)

	if _, err := p.withLogger(log).runTool(ctx, "bb prove", "", []string{"HOME=" + p.cfg.BBHome},
		p.cfg.BBPath, "prove",
		"-b", paths.Bytecode,
		"-w", witness,
		"-o", ws.proofOutput(),
		"-k", paths.VK,
		"--oracle_hash", p.cfg.OracleHash); err != nil {
		return nil, err
	}

	proof, err := ws.readProof()
	if err != nil {
		return nil, err
	}
	if len(proof) == 0 {
		return nil, fmt.Errorf("%w: bb prove wrote an empty proof", ErrMissingOutput)
	}

	publicInputs := []string{}
	pi, err := ws.readPublicInputs()
	if err != nil {
		return nil, fmt.Errorf("could not read public inputs: %w", err)
	}
	if pi != nil {
		publicInputs = append(publicInputs, hexutil.Encode(pi))
	} else {
		log.Info("No public_inputs file, returning empty publicInputs")
	}

	result := &interfaces.ProofResult{
		Proof:        hexutil.Encode(proof),
		PublicInputs: publicInputs,
	}

	if p.attester != nil {
		digest := sha256.Sum256(proof)
		result.AttestationDocument = p.attester.Document(digest[:], nil)
	}

	log.Info("Proof generated",
		"proofBytes", len(proof),
		"publicInputBytes", len(pi),
		"attested", result.AttestationDocument != nil,
		"duration", time.Since(start))

	return result, nil
}

func (p *Pipeline) withLogger(log *slog.Logger) *Pipeline {
	clone := *p
	clone.log = log
	return &clone
}

// CheckTools resolves the configured tool paths, keyed by tool.
func (p *Pipeline) CheckTools() map[string]error {
	res := make(map[string]error, 2)
	for _, tool := range []string{p.cfg.NargoPath, p.cfg.BBPath} {
		_, err := exec.LookPath(tool)
		res[tool] = err
	}
	return res
}
