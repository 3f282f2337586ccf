package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnknownCircuit is returned for circuit identifiers not in the registry.
var ErrUnknownCircuit = errors.New("unknown circuitId")

// Circuit describes the artifacts of one registered circuit.
type Circuit struct {
	ID string `toml:"id"`

	// Dir is relative to the registry base directory.
	Dir string `toml:"dir"`

	// Bytecode and VK are relative to <Dir>/target.
	Bytecode string `toml:"bytecode"`
	VK       string `toml:"vk"`

	// Package is the Nargo package name, which names the witness file.
	Package string `toml:"package"`
}

// PackageName returns the Nargo package name, defaulting to the circuit id.
func (c Circuit) PackageName() string {
	if c.Package != "" {
		return c.Package
	}
	return c.ID
}

// CircuitPaths are the absolute artifact paths of a circuit.
type CircuitPaths struct {
	Dir      string
	Target   string
	Bytecode string
	VK       string
}

// DefaultCircuits is the table baked into the enclave image.
var DefaultCircuits = []Circuit{
	{
		ID:       "coinbase_attestation",
		Dir:      "coinbase-attestation",
		Bytecode: "coinbase_attestation.json",
		VK:       "vk/vk",
	},
	{
		ID:       "coinbase_country_attestation",
		Dir:      "coinbase-country-attestation",
		Bytecode: "coinbase_country_attestation.json",
		VK:       "vk/vk",
	},
}

// Registry is an immutable circuit lookup table.
type Registry struct {
	baseDir  string
	circuits map[string]Circuit
	ids      []string
}

// New builds a registry rooted at baseDir. Circuit ids must be unique and
// every entry must name its directory and artifacts.
func New(baseDir string, circuits []Circuit) (*Registry, error) {
	r := &Registry{
		baseDir:  baseDir,
		circuits: make(map[string]Circuit, len(circuits)),
	}

	for _, c := range circuits {
		if c.ID == "" {
			return nil, errors.New("circuit entry without id")
		}
		if c.Dir == "" || c.Bytecode == "" || c.VK == "" {
			return nil, fmt.Errorf("circuit %s: dir, bytecode and vk are required", c.ID)
		}
		if _, ok := r.circuits[c.ID]; ok {
			return nil, fmt.Errorf("duplicate circuit id %s", c.ID)
		}
		r.circuits[c.ID] = c
		r.ids = append(r.ids, c.ID)
	}
	slices.Sort(r.ids)

	return r, nil
}

// NewDefault builds the registry from DefaultCircuits.
func NewDefault(baseDir string) *Registry {
	r, err := New(baseDir, DefaultCircuits)
	if err != nil {
		panic(err)
	}
	return r
}

// BaseDir returns the directory all circuit directories are relative to.
func (r *Registry) BaseDir() string {
	return r.baseDir
}

// IDs returns the registered circuit ids in sorted order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.ids)
}

// Len returns the number of registered circuits.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Lookup resolves a circuit id. The error names the offending id and lists
// the supported ones.
func (r *Registry) Lookup(id string) (Circuit, error) {
	c, ok := r.circuits[id]
	if !ok {
		return Circuit{}, fmt.Errorf("%w '%s'. Supported: %s", ErrUnknownCircuit, id, strings.Join(r.ids, ", "))
	}
	return c, nil
}

// Paths returns the artifact paths of c under the registry base directory.
func (r *Registry) Paths(c Circuit) CircuitPaths {
	dir := filepath.Join(r.baseDir, c.Dir)
	target := filepath.Join(dir, "target")
	return CircuitPaths{
		Dir:      dir,
		Target:   target,
		Bytecode: filepath.Join(target, c.Bytecode),
		VK:       filepath.Join(target, c.VK),
	}
}

// CheckArtifacts logs, for every circuit, whether its bytecode and
// verification key are present. It returns the ids with missing artifacts.
// Missing artifacts are not fatal: requests for those circuits fail later.
func (r *Registry) CheckArtifacts(log *slog.Logger) []string {
	var missing []string
	for _, id := range r.ids {
		paths := r.Paths(r.circuits[id])
		bytecodeOK := fileExists(paths.Bytecode)
		vkOK := fileExists(paths.VK)
		if bytecodeOK && vkOK {
			log.Info("Circuit artifacts OK", "circuitId", id)
			continue
		}
		log.Error("Circuit artifacts missing, proof requests for this circuit will fail",
			"circuitId", id,
			"bytecodeExists", bytecodeOK,
			"vkExists", vkOK)
		missing = append(missing, id)
	}
	return missing
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
