package prover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/cp"
	"github.com/google/uuid"
)

const proverTomlName = "Prover.toml"

// workspace is a per-request scratch copy of a circuit package.
type workspace struct {
	dir string
}

// newWorkspace creates a uniquely named directory under root. The request id
// is deliberately not part of the name: it is caller controlled.
func newWorkspace(root string) (*workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("could not create workspace root: %w", err)
	}
	dir := filepath.Join(root, "proof-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) writeProverToml(content string) error {
	return os.WriteFile(filepath.Join(w.dir, proverTomlName), []byte(content), 0o600)
}

// stage copies Nargo.toml, src/ and target/ from the circuit directory when
// they exist.
func (w *workspace) stage(circuitDir string) error {
	nargoToml := filepath.Join(circuitDir, "Nargo.toml")
	if exists(nargoToml) {
		if err := cp.CopyFile(filepath.Join(w.dir, "Nargo.toml"), nargoToml); err != nil {
			return fmt.Errorf("could not copy Nargo.toml: %w", err)
		}
	}
	for _, sub := range []string{"src", "target"} {
		src := filepath.Join(circuitDir, sub)
		if !exists(src) {
			continue
		}
		if err := cp.CopyAll(filepath.Join(w.dir, sub), src); err != nil {
			return fmt.Errorf("could not copy %s: %w", sub, err)
		}
	}
	return nil
}

// witnessPath returns target/<pkg>.gz, or target/witness.gz as a fallback.
func (w *workspace) witnessPath(pkg string) (string, error) {
	primary := filepath.Join(w.dir, "target", pkg+".gz")
	if exists(primary) {
		return primary, nil
	}
	fallback := filepath.Join(w.dir, "target", "witness.gz")
	if exists(fallback) {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: witness file not found after nargo execute, expected %s", ErrMissingOutput, primary)
}

func (w *workspace) proofOutput() string {
	return filepath.Join(w.dir, "proof")
}

// readProof reads the proof written by bb, either <out>/proof or <out>
// itself when bb wrote a plain file.
func (w *workspace) readProof() ([]byte, error) {
	out := w.proofOutput()
	proofFile := out
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		proofFile = filepath.Join(out, "proof")
	}
	data, err := os.ReadFile(proofFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: bb prove did not produce output at %s", ErrMissingOutput, proofFile)
	}
	return data, err
}

// readPublicInputs returns <out>/public_inputs, or nil if absent.
func (w *workspace) readPublicInputs() ([]byte, error) {
	if fi, err := os.Stat(w.proofOutput()); err != nil || !fi.IsDir() {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(w.proofOutput(), "public_inputs"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (w *workspace) remove() error {
	return os.RemoveAll(w.dir)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
