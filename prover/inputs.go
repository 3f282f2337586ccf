package prover

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ruteri/enclave-prover/interfaces"
)

// RenderProverToml returns the Prover.toml content for req. A caller
// supplied payload is returned verbatim once it parses as TOML; otherwise
// one input_<i> line is synthesized per positional input.
func RenderProverToml(req interfaces.ProofRequest) (string, error) {
	if req.ProverToml != "" {
		var parsed map[string]any
		if _, err := toml.Decode(req.ProverToml, &parsed); err != nil {
			return "", fmt.Errorf("%w: proverToml is not valid TOML: %w", ErrInvalidInput, err)
		}
		return req.ProverToml, nil
	}

	if len(req.Inputs) == 0 {
		return "", fmt.Errorf("%w: missing proverToml or inputs", ErrInvalidInput)
	}

	var b strings.Builder
	for i, in := range req.Inputs {
		if err := validateFieldValue(in); err != nil {
			return "", fmt.Errorf("%w: inputs[%d]: %w", ErrInvalidInput, i, err)
		}
		fmt.Fprintf(&b, "input_%d = \"%s\"\n", i, in)
	}
	return b.String(), nil
}

// validateFieldValue accepts non-negative decimal integers only, which keeps
// the synthesized TOML free of quoting issues.
func validateFieldValue(v string) error {
	if v == "" {
		return fmt.Errorf("empty value")
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return fmt.Errorf("%q is not a decimal integer", v)
		}
	}
	if _, ok := new(big.Int).SetString(v, 10); !ok {
		return fmt.Errorf("%q is not a decimal integer", v)
	}
	return nil
}
