package prover

import (
	"errors"

	"github.com/ruteri/enclave-prover/registry"
)

var (
	ErrUnknownCircuit  = registry.ErrUnknownCircuit
	ErrMissingArtifact = errors.New("circuit artifact missing")
	ErrInvalidInput    = errors.New("invalid prover input")
	ErrToolFailed      = errors.New("tool failed")
	ErrToolTimeout     = errors.New("tool timed out")
	ErrMissingOutput   = errors.New("tool output missing")
)
