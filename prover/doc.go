// Package prover runs the witness and proof tools for registered circuits.
//
// Every proof is generated in its own workspace directory, seeded from the
// circuit's canonical directory and removed when the request completes. The
// canonical directory and its artifacts are never written to.
//
// The pipeline is:
//
//  1. resolve the circuit and check its bytecode and verification key
//  2. stage a workspace with Prover.toml, Nargo.toml, src/ and target/
//  3. nargo execute, producing the witness
//  4. bb prove with the keccak oracle hash
//  5. read the proof and optional public inputs, hex encode them
//  6. attach an attestation document over sha256(proof) when available
package prover
