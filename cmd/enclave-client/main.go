// Package main (cmd/enclave-client) sends single requests to the enclave
// proof service, either directly over vsock or through the bridge.
//
//	enclave-client health
//	enclave-client prove --circuit coinbase_attestation --prover-toml Prover.toml
//	enclave-client attestation --proof-hash 0xab...
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ruteri/enclave-prover/api/clients"
	"github.com/ruteri/enclave-prover/cmd/flags"
	"github.com/urfave/cli/v2"
)

var connFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "addr",
		Value:   "127.0.0.1:15000",
		EnvVars: []string{"ENCLAVE_ADDR"},
		Usage:   "TCP address of the bridge, ignored with --vsock",
	},
	&cli.BoolFlag{
		Name:  "vsock",
		Usage: "connect to the enclave over vsock instead of TCP",
	},
	&cli.UintFlag{
		Name:    "enclave-cid",
		Value:   16,
		EnvVars: []string{"ENCLAVE_CID"},
		Usage:   "vsock context id of the enclave",
	},
	&cli.UintFlag{
		Name:    "enclave-port",
		Value:   5000,
		EnvVars: []string{"ENCLAVE_PORT"},
		Usage:   "vsock port of the enclave server",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Value: clients.DefaultResponseTimeout,
		Usage: "overall request timeout",
	},
}

func newClient(cCtx *cli.Context) *clients.EnclaveClient {
	if cCtx.Bool("vsock") {
		return clients.NewEnclaveClient(clients.VsockDialer(uint32(cCtx.Uint("enclave-cid")), uint32(cCtx.Uint("enclave-port"))))
	}
	return clients.NewEnclaveClient(clients.TCPDialer(cCtx.String("addr")))
}

func requestContext(cCtx *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cCtx.Context, cCtx.Duration("timeout"))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:  "enclave-client",
		Usage: "Send requests to the enclave proof service",
		Flags: append(append(connFlags, flags.LogServiceFlagFn("enclave-client")), flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:  "health",
				Usage: "check that the enclave server answers",
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					ctx, cancel := requestContext(cCtx)
					defer cancel()

					start := time.Now()
					if err := newClient(cCtx).Health(ctx); err != nil {
						return err
					}
					logger.Info("Enclave is healthy", "duration", time.Since(start))
					return nil
				},
			},
			{
				Name:  "prove",
				Usage: "generate a proof",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "circuit", Required: true, Usage: "circuit id"},
					&cli.StringSliceFlag{Name: "input", Usage: "positional decimal input, repeatable"},
					&cli.StringFlag{Name: "prover-toml", Usage: "file with a pre-formatted Prover.toml, takes precedence over --input"},
				},
				Action: func(cCtx *cli.Context) error {
					var proverToml string
					if path := cCtx.String("prover-toml"); path != "" {
						data, err := os.ReadFile(path)
						if err != nil {
							return fmt.Errorf("could not read %s: %w", path, err)
						}
						proverToml = string(data)
					}
					inputs := cCtx.StringSlice("input")
					if proverToml == "" && len(inputs) == 0 {
						return errors.New("one of --input or --prover-toml is required")
					}

					ctx, cancel := requestContext(cCtx)
					defer cancel()
					resp, err := newClient(cCtx).Prove(ctx, cCtx.String("circuit"), inputs, proverToml)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "attestation",
				Usage: "request an attestation document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "proof-hash", Usage: "hex digest to bind, with or without 0x"},
				},
				Action: func(cCtx *cli.Context) error {
					ctx, cancel := requestContext(cCtx)
					defer cancel()
					doc, err := newClient(cCtx).Attestation(ctx, cCtx.String("proof-hash"))
					if err != nil {
						return err
					}
					fmt.Println(base64.StdEncoding.EncodeToString(doc))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
