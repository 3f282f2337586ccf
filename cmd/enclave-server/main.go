package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/enclave-prover/api"
	"github.com/ruteri/enclave-prover/api/handlers"
	"github.com/ruteri/enclave-prover/api/servers"
	"github.com/ruteri/enclave-prover/cmd/flags"
	"github.com/ruteri/enclave-prover/cryptoutils"
	"github.com/ruteri/enclave-prover/interfaces"
	"github.com/ruteri/enclave-prover/prover"
	"github.com/ruteri/enclave-prover/registry"
	"github.com/urfave/cli/v2"
)

var serverFlags = []cli.Flag{
	&cli.UintFlag{
		Name:    "vsock-port",
		Value:   api.DefaultVsockPort,
		EnvVars: []string{"VSOCK_PORT"},
		Usage:   "vsock port to listen on, any CID",
	},
	&cli.StringFlag{
		Name:    "tcp-fallback-addr",
		Value:   api.DefaultTCPFallbackAddr,
		EnvVars: []string{"TCP_FALLBACK_ADDR"},
		Usage:   "TCP address used when vsock is unavailable (development only), empty disables",
	},
	&cli.StringFlag{
		Name:    "circuits-dir",
		Value:   "/app/circuits",
		EnvVars: []string{"CIRCUITS_DIR"},
		Usage:   "base directory of the circuit artifacts",
	},
	&cli.StringFlag{
		Name:    "circuits-manifest",
		EnvVars: []string{"CIRCUITS_MANIFEST"},
		Usage:   "TOML manifest replacing the built-in circuit table",
	},
	&cli.StringFlag{
		Name:    "workspace-dir",
		EnvVars: []string{"WORKSPACE_DIR"},
		Usage:   "where per-request workspaces are created, defaults to the circuits dir",
	},
	&cli.StringFlag{
		Name:    "nargo-path",
		Value:   "nargo",
		EnvVars: []string{"NARGO_PATH"},
		Usage:   "witness tool",
	},
	&cli.StringFlag{
		Name:    "bb-path",
		Value:   "bb",
		EnvVars: []string{"BB_PATH"},
		Usage:   "proving tool",
	},
	&cli.StringFlag{
		Name:    "bb-home",
		Value:   prover.DefaultBBHome,
		EnvVars: []string{"BB_HOME"},
		Usage:   "HOME for the proving tool",
	},
	&cli.DurationFlag{
		Name:    "prove-timeout",
		Value:   prover.DefaultTimeout,
		EnvVars: []string{"PROVE_TIMEOUT"},
		Usage:   "timeout of each tool invocation",
	},
	&cli.DurationFlag{
		Name:    "read-timeout",
		Value:   api.DefaultReadIdleTimeout,
		EnvVars: []string{"READ_TIMEOUT"},
		Usage:   "idle time after which a request is considered complete",
	},
	&cli.StringFlag{
		Name:    "attestation-type",
		Value:   string(interfaces.NitroAttestation),
		EnvVars: []string{"ATTESTATION_TYPE"},
		Usage:   "attestation provider: nitro, tdx, dummy or none",
	},
	&cli.StringFlag{
		Name:    "nsm-device",
		Value:   "/dev/nsm",
		EnvVars: []string{"NSM_DEVICE"},
		Usage:   "Nitro Security Module device",
	},
}

func main() {
	app := &cli.App{
		Name:  "enclave-server",
		Usage: "Serve proof generation requests over vsock",
		Flags: append(append(serverFlags, flags.LogServiceFlagFn("enclave-server")), flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			circuitsDir := cCtx.String("circuits-dir")
			reg := registry.NewDefault(circuitsDir)
			if manifest := cCtx.String("circuits-manifest"); manifest != "" {
				var err error
				reg, err = registry.LoadManifestFile(circuitsDir, manifest)
				if err != nil {
					logger.Error("Failed to load circuit manifest", "file", manifest, "err", err)
					return err
				}
			}
			logger.Info("Enclave server starting",
				"circuitsDir", circuitsDir,
				"circuits", reg.IDs())
			reg.CheckArtifacts(logger)

			provider, err := cryptoutils.ProviderFor(interfaces.AttestationType(cCtx.String("attestation-type")), cCtx.String("nsm-device"))
			if err != nil {
				logger.Error("Invalid attestation type", "err", err)
				return err
			}
			attester := cryptoutils.NewAttester(provider, logger)

			pipeline := prover.NewPipeline(prover.Config{
				NargoPath:    cCtx.String("nargo-path"),
				BBPath:       cCtx.String("bb-path"),
				BBHome:       cCtx.String("bb-home"),
				Timeout:      cCtx.Duration("prove-timeout"),
				WorkspaceDir: cCtx.String("workspace-dir"),
			}, reg, attester, logger)
			for tool, err := range pipeline.CheckTools() {
				if err != nil {
					logger.Error("Tool not found, proof requests will fail", "tool", tool, "err", err)
				}
			}

			handler := handlers.NewHandler(pipeline, attester, logger)
			server, err := servers.New(&api.ServerConfig{
				VsockPort:                uint32(cCtx.Uint("vsock-port")),
				TCPFallbackAddr:          cCtx.String("tcp-fallback-addr"),
				ReadIdleTimeout:          cCtx.Duration("read-timeout"),
				MaxRequestSize:           api.DefaultMaxRequestSize,
				GracefulShutdownDuration: cCtx.Duration("prove-timeout")*2 + 10*time.Second,
				Log:                      logger,
			}, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
