// Package main (cmd/vsock-bridge) relays TCP connections on the parent
// instance to the enclave's vsock listener, so that containers without vsock
// support can reach the enclave.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ruteri/enclave-prover/bridge"
	"github.com/ruteri/enclave-prover/cmd/flags"
	"github.com/ruteri/enclave-prover/httpserver"
	"github.com/urfave/cli/v2"
)

var bridgeFlags = []cli.Flag{
	&cli.UintFlag{
		Name:    "tcp-port",
		Value:   bridge.DefaultListenPort,
		EnvVars: []string{"BRIDGE_TCP_PORT"},
		Usage:   "local TCP port to listen on",
	},
	&cli.UintFlag{
		Name:    "enclave-cid",
		Value:   bridge.DefaultEnclaveCID,
		EnvVars: []string{"ENCLAVE_CID"},
		Usage:   "vsock context id of the enclave",
	},
	&cli.UintFlag{
		Name:    "enclave-port",
		Value:   bridge.DefaultEnclavePort,
		EnvVars: []string{"ENCLAVE_PORT"},
		Usage:   "vsock port of the enclave server",
	},
	&cli.DurationFlag{
		Name:    "response-timeout",
		Value:   bridge.DefaultResponseIdleTimeout,
		EnvVars: []string{"BRIDGE_RESPONSE_TIMEOUT"},
		Usage:   "idle time after which the enclave response is considered complete; must exceed the enclave's worst-case proving time",
	},
}

func main() {
	app := &cli.App{
		Name:  "vsock-bridge",
		Usage: "Relay TCP connections to the enclave over vsock",
		Flags: append(append(append(bridgeFlags, flags.LogServiceFlagFn("vsock-bridge")), flags.CommonFlags...), flags.OpsFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cid := uint32(cCtx.Uint("enclave-cid"))
			port := uint32(cCtx.Uint("enclave-port"))

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			b, err := bridge.New(&bridge.Config{
				ListenAddr:          fmt.Sprintf("127.0.0.1:%d", cCtx.Uint("tcp-port")),
				ResponseIdleTimeout: cCtx.Duration("response-timeout"),
				Target:              fmt.Sprintf("vsock://%d:%d", cid, port),
				Log:                 logger,
			}, bridge.VsockDialer(cid, port), bridge.NewMetrics(reg))
			if err != nil {
				logger.Error("Failed to create bridge", "err", err)
				return err
			}
			b.RunInBackground()

			var ops *httpserver.Server
			if cfg := flags.ConfigureOpsServer(cCtx, logger, reg); cfg != nil {
				ops = httpserver.New(cfg)
				ops.RunInBackground()
			}

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			ctx, cancel := context.WithTimeout(context.Background(), 2*cCtx.Duration("response-timeout")+5*time.Second)
			defer cancel()
			if err := b.Shutdown(ctx); err != nil {
				logger.Error("Bridge shutdown timed out", "err", err)
			}
			if ops != nil {
				ops.Shutdown()
			}
			logger.Info("Bridge shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
