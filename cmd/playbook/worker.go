package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/adapters/grpc"
	"github.com/eleven-am/playbook/internal/adapters/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWorkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run compute routines for other playbook processes",
	}
	cmd.AddCommand(newWorkerServeCmd(a), newWorkerExecCmd(a))
	return cmd
}

func newWorkerServeCmd(a *app) *cobra.Command {
	var (
		address    string
		maxMsgSize int
		obs        = observability.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compute routines over gRPC",
		Long: `Serve the built-in compute routines over gRPC until interrupted.

Point other processes at it with --compute=grpc --compute-address=<address>.
Health checks and Prometheus metrics are served on --metrics-address unless
it is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := grpc.NewServer(compute.DefaultRoutines(), grpc.ServerConfig{
				Address:    address,
				MaxMsgSize: maxMsgSize,
			}, a.logger)
			if err := server.Start(ctx); err != nil {
				return err
			}
			defer server.Stop()

			g, gctx := errgroup.WithContext(ctx)
			if obs.Address != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				metricsServer := observability.NewServer(obs, reg, a.logger).
					WithHealthCheck("compute", server.Serving)
				g.Go(func() error { return metricsServer.Start(gctx) })
			}
			g.Go(func() error {
				<-gctx.Done()
				return nil
			})
			return g.Wait()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&address, "address", ":50051", "gRPC listen address")
	flags.IntVar(&maxMsgSize, "max-msg-size", 16<<20, "maximum gRPC message size in bytes")
	flags.StringVar(&obs.Address, "metrics-address", obs.Address, "health and metrics listen address, empty to disable")
	flags.BoolVar(&obs.EnablePprof, "pprof", false, "serve /debug/pprof on the metrics address")
	return cmd
}

func newWorkerExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec",
		Short: "Run one compute request read from stdin",
		Long: `Read one JSON compute request from stdin and write JSON-line frames to
stdout. This is the worker side of --compute=process, for example:

  compute:
    mode: process
    command: ["playbook", "worker", "exec"]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return compute.Serve(cmd.Context(), compute.DefaultRoutines(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
