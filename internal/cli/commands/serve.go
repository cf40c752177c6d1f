package commands

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapscale/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve propagation over HTTP",
		Long: `Start an HTTP service that propagates tables posted to it.

Endpoints:
  POST /v1/propagate  propagated table and stats
  POST /v1/validate   validity of the posted table
  POST /v1/explain    per-row resolutions
  GET  /healthz       liveness

Request bodies are JSON by default; send Content-Type text/csv or
application/yaml for the other formats. ?workers=N and ?validate=false
override the configured defaults per request.`,
		Example: `  # Serve on the default address
  leapscale serve

  # Serve on a custom port
  leapscale serve --addr :9000

  # Propagate a CSV file through the service
  curl -s -H 'Content-Type: text/csv' --data-binary @nodes.csv localhost:8787/v1/propagate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8787)")
	cmd.Flags().Bool("no-validate", false, "Skip lineage validation unless a request asks for it")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	cfg := cc.Cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Addr:            cfg.Serve.Addr,
		ShutdownTimeout: cfg.Serve.ShutdownTimeout,
		MaxBodyBytes:    cfg.Serve.MaxBodyBytes,
		CORSOrigins:     cfg.Serve.CORSOrigins,
		Workers:         cfg.Workers,
		Validate:        cfg.Validation,
		Table:           cfg.TableOptions(),
		Logger:          cc.Logger,
	})

	ln, err := net.Listen("tcp", cfg.Serve.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Serve.Addr, err)
	}

	cc.Renderer.Success(fmt.Sprintf("Serving on http://%s", ln.Addr()))
	cc.Renderer.Muted("Press Ctrl+C to stop")

	return srv.ServeListener(ctx, ln)
}
