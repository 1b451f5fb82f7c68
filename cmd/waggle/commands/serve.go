package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/waggleboard/waggle/internal/config"
	"github.com/waggleboard/waggle/internal/gateway"
	"github.com/waggleboard/waggle/internal/printer"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket gateway",
	Long: `Run the websocket gateway for a workspace.

The gateway bridges browser clients into the workspace's Redis channels:
presence events from each browser are republished to Redis and fanned back
out to every other connected session, and durable-state change notifications
are pushed to all sessions.

Endpoints:
  /ws      - websocket upgrade (optional ?session=<uuid> to resume a session)
  /healthz - Redis-backed health check

Examples:
  # Serve the configured workspace on the configured address
  waggle serve

  # Override the bind address
  waggle serve --listen :9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Bind address (overrides gateway.listen in waggle.yml)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := joinWorkspace(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := gateway.Options{Listen: config.DefaultGatewayListen}
	if gw := sess.cfg.Gateway; gw != nil {
		opts.Listen = gw.Listen
		opts.AllowedOrigins = gw.AllowedOrigins
	}
	if serveListen != "" {
		opts.Listen = serveListen
	}

	server := gateway.NewServer(sess.client, opts)

	printer.Success("Gateway for workspace '%s' listening on %s\n", sess.client.Workspace(), opts.Listen)

	if err := server.Run(ctx); err != nil {
		return printer.Error(
			"gateway stopped with an error",
			err.Error(),
			nil,
		)
	}

	printer.Info("Gateway shut down.\n")
	return nil
}
