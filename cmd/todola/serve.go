package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"todola/backend/internal/server"
	"todola/backend/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	Long: `Run the REST API under /api/v1, the live app endpoint /ws, the
registry stream /ws/users and the operations endpoints /metrics,
/health, /healthz and /readyz.

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := worker.NewWorker(worker.WorkerConfig{Logger: rt.log})
	w.RegisterHandler(worker.JobPurgeSessions, rt.cfg.Auth.PurgeInterval, func(ctx context.Context) error {
		n, err := rt.auth.PurgeExpired(ctx)
		if err == nil && n > 0 {
			rt.log.Info("purged expired sessions", "count", n)
		}
		return err
	})
	w.Start(ctx)
	defer w.Stop()

	srv := server.New(server.Deps{
		Config: rt.cfg,
		Store:  rt.store,
		Auth:   rt.auth,
		Health: rt.health,
		Logger: rt.log,
	})
	return srv.Run(ctx)
}
