package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the dispatcher and comment poller without the HTTP API",
	Long: `worker runs the scheduled-action dispatcher on its own. Several workers
may share one database; each action is claimed before it is executed.`,
	Run: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Outcomes reach REST servers through Valkey when it is configured.
	go eventHub.Run(ctx)
	if err := dispatcher.Start(ctx); err != nil {
		logrus.Fatalf("[WORKER] %v", err)
	}
	logrus.Info("[WORKER] Running, press Ctrl+C to stop")

	<-ctx.Done()
	logrus.Info("[WORKER] Reception of termination signal, shutting down gracefully...")
	StopApp()
}
