package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Dispatch due actions once and exit",
	Long:  `tick runs a single dispatcher pass, for use from an external cron.`,
	Run: func(cmd *cobra.Command, _ []string) {
		defer StopApp()

		report, err := dispatcher.RunTick(context.Background(), time.Now().UTC())
		if err != nil {
			logrus.Fatalf("[TICK] %v", err)
		}
		logrus.WithFields(logrus.Fields{
			"found":     report.Found,
			"claimed":   report.Claimed,
			"succeeded": report.Succeeded,
			"failed":    report.Failed,
			"swept":     report.Swept,
		}).Info("[TICK] Done")
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
}
