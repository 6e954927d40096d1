package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Periodically poll a running engine's health endpoint",
		Long:  `Schedules a recurring health check against a server and prints its status on every tick, until interrupted.`,
		RunE:  runProbe,
	}

	probeServer string
	probeEvery  string
)

func init() {
	probeCmd.Flags().StringVar(&probeServer, "server", "http://localhost:8080", "base URL of the running server")
	probeCmd.Flags().StringVar(&probeEvery, "every", "@every 30s", "cron schedule (e.g. \"@every 10s\")")
}

func runProbe(cmd *cobra.Command, args []string) error {
	c := cron.New()

	_, err := c.AddFunc(probeEvery, func() {
		health, err := fetchHealth(probeServer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] probe failed: %v\n", time.Now().Format(time.RFC3339), err)
			return
		}
		fmt.Printf("[%s] status=%s latency=%.2fms %s\n",
			time.Now().Format(time.RFC3339), health.Status, health.LatencyMs, health.Message)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", probeEvery, err)
	}

	fmt.Printf("Probing %s on schedule %q. Press Ctrl+C to stop.\n", probeServer, probeEvery)
	c.Start()
	defer c.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return nil
}
