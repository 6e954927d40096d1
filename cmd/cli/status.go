package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ridopark/chanlun-engine/pkg/api/types"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show a running engine's health and failover status",
		RunE:  runStatus,
	}

	statusServer string
)

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", "base URL of the running server")
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := fetchHealth(statusServer)
	if err != nil {
		return err
	}
	status, err := fetchStatus(statusServer)
	if err != nil {
		return err
	}

	fmt.Printf("Health:  %s (%.2fms) %s\n", health.Status, health.LatencyMs, health.Message)
	fmt.Printf("Engine:  active=%s failover_enabled=%t\n", status.ActiveEngine, status.FailoverEnabled)
	fmt.Printf("Failures: primary=%d backup=%d\n", status.PrimaryFailures, status.BackupFailures)
	if status.LastSwitchReason != "" {
		fmt.Printf("Last switch: %s\n", status.LastSwitchReason)
	}
	return nil
}

func fetchHealth(server string) (*types.HealthResponse, error) {
	resp, err := http.Get(server + "/api/v1/health")
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var health types.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

func fetchStatus(server string) (*types.StatusResponse, error) {
	resp, err := http.Get(server + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var status types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}
