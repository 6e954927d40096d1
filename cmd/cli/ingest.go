package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridopark/chanlun-engine/internal/models"
	"github.com/ridopark/chanlun-engine/pkg/api/types"
)

var (
	ingestCmd = &cobra.Command{
		Use:   "ingest [symbol] [timeframe]",
		Short: "Submit a candle batch to a running engine",
		Long:  `Read candles as a JSON array from --file (or stdin) and submit them to a running server's series endpoint.`,
		Args:  cobra.ExactArgs(2),
		RunE:  runIngest,
	}

	ingestFile   string
	ingestServer string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to a JSON array of candles (default: stdin)")
	ingestCmd.Flags().StringVar(&ingestServer, "server", "http://localhost:8080", "base URL of the running server")
}

func runIngest(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(args[0])
	if err := validateSymbol(symbol); err != nil {
		return fmt.Errorf("invalid symbol '%s': %w", symbol, err)
	}

	timeframe, err := models.ParseTimeframe(args[1])
	if err != nil {
		return fmt.Errorf("invalid timeframe '%s': %w", args[1], err)
	}

	candles, err := readCandles(ingestFile)
	if err != nil {
		return fmt.Errorf("failed to read candles: %w", err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles to submit")
	}

	body, err := json.Marshal(types.SubmitRequest{Candles: candles})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/series/%s/%s/submit", ingestServer, symbol, timeframe)
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	var submitResp types.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !submitResp.OK {
		return fmt.Errorf("submit rejected: %s", submitResp.ErrorMessage)
	}

	fmt.Printf("Submitted %d candles for %s %s (processed %d)\n", len(candles), symbol, timeframe, submitResp.ProcessedCount)
	return nil
}

func readCandles(path string) ([]models.Candle, error) {
	var r io.Reader
	if path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var candles []models.Candle
	if err := json.NewDecoder(r).Decode(&candles); err != nil {
		return nil, fmt.Errorf("invalid candle JSON: %w", err)
	}
	return candles, nil
}
