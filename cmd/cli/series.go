package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ridopark/chanlun-engine/pkg/api/types"
)

var (
	seriesCmd = &cobra.Command{
		Use:   "series",
		Short: "Inspect series tracked by a running engine",
		Long:  `List the (symbol, timeframe) series a running server currently holds a worker for.`,
		RunE:  runSeriesList,
	}

	seriesServer string
)

func init() {
	seriesCmd.Flags().StringVar(&seriesServer, "server", "http://localhost:8080", "base URL of the running server")
}

func runSeriesList(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(seriesServer + "/api/v1/series")
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %s", resp.Status)
	}

	var list types.SeriesListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if list.Count == 0 {
		fmt.Println("No series tracked yet.")
		return nil
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "SERIES\tDETAIL")
	fmt.Fprintln(w, "------\t------")
	for key, detail := range list.Series {
		fmt.Fprintf(w, "%s\t%v\n", key, detail)
	}

	return nil
}
