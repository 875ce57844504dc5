package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show metrics for the persisted reaction state",
	RunE:  runStats,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run a cleanup pass over the persisted reaction state",
	Long:  "Loads the persisted state (saving it back at once if it needed repair), trims oversized messages, drops the oldest messages down to the global target, and saves the result.",
	RunE:  runCleanup,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print metrics as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	_, eng, backend, _, err := openEngine()
	if err != nil {
		return err
	}
	defer backend.Close()
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := eng.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	m := eng.GetMetrics()
	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	fmt.Printf("messages:   %d\n", m.TotalMessages)
	fmt.Printf("reactions:  %d\n", m.TotalReactions)
	fmt.Printf("memory:     ~%d bytes\n", m.MemoryEstimateBytes)
	fmt.Printf("breaker:    %s\n", m.CircuitBreakerState)
	fmt.Printf("status:     %s\n", eng.StatusMessage())
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	_, eng, backend, _, err := openEngine()
	if err != nil {
		return err
	}
	defer backend.Close()
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := eng.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	before := eng.GetMetrics()
	if err := eng.PerformManualCleanup(ctx); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	after := eng.GetMetrics()

	fmt.Printf("messages:  %d -> %d\n", before.TotalMessages, after.TotalMessages)
	fmt.Printf("reactions: %d -> %d\n", before.TotalReactions, after.TotalReactions)
	return nil
}
