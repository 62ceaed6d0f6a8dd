package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one full maintenance cycle and exit",
	Long: "Runs decay, cleanup, consolidation (if due), and optimization once\n" +
		"against the configured graph store, then prints the results.",
	RunE: runMaintain,
}

func runMaintain(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	result := svc.lifecycle.RunDailyMaintenance(cmd.Context())
	printJSON(result)
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d maintenance phase(s) failed", len(result.Errors))
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store, lifecycle, and recovery status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	count, err := svc.store.CountMemories(cmd.Context())
	if err != nil {
		return fmt.Errorf("count memories: %w", err)
	}

	printJSON(map[string]any{
		"memories":  count,
		"lifecycle": svc.lifecycle.Status(),
		"recovery":  svc.recovery.Status(),
	})
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
