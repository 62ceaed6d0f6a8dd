package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	recoverUserID    string
	recoverMemoryIDs []string
	backupName       string
	backupTypes      []string
	restoreOverwrite bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Scan memories for integrity issues",
	RunE:  runValidate,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Scan memories and auto-repair what can be fixed",
	RunE:  runRepair,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot memories into shadow backup records",
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-name>",
	Short: "Restore memories from a named backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	for _, cmd := range []*cobra.Command{validateCmd, repairCmd} {
		cmd.Flags().StringVar(&recoverUserID, "user", "", "limit to one user's memories")
		cmd.Flags().StringSliceVar(&recoverMemoryIDs, "memory", nil, "limit to specific memory IDs")
	}
	backupCmd.Flags().StringVar(&backupName, "name", "", "backup name (default: timestamped)")
	backupCmd.Flags().StringVar(&recoverUserID, "user", "", "limit to one user's memories")
	backupCmd.Flags().StringSliceVar(&backupTypes, "type", nil, "limit to specific memory types")
	restoreCmd.Flags().StringSliceVar(&recoverMemoryIDs, "memory", nil, "limit to specific memory IDs")
	restoreCmd.Flags().BoolVar(&restoreOverwrite, "overwrite", false, "replace existing memories")
}

func runValidate(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	issues, err := svc.recovery.ValidateMemoryData(cmd.Context(), recoverMemoryIDs, recoverUserID)
	if err != nil {
		return err
	}
	printJSON(map[string]any{"count": len(issues), "issues": issues})
	if len(issues) > 0 {
		fmt.Fprintf(os.Stderr, "%d issue(s) found\n", len(issues))
	}
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	issues, err := svc.recovery.ValidateMemoryData(cmd.Context(), recoverMemoryIDs, recoverUserID)
	if err != nil {
		return err
	}
	result, err := svc.recovery.RepairMemoryIssues(cmd.Context(), issues, true)
	if err != nil {
		return err
	}
	printJSON(map[string]any{
		"status":       result.Status,
		"issues_found": len(issues),
		"fixed_issues": result.FixedIssues,
	})
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	ok, err := svc.recovery.CreateBackup(cmd.Context(), backupName, recoverUserID, backupTypes)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no memories matched; nothing backed up")
	}
	fmt.Println("backup created")
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	ok, err := svc.recovery.RestoreFromBackup(cmd.Context(), args[0], recoverMemoryIDs, restoreOverwrite)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no memories restored from %s", args[0])
	}
	fmt.Println("restore complete")
	return nil
}
