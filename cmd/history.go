package cmd

import (
	"fmt"
	"text/tabwriter"

	"netpilot/internal/adapter/infrastructure/audit"
	"netpilot/internal/types"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded configuration changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Paths.AuditDB == "" {
			return fmt.Errorf("audit journal is disabled (paths.audit_db is empty)")
		}

		store, err := audit.NewSQLiteStore(cfg.Paths.AuditDB)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSESSION\tACTION\tFILE\tCHANGE")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.Time.Local().Format("2006-01-02 15:04:05"),
				shortSession(r.Session),
				r.Action,
				r.File,
				describeRecord(r),
			)
		}
		return tw.Flush()
	},
}

func describeRecord(r types.AuditRecord) string {
	switch r.Action {
	case types.AuditAdded:
		return fmt.Sprintf("%s=%q", r.Key, r.Value)
	case types.AuditBackup:
		return r.Backup
	default:
		return r.Detail
	}
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
