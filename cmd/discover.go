package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"netpilot/internal/adapter/discovery"
	"netpilot/internal/adapter/infrastructure/audit"
	"netpilot/internal/adapter/infrastructure/command"
	"netpilot/internal/adapter/infrastructure/file"
	"netpilot/internal/adapter/infrastructure/network"
	"netpilot/internal/adapter/infrastructure/pci"
	"netpilot/internal/adapter/infrastructure/usb"
	"netpilot/internal/adapter/kld"
	"netpilot/internal/adapter/sysconf"
	"netpilot/internal/pkg/config"
	"netpilot/internal/pkg/logging"
	"netpilot/internal/pkg/rules"
	"netpilot/internal/port"

	"github.com/spf13/cobra"
)

var discoverFlags struct {
	preview          bool
	configureBoot    bool
	configureStartup bool
	backup           bool
	loadDrivers      bool
	json             bool
}

var errFilesFailed = errors.New("one or more configuration files could not be updated")

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Detect network hardware, resolve drivers and update loader.conf/rc.conf",
	Long: `Detect PCI and USB network devices, resolve each to a driver, firmware
package and module dependencies, and optionally persist the result.

Without --configure-boot or --configure-startup no entries are written.
--preview shows the changes that would be appended without writing them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.GetLogger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch, closeFn := newOrchestrator(cfg, discoverFlags.preview)
		defer closeFn()

		report, err := orch.Run(ctx, discovery.Options{
			Preview:          discoverFlags.preview,
			ConfigureBoot:    discoverFlags.configureBoot,
			ConfigureStartup: discoverFlags.configureStartup,
			ForceBackup:      discoverFlags.backup,
			LoadDrivers:      discoverFlags.loadDrivers,
		})
		if err != nil {
			logger.WithError(err).Error("Discovery failed")
			return err
		}

		out := cmd.OutOrStdout()
		if discoverFlags.json {
			if err := writeReportJSON(out, report); err != nil {
				return err
			}
		} else {
			writeReport(out, report)
		}

		if report.Failed() {
			return errFilesFailed
		}
		return nil
	},
}

// newOrchestrator wires the infrastructure adapters for one session. The
// returned function releases the audit journal.
func newOrchestrator(cfg *config.Config, preview bool) (*discovery.Orchestrator, func()) {
	logger := logging.GetLogger()

	runner := command.NewRunnerAdapter(cfg.Commands.Timeout)
	fileMgr := file.NewManagerAdapter()
	networkMgr := network.NewManagerAdapter()

	providers := []port.DeviceProvider{
		pci.NewProviderAdapter(runner),
		usb.NewProviderAdapter(runner),
	}
	tx := sysconf.NewManager(fileMgr, cfg.Paths.BackupDir)

	opts := []discovery.Option{
		discovery.WithModuleLoader(kld.NewApplier(runner, cfg.Commands.LoadTimeout)),
	}

	closeFn := func() {}
	if cfg.Paths.AuditDB != "" && !preview {
		store, err := audit.NewSQLiteStore(cfg.Paths.AuditDB)
		if err != nil {
			logger.WithError(err).Warn("Audit journal unavailable, continuing without it")
		} else {
			opts = append(opts, discovery.WithAuditStore(store))
			closeFn = func() {
				if err := store.Close(); err != nil {
					logger.WithError(err).Warn("Failed to close audit journal")
				}
			}
		}
	}

	orch := discovery.NewOrchestrator(
		providers,
		rules.Default(),
		tx,
		networkMgr,
		discovery.Paths{LoaderConf: cfg.Paths.LoaderConf, RCConf: cfg.Paths.RCConf},
		cfg.Discovery.Timeout,
		opts...,
	)
	return orch, closeFn
}

func init() {
	f := discoverCmd.Flags()
	f.BoolVar(&discoverFlags.preview, "preview", false, "Show configuration changes without writing them")
	f.BoolVar(&discoverFlags.configureBoot, "configure-boot", false, "Add driver load entries to loader.conf")
	f.BoolVar(&discoverFlags.configureStartup, "configure-startup", false, "Add interface entries to rc.conf")
	f.BoolVar(&discoverFlags.backup, "backup", false, "Back up configuration files even when nothing changes")
	f.BoolVar(&discoverFlags.loadDrivers, "load-drivers", false, "Load resolved modules and install firmware now")
	f.BoolVar(&discoverFlags.json, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(discoverCmd)
}
