//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"netpilot/internal/adapter/discovery"
	"netpilot/internal/adapter/infrastructure/audit"
	"netpilot/internal/adapter/infrastructure/command"
	"netpilot/internal/adapter/infrastructure/file"
	"netpilot/internal/adapter/infrastructure/pci"
	"netpilot/internal/adapter/infrastructure/usb"
	"netpilot/internal/adapter/kld"
	"netpilot/internal/adapter/sysconf"
	"netpilot/internal/mock"
	"netpilot/internal/pkg/rules"
	"netpilot/internal/port"
	"netpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"go.uber.org/mock/gomock"
)

const (
	pciconfOutput = `em0@pci0:0:31:6:	class=0x020000 rev=0x00 hdr=0x00 vendor=0x8086 device=0x15bc subvendor=0x17aa subdevice=0x2292
    vendor     = 'Intel Corporation'
    device     = 'Ethernet Connection (7) I219-V'
    class      = network
    subclass   = ethernet
iwlwifi0@pci0:2:0:0:	class=0x028000 rev=0x1a hdr=0x00 vendor=0x8086 device=0x2725 subvendor=0x8086 subdevice=0x0024
    vendor     = 'Intel Corporation'
    device     = 'Wi-Fi 6 AX210/AX211/AX411 160MHz'
    class      = network
none2@pci0:4:0:0:	class=0x028000 rev=0x01 hdr=0x00 vendor=0x1ae9 device=0x0310 subvendor=0x1ae9 subdevice=0x0000
    vendor     = 'Wilocity Ltd.'
    device     = 'Wil6200 802.11ad Wireless Network Adapter'
    class      = network
`
	usbconfigOutput = `ugen0.2: <Realtek USB 10/100/1000 LAN> at usbus0, cfg=0 md=HOST spd=SUPER (5.0Gbps) pwr=ON (288mA)

  bDeviceClass = 0x0000  <Probed by interface class>
  idVendor = 0x0bda
  idProduct = 0x8153

    Interface 0
      bInterfaceClass = 0x00ff  <Vendor specific>
`
)

// fakeSystem answers the commands NetPilot runs on a FreeBSD host.
type fakeSystem struct {
	mu       sync.Mutex
	loaded   map[string]bool
	packages map[string]bool
	calls    []string
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		loaded:   map[string]bool{"linuxkpi": true},
		packages: map[string]bool{},
	}
}

func (s *fakeSystem) exec(ctx context.Context, name string, args ...string) (types.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, strings.Join(append([]string{name}, args...), " "))

	switch {
	case name == "pciconf":
		return types.CommandResult{Stdout: pciconfOutput}, nil
	case name == "usbconfig":
		return types.CommandResult{Stdout: usbconfigOutput}, nil
	case name == "kldstat":
		if s.loaded[args[1]] {
			return types.CommandResult{}, nil
		}
		return types.CommandResult{ExitCode: 1}, nil
	case name == "kldload":
		s.loaded[args[0]] = true
		return types.CommandResult{}, nil
	case name == "pkg" && args[0] == "info":
		if s.packages[args[2]] {
			return types.CommandResult{}, nil
		}
		return types.CommandResult{ExitCode: 1}, nil
	case name == "pkg" && args[0] == "install":
		s.packages[args[2]] = true
		return types.CommandResult{}, nil
	}
	return types.CommandResult{ExitCode: 127, Stderr: name + ": not found"}, nil
}

func (s *fakeSystem) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// TestDiscoverConfigureAndAudit runs a full session against temporary
// loader.conf and rc.conf files, then repeats it to check idempotence.
func TestDiscoverConfigureAndAudit(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()

	paths := discovery.Paths{
		LoaderConf: filepath.Join(dir, "loader.conf"),
		RCConf:     filepath.Join(dir, "rc.conf"),
	}
	require.NoError(t, os.WriteFile(paths.LoaderConf, []byte("autoboot_delay=\"3\"\n"), 0644))
	require.NoError(t, os.WriteFile(paths.RCConf, []byte("hostname=\"freebsd\"\nifconfig_em0=\"inet 10.0.0.2/24\"\n"), 0644))

	system := newFakeSystem()
	runner := command.NewRunnerAdapter(5*time.Second, command.WithExec(system.exec))

	networkMgr := mock.NewMockNetworkManager(ctrl)
	networkMgr.EXPECT().ListLinks().Return([]netlink.Link{
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "lo0"}},
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "em0"}},
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "iwlwifi0"}},
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "ue0"}},
	}, nil).AnyTimes()

	store, err := audit.NewSQLiteStore(filepath.Join(dir, "db", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	newSession := func() *discovery.Orchestrator {
		tx := sysconf.NewManager(file.NewManagerAdapter(), filepath.Join(dir, "backups"))
		return discovery.NewOrchestrator(
			[]port.DeviceProvider{pci.NewProviderAdapter(runner), usb.NewProviderAdapter(runner)},
			rules.Default(), tx, networkMgr, paths, 10*time.Second,
			discovery.WithAuditStore(store),
			discovery.WithModuleLoader(kld.NewApplier(runner, 5*time.Second, kld.WithSettleDelay(0))),
		)
	}

	opts := discovery.Options{ConfigureBoot: true, ConfigureStartup: true, LoadDrivers: true}

	t.Run("FirstRun", func(t *testing.T) {
		report, err := newSession().Run(context.Background(), opts)
		require.NoError(t, err)

		assert.Empty(t, report.Discovery)
		assert.Len(t, report.Devices, 4)
		require.Len(t, report.Plan.Unmatched, 1)
		assert.Equal(t, "0x1ae9", report.Plan.Unmatched[0].VendorID)
		assert.Equal(t, []string{"if_em", "if_ure", "linuxkpi", "lindebugfs", "if_iwlwifi"}, report.Plan.Modules)
		assert.Equal(t, []string{"wifi-firmware-iwlwifi-kmod-ax210"}, report.Plan.Firmware)

		require.NotNil(t, report.Load)
		assert.Equal(t, 0, report.Load.Failed())
		assert.Equal(t, kld.StatusPresent, report.Load.Modules[2].Status)

		require.Len(t, report.Files, 2)
		for _, f := range report.Files {
			require.NoError(t, f.Err)
			assert.FileExists(t, f.Change.BackupPath)
		}
		assert.NoError(t, report.AuditErr)

		loader, err := os.ReadFile(paths.LoaderConf)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(loader), "autoboot_delay=\"3\"\n\n# NetPilot Configuration - "))
		for _, m := range report.Plan.Modules {
			assert.Contains(t, string(loader), m+"_load=\"YES\"")
		}

		rc, err := os.ReadFile(paths.RCConf)
		require.NoError(t, err)
		assert.Contains(t, string(rc), "ifconfig_em0=\"inet 10.0.0.2/24\"")
		assert.Equal(t, 1, strings.Count(string(rc), "ifconfig_em0="), "existing keys are never duplicated")
		assert.Contains(t, string(rc), "ifconfig_ue0=\"DHCP\"")
		assert.Contains(t, string(rc), "wlans_iwlwifi0=\"wlan0\"")
	})

	t.Run("SecondRunIsIdempotent", func(t *testing.T) {
		before, err := os.ReadFile(paths.LoaderConf)
		require.NoError(t, err)

		report, err := newSession().Run(context.Background(), opts)
		require.NoError(t, err)
		for _, f := range report.Files {
			require.NoError(t, f.Err)
			assert.Equal(t, 0, f.Change.Added())
			assert.Empty(t, f.Change.BackupPath)
		}

		after, err := os.ReadFile(paths.LoaderConf)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		for _, m := range report.Load.Modules {
			assert.Equal(t, kld.StatusPresent, m.Status)
		}
	})

	t.Run("EnumerationIsMemoized", func(t *testing.T) {
		assert.Equal(t, 1, system.count("pciconf"))
		assert.Equal(t, 1, system.count("usbconfig"))
		assert.Equal(t, 1, system.count("pkg install"))
	})

	t.Run("AuditJournal", func(t *testing.T) {
		records, err := store.List(context.Background(), 0)
		require.NoError(t, err)

		counts := map[types.AuditAction]int{}
		sessions := map[string]bool{}
		for _, r := range records {
			counts[r.Action]++
			sessions[r.Session] = true
		}
		assert.Equal(t, 2, counts[types.AuditBackup])
		// five loader entries plus ue0, wlans_iwlwifi0 and ifconfig_wlan0
		assert.Equal(t, 8, counts[types.AuditAdded])
		assert.Len(t, sessions, 1, "the idempotent run records nothing")
	})
}
