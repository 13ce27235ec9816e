//go:build unit

package resolver

import (
	"errors"
	"testing"

	"netpilot/internal/pkg/matcher"
	"netpilot/internal/pkg/rules"
	"netpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ax210     = types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x8086", ProductID: "0x2725", Class: "0x0280"}
	ax200     = types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x8086", ProductID: "0x2723", Class: "0x0280"}
	intel574  = types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x8086", ProductID: "0x10d3", Class: "0x0200"}
	qca6390   = types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x17cb", ProductID: "0x1101", Class: "0x0280"}
	unknownNC = types.DeviceRecord{Bus: types.BusPCI, VendorID: "0xdead", ProductID: "0xbeef", Class: "0x0200"}
)

func match(t *testing.T, db *rules.Database, devices ...types.DeviceRecord) []matcher.Result {
	t.Helper()
	results, err := matcher.MatchAll(devices, db)
	require.NoError(t, err)
	return results
}

func TestResolve_SingleWiFiDevice(t *testing.T) {
	db := rules.Default()

	plan, err := Resolve(match(t, db, ax210), db)
	require.NoError(t, err)

	assert.Equal(t, []string{"linuxkpi", "lindebugfs", "if_iwlwifi"}, plan.Modules)
	assert.Equal(t, []string{"wifi-firmware-iwlwifi-kmod-ax210"}, plan.Firmware)
	assert.Equal(t, []string{"if_iwlwifi"}, plan.Drivers())
	assert.Empty(t, plan.Unmatched)
	assert.Empty(t, plan.Decisions)
}

func TestResolve_EthernetBeforeWiFi(t *testing.T) {
	db := rules.Default()

	// WiFi is discovered first, but Ethernet drivers lead the plan
	plan, err := Resolve(match(t, db, ax210, intel574), db)
	require.NoError(t, err)

	assert.Equal(t, []string{"if_em", "linuxkpi", "lindebugfs", "if_iwlwifi"}, plan.Modules)
	assert.Equal(t, []string{"if_em", "if_iwlwifi"}, plan.Drivers())
}

func TestResolve_DependenciesPrecedeDependents(t *testing.T) {
	db := rules.Default()

	plan, err := Resolve(match(t, db, intel574, ax210, qca6390), db)
	require.NoError(t, err)

	pos := make(map[string]int, len(plan.Modules))
	for i, m := range plan.Modules {
		_, dup := pos[m]
		require.False(t, dup, "module %s listed twice", m)
		pos[m] = i
	}
	for module, deps := range plan.Requires {
		for _, dep := range deps {
			assert.Less(t, pos[dep], pos[module], "%s must load before %s", dep, module)
		}
	}

	assert.Equal(t, []string{"linuxkpi", "lindebugfs"}, plan.Requires["if_iwlwifi"])
	assert.Equal(t, []string{"linuxkpi"}, plan.Requires["lindebugfs"])
	assert.Equal(t, []string{"linuxkpi"}, plan.Requires["if_ath11k"])
	assert.NotContains(t, plan.Requires, "if_em")
}

func TestResolve_SharedDriverMergesDevices(t *testing.T) {
	db := rules.Default()

	plan, err := Resolve(match(t, db, ax210, ax200), db)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 1)
	entry := plan.Entries[0]
	assert.Equal(t, "if_iwlwifi", entry.Driver)
	assert.Equal(t, []string{"pci 8086:2725", "pci 8086:2723"}, entry.Devices)
	assert.Equal(t, []string{
		"wifi-firmware-iwlwifi-kmod-ax210",
		"wifi-firmware-iwlwifi-kmod-22000",
	}, plan.Firmware)
	assert.Equal(t, []string{"linuxkpi", "lindebugfs", "if_iwlwifi"}, plan.Modules)
}

func TestResolve_FirmwareDeduplicated(t *testing.T) {
	db := rules.Default()

	plan, err := Resolve(match(t, db, ax210, ax210), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"wifi-firmware-iwlwifi-kmod-ax210"}, plan.Firmware)
}

func TestResolve_UnmatchedReported(t *testing.T) {
	db := rules.Default()

	plan, err := Resolve(match(t, db, unknownNC, intel574), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"if_em"}, plan.Modules)
	require.Len(t, plan.Unmatched, 1)
	assert.Equal(t, "0xdead", plan.Unmatched[0].VendorID)
}

func TestResolve_Empty(t *testing.T) {
	plan, err := Resolve(nil, rules.Default())
	require.NoError(t, err)
	assert.Empty(t, plan.Modules)
	assert.Empty(t, plan.Entries)
	assert.False(t, plan.Contains("if_em"))
}

func TestResolve_DependencyCycle(t *testing.T) {
	db, err := rules.New([]rules.Rule{
		{Driver: "if_a", Bus: types.BusPCI, Category: types.CategoryEthernet, Vendors: []string{"0x1111"}, Dependencies: []string{"mod_x"}},
	}, rules.WithModuleDependencies(map[string][]string{
		"mod_x": {"mod_y"},
		"mod_y": {"mod_x"},
	}))
	require.NoError(t, err)

	results := match(t, db, types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x1111", ProductID: "0x0001"})
	_, err = Resolve(results, db)
	require.Error(t, err)

	var cycle *types.DependencyCycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"mod_x", "mod_y", "mod_x"}, cycle.Cycle)
}

func TestResolve_CrossDeviceConflict(t *testing.T) {
	db, err := rules.New([]rules.Rule{
		{Driver: "if_new", Bus: types.BusUSB, Category: types.CategoryEthernet, Vendors: []string{"0x0b95"}, Products: []string{"0x1790"}},
		{Driver: "if_old", Bus: types.BusUSB, Category: types.CategoryEthernet, Vendors: []string{"0x0b95"}, Conflicts: []string{"if_new"}},
	})
	require.NoError(t, err)

	results := match(t, db,
		types.DeviceRecord{Bus: types.BusUSB, VendorID: "0x0b95", ProductID: "0x7720"},
		types.DeviceRecord{Bus: types.BusUSB, VendorID: "0x0b95", ProductID: "0x1790"},
	)

	plan, err := Resolve(results, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"if_new"}, plan.Modules)
	require.Len(t, plan.Decisions, 1)
	assert.Equal(t, Decision{
		Kept:          "if_new",
		Dropped:       "if_old",
		KeptDevice:    "usb 0b95:1790",
		DroppedDevice: "usb 0b95:7720",
		Reason:        "exact match outranks vendor-class match",
	}, plan.Decisions[0])
}

func TestResolve_CrossDeviceConflictTie(t *testing.T) {
	db, err := rules.New([]rules.Rule{
		{Driver: "if_a", Bus: types.BusUSB, Category: types.CategoryEthernet, Vendors: []string{"0x0b95"}, Products: []string{"0x0001"}, Conflicts: []string{"if_b"}},
		{Driver: "if_b", Bus: types.BusUSB, Category: types.CategoryEthernet, Vendors: []string{"0x0b95"}, Products: []string{"0x0002"}},
	})
	require.NoError(t, err)

	results := match(t, db,
		types.DeviceRecord{Bus: types.BusUSB, VendorID: "0x0b95", ProductID: "0x0001"},
		types.DeviceRecord{Bus: types.BusUSB, VendorID: "0x0b95", ProductID: "0x0002"},
	)

	_, err = Resolve(results, db)
	var conflict *types.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "if_a", conflict.DriverA)
	assert.Equal(t, "if_b", conflict.DriverB)
	assert.Equal(t, "usb 0b95:0001, usb 0b95:0002", conflict.Device)
}

func TestResolve_ConflictIgnoredAcrossCategories(t *testing.T) {
	db, err := rules.New([]rules.Rule{
		{Driver: "if_eth", Bus: types.BusPCI, Category: types.CategoryEthernet, Vendors: []string{"0x1111"}, Products: []string{"0x0001"}, Conflicts: []string{"if_wlan"}},
		{Driver: "if_wlan", Bus: types.BusPCI, Category: types.CategoryWiFi, Vendors: []string{"0x1111"}, Products: []string{"0x0002"}},
	})
	require.NoError(t, err)

	results := match(t, db,
		types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x1111", ProductID: "0x0002"},
		types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x1111", ProductID: "0x0001"},
	)

	plan, err := Resolve(results, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"if_eth", "if_wlan"}, plan.Modules)
	assert.Empty(t, plan.Decisions)
}
