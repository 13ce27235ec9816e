//go:build unit

package rules

import (
	"testing"

	"netpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Specificity(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want types.Specificity
	}{
		{"Exact", Rule{Vendors: []string{"0x8086"}, Products: []string{"0x2725"}}, types.SpecificityExact},
		{"VendorOnly", Rule{Vendors: []string{"0x168c"}}, types.SpecificityVendorClass},
		{"VendorAndClass", Rule{Vendors: []string{"0x168c"}, Class: "0x0280"}, types.SpecificityVendorClass},
		{"ClassOnly", Rule{Class: "0x02"}, types.SpecificityGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Specificity())
		})
	}
}

func TestRule_Matches(t *testing.T) {
	rule := Rule{
		Bus:      types.BusPCI,
		Vendors:  []string{"0x168c"},
		Class:    "0x0280",
		Category: types.CategoryWiFi,
	}.clone()

	assert.True(t, rule.Matches(types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x168C", ProductID: "0x0030", Class: "0x028000"}))
	assert.True(t, rule.Matches(types.DeviceRecord{Bus: types.BusPCI, VendorID: "168c", ProductID: "0030", Class: "0280"}))
	assert.False(t, rule.Matches(types.DeviceRecord{Bus: types.BusUSB, VendorID: "0x168c", Class: "0x0280"}), "wrong bus")
	assert.False(t, rule.Matches(types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x8086", Class: "0x0280"}), "wrong vendor")
	assert.False(t, rule.Matches(types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x168c", Class: "0x0200"}), "wrong class")
}

func TestRule_FirmwareFor(t *testing.T) {
	rule := Rule{
		Firmware: "fw-default",
		FirmwareByProduct: map[string]string{
			"1101": "fw-1101",
		},
	}.clone()

	assert.Equal(t, "fw-1101", rule.FirmwareFor(types.DeviceRecord{ProductID: "0x1101"}))
	assert.Equal(t, "fw-default", rule.FirmwareFor(types.DeviceRecord{ProductID: "0x1103"}))
	assert.Empty(t, Rule{}.FirmwareFor(types.DeviceRecord{ProductID: "0x1103"}))
}

func TestNew_Validation(t *testing.T) {
	valid := Rule{Driver: "if_em", Bus: types.BusPCI, Category: types.CategoryEthernet, Vendors: []string{"0x8086"}}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr string
	}{
		{"MissingDriver", func(r *Rule) { r.Driver = "" }, "driver is required"},
		{"UnknownBus", func(r *Rule) { r.Bus = 0 }, "unknown bus"},
		{"UnknownCategory", func(r *Rule) { r.Category = 0 }, "unknown category"},
		{"ProductsWithoutVendor", func(r *Rule) { r.Vendors = nil; r.Products = []string{"0x10d3"} }, "product IDs require a vendor"},
		{"GenericWithoutClass", func(r *Rule) { r.Vendors = nil }, "must name a device class"},
		{"SelfConflict", func(r *Rule) { r.Conflicts = []string{"if_em"} }, "cannot conflict with itself"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			_, err := New([]Rule{r})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("Valid", func(t *testing.T) {
		db, err := New([]Rule{valid})
		require.NoError(t, err)
		assert.Equal(t, 1, db.Len())
	})
}

func TestDatabase_IndexesAndCopies(t *testing.T) {
	db, err := New([]Rule{
		{Driver: "a", Bus: types.BusPCI, Category: types.CategoryEthernet, Vendors: []string{"0x1111"}},
		{Driver: "b", Bus: types.BusPCI, Category: types.CategoryEthernet, Vendors: []string{"0x2222"}},
	})
	require.NoError(t, err)

	rules := db.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, 0, rules[0].Index)
	assert.Equal(t, 1, rules[1].Index)

	// Mutating the copy does not affect the database
	rules[0].Vendors[0] = "0x9999"
	assert.Equal(t, "0x1111", db.Rules()[0].Vendors[0])
}

func TestDatabase_Candidates(t *testing.T) {
	db, err := New([]Rule{
		{Driver: "if_iwn", Bus: types.BusPCI, Category: types.CategoryWiFi, Vendors: []string{"0x8086"}, Products: []string{"0x4229"}},
		{Driver: "if_generic", Bus: types.BusPCI, Category: types.CategoryWiFi, Class: "0x0280"},
		{Driver: "if_other", Bus: types.BusPCI, Category: types.CategoryWiFi, Vendors: []string{"0x168c"}},
	}, WithBlacklist("if_iwn"))
	require.NoError(t, err)

	device := types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x8086", ProductID: "0x4229", Class: "0x0280"}
	candidates := db.Candidates(device)
	require.Len(t, candidates, 1)
	assert.Equal(t, "if_generic", candidates[0].Driver)
	assert.True(t, db.Blacklisted("if_iwn"))
	assert.False(t, db.Blacklisted("if_generic"))
}

func TestDatabase_Conflicting(t *testing.T) {
	db, err := New([]Rule{
		{Driver: "if_axe", Bus: types.BusUSB, Category: types.CategoryEthernet, Vendors: []string{"0x0b95"}, Conflicts: []string{"if_axge"}},
		{Driver: "if_axge", Bus: types.BusUSB, Category: types.CategoryEthernet, Vendors: []string{"0x0b95"}, Products: []string{"0x1790"}},
	})
	require.NoError(t, err)

	assert.True(t, db.Conflicting("if_axe", "if_axge"))
	assert.True(t, db.Conflicting("if_axge", "if_axe"), "conflicts are symmetric")
	assert.False(t, db.Conflicting("if_axe", "if_axe"))
	assert.False(t, db.Conflicting("if_axe", "if_ure"))
}

func TestDatabase_ModuleDependencies(t *testing.T) {
	deps := map[string][]string{"lindebugfs": {"linuxkpi"}}
	db, err := New(nil, WithModuleDependencies(deps))
	require.NoError(t, err)

	deps["lindebugfs"][0] = "changed"
	assert.Equal(t, []string{"linuxkpi"}, db.ModuleDependencies("lindebugfs"))
	assert.Empty(t, db.ModuleDependencies("linuxkpi"))
}

func TestDefault(t *testing.T) {
	db := Default()
	assert.Greater(t, db.Len(), 20)
	assert.True(t, db.Blacklisted("if_iwn"))
	assert.Equal(t, []string{"linuxkpi"}, db.ModuleDependencies("lindebugfs"))
	assert.True(t, db.Conflicting("if_axe", "if_axge"))

	// The AX210 family rule precedes the broad iwlwifi rule
	ax210 := types.DeviceRecord{Bus: types.BusPCI, VendorID: "0x8086", ProductID: "0x2725", Class: "0x0280"}
	candidates := db.Candidates(ax210)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "wifi-firmware-iwlwifi-kmod-ax210", candidates[0].Firmware)
}

func TestDatabase_Coverage(t *testing.T) {
	cov := Default().Coverage()

	assert.Contains(t, cov.EthernetPCI, "if_re: Realtek RTL8139/8169/8168/8111/8125 Ethernet")
	assert.Contains(t, cov.EthernetUSB, "if_cdce: USB CDC Ethernet")
	assert.Contains(t, cov.WiFiUSB, "if_run: Ralink/MediaTek RT2870/RT3070/RT5370 USB WiFi")
	assert.Contains(t, cov.Firmware, "wifi-firmware-ath11k-kmod-qca6390_hw20")
	assert.IsIncreasing(t, cov.WiFiPCI)
	assert.IsIncreasing(t, cov.Firmware)

	for _, line := range cov.WiFiPCI {
		assert.NotContains(t, line, "if_iwn:", "blacklisted drivers are not advertised")
	}
}
