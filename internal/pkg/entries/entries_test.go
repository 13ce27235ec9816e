//go:build unit

package entries

import (
	"testing"

	"netpilot/internal/pkg/resolver"
	"netpilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *resolver.LoadPlan {
	return &resolver.LoadPlan{
		Modules: []string{"if_em", "if_re", "linuxkpi", "lindebugfs", "if_iwlwifi", "if_ath"},
		Entries: []resolver.Entry{
			{Driver: "if_em", Category: types.CategoryEthernet},
			{Driver: "if_re", Category: types.CategoryEthernet},
			{Driver: "if_iwlwifi", Category: types.CategoryWiFi},
			{Driver: "if_ath", Category: types.CategoryWiFi},
		},
	}
}

func keyValues(entries []types.ConfigEntry) [][2]string {
	out := make([][2]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, [2]string{e.Key, e.Value})
	}
	return out
}

func TestLoader(t *testing.T) {
	got := Loader(samplePlan())

	require.Len(t, got, 6)
	assert.Equal(t, [][2]string{
		{"if_em_load", "YES"},
		{"if_re_load", "YES"},
		{"linuxkpi_load", "YES"},
		{"lindebugfs_load", "YES"},
		{"if_iwlwifi_load", "YES"},
		{"if_ath_load", "YES"},
	}, keyValues(got))

	for _, e := range got {
		assert.Equal(t, types.TargetLoaderConf, e.Target)
		assert.True(t, e.Managed)
	}
	assert.Equal(t, "Load if_em ethernet driver at boot", got[0].Comment)
	assert.Equal(t, "Load linuxkpi kernel module at boot", got[2].Comment)
	assert.Equal(t, "Load if_iwlwifi wifi driver at boot", got[4].Comment)
}

func TestLoader_EmptyPlan(t *testing.T) {
	assert.Empty(t, Loader(&resolver.LoadPlan{}))
}

func TestRC(t *testing.T) {
	interfaces := []string{"lo0", "em1", "em0", "iwlwifi0", "ath0", "wlan0", "bridge0", "re"}

	got := RC(samplePlan(), interfaces, nil)

	assert.Equal(t, [][2]string{
		{"ifconfig_em0", "DHCP"},
		{"ifconfig_em1", "DHCP"},
		{"wlans_iwlwifi0", "wlan0"},
		{"ifconfig_wlan0", "WPA DHCP"},
		{"wlans_ath0", "wlan1"},
		{"ifconfig_wlan1", "WPA DHCP"},
	}, keyValues(got))

	for _, e := range got {
		assert.Equal(t, types.TargetRCConf, e.Target)
		assert.True(t, e.Managed)
		assert.NotEmpty(t, e.Comment)
	}
}

func TestRC_NoInterfaces(t *testing.T) {
	assert.Empty(t, RC(samplePlan(), nil, nil))
	assert.Empty(t, RC(samplePlan(), []string{"lo0", "bridge0"}, nil))
}

func TestUnit(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		want   int
		wantOK bool
	}{
		{"em0", "em", 0, true},
		{"iwlwifi12", "iwlwifi", 12, true},
		{"rtw880", "rtw88", 0, true},
		{"rtw881", "rtw88", 1, true},
		{"mt760", "mt76", 0, true},
		{"mt7601", "mt76", 0, false},
		{"mt7601u0", "mt76", 0, false},
		{"re", "re", 0, false},
		{"re0", "em", 0, false},
		{"em+1", "em", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.base, func(t *testing.T) {
			n, ok := unit(tt.name, tt.base)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestRC_DriverNamesEndingInDigits(t *testing.T) {
	plan := &resolver.LoadPlan{
		Entries: []resolver.Entry{
			{Driver: "if_rtw88", Bus: types.BusPCI, Category: types.CategoryWiFi},
			{Driver: "if_rtw89", Bus: types.BusPCI, Category: types.CategoryWiFi},
			{Driver: "if_mt76", Bus: types.BusPCI, Category: types.CategoryWiFi},
		},
	}

	got := RC(plan, []string{"mt760", "rtw890", "rtw880"}, nil)

	assert.Equal(t, [][2]string{
		{"wlans_rtw880", "wlan0"},
		{"ifconfig_wlan0", "WPA DHCP"},
		{"wlans_rtw890", "wlan1"},
		{"ifconfig_wlan1", "WPA DHCP"},
		{"wlans_mt760", "wlan2"},
		{"ifconfig_wlan2", "WPA DHCP"},
	}, keyValues(got))
}

func TestRC_UnitsOrderedNumerically(t *testing.T) {
	plan := &resolver.LoadPlan{
		Entries: []resolver.Entry{{Driver: "if_em", Category: types.CategoryEthernet}},
	}

	got := RC(plan, []string{"em10", "em2", "em0"}, nil)

	assert.Equal(t, [][2]string{
		{"ifconfig_em0", "DHCP"},
		{"ifconfig_em2", "DHCP"},
		{"ifconfig_em10", "DHCP"},
	}, keyValues(got))
}

func TestRC_ExistingWlans(t *testing.T) {
	existing := map[string]string{
		"wlans_iwlwifi0": "wlan3",
		"ifconfig_wlan0": "inet 192.168.5.2/24",
	}
	lookup := func(key string) (string, bool) {
		v, ok := existing[key]
		return v, ok
	}

	got := RC(samplePlan(), []string{"iwlwifi0", "ath0"}, lookup)

	assert.Equal(t, [][2]string{
		{"wlans_iwlwifi0", "wlan3"},
		{"ifconfig_wlan3", "WPA DHCP"},
		{"wlans_ath0", "wlan1"},
		{"ifconfig_wlan1", "WPA DHCP"},
	}, keyValues(got))
}

func TestRC_ExistingWlansKeepsAllChildren(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "wlans_iwlwifi0" {
			return "wlan0 wlan1", true
		}
		return "", false
	}

	got := RC(samplePlan(), []string{"iwlwifi0", "ath0"}, lookup)

	assert.Equal(t, [][2]string{
		{"wlans_iwlwifi0", "wlan0 wlan1"},
		{"ifconfig_wlan0", "WPA DHCP"},
		{"wlans_ath0", "wlan2"},
		{"ifconfig_wlan2", "WPA DHCP"},
	}, keyValues(got))
}

func TestRC_EmptyExistingWlans(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "wlans_iwlwifi0" {
			return "", true
		}
		return "", false
	}

	got := RC(samplePlan(), []string{"iwlwifi0"}, lookup)

	assert.Empty(t, got)
}

func TestRC_USBEthernet(t *testing.T) {
	plan := &resolver.LoadPlan{
		Entries: []resolver.Entry{
			{Driver: "if_axge", Bus: types.BusUSB, Category: types.CategoryEthernet},
			{Driver: "if_ure", Bus: types.BusUSB, Category: types.CategoryEthernet},
			{Driver: "if_run", Bus: types.BusUSB, Category: types.CategoryWiFi},
		},
	}

	got := RC(plan, []string{"ue1", "ue0", "run0", "axge0"}, nil)

	assert.Equal(t, [][2]string{
		{"ifconfig_ue0", "DHCP"},
		{"ifconfig_ue1", "DHCP"},
		{"wlans_run0", "wlan0"},
		{"ifconfig_wlan0", "WPA DHCP"},
	}, keyValues(got))
}
