// Package entries derives the desired loader.conf and rc.conf entries from a
// resolved load plan.
package entries

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"netpilot/internal/pkg/resolver"
	"netpilot/internal/types"
)

const (
	usbEthernetBase = "ue"
	wlanBase        = "wlan"
)

// Loader returns one `<module>_load="YES"` entry per plan module, in plan order.
func Loader(plan *resolver.LoadPlan) []types.ConfigEntry {
	out := make([]types.ConfigEntry, 0, len(plan.Modules))
	drivers := make(map[string]resolver.Entry, len(plan.Entries))
	for _, e := range plan.Entries {
		drivers[e.Driver] = e
	}

	for _, module := range plan.Modules {
		comment := fmt.Sprintf("Load %s kernel module at boot", module)
		if e, ok := drivers[module]; ok {
			comment = fmt.Sprintf("Load %s %s driver at boot", module, e.Category)
		}
		out = append(out, types.ConfigEntry{
			Target:  types.TargetLoaderConf,
			Key:     module + "_load",
			Value:   "YES",
			Comment: comment,
			Managed: true,
		})
	}
	return out
}

// Lookup returns the value of a key already defined in rc.conf.
type Lookup func(key string) (string, bool)

// RC returns interface startup entries for the interfaces created by plan
// drivers. An interface belongs to a driver when its name is the driver
// name without the "if_" prefix followed by a unit number (if_em -> em0,
// if_rtw88 -> rtw880). USB Ethernet drivers all attach as ueN. Ethernet
// interfaces get DHCP. Each WiFi parent gets a wlan child configured for
// WPA and DHCP: the child already named by an existing wlans_<parent> key
// is kept, otherwise the lowest free wlan unit is allocated in plan order.
func RC(plan *resolver.LoadPlan, interfaces []string, existing Lookup) []types.ConfigEntry {
	if existing == nil {
		existing = func(string) (string, bool) { return "", false }
	}

	type assignment struct {
		iface    string
		category types.Category
	}
	var assigned []assignment
	seen := make(map[string]struct{})
	for _, e := range plan.Entries {
		for _, iface := range unitsOf(interfaceBase(e), interfaces) {
			if _, dup := seen[iface]; dup {
				continue
			}
			seen[iface] = struct{}{}
			assigned = append(assigned, assignment{iface: iface, category: e.Category})
		}
	}

	used := make(map[int]struct{})
	for _, a := range assigned {
		if a.category != types.CategoryWiFi {
			continue
		}
		if v, ok := existing("wlans_" + a.iface); ok {
			for _, child := range strings.Fields(v) {
				if n, ok := unit(child, wlanBase); ok {
					used[n] = struct{}{}
				}
			}
		}
	}
	nextUnit := 0
	allocate := func() string {
		for {
			n := nextUnit
			nextUnit++
			if _, taken := used[n]; taken {
				continue
			}
			wlan := fmt.Sprintf("%s%d", wlanBase, n)
			if _, configured := existing("ifconfig_" + wlan); configured {
				continue
			}
			return wlan
		}
	}

	var out []types.ConfigEntry
	for _, a := range assigned {
		switch a.category {
		case types.CategoryEthernet:
			out = append(out, types.ConfigEntry{
				Target:  types.TargetRCConf,
				Key:     "ifconfig_" + a.iface,
				Value:   "DHCP",
				Comment: fmt.Sprintf("Configure %s ethernet interface for DHCP", a.iface),
				Managed: true,
			})
		case types.CategoryWiFi:
			value, ok := existing("wlans_" + a.iface)
			var wlan string
			if ok {
				fields := strings.Fields(value)
				if len(fields) == 0 {
					continue
				}
				wlan = fields[0]
			} else {
				wlan = allocate()
				value = wlan
			}
			out = append(out,
				types.ConfigEntry{
					Target:  types.TargetRCConf,
					Key:     "wlans_" + a.iface,
					Value:   value,
					Comment: fmt.Sprintf("Create %s for %s WiFi interface", wlan, a.iface),
					Managed: true,
				},
				types.ConfigEntry{
					Target:  types.TargetRCConf,
					Key:     "ifconfig_" + wlan,
					Value:   "WPA DHCP",
					Comment: fmt.Sprintf("Configure %s for WPA and DHCP", wlan),
					Managed: true,
				},
			)
		}
	}
	return out
}

func interfaceBase(e resolver.Entry) string {
	if e.Bus == types.BusUSB && e.Category == types.CategoryEthernet {
		return usbEthernetBase
	}
	return strings.TrimPrefix(e.Driver, "if_")
}

// unitsOf returns the interfaces named base plus a unit number, ordered by unit.
func unitsOf(base string, interfaces []string) []string {
	type named struct {
		name string
		unit int
	}
	var found []named
	for _, name := range interfaces {
		if n, ok := unit(name, base); ok {
			found = append(found, named{name: name, unit: n})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].unit < found[j].unit })

	out := make([]string, 0, len(found))
	for _, f := range found {
		out = append(out, f.name)
	}
	return out
}

// unit returns N for a name of the form base+N. Unit numbers have no
// leading zeros, so "mt7601" is not unit 01 of "mt76".
func unit(name, base string) (int, bool) {
	digits, ok := strings.CutPrefix(name, base)
	if !ok || digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
