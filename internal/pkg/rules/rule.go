// Package rules holds the driver rule database used to map network devices to
// kernel modules and firmware packages.
package rules

import (
	"slices"
	"strings"

	"netpilot/internal/types"
)

// Rule maps a device predicate to a driver.
//
// The predicate shape decides the specificity:
//   - Vendors and Products set: exact vendor+product match
//   - Vendors set only: vendor match, optionally narrowed by Class
//   - neither set: generic fallback on Class alone
type Rule struct {
	Driver            string
	Bus               types.BusType
	Vendors           []string
	Products          []string
	Class             string // class prefix, e.g. "0x02" or "0x0280"
	Firmware          string
	FirmwareByProduct map[string]string
	Dependencies      []string
	Conflicts         []string
	Category          types.Category
	Description       string

	// Index is the registration position, assigned by New.
	Index int
}

// Specificity derives the rule's rank from its predicate shape.
func (r Rule) Specificity() types.Specificity {
	switch {
	case len(r.Vendors) > 0 && len(r.Products) > 0:
		return types.SpecificityExact
	case len(r.Vendors) > 0:
		return types.SpecificityVendorClass
	default:
		return types.SpecificityGeneric
	}
}

// Matches reports whether the rule's predicate accepts the device.
func (r Rule) Matches(d types.DeviceRecord) bool {
	if r.Bus != d.Bus {
		return false
	}
	if len(r.Vendors) > 0 && !slices.Contains(r.Vendors, types.NormalizeID(d.VendorID)) {
		return false
	}
	if len(r.Products) > 0 && !slices.Contains(r.Products, types.NormalizeID(d.ProductID)) {
		return false
	}
	if r.Class != "" && !strings.HasPrefix(types.NormalizeID(d.Class), r.Class) {
		return false
	}
	return true
}

// FirmwareFor returns the firmware package for the device: the per-product
// override if one exists, the rule firmware otherwise. Empty means the
// driver needs no firmware.
func (r Rule) FirmwareFor(d types.DeviceRecord) string {
	if fw, ok := r.FirmwareByProduct[types.NormalizeID(d.ProductID)]; ok {
		return fw
	}
	return r.Firmware
}

func (r Rule) clone() Rule {
	c := r
	c.Vendors = normalizeAll(r.Vendors)
	c.Products = normalizeAll(r.Products)
	c.Class = types.NormalizeID(r.Class)
	c.Dependencies = slices.Clone(r.Dependencies)
	c.Conflicts = slices.Clone(r.Conflicts)
	if r.FirmwareByProduct != nil {
		c.FirmwareByProduct = make(map[string]string, len(r.FirmwareByProduct))
		for k, v := range r.FirmwareByProduct {
			c.FirmwareByProduct[types.NormalizeID(k)] = v
		}
	}
	return c
}

func normalizeAll(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = types.NormalizeID(id)
	}
	return out
}
