// Package types defines common types used across the application.
package types

import (
	"fmt"
	"strings"
)

// BusType identifies the bus a device was enumerated on.
type BusType int

const (
	BusPCI BusType = iota + 1
	BusUSB
)

// String returns the lower-case bus name.
func (b BusType) String() string {
	switch b {
	case BusPCI:
		return "pci"
	case BusUSB:
		return "usb"
	default:
		return fmt.Sprintf("bus(%d)", int(b))
	}
}

// Category is the network function a driver provides.
type Category int

const (
	CategoryEthernet Category = iota + 1
	CategoryWiFi
)

// String returns the lower-case category name.
func (c Category) String() string {
	switch c {
	case CategoryEthernet:
		return "ethernet"
	case CategoryWiFi:
		return "wifi"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Specificity ranks how precisely a rule matches a device. Higher wins.
type Specificity int

const (
	SpecificityGeneric Specificity = iota + 1
	SpecificityVendorClass
	SpecificityExact
)

// String returns a short name for the rank.
func (s Specificity) String() string {
	switch s {
	case SpecificityGeneric:
		return "generic"
	case SpecificityVendorClass:
		return "vendor-class"
	case SpecificityExact:
		return "exact"
	default:
		return fmt.Sprintf("specificity(%d)", int(s))
	}
}

// DeviceRecord is a raw device as reported by a discovery provider.
// IDs are lower-case hex with a 0x prefix (e.g. "0x8086").
type DeviceRecord struct {
	Bus         BusType
	VendorID    string
	ProductID   string
	SubsystemID string // optional
	Class       string // e.g. "0x0280" for PCI, "0x02" for USB
	Description string
	Tag         string // bus selector, e.g. "iwlwifi0@pci0:2:0:0"
}

// ID returns the vendor:product identifier used in logs and errors.
func (d DeviceRecord) ID() string {
	return fmt.Sprintf("%s %s:%s", d.Bus, strings.TrimPrefix(d.VendorID, "0x"), strings.TrimPrefix(d.ProductID, "0x"))
}

// NormalizeID converts a hex ID into the canonical "0x"-prefixed lower-case form.
func NormalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}
