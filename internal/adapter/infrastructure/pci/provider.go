// Package pci enumerates PCI network devices from `pciconf -lv` output.
package pci

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"
	"netpilot/internal/types"
)

// NetworkClassPrefix selects PCI base class 0x02 (network controller)
const NetworkClassPrefix = "0x02"

var (
	// iwlwifi0@pci0:2:0:0:	class=0x028000 rev=0x1a hdr=0x00 vendor=0x8086 device=0x2725 ...
	headerPattern = regexp.MustCompile(`^(\S+@pci[0-9:]+):?\s+(.*)$`)
	fieldPattern  = regexp.MustCompile(`(\w+)=(0x[0-9a-fA-F]+)`)
	// vendor     = 'Intel Corporation'
	detailPattern = regexp.MustCompile(`^\s+(vendor|device)\s*=\s*['"](.*)['"]\s*$`)
)

// ProviderAdapter is an adapter that implements the DeviceProvider port for the PCI bus.
type ProviderAdapter struct {
	runner port.CommandRunner
}

// Ensure ProviderAdapter implements the DeviceProvider port
var _ port.DeviceProvider = (*ProviderAdapter)(nil)

// NewProviderAdapter creates a new PCI device provider
func NewProviderAdapter(runner port.CommandRunner) *ProviderAdapter {
	return &ProviderAdapter{runner: runner}
}

// Bus returns the PCI bus type
func (p *ProviderAdapter) Bus() types.BusType {
	return types.BusPCI
}

// Enumerate lists the PCI network controllers present on the host.
func (p *ProviderAdapter) Enumerate(ctx context.Context) ([]types.DeviceRecord, error) {
	res, err := p.runner.Run(ctx, "pciconf", "-lv")
	if err != nil {
		return nil, fmt.Errorf("failed to run pciconf: %w", err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("pciconf exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	devices := Parse(res.Stdout)
	logging.WithComponent("discovery").WithField("bus", types.BusPCI).Debugf("Found %d PCI network devices", len(devices))
	return devices, nil
}

// Parse extracts network devices (class 0x02xx) from `pciconf -lv` output.
// Both the vendor=/device= header layout and the older chip= layout are accepted.
func Parse(output string) []types.DeviceRecord {
	var (
		devices []types.DeviceRecord
		current *pciEntry
	)

	flush := func() {
		if current == nil {
			return
		}
		if d, ok := current.record(); ok {
			devices = append(devices, d)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = &pciEntry{tag: strings.TrimSuffix(m[1], ":"), fields: map[string]string{}}
			for _, f := range fieldPattern.FindAllStringSubmatch(m[2], -1) {
				current.fields[strings.ToLower(f[1])] = strings.ToLower(f[2])
			}
			continue
		}

		if current == nil {
			continue
		}
		if m := detailPattern.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "vendor":
				current.vendorName = m[2]
			case "device":
				current.deviceName = m[2]
			}
		}
	}
	flush()

	return devices
}

type pciEntry struct {
	tag        string
	fields     map[string]string
	vendorName string
	deviceName string
}

func (e *pciEntry) record() (types.DeviceRecord, bool) {
	class := e.fields["class"]
	if !strings.HasPrefix(class, NetworkClassPrefix) || len(class) < 6 {
		return types.DeviceRecord{}, false
	}

	vendor, device := e.fields["vendor"], e.fields["device"]
	subsystem := e.fields["subdevice"]

	// chip=0xDDDDVVVV card=0xSSSSVVVV
	if chip := e.fields["chip"]; vendor == "" && len(chip) == 10 {
		device, vendor = "0x"+chip[2:6], "0x"+chip[6:10]
	}
	if card := e.fields["card"]; subsystem == "" && len(card) == 10 {
		subsystem = "0x" + card[2:6]
	}
	if vendor == "" || device == "" {
		return types.DeviceRecord{}, false
	}

	description := strings.TrimSpace(strings.Join([]string{e.vendorName, e.deviceName}, " "))

	return types.DeviceRecord{
		Bus:         types.BusPCI,
		VendorID:    types.NormalizeID(pad16(vendor)),
		ProductID:   types.NormalizeID(pad16(device)),
		SubsystemID: types.NormalizeID(subsystemID(subsystem)),
		Class:       class[:6],
		Description: description,
		Tag:         e.tag,
	}, true
}

// pad16 renders a 16-bit ID with four hex digits.
func pad16(id string) string {
	hex := strings.TrimPrefix(id, "0x")
	for len(hex) < 4 {
		hex = "0" + hex
	}
	return "0x" + hex
}

func subsystemID(id string) string {
	if id == "" {
		return ""
	}
	return pad16(id)
}
