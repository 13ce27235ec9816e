// Package usb enumerates USB network devices from `usbconfig dump_all_desc` output.
package usb

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"
	"netpilot/internal/types"
)

// NetworkClass is the USB communications (CDC) class code
const NetworkClass = "0x02"

// knownVendors make USB network adapters that report a vendor-specific class
var knownVendors = map[string]string{
	"0x0b95": "ASIX",
	"0x0bda": "Realtek",
	"0x148f": "Ralink",
	"0x0df6": "Sitecom",
	"0x0789": "Logitec",
	"0x083a": "Accton",
	"0x2019": "Planex",
}

var (
	// ugen0.2: <Realtek 802.11n NIC> at usbus0, cfg=0 md=HOST spd=HIGH (480Mbps) pwr=ON (500mA)
	headerPattern = regexp.MustCompile(`^(ugen\d+\.\d+):\s*(?:<([^>]*)>)?`)
	fieldPattern  = regexp.MustCompile(`^\s*(idVendor|idProduct|bDeviceClass|bInterfaceClass)\s*=\s*0x([0-9a-fA-F]+)`)
)

// ProviderAdapter is an adapter that implements the DeviceProvider port for the USB bus.
type ProviderAdapter struct {
	runner port.CommandRunner
}

// Ensure ProviderAdapter implements the DeviceProvider port
var _ port.DeviceProvider = (*ProviderAdapter)(nil)

// NewProviderAdapter creates a new USB device provider
func NewProviderAdapter(runner port.CommandRunner) *ProviderAdapter {
	return &ProviderAdapter{runner: runner}
}

// Bus returns the USB bus type
func (p *ProviderAdapter) Bus() types.BusType {
	return types.BusUSB
}

// Enumerate lists the USB network adapters attached to the host.
func (p *ProviderAdapter) Enumerate(ctx context.Context) ([]types.DeviceRecord, error) {
	res, err := p.runner.Run(ctx, "usbconfig", "dump_all_desc")
	if err != nil {
		return nil, fmt.Errorf("failed to run usbconfig: %w", err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("usbconfig exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	devices := Parse(res.Stdout)
	logging.WithComponent("discovery").WithField("bus", types.BusUSB).Debugf("Found %d USB network devices", len(devices))
	return devices, nil
}

// Parse extracts network devices from `usbconfig dump_all_desc` output. A
// device qualifies when its device class or any interface class is CDC, or
// when its vendor is a known maker of vendor-specific network adapters.
func Parse(output string) []types.DeviceRecord {
	var (
		devices []types.DeviceRecord
		current *usbEntry
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
			current = &usbEntry{tag: m[1], description: strings.TrimSpace(m[2])}
			continue
		}
		if current == nil {
			continue
		}

		m := fieldPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value, err := strconv.ParseUint(m[2], 16, 16)
		if err != nil {
			continue
		}
		switch m[1] {
		case "idVendor":
			current.vendor = fmt.Sprintf("0x%04x", value)
		case "idProduct":
			current.product = fmt.Sprintf("0x%04x", value)
		case "bDeviceClass":
			current.deviceClass = fmt.Sprintf("0x%02x", value)
		case "bInterfaceClass":
			current.interfaceClasses = append(current.interfaceClasses, fmt.Sprintf("0x%02x", value))
		}
	}
	flush()

	return devices
}

type usbEntry struct {
	tag              string
	description      string
	vendor           string
	product          string
	deviceClass      string
	interfaceClasses []string
}

func (e *usbEntry) record() (types.DeviceRecord, bool) {
	if e.vendor == "" || e.product == "" {
		return types.DeviceRecord{}, false
	}

	class, network := e.networkClass()
	if !network {
		if _, known := knownVendors[e.vendor]; !known {
			return types.DeviceRecord{}, false
		}
	}

	return types.DeviceRecord{
		Bus:         types.BusUSB,
		VendorID:    e.vendor,
		ProductID:   e.product,
		Class:       class,
		Description: e.description,
		Tag:         e.tag,
	}, true
}

// networkClass returns the class to record and whether it is CDC. Without a
// CDC match the device class is reported, or the first interface class when
// the device defers to its interfaces.
func (e *usbEntry) networkClass() (string, bool) {
	if e.deviceClass == NetworkClass {
		return NetworkClass, true
	}
	for _, c := range e.interfaceClasses {
		if c == NetworkClass {
			return NetworkClass, true
		}
	}
	if (e.deviceClass == "" || e.deviceClass == "0x00") && len(e.interfaceClasses) > 0 {
		return e.interfaceClasses[0], false
	}
	return e.deviceClass, false
}
