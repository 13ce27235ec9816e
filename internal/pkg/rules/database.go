package rules

import (
	"fmt"
	"slices"
	"sort"

	"netpilot/internal/types"
)

// Database is an immutable, ordered collection of rules. It is built once
// and passed explicitly to the matcher and resolver; it is safe for
// concurrent use because nothing mutates it after New returns.
type Database struct {
	rules      []Rule
	blacklist  map[string]struct{}
	moduleDeps map[string][]string
	conflicts  map[string]map[string]struct{}
}

// Option configures a Database at construction time.
type Option func(*Database)

// WithBlacklist excludes drivers from ever being selected.
func WithBlacklist(drivers ...string) Option {
	return func(db *Database) {
		for _, d := range drivers {
			db.blacklist[d] = struct{}{}
		}
	}
}

// WithModuleDependencies declares dependencies between kernel modules that
// hold regardless of which rule selected them (e.g. lindebugfs needs linuxkpi).
func WithModuleDependencies(deps map[string][]string) Option {
	return func(db *Database) {
		for module, list := range deps {
			db.moduleDeps[module] = slices.Clone(list)
		}
	}
}

// New validates the rules and assigns registration indexes in slice order.
func New(rules []Rule, opts ...Option) (*Database, error) {
	db := &Database{
		rules:      make([]Rule, 0, len(rules)),
		blacklist:  make(map[string]struct{}),
		moduleDeps: make(map[string][]string),
		conflicts:  make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}

	for i, r := range rules {
		if err := validateRule(i, r); err != nil {
			return nil, err
		}
		c := r.clone()
		c.Index = i
		db.rules = append(db.rules, c)

		for _, other := range c.Conflicts {
			db.addConflict(c.Driver, other)
			db.addConflict(other, c.Driver)
		}
	}

	return db, nil
}

func validateRule(i int, r Rule) error {
	if r.Driver == "" {
		return fmt.Errorf("rule %d: driver is required", i)
	}
	switch r.Bus {
	case types.BusPCI, types.BusUSB:
	default:
		return fmt.Errorf("rule %d (%s): unknown bus %v", i, r.Driver, r.Bus)
	}
	switch r.Category {
	case types.CategoryEthernet, types.CategoryWiFi:
	default:
		return fmt.Errorf("rule %d (%s): unknown category %v", i, r.Driver, r.Category)
	}
	if len(r.Products) > 0 && len(r.Vendors) == 0 {
		return fmt.Errorf("rule %d (%s): product IDs require a vendor", i, r.Driver)
	}
	if len(r.Vendors) == 0 && r.Class == "" {
		return fmt.Errorf("rule %d (%s): generic rule must name a device class", i, r.Driver)
	}
	if slices.Contains(r.Conflicts, r.Driver) {
		return fmt.Errorf("rule %d (%s): driver cannot conflict with itself", i, r.Driver)
	}
	return nil
}

func (db *Database) addConflict(a, b string) {
	set, ok := db.conflicts[a]
	if !ok {
		set = make(map[string]struct{})
		db.conflicts[a] = set
	}
	set[b] = struct{}{}
}

// Len returns the number of registered rules.
func (db *Database) Len() int {
	return len(db.rules)
}

// Rules returns a copy of all rules in registration order.
func (db *Database) Rules() []Rule {
	out := make([]Rule, len(db.rules))
	for i, r := range db.rules {
		out[i] = r.clone()
	}
	return out
}

// Candidates returns every non-blacklisted rule accepting the device, in
// registration order.
func (db *Database) Candidates(d types.DeviceRecord) []Rule {
	var out []Rule
	for _, r := range db.rules {
		if db.Blacklisted(r.Driver) {
			continue
		}
		if r.Matches(d) {
			out = append(out, r)
		}
	}
	return out
}

// Blacklisted reports whether the driver must never be selected.
func (db *Database) Blacklisted(driver string) bool {
	_, ok := db.blacklist[driver]
	return ok
}

// ModuleDependencies returns the modules the given module requires.
func (db *Database) ModuleDependencies(module string) []string {
	return slices.Clone(db.moduleDeps[module])
}

// Conflicting reports whether two drivers are declared mutually exclusive.
func (db *Database) Conflicting(a, b string) bool {
	if a == b {
		return false
	}
	_, ok := db.conflicts[a][b]
	return ok
}

// Coverage lists supported hardware grouped by bus and category.
type Coverage struct {
	EthernetPCI []string `json:"ethernet_pci" yaml:"ethernet_pci"`
	WiFiPCI     []string `json:"wifi_pci" yaml:"wifi_pci"`
	EthernetUSB []string `json:"ethernet_usb" yaml:"ethernet_usb"`
	WiFiUSB     []string `json:"wifi_usb" yaml:"wifi_usb"`
	Firmware    []string `json:"firmware" yaml:"firmware"`
}

// Coverage summarizes the database. Each group is sorted.
func (db *Database) Coverage() Coverage {
	var cov Coverage
	firmware := make(map[string]struct{})

	for _, r := range db.rules {
		if db.Blacklisted(r.Driver) {
			continue
		}
		line := fmt.Sprintf("%s: %s", r.Driver, r.Description)
		switch {
		case r.Bus == types.BusPCI && r.Category == types.CategoryEthernet:
			cov.EthernetPCI = append(cov.EthernetPCI, line)
		case r.Bus == types.BusPCI && r.Category == types.CategoryWiFi:
			cov.WiFiPCI = append(cov.WiFiPCI, line)
		case r.Bus == types.BusUSB && r.Category == types.CategoryEthernet:
			cov.EthernetUSB = append(cov.EthernetUSB, line)
		case r.Bus == types.BusUSB && r.Category == types.CategoryWiFi:
			cov.WiFiUSB = append(cov.WiFiUSB, line)
		}

		if r.Firmware != "" {
			firmware[r.Firmware] = struct{}{}
		}
		for _, fw := range r.FirmwareByProduct {
			firmware[fw] = struct{}{}
		}
	}

	for fw := range firmware {
		cov.Firmware = append(cov.Firmware, fw)
	}
	sort.Strings(cov.EthernetPCI)
	sort.Strings(cov.WiFiPCI)
	sort.Strings(cov.EthernetUSB)
	sort.Strings(cov.WiFiUSB)
	sort.Strings(cov.Firmware)
	return cov
}
