// Package resolver turns matched devices into an ordered kernel module load plan.
package resolver

import (
	"fmt"
	"slices"

	"netpilot/internal/pkg/matcher"
	"netpilot/internal/pkg/rules"
	"netpilot/internal/types"
)

// Entry is a top-level driver selected for one or more devices, with its
// direct dependencies (not transitively expanded).
type Entry struct {
	Driver       string
	Bus          types.BusType
	Category     types.Category
	Specificity  types.Specificity
	Dependencies []string
	Firmware     []string
	Devices      []string
}

// Decision records a driver dropped in favour of a higher-ranked,
// mutually exclusive driver.
type Decision struct {
	Kept          string
	Dropped       string
	KeptDevice    string
	DroppedDevice string
	Reason        string
}

// LoadPlan is the ordered, deduplicated module list. Every dependency of a
// module appears before it, exactly once.
type LoadPlan struct {
	Modules   []string
	Entries   []Entry
	Firmware  []string
	Decisions []Decision
	Unmatched []types.DeviceRecord
	// Requires maps each module to its direct dependencies
	Requires map[string][]string
}

// Contains reports whether the module is part of the plan.
func (p *LoadPlan) Contains(module string) bool {
	return slices.Contains(p.Modules, module)
}

// Drivers returns the top-level drivers in plan order.
func (p *LoadPlan) Drivers() []string {
	out := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.Driver)
	}
	return out
}

// Resolve builds a LoadPlan from match results.
//
// Top-level drivers are visited Ethernet first, then WiFi, each in matched
// order. Dependencies are placed immediately before their first dependent.
// Mutually exclusive drivers in the same bus and category are settled by
// specificity; a tie is a ConflictError. A dependency cycle is a
// DependencyCycleError.
func Resolve(results []matcher.Result, db *rules.Database) (*LoadPlan, error) {
	plan := &LoadPlan{}

	entries := collectEntries(results, plan)

	alive, err := settleConflicts(entries, db, plan)
	if err != nil {
		return nil, err
	}

	ordered := make([]*Entry, 0, len(alive))
	for _, cat := range []types.Category{types.CategoryEthernet, types.CategoryWiFi} {
		for _, e := range alive {
			if e.Category == cat {
				ordered = append(ordered, e)
			}
		}
	}

	g := &graph{
		db:       db,
		entries:  make(map[string]*Entry, len(ordered)),
		state:    make(map[string]visitState),
		requires: make(map[string][]string),
	}
	for _, e := range ordered {
		g.entries[e.Driver] = e
	}
	for _, e := range ordered {
		if err := g.visit(e.Driver); err != nil {
			return nil, err
		}
	}
	plan.Modules = g.order
	plan.Requires = g.requires

	seenFW := make(map[string]struct{})
	for _, e := range ordered {
		plan.Entries = append(plan.Entries, *e)
		for _, fw := range e.Firmware {
			if _, ok := seenFW[fw]; ok {
				continue
			}
			seenFW[fw] = struct{}{}
			plan.Firmware = append(plan.Firmware, fw)
		}
	}

	return plan, nil
}

// collectEntries groups matched results by driver, preserving first-seen
// order, and records unmatched devices on the plan.
func collectEntries(results []matcher.Result, plan *LoadPlan) []*Entry {
	var entries []*Entry
	byDriver := make(map[string]*Entry)

	for _, res := range results {
		if !res.Matched() {
			plan.Unmatched = append(plan.Unmatched, res.Device)
			continue
		}
		rule := res.Rule
		e, ok := byDriver[rule.Driver]
		if !ok {
			e = &Entry{
				Driver:      rule.Driver,
				Bus:         rule.Bus,
				Category:    rule.Category,
				Specificity: rule.Specificity(),
			}
			byDriver[rule.Driver] = e
			entries = append(entries, e)
		}
		if s := rule.Specificity(); s > e.Specificity {
			e.Specificity = s
		}
		e.Dependencies = appendUnique(e.Dependencies, rule.Dependencies...)
		if res.Firmware != "" {
			e.Firmware = appendUnique(e.Firmware, res.Firmware)
		}
		e.Devices = append(e.Devices, res.Device.ID())
	}

	return entries
}

func settleConflicts(entries []*Entry, db *rules.Database, plan *LoadPlan) ([]*Entry, error) {
	dropped := make(map[string]bool)

	for i, a := range entries {
		for _, b := range entries[i+1:] {
			if dropped[a.Driver] || dropped[b.Driver] {
				continue
			}
			if a.Bus != b.Bus || a.Category != b.Category || !db.Conflicting(a.Driver, b.Driver) {
				continue
			}

			switch {
			case a.Specificity == b.Specificity:
				return nil, &types.ConflictError{
					Device:  fmt.Sprintf("%s, %s", a.Devices[0], b.Devices[0]),
					DriverA: a.Driver,
					DriverB: b.Driver,
				}
			case a.Specificity > b.Specificity:
				dropped[b.Driver] = true
				plan.Decisions = append(plan.Decisions, decide(a, b))
			default:
				dropped[a.Driver] = true
				plan.Decisions = append(plan.Decisions, decide(b, a))
			}
		}
	}

	alive := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if !dropped[e.Driver] {
			alive = append(alive, e)
		}
	}
	return alive, nil
}

func decide(kept, dropped *Entry) Decision {
	return Decision{
		Kept:          kept.Driver,
		Dropped:       dropped.Driver,
		KeptDevice:    kept.Devices[0],
		DroppedDevice: dropped.Devices[0],
		Reason:        fmt.Sprintf("%s match outranks %s match", kept.Specificity, dropped.Specificity),
	}
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	done
)

type graph struct {
	db       *rules.Database
	entries  map[string]*Entry
	state    map[string]visitState
	requires map[string][]string
	stack    []string
	order    []string
}

// visit appends module after all of its dependencies (depth-first,
// dependencies in declaration order).
func (g *graph) visit(module string) error {
	switch g.state[module] {
	case done:
		return nil
	case visiting:
		start := slices.Index(g.stack, module)
		cycle := append(slices.Clone(g.stack[start:]), module)
		return &types.DependencyCycleError{Cycle: cycle}
	}

	g.state[module] = visiting
	g.stack = append(g.stack, module)

	deps := g.dependencies(module)
	if len(deps) > 0 {
		g.requires[module] = deps
	}
	for _, dep := range deps {
		if err := g.visit(dep); err != nil {
			return err
		}
	}

	g.stack = g.stack[:len(g.stack)-1]
	g.state[module] = done
	g.order = append(g.order, module)
	return nil
}

func (g *graph) dependencies(module string) []string {
	var deps []string
	if e, ok := g.entries[module]; ok {
		deps = appendUnique(deps, e.Dependencies...)
	}
	return appendUnique(deps, g.db.ModuleDependencies(module)...)
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}
