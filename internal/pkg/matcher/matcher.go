// Package matcher selects the driver rule for a discovered device.
package matcher

import (
	"netpilot/internal/pkg/rules"
	"netpilot/internal/types"
)

// Result is the outcome of matching one device. Rule is nil when no rule
// accepted the device.
type Result struct {
	Device   types.DeviceRecord
	Rule     *rules.Rule
	Firmware string
}

// Matched reports whether a rule was selected.
func (r Result) Matched() bool {
	return r.Rule != nil
}

// Driver returns the selected driver, or "" when unmatched.
func (r Result) Driver() string {
	if r.Rule == nil {
		return ""
	}
	return r.Rule.Driver
}

// Err returns types.ErrNoMatch for unmatched results and nil otherwise.
func (r Result) Err() error {
	if r.Rule == nil {
		return types.ErrNoMatch
	}
	return nil
}

// Match picks the best rule for the device. The highest specificity wins;
// among equal specificity the lowest registration index wins. The result
// depends only on the device and the database.
//
// If another candidate of the winning specificity names a driver declared
// mutually exclusive with the winner, Match returns a ConflictError.
func Match(d types.DeviceRecord, db *rules.Database) (Result, error) {
	res := Result{Device: d}

	candidates := db.Candidates(d)
	if len(candidates) == 0 {
		return res, nil
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if outranks(candidates[i], candidates[best]) {
			best = i
		}
	}
	winner := candidates[best]

	for i, c := range candidates {
		if i == best || c.Specificity() != winner.Specificity() {
			continue
		}
		if db.Conflicting(winner.Driver, c.Driver) {
			return res, &types.ConflictError{
				Device:  d.ID(),
				DriverA: winner.Driver,
				DriverB: c.Driver,
			}
		}
	}

	res.Rule = &winner
	res.Firmware = winner.FirmwareFor(d)
	return res, nil
}

// MatchAll matches every device in input order. It stops at the first
// conflict.
func MatchAll(devices []types.DeviceRecord, db *rules.Database) ([]Result, error) {
	results := make([]Result, 0, len(devices))
	for _, d := range devices {
		res, err := Match(d, db)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// outranks reports whether a beats b. Candidates arrive in registration
// order, so the index comparison only matters for callers passing
// arbitrary slices.
func outranks(a, b rules.Rule) bool {
	if a.Specificity() != b.Specificity() {
		return a.Specificity() > b.Specificity()
	}
	return a.Index < b.Index
}
