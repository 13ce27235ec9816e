package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMatch reports that no rule matched a device. It is informational:
// unmatched devices are reported but never abort a run.
var ErrNoMatch = errors.New("no matching driver rule")

// DiscoveryError reports a failed bus enumeration. It only removes that
// bus's devices from the run.
type DiscoveryError struct {
	Bus BusType
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s discovery failed: %v", e.Bus, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// DependencyCycleError reports a cycle in the module dependency graph.
// Cycle lists the modules along the loop, first element repeated at the end.
type DependencyCycleError struct {
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// ConflictError reports two mutually exclusive drivers of equal specificity.
type ConflictError struct {
	Device  string // device ID or IDs involved
	DriverA string
	DriverB string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("driver conflict on %s: %s and %s are mutually exclusive with equal specificity", e.Device, e.DriverA, e.DriverB)
}

// ConfigWriteError reports a failed transaction on one target file. The
// original file is left untouched.
type ConfigWriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }

// BackupError reports a failed backup. It always aborts before the original
// file is modified.
type BackupError struct {
	Path   string
	Backup string
	Err    error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("failed to back up %s to %s: %v", e.Path, e.Backup, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }
