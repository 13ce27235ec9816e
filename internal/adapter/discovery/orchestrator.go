// Package discovery runs one NetPilot session: enumerate hardware, resolve
// drivers, optionally load them, and plan or apply the configuration files.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"netpilot/internal/adapter/kld"
	"netpilot/internal/adapter/sysconf"
	"netpilot/internal/pkg/entries"
	"netpilot/internal/pkg/logging"
	"netpilot/internal/pkg/matcher"
	"netpilot/internal/pkg/resolver"
	"netpilot/internal/pkg/rules"
	"netpilot/internal/port"
	"netpilot/internal/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ModuleLoader loads the modules and firmware of a plan into the running system.
type ModuleLoader interface {
	Apply(ctx context.Context, plan *resolver.LoadPlan) (*kld.Report, error)
}

// Options selects what a session does beyond resolving drivers.
type Options struct {
	// Preview computes change sets without writing anything
	Preview bool
	// ConfigureBoot targets loader.conf
	ConfigureBoot bool
	// ConfigureStartup targets rc.conf
	ConfigureStartup bool
	// ForceBackup backs up target files even when nothing changes
	ForceBackup bool
	// LoadDrivers loads planned modules and installs firmware
	LoadDrivers bool
}

// Paths are the two managed files.
type Paths struct {
	LoaderConf string
	RCConf     string
}

// FileMode is what a session does with one file.
type FileMode string

const (
	ModePreview FileMode = "preview"
	ModeApply   FileMode = "apply"
	ModeBackup  FileMode = "backup"
)

// FileResult is the per-file outcome. A failed file has Err set and does
// not affect the other file.
type FileResult struct {
	Target  types.Target
	Path    string
	Mode    FileMode
	Desired []types.ConfigEntry
	Change  *sysconf.ChangeSet
	Err     error
}

// Report is everything a session observed and did.
type Report struct {
	Session   string
	Devices   []types.DeviceRecord
	Discovery []error
	Matches   []matcher.Result
	Plan      *resolver.LoadPlan
	Load      *kld.Report
	Files     []FileResult
	AuditErr  error
}

// Failed reports whether any file failed.
func (r *Report) Failed() bool {
	for _, f := range r.Files {
		if f.Err != nil {
			return true
		}
	}
	return false
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAuditStore records applied changes and resolver decisions.
func WithAuditStore(store port.AuditStore) Option {
	return func(o *Orchestrator) {
		o.audit = store
	}
}

// WithModuleLoader enables driver loading through loader.
func WithModuleLoader(loader ModuleLoader) Option {
	return func(o *Orchestrator) {
		o.loader = loader
	}
}

// WithClock overrides the time source for audit records.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSessionID fixes the session identifier instead of generating one.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) {
		o.session = id
	}
}

// Orchestrator wires providers, the rule database and the transaction manager.
type Orchestrator struct {
	providers  []port.DeviceProvider
	db         *rules.Database
	tx         *sysconf.Manager
	networkMgr port.NetworkManager
	paths      Paths
	timeout    time.Duration

	loader  ModuleLoader
	audit   port.AuditStore
	now     func() time.Time
	session string
}

// NewOrchestrator creates an orchestrator. Providers are enumerated
// concurrently; their devices are joined in provider order.
func NewOrchestrator(providers []port.DeviceProvider, db *rules.Database, tx *sysconf.Manager,
	networkMgr port.NetworkManager, paths Paths, timeout time.Duration, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers:  providers,
		db:         db,
		tx:         tx,
		networkMgr: networkMgr,
		paths:      paths,
		timeout:    timeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.session == "" {
		o.session = uuid.NewString()
	}
	return o
}

// Run executes one session. Matching and resolution errors abort the
// session; discovery and per-file errors are collected in the report.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	logger := logging.WithComponent("discovery").WithField("session", o.session)
	report := &Report{Session: o.session}

	report.Devices, report.Discovery = o.discover(ctx)
	logger.WithField("devices", len(report.Devices)).Info("Hardware discovery complete")

	matches, err := matcher.MatchAll(report.Devices, o.db)
	if err != nil {
		return report, err
	}
	report.Matches = matches

	plan, err := resolver.Resolve(matches, o.db)
	if err != nil {
		return report, err
	}
	report.Plan = plan
	logger.WithFields(logrus.Fields{
		"modules":   len(plan.Modules),
		"firmware":  len(plan.Firmware),
		"unmatched": len(plan.Unmatched),
	}).Info("Resolved load plan")

	if opts.LoadDrivers && !opts.Preview {
		if o.loader == nil {
			return report, fmt.Errorf("driver loading requested but no module loader is configured")
		}
		if report.Load, err = o.loader.Apply(ctx, plan); err != nil {
			return report, fmt.Errorf("failed to load drivers: %w", err)
		}
	}

	for _, target := range []types.Target{types.TargetLoaderConf, types.TargetRCConf} {
		mode, ok := fileMode(target, opts)
		if !ok {
			continue
		}
		report.Files = append(report.Files, o.processFile(target, mode, plan, opts))
	}

	if !opts.Preview {
		report.AuditErr = o.record(ctx, report)
	}

	return report, nil
}

// discover enumerates every provider concurrently under the discovery
// timeout. A failing provider yields a DiscoveryError and no devices.
func (o *Orchestrator) discover(ctx context.Context) ([]types.DeviceRecord, []error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	found := make([][]types.DeviceRecord, len(o.providers))
	errs := make([]error, len(o.providers))

	var wg sync.WaitGroup
	for i, p := range o.providers {
		wg.Add(1)
		go func(i int, p port.DeviceProvider) {
			defer wg.Done()
			devices, err := p.Enumerate(ctx)
			if err != nil {
				errs[i] = &types.DiscoveryError{Bus: p.Bus(), Err: err}
				logging.WithComponent("discovery").WithField("bus", p.Bus()).WithError(err).Warn("Device enumeration failed")
				return
			}
			found[i] = devices
		}(i, p)
	}
	wg.Wait()

	var (
		devices []types.DeviceRecord
		failed  []error
	)
	for i := range o.providers {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		devices = append(devices, found[i]...)
	}
	return devices, failed
}

// fileMode decides what happens to target. Preview without explicit targets
// previews both files; a forced backup without targets backs up both.
func fileMode(target types.Target, opts Options) (FileMode, bool) {
	selected := (target == types.TargetLoaderConf && opts.ConfigureBoot) ||
		(target == types.TargetRCConf && opts.ConfigureStartup)
	anySelected := opts.ConfigureBoot || opts.ConfigureStartup

	switch {
	case opts.Preview && (selected || !anySelected):
		return ModePreview, true
	case opts.Preview:
		return "", false
	case selected:
		return ModeApply, true
	case opts.ForceBackup && !anySelected:
		return ModeBackup, true
	default:
		return "", false
	}
}

func (o *Orchestrator) processFile(target types.Target, mode FileMode, plan *resolver.LoadPlan, opts Options) FileResult {
	path := o.pathFor(target)
	res := FileResult{Target: target, Path: path, Mode: mode}
	logger := logging.WithComponent("discovery").WithField("file", path)

	desired, err := o.desiredEntries(target, plan)
	if err != nil {
		res.Err = err
		logger.WithError(err).Error("Failed to compute desired entries")
		return res
	}
	res.Desired = desired

	cs, err := o.tx.Plan(target, path, desired)
	if err != nil {
		res.Err = err
		logger.WithError(err).Error("Failed to plan changes")
		return res
	}

	switch mode {
	case ModePreview:
		res.Change = cs
		return res
	case ModeBackup:
		cs.Additions = nil
	}

	applied, err := o.tx.Commit(cs, sysconf.ApplyOptions{ForceBackup: opts.ForceBackup})
	if err != nil {
		res.Err = err
		res.Change = cs
		logger.WithError(err).Error("Failed to apply changes")
		return res
	}
	res.Change = applied
	return res
}

func (o *Orchestrator) desiredEntries(target types.Target, plan *resolver.LoadPlan) ([]types.ConfigEntry, error) {
	if target == types.TargetLoaderConf {
		return entries.Loader(plan), nil
	}

	links, err := o.networkMgr.ListLinks()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.Attrs().Name)
	}

	current, err := o.tx.Document(o.paths.RCConf)
	if err != nil {
		return nil, err
	}
	return entries.RC(plan, names, current.Lookup), nil
}

func (o *Orchestrator) pathFor(target types.Target) string {
	if target == types.TargetLoaderConf {
		return o.paths.LoaderConf
	}
	return o.paths.RCConf
}

// record journals backups, appended entries and resolver decisions.
func (o *Orchestrator) record(ctx context.Context, report *Report) error {
	if o.audit == nil {
		return nil
	}

	now := o.now()
	var records []types.AuditRecord
	for _, f := range report.Files {
		if f.Err != nil || f.Change == nil || f.Mode == ModePreview {
			continue
		}
		if f.Change.BackupPath != "" {
			records = append(records, types.AuditRecord{
				Session: o.session,
				Time:    now,
				Action:  types.AuditBackup,
				File:    f.Path,
				Backup:  f.Change.BackupPath,
			})
		}
		for _, e := range f.Change.Additions {
			records = append(records, types.AuditRecord{
				Session: o.session,
				Time:    now,
				Action:  types.AuditAdded,
				File:    f.Path,
				Key:     e.Key,
				Value:   e.Value,
				Backup:  f.Change.BackupPath,
				Detail:  e.Comment,
			})
		}
	}
	if report.Plan != nil {
		for _, d := range report.Plan.Decisions {
			records = append(records, types.AuditRecord{
				Session: o.session,
				Time:    now,
				Action:  types.AuditDecision,
				Key:     d.Dropped,
				Value:   d.Kept,
				Detail:  fmt.Sprintf("%s dropped for %s (%s vs %s): %s", d.Dropped, d.Kept, d.DroppedDevice, d.KeptDevice, d.Reason),
			})
		}
	}

	if len(records) == 0 {
		return nil
	}
	if err := o.audit.Record(ctx, records); err != nil {
		logging.WithComponent("discovery").WithError(err).Warn("Failed to write audit journal")
		return fmt.Errorf("failed to write audit journal: %w", err)
	}
	return nil
}
