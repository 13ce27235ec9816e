// Package kld loads planned kernel modules and installs their firmware packages.
package kld

import (
	"context"
	"fmt"
	"strings"
	"time"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/pkg/resolver"
	"netpilot/internal/port"
)

// Status is the outcome of one module or firmware step.
type Status string

const (
	StatusPresent   Status = "present"
	StatusLoaded    Status = "loaded"
	StatusInstalled Status = "installed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome reports one module or firmware package.
type Outcome struct {
	Name   string
	Status Status
	Err    error
}

// OK reports whether the step left the item available.
func (o Outcome) OK() bool {
	return o.Status == StatusPresent || o.Status == StatusLoaded || o.Status == StatusInstalled
}

// Report lists per-item outcomes in plan order.
type Report struct {
	Firmware []Outcome
	Modules  []Outcome
}

// Failed returns the number of failed or skipped items.
func (r *Report) Failed() int {
	n := 0
	for _, o := range append(append([]Outcome{}, r.Firmware...), r.Modules...) {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Option configures an Applier.
type Option func(*Applier)

// WithSettleDelay sets the pause after each successful kldload, giving the
// driver time to attach and create its interfaces.
func WithSettleDelay(d time.Duration) Option {
	return func(a *Applier) {
		a.settle = d
	}
}

// Applier brings the running kernel in line with a LoadPlan.
type Applier struct {
	runner      port.CommandRunner
	loadTimeout time.Duration
	settle      time.Duration
}

// NewApplier creates an applier bounding each kldload by loadTimeout.
func NewApplier(runner port.CommandRunner, loadTimeout time.Duration, opts ...Option) *Applier {
	a := &Applier{
		runner:      runner,
		loadTimeout: loadTimeout,
		settle:      time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply installs firmware packages, then loads modules in plan order. A
// module whose dependency failed is skipped. Failures are reported per item;
// the returned error is set only when ctx is done.
func (a *Applier) Apply(ctx context.Context, plan *resolver.LoadPlan) (*Report, error) {
	report := &Report{}

	for _, pkg := range plan.Firmware {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Firmware = append(report.Firmware, a.installFirmware(ctx, pkg))
	}

	failed := make(map[string]bool)
	for _, module := range plan.Modules {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if dep := firstFailed(plan.Requires[module], failed); dep != "" {
			failed[module] = true
			report.Modules = append(report.Modules, Outcome{
				Name:   module,
				Status: StatusSkipped,
				Err:    fmt.Errorf("dependency %s is not loaded", dep),
			})
			continue
		}

		out := a.loadModule(ctx, module)
		if !out.OK() {
			failed[module] = true
		}
		report.Modules = append(report.Modules, out)
	}

	return report, nil
}

func (a *Applier) loadModule(ctx context.Context, module string) Outcome {
	logger := logging.WithComponent("kld").WithField("module", module)

	if a.isLoaded(ctx, module) {
		logger.Debug("Module already loaded")
		return Outcome{Name: module, Status: StatusPresent}
	}

	loadCtx, cancel := context.WithTimeout(ctx, a.loadTimeout)
	defer cancel()

	res, err := a.runner.RunUncached(loadCtx, "kldload", module)
	if err != nil {
		logger.WithError(err).Warn("Failed to load module")
		return Outcome{Name: module, Status: StatusFailed, Err: err}
	}
	if !res.OK() {
		err := fmt.Errorf("kldload %s: %s", module, strings.TrimSpace(res.Stderr))
		logger.WithError(err).Warn("Failed to load module")
		return Outcome{Name: module, Status: StatusFailed, Err: err}
	}

	logger.Info("Loaded module")
	if a.settle > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(a.settle):
		}
	}
	return Outcome{Name: module, Status: StatusLoaded}
}

func (a *Applier) isLoaded(ctx context.Context, module string) bool {
	res, err := a.runner.RunUncached(ctx, "kldstat", "-n", module)
	return err == nil && res.OK()
}

func (a *Applier) installFirmware(ctx context.Context, pkg string) Outcome {
	logger := logging.WithComponent("kld").WithField("package", pkg)

	res, err := a.runner.RunUncached(ctx, "pkg", "info", "-e", pkg)
	if err == nil && res.OK() {
		logger.Debug("Firmware already installed")
		return Outcome{Name: pkg, Status: StatusPresent}
	}

	res, err = a.runner.RunUncached(ctx, "pkg", "install", "-y", pkg)
	if err != nil {
		logger.WithError(err).Warn("Failed to install firmware")
		return Outcome{Name: pkg, Status: StatusFailed, Err: err}
	}
	if !res.OK() {
		err := fmt.Errorf("pkg install %s: %s", pkg, strings.TrimSpace(res.Stderr))
		logger.WithError(err).Warn("Failed to install firmware")
		return Outcome{Name: pkg, Status: StatusFailed, Err: err}
	}

	logger.Info("Installed firmware")
	return Outcome{Name: pkg, Status: StatusInstalled}
}

func firstFailed(deps []string, failed map[string]bool) string {
	for _, d := range deps {
		if failed[d] {
			return d
		}
	}
	return ""
}
