package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"netpilot/internal/adapter/discovery"
	"netpilot/internal/adapter/kld"
)

func writeReport(w io.Writer, r *discovery.Report) {
	fmt.Fprintf(w, "Session %s\n\n", r.Session)

	fmt.Fprintf(w, "Devices (%d)\n", len(r.Devices))
	for _, m := range r.Matches {
		driver := "no driver"
		if m.Matched() {
			driver = m.Driver()
			if m.Firmware != "" {
				driver += " + " + m.Firmware
			}
		}
		fmt.Fprintf(w, "  %-16s %-40s %s\n", m.Device.ID(), truncate(m.Device.Description, 40), driver)
	}
	for _, err := range r.Discovery {
		fmt.Fprintf(w, "  ! %v\n", err)
	}

	if p := r.Plan; p != nil {
		fmt.Fprintf(w, "\nLoad plan\n")
		fmt.Fprintf(w, "  modules:  %s\n", joinOrNone(p.Modules))
		fmt.Fprintf(w, "  firmware: %s\n", joinOrNone(p.Firmware))
		for _, d := range p.Decisions {
			fmt.Fprintf(w, "  dropped %s for %s: %s\n", d.Dropped, d.Kept, d.Reason)
		}
	}

	if r.Load != nil {
		fmt.Fprintf(w, "\nDriver loading\n")
		writeOutcomes(w, "firmware", r.Load.Firmware)
		writeOutcomes(w, "module", r.Load.Modules)
	}

	for _, f := range r.Files {
		fmt.Fprintf(w, "\n%s (%s)\n", f.Path, f.Mode)
		if f.Err != nil {
			fmt.Fprintf(w, "  ! %v\n", f.Err)
			continue
		}
		cs := f.Change
		fmt.Fprintf(w, "  %d desired, %d already present, %d to add\n", cs.Desired, cs.Satisfied, cs.Added())
		for _, e := range cs.Additions {
			fmt.Fprintf(w, "  + %s\n", e.Line())
		}
		if cs.BackupPath != "" {
			fmt.Fprintf(w, "  backup: %s\n", cs.BackupPath)
		}
	}

	if r.AuditErr != nil {
		fmt.Fprintf(w, "\n! %v\n", r.AuditErr)
	}
}

func writeOutcomes(w io.Writer, kind string, outcomes []kld.Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "  %-8s %-20s %s: %v\n", kind, o.Name, o.Status, o.Err)
			continue
		}
		fmt.Fprintf(w, "  %-8s %-20s %s\n", kind, o.Name, o.Status)
	}
}

type jsonEntry struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

type jsonFile struct {
	Path      string      `json:"path"`
	Mode      string      `json:"mode"`
	Desired   int         `json:"desired"`
	Satisfied int         `json:"satisfied"`
	Additions []jsonEntry `json:"additions"`
	Backup    string      `json:"backup,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type jsonDevice struct {
	ID          string `json:"id"`
	Bus         string `json:"bus"`
	Class       string `json:"class,omitempty"`
	Description string `json:"description,omitempty"`
	Driver      string `json:"driver,omitempty"`
	Firmware    string `json:"firmware,omitempty"`
}

type jsonReport struct {
	Session   string       `json:"session"`
	Devices   []jsonDevice `json:"devices"`
	Errors    []string     `json:"errors,omitempty"`
	Modules   []string     `json:"modules"`
	Firmware  []string     `json:"firmware"`
	Decisions []string     `json:"decisions,omitempty"`
	Files     []jsonFile   `json:"files,omitempty"`
}

func writeReportJSON(w io.Writer, r *discovery.Report) error {
	out := jsonReport{Session: r.Session}
	for _, m := range r.Matches {
		d := jsonDevice{
			ID:          m.Device.ID(),
			Bus:         m.Device.Bus.String(),
			Class:       m.Device.Class,
			Description: m.Device.Description,
			Driver:      m.Driver(),
			Firmware:    m.Firmware,
		}
		out.Devices = append(out.Devices, d)
	}
	for _, err := range r.Discovery {
		out.Errors = append(out.Errors, err.Error())
	}
	if r.AuditErr != nil {
		out.Errors = append(out.Errors, r.AuditErr.Error())
	}
	if p := r.Plan; p != nil {
		out.Modules = p.Modules
		out.Firmware = p.Firmware
		for _, d := range p.Decisions {
			out.Decisions = append(out.Decisions, fmt.Sprintf("dropped %s for %s: %s", d.Dropped, d.Kept, d.Reason))
		}
	}
	for _, f := range r.Files {
		jf := jsonFile{Path: f.Path, Mode: string(f.Mode), Additions: []jsonEntry{}}
		if f.Err != nil {
			jf.Error = f.Err.Error()
		} else if cs := f.Change; cs != nil {
			jf.Desired, jf.Satisfied, jf.Backup = cs.Desired, cs.Satisfied, cs.BackupPath
			for _, e := range cs.Additions {
				jf.Additions = append(jf.Additions, jsonEntry{Key: e.Key, Value: e.Value, Comment: e.Comment})
			}
		}
		out.Files = append(out.Files, jf)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
