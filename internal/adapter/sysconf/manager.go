// Package sysconf manages transactional, backed-up updates of the system
// configuration files /boot/loader.conf and /etc/rc.conf.
package sysconf

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"netpilot/internal/pkg/conffile"
	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"
	"netpilot/internal/types"
)

const (
	defaultFileMode   = 0644
	backupDirMode     = 0755
	backupTimeLayout  = "20060102_150405"
	backupNameSuffix  = ".backup"
	backupAttempts    = 10
	tempPatternSuffix = ".netpilot-*"
)

var errStale = errors.New("file changed since the change set was computed")

// ChangeSet is the list of entries a transaction appends to one file.
// Digest identifies the file content the set was computed against;
// BackupPath is set only once a backup has actually been written.
type ChangeSet struct {
	Target     types.Target
	Path       string
	Additions  []types.ConfigEntry
	Desired    int
	Satisfied  int
	Digest     string
	BackupPath string
}

// HasChanges reports whether applying the set would modify the file.
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Additions) > 0
}

// Added returns the number of entries to append.
func (cs *ChangeSet) Added() int {
	return len(cs.Additions)
}

// ApplyOptions controls Commit.
type ApplyOptions struct {
	// ForceBackup writes a backup even when the change set is empty
	ForceBackup bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for backup names and block headers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager computes and applies change sets. One Manager is one session:
// each target file is backed up at most once, before its first
// modification, and that backup is never overwritten.
type Manager struct {
	fileMgr   port.FileManager
	backupDir string
	now       func() time.Time
	backups   map[string]string
}

// NewManager creates a transaction manager writing backups to backupDir.
func NewManager(fileMgr port.FileManager, backupDir string, opts ...Option) *Manager {
	m := &Manager{
		fileMgr:   fileMgr,
		backupDir: backupDir,
		now:       time.Now,
		backups:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan computes the change set for path without touching the file system.
// A desired key is satisfied when any line of the file already defines it;
// only wholly absent keys are added. Repeated desired keys collapse to the
// first occurrence.
func (m *Manager) Plan(target types.Target, path string, desired []types.ConfigEntry) (*ChangeSet, error) {
	content, err := m.read(path)
	if err != nil {
		return nil, err
	}
	doc := conffile.Parse(content)

	cs := &ChangeSet{
		Target: target,
		Path:   path,
		Digest: digest(content),
	}

	seen := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		if _, dup := seen[e.Key]; dup {
			continue
		}
		seen[e.Key] = struct{}{}
		cs.Desired++

		if doc.Has(e.Key) {
			cs.Satisfied++
			continue
		}
		e.Target = target
		e.Managed = true
		cs.Additions = append(cs.Additions, e)
	}

	return cs, nil
}

// Apply plans and commits in one step.
func (m *Manager) Apply(target types.Target, path string, desired []types.ConfigEntry, opts ApplyOptions) (*ChangeSet, error) {
	cs, err := m.Plan(target, path, desired)
	if err != nil {
		return nil, err
	}
	return m.Commit(cs, opts)
}

// Commit applies a change set computed by Plan. The current file is backed
// up first, the new content is written to a synced temporary file in the
// same directory, and the temporary file is renamed over the target. If any
// step fails the target keeps its previous content.
//
// A change set whose digest no longer matches the file is refused.
func (m *Manager) Commit(cs *ChangeSet, opts ApplyOptions) (*ChangeSet, error) {
	logger := logging.WithComponent("sysconf").WithField("file", cs.Path)
	applied := *cs

	if !cs.HasChanges() && !opts.ForceBackup {
		logger.Debug("Configuration already up to date, skipping")
		return &applied, nil
	}

	exists := m.fileMgr.FileExists(cs.Path)
	content, err := m.read(cs.Path)
	if err != nil {
		return nil, err
	}
	if digest(content) != cs.Digest {
		return nil, &types.ConfigWriteError{Path: cs.Path, Op: "verify", Err: errStale}
	}

	perm := defaultFileMode
	if exists {
		if perm, err = m.fileMgr.FileMode(cs.Path); err != nil {
			return nil, &types.ConfigWriteError{Path: cs.Path, Op: "stat", Err: err}
		}

		backup, err := m.backup(cs.Path, content, perm)
		if err != nil {
			return nil, err
		}
		applied.BackupPath = backup
	}

	if !cs.HasChanges() {
		logger.WithField("backup", applied.BackupPath).Info("Backup created, no changes to apply")
		return &applied, nil
	}

	newContent := conffile.Parse(content).Append(cs.Additions, m.now())

	dir := filepath.Dir(cs.Path)
	tmp, err := m.fileMgr.WriteTemp(dir, "."+filepath.Base(cs.Path)+tempPatternSuffix, newContent, perm)
	if err != nil {
		return nil, &types.ConfigWriteError{Path: cs.Path, Op: "write", Err: err}
	}

	if err := m.fileMgr.Rename(tmp, cs.Path); err != nil {
		if rmErr := m.fileMgr.Remove(tmp); rmErr != nil {
			logger.WithError(rmErr).WithField("temp_file", tmp).Warn("Failed to remove temporary file")
		}
		return nil, &types.ConfigWriteError{Path: cs.Path, Op: "replace", Err: err}
	}

	logger.WithFields(map[string]interface{}{
		"added":  cs.Added(),
		"backup": applied.BackupPath,
	}).Info("Updated configuration file")
	return &applied, nil
}

// Document parses the current content of path. A missing file is empty.
func (m *Manager) Document(path string) (*conffile.Document, error) {
	content, err := m.read(path)
	if err != nil {
		return nil, err
	}
	return conffile.Parse(content), nil
}

// Backups returns the backups written in this session keyed by target path.
func (m *Manager) Backups() map[string]string {
	out := make(map[string]string, len(m.backups))
	for k, v := range m.backups {
		out[k] = v
	}
	return out
}

func (m *Manager) read(path string) ([]byte, error) {
	if !m.fileMgr.FileExists(path) {
		return nil, nil
	}
	content, err := m.fileMgr.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigWriteError{Path: path, Op: "read", Err: err}
	}
	return content, nil
}

func (m *Manager) backup(path string, content []byte, perm int) (string, error) {
	if existing, ok := m.backups[path]; ok {
		return existing, nil
	}

	stamp := fmt.Sprintf("%s.%s", filepath.Base(path), m.now().Format(backupTimeLayout))
	backupPath := filepath.Join(m.backupDir, stamp+backupNameSuffix)

	if err := m.fileMgr.MkdirAll(m.backupDir, backupDirMode); err != nil {
		return "", &types.BackupError{Path: path, Backup: backupPath, Err: err}
	}

	// Runs started within the same second get a numbered name.
	var err error
	for n := 0; n < backupAttempts; n++ {
		if n > 0 {
			backupPath = filepath.Join(m.backupDir, fmt.Sprintf("%s_%d%s", stamp, n, backupNameSuffix))
		}
		err = m.fileMgr.CreateExclusive(backupPath, content, perm)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", &types.BackupError{Path: path, Backup: backupPath, Err: err}
		}
	}
	if err != nil {
		return "", &types.BackupError{Path: path, Backup: backupPath, Err: err}
	}

	m.backups[path] = backupPath
	logging.WithComponent("sysconf").WithField("backup", backupPath).Info("Created backup")
	return backupPath, nil
}

func digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
