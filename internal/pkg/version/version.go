package version

import "runtime/debug"

// Set at link time, e.g.
//
//	go build -ldflags "-X netpilot/internal/pkg/version.tag=v1.2.0"
var (
	tag    = "none"
	commit = ""
)

type gitInfo struct {
	Commit    string
	Tag       string
	Dirty     bool
	GoVersion string
}

// GetGitInfo returns git metadata embedded in the binary. Values not set
// through ldflags are taken from the build's VCS stamp.
func GetGitInfo() gitInfo {
	info := gitInfo{
		Commit: commit,
		Tag:    tag,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}
