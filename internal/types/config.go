package types

import "fmt"

// Target identifies one of the two system files NetPilot manages.
type Target int

const (
	TargetLoaderConf Target = iota + 1
	TargetRCConf
)

// String returns the conventional file name of the target.
func (t Target) String() string {
	switch t {
	case TargetLoaderConf:
		return "loader.conf"
	case TargetRCConf:
		return "rc.conf"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// ConfigEntry is one key="value" line for a target file. Managed marks
// lines owned by NetPilot, as opposed to pre-existing user content.
type ConfigEntry struct {
	Target  Target `json:"target" yaml:"target"`
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
	Managed bool   `json:"managed" yaml:"managed"`
}

// Line renders the entry in rc(8) shell-variable form.
func (e ConfigEntry) Line() string {
	return fmt.Sprintf("%s=\"%s\"", e.Key, e.Value)
}
