package types

// CommandResult is the captured outcome of an external command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports whether the command exited with status zero.
func (r CommandResult) OK() bool {
	return r.ExitCode == 0
}
