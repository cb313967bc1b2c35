package packer

import (
	"fmt"
	"os/exec"
	"sort"
)

// DefaultExecutable is the packer binary name looked up in PATH when no
// explicit path is configured.
const DefaultExecutable = "packer"

// Command names accepted by the driver.
const (
	CommandBuild    = "build"
	CommandValidate = "validate"
	CommandPush     = "push"
	CommandFix      = "fix"
	CommandInspect  = "inspect"
	CommandVersion  = "version"
)

// Options configures how the packer command line is built.
type Options struct {
	// Vars are -var name=value assignments passed to the template.
	Vars map[string]string

	// VarFile is an optional -var-file path.
	VarFile string

	// Only restricts a build to the named builders.
	Only []string

	// Except skips the named builders during a build.
	Except []string

	// Force passes -force to build, overwriting existing artifacts.
	Force bool

	// SyntaxOnly passes -syntax-only to validate.
	SyntaxOnly bool
}

// Args builds the argument list for one packer invocation. It returns a
// structured slice suitable for exec.Command; values are never interpolated
// into a shell string, so variable contents cannot inject extra arguments.
//
// Every command except fix runs with -machine-readable: fix emits the
// rewritten template on stdout and wrapping it in machine-readable records
// would destroy it.
//
// Example command:
//
//	packer build -machine-readable -force -only=docker -var region=us-east-1 template.json
func Args(command, template string, opts Options) []string {
	args := []string{command}

	if command != CommandFix {
		args = append(args, "-machine-readable")
	}

	switch command {
	case CommandBuild:
		if opts.Force {
			args = append(args, "-force")
		}
		for _, only := range opts.Only {
			args = append(args, "-only="+only)
		}
		for _, except := range opts.Except {
			args = append(args, "-except="+except)
		}
	case CommandValidate:
		if opts.SyntaxOnly {
			args = append(args, "-syntax-only")
		}
	}

	switch command {
	case CommandBuild, CommandValidate, CommandPush:
		if opts.VarFile != "" {
			args = append(args, "-var-file="+opts.VarFile)
		}
		// Sorted so the argument list is deterministic.
		names := make([]string, 0, len(opts.Vars))
		for name := range opts.Vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			args = append(args, "-var", fmt.Sprintf("%s=%s", name, opts.Vars[name]))
		}
	}

	if template != "" {
		args = append(args, template)
	}

	return args
}

// Available reports whether the packer executable can be found in the system
// PATH.
func Available() bool {
	_, err := exec.LookPath(DefaultExecutable)
	return err == nil
}

// LookPath resolves the packer executable. An explicit path is returned as
// given; an empty path falls back to a PATH lookup of the default name.
func LookPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	resolved, err := exec.LookPath(DefaultExecutable)
	if err != nil {
		return "", fmt.Errorf("packer executable not found: %w", err)
	}
	return resolved, nil
}
