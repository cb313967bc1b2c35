package packer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"bakery/pkg/machine"
)

// Driver invokes packer and feeds its machine-readable stream into a
// session. One Driver can run any number of invocations.
type Driver struct {
	// Executable is the path to the packer binary. Empty means look it up in
	// PATH.
	Executable string

	// Timeout bounds one invocation. Zero means no timeout. On expiry the
	// process is killed and the partial Output accumulated so far is
	// returned.
	Timeout time.Duration

	// Sink optionally receives every raw stdout line verbatim, for live
	// display. It must not block; a slow sink is the sink's problem, never
	// the aggregation path's.
	Sink io.Writer

	// SampleStats enables periodic resource-usage logging for the child
	// process. Useful for long builds.
	SampleStats bool
}

// outputLine is one line read from the child, tagged with its stream so a
// single consumer can keep the combined output ordered.
type outputLine struct {
	stream string
	text   string
}

// Run invokes one packer command and folds its output through the given
// aggregator. The returned error covers only invocation problems (executable
// missing, pipes); a failing build is not an error, it is an unsuccessful
// Output.
func (d *Driver) Run(ctx context.Context, agg machine.Aggregator, command, template string, opts Options) (machine.Output, error) {
	path, err := LookPath(d.Executable)
	if err != nil {
		return nil, err
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	args := Args(command, template, opts)
	cmd := exec.CommandContext(ctx, path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	slog.Debug("packer started", "path", path, "command", command, "pid", cmd.Process.Pid)

	if d.SampleStats {
		go sampleStats(ctx, cmd.Process.Pid)
	}

	// Both streams are scanned line by line into one channel so that a
	// single consumer drives the session. The session itself is strictly
	// sequential: one line to completion before the next.
	lines := make(chan outputLine, 100)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(stdout, "stdout", lines, &wg)
	go scanLines(stderr, "stderr", lines, &wg)
	go func() {
		wg.Wait()
		close(lines)
	}()

	session := machine.NewSession(agg, machine.WithSink(d.Sink))
	var combined, stdoutOnly bytes.Buffer
	consume := func(line outputLine) {
		combined.WriteString(line.text)
		combined.WriteByte('\n')
		if line.stream == "stdout" {
			stdoutOnly.WriteString(line.text)
			stdoutOnly.WriteByte('\n')
			session.Feed(line.text)
		}
	}

	// The loop must not wait for pipe EOF on cancellation: the kill reaches
	// only the direct child, and a grandchild (Packer runs its plugins as
	// subprocesses) can keep the pipes open long after the deadline. On
	// ctx.Done we stop consuming and finalize with whatever arrived.
	early := false
loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			consume(line)
		case <-ctx.Done():
			early = true
			break loop
		}
	}

	exitStatus := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitStatus = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("waiting for %s: %w", path, err)
		}
	}
	if early {
		slog.Warn("packer terminated early", "command", command, "reason", ctx.Err())
		// Wait has closed the pipes, so the scanners are unblocked and the
		// channel will close; keep any lines they had already read.
		for line := range lines {
			consume(line)
		}
	}
	slog.Debug("packer exited", "command", command, "exitStatus", exitStatus,
		"decodeErrors", len(session.DecodeErrors()))

	raw := combined.String()
	if command == CommandFix && exitStatus == 0 {
		// The rewritten template is stdout verbatim; stderr must not leak into it.
		raw = stdoutOnly.String()
	}
	return session.Finalize(exitStatus, raw), nil
}

func scanLines(r io.Reader, stream string, lines chan<- outputLine, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines <- outputLine{stream: stream, text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		// Wait closes the pipes after a kill; that is not worth a warning.
		slog.Warn("reading packer output failed", "stream", stream, "error", err)
	}
}

// NewSession is exposed for callers that deliver lines themselves instead of
// letting the driver run the process.
func (d *Driver) NewSession(agg machine.Aggregator) *machine.Session {
	return machine.NewSession(agg, machine.WithSink(d.Sink))
}

// Build runs packer build against the template.
func (d *Driver) Build(ctx context.Context, template string, opts Options) (*machine.BuildOutput, error) {
	out, err := d.Run(ctx, machine.NewBuildAggregator(), CommandBuild, template, opts)
	if err != nil {
		return nil, err
	}
	return out.(*machine.BuildOutput), nil
}

// Validate runs packer validate against the template.
func (d *Driver) Validate(ctx context.Context, template string, opts Options) (*machine.ValidateOutput, error) {
	out, err := d.Run(ctx, machine.NewValidateAggregator(), CommandValidate, template, opts)
	if err != nil {
		return nil, err
	}
	return out.(*machine.ValidateOutput), nil
}

// Push runs packer push against the template.
func (d *Driver) Push(ctx context.Context, template string, opts Options) (*machine.PushOutput, error) {
	out, err := d.Run(ctx, machine.NewPushAggregator(), CommandPush, template, opts)
	if err != nil {
		return nil, err
	}
	return out.(*machine.PushOutput), nil
}

// Fix runs packer fix and captures the rewritten template.
func (d *Driver) Fix(ctx context.Context, template string) (*machine.FixOutput, error) {
	out, err := d.Run(ctx, machine.NewFixAggregator(), CommandFix, template, Options{})
	if err != nil {
		return nil, err
	}
	return out.(*machine.FixOutput), nil
}

// Inspect runs packer inspect against the template.
func (d *Driver) Inspect(ctx context.Context, template string) (*machine.InspectOutput, error) {
	out, err := d.Run(ctx, machine.NewInspectAggregator(), CommandInspect, template, Options{})
	if err != nil {
		return nil, err
	}
	return out.(*machine.InspectOutput), nil
}

// Version reports the packer version.
func (d *Driver) Version(ctx context.Context) (*machine.VersionOutput, error) {
	out, err := d.Run(ctx, machine.NewVersionAggregator(), CommandVersion, "", Options{})
	if err != nil {
		return nil, err
	}
	return out.(*machine.VersionOutput), nil
}
