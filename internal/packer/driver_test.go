package packer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePacker writes a shell script standing in for the packer binary.
func fakePacker(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packer")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755)
	require.NoError(t, err)
	return path
}

func TestDriver_Build(t *testing.T) {
	d := &Driver{Executable: fakePacker(t, `
echo "1609459200,docker,ui,say,Build 'docker' starting"
echo "1609459205,docker,artifact,0,id-123,/out/image.tar"
`)}

	out, err := d.Build(context.Background(), "template.json", Options{})
	require.NoError(t, err)

	require.True(t, out.Success)
	require.Equal(t, []string{"docker"}, out.Targets)
	require.Len(t, out.Artifacts["docker"], 1)
	require.Equal(t, "id-123", out.Artifacts["docker"][0].ID)
	require.Equal(t, []string{"/out/image.tar"}, out.Artifacts["docker"][0].Files)
}

func TestDriver_ValidateFailure(t *testing.T) {
	d := &Driver{Executable: fakePacker(t, `
echo "1609459200,,error,template: missing required key 'source'"
exit 1
`)}

	out, err := d.Validate(context.Background(), "template.json", Options{})
	require.NoError(t, err)

	require.False(t, out.Success)
	require.Equal(t, 1, out.ExitStatus)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "template: missing required key 'source'", out.Errors[0].Message)
}

func TestDriver_Version(t *testing.T) {
	d := &Driver{Executable: fakePacker(t, `echo "1609459200,,version,1.9.4"`)}

	out, err := d.Version(context.Background())
	require.NoError(t, err)

	require.True(t, out.Success)
	require.Equal(t, "1.9.4", out.Version)
}

func TestDriver_FixCapturesStdoutOnly(t *testing.T) {
	d := &Driver{Executable: fakePacker(t, `
echo "warning: deprecated fixer" >&2
printf '{\n  "builders": []\n}\n'
`)}

	out, err := d.Fix(context.Background(), "template.json")
	require.NoError(t, err)

	require.True(t, out.Success)
	require.Equal(t, "{\n  \"builders\": []\n}\n", out.Template)
}

func TestDriver_SinkReceivesRawLines(t *testing.T) {
	var sink bytes.Buffer
	d := &Driver{
		Executable: fakePacker(t, `echo "1609459200,,version,1.9.4"`),
		Sink:       &sink,
	}

	_, err := d.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1609459200,,version,1.9.4\n", sink.String())
}

func TestDriver_TimeoutReturnsPartialOutput(t *testing.T) {
	// The sleep is a grandchild of the driver and inherits the pipes, so only
	// the direct child dies at the deadline. The driver must still finalize
	// at the deadline instead of waiting for pipe EOF.
	d := &Driver{
		Executable: fakePacker(t, `
echo "1609459205,docker,artifact,0,id-123,/out/image.tar"
sleep 30
`),
		Timeout: 2 * time.Second,
	}

	start := time.Now()
	out, err := d.Build(context.Background(), "template.json", Options{})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)

	// Killed, so the run failed, but the artifact seen before the kill is kept.
	require.False(t, out.Success)
	require.Len(t, out.Artifacts["docker"], 1)
}

func TestDriver_CancelFinalizesPartialOutput(t *testing.T) {
	d := &Driver{Executable: fakePacker(t, `
echo "1609459205,docker,artifact,0,id-123,/out/image.tar"
sleep 30
`)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(500*time.Millisecond, cancel)

	start := time.Now()
	out, err := d.Build(ctx, "template.json", Options{})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)

	require.False(t, out.Success)
	require.Len(t, out.Artifacts["docker"], 1)
}

func TestDriver_MissingExecutable(t *testing.T) {
	d := &Driver{Executable: ""}
	t.Setenv("PATH", t.TempDir())

	_, err := d.Build(context.Background(), "template.json", Options{})
	require.Error(t, err)
}
