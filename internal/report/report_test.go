package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bakery/pkg/machine"
)

func buildOutput() *machine.BuildOutput {
	s := machine.NewSession(machine.NewBuildAggregator())
	s.Feed("1609459200,docker,artifact,0,id-123,/out/image.tar")
	s.Feed("1609459201,qemu,error,qemu-img exited 1")
	return s.Finalize(1, "").(*machine.BuildOutput)
}

func TestRender_Build(t *testing.T) {
	md := Render(buildOutput())

	require.Contains(t, md, "# Build report")
	require.Contains(t, md, "**Status: failed** (exit status 1)")
	require.Contains(t, md, "id-123")
	require.Contains(t, md, "/out/image.tar")
	require.Contains(t, md, "qemu-img exited 1")
}

func TestRender_Version(t *testing.T) {
	s := machine.NewSession(machine.NewVersionAggregator())
	s.Feed("1609459200,,version,1.9.4")
	out := s.Finalize(0, "")

	require.Contains(t, Render(out), "1.9.4")
}

func TestRender_FixFailureIncludesErrorText(t *testing.T) {
	s := machine.NewSession(machine.NewFixAggregator())
	out := s.Finalize(1, "Error: unknown fixer 'hvm'")

	md := Render(out)

	require.Contains(t, md, "# Fix report")
	require.Contains(t, md, "**Status: failed** (exit status 1)")
	require.Contains(t, md, "Error: unknown fixer 'hvm'")
}

func TestRenderHTML_SanitizesErrorText(t *testing.T) {
	s := machine.NewSession(machine.NewValidateAggregator())
	s.Feed("1609459200,,error,<script>alert(1)</script> bad template")
	out := s.Finalize(1, "")

	html := RenderHTML(out)

	require.NotContains(t, html, "<script>")
	require.Contains(t, html, "bad template")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")

	err := WriteFile(path, buildOutput())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if !strings.Contains(string(data), "id-123") {
		t.Fatalf("report does not mention the artifact: %s", data)
	}
}
