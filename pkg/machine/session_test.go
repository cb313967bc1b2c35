package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_SinkReceivesRawLinesVerbatim(t *testing.T) {
	var sink bytes.Buffer
	s := NewSession(NewBuildAggregator(), WithSink(&sink))

	s.Feed("1609459200,docker,ui,say,starting")
	s.Feed(`malformed line with trailing backslash\`)

	// The sink sees every line, including ones that fail to decode.
	require.Equal(t, "1609459200,docker,ui,say,starting\nmalformed line with trailing backslash\\\n", sink.String())
}

func TestSession_DecodeErrorDoesNotAbort(t *testing.T) {
	s := NewSession(NewBuildAggregator())

	s.Feed("1609459200,docker,artifact,0,id-1,/out/a%!(PACKER_COMMA")
	s.Feed("1609459200,docker,artifact,0,id-2,/out/b.tar")

	errs := s.DecodeErrors()
	require.Len(t, errs, 1)
	require.Equal(t, 1, errs[0].Line)
	require.ErrorIs(t, errs[0].Err, ErrUnterminatedEscape)

	out := s.Finalize(0, "").(*BuildOutput)
	require.True(t, out.Success)
	require.Len(t, out.Artifacts["docker"], 1)
	require.Equal(t, "id-2", out.Artifacts["docker"][0].ID)
	require.Len(t, out.DecodeErrors, 1)
}

func TestSession_FinalizeWithoutLinesIsEmptySuccess(t *testing.T) {
	s := NewSession(NewBuildAggregator())

	out := s.Finalize(0, "").(*BuildOutput)

	require.True(t, out.Success)
	require.Equal(t, 0, out.ExitStatus)
	require.Empty(t, out.Artifacts)
	require.Empty(t, out.Errors)
	require.Empty(t, out.DecodeErrors)
}

func TestSession_DemuxFollowsFeedOrder(t *testing.T) {
	s := NewSession(NewBuildAggregator())

	s.Feed("1,a,ui,say,1")
	s.Feed("2,b,ui,say,2")
	s.Feed("3,a,ui,say,3")

	d := s.Demux()
	require.Equal(t, []string{"a", "b"}, d.Targets())
	require.Len(t, d.Target("a"), 2)
	require.Len(t, d.Target("b"), 1)
}

// A sink that fails must not affect aggregation.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, bytes.ErrTooLarge
}

func TestSession_FailingSinkIsIgnored(t *testing.T) {
	s := NewSession(NewVersionAggregator(), WithSink(failingWriter{}))

	s.Feed("1609459200,,version,1.9.4")

	out := s.Finalize(0, "").(*VersionOutput)
	require.Equal(t, "1.9.4", out.Version)
}
