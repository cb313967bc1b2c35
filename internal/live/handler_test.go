package live

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServe_BusyPortFailsUpFront(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	_, err = Serve(ln.Addr().String(), NewHub())
	require.Error(t, err)
}

func TestServe_BindsAndShutsDown(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", NewHub())
	require.NoError(t, err)
	require.NoError(t, srv.Close())
}
