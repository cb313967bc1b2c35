package live

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	h := NewHub()
	client := &Client{
		ID:    "c1",
		Lines: make(chan string, 10),
		Done:  make(chan struct{}),
	}
	h.Register(client)

	h.Broadcast("1609459200,docker,ui,say,starting")

	select {
	case line := <-client.Lines:
		require.Equal(t, "1609459200,docker,ui,say,starting", line)
	default:
		t.Fatal("expected a line on the client channel")
	}
}

func TestHub_SaturatedSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	client := &Client{
		ID:    "slow",
		Lines: make(chan string, 1),
		Done:  make(chan struct{}),
	}
	h.Register(client)

	// Second broadcast must be dropped, not block.
	h.Broadcast("line 1")
	h.Broadcast("line 2")

	require.Equal(t, "line 1", <-client.Lines)
	select {
	case line := <-client.Lines:
		t.Fatalf("expected line 2 to be dropped, got %q", line)
	default:
	}
}

func TestHub_WriteAdaptsToSink(t *testing.T) {
	h := NewHub()
	client := &Client{
		ID:    "c1",
		Lines: make(chan string, 10),
		Done:  make(chan struct{}),
	}
	h.Register(client)

	n, err := h.Write([]byte("1609459200,,version,1.9.4\n"))
	require.NoError(t, err)
	require.Equal(t, 26, n)
	require.Equal(t, "1609459200,,version,1.9.4", <-client.Lines)
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	h := NewHub()
	client := &Client{
		ID:    "c1",
		Lines: make(chan string, 10),
		Done:  make(chan struct{}),
	}
	h.Register(client)
	h.Unregister("c1")

	h.Broadcast("line")

	select {
	case line := <-client.Lines:
		t.Fatalf("unregistered client received %q", line)
	default:
	}
}
