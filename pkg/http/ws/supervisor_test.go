package ws

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorKeepsResponsivePeer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	_, client := dialTestSocket(t, hub)
	go readLoop(client) // gorilla answers pings with pongs while reading

	sup := NewSupervisor(hub, 25*time.Millisecond, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, hub.Len(), "responsive peer must survive repeated sweeps")
}

func TestSupervisorClosesUnresponsivePeer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	_, responsive := dialTestSocket(t, hub)
	go readLoop(responsive)

	dialTestSocket(t, hub) // second client never reads, so it never pongs

	sup := NewSupervisor(hub, 25*time.Millisecond, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	// First sweep probes the silent peer, second one terminates it.
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, hub.Len(), "responsive peer still alive")
}

func TestSupervisorStopsAtUptimeCeiling(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	_, client := dialTestSocket(t, hub)
	go readLoop(client)

	sup := NewSupervisor(hub, 20*time.Millisecond, 60*time.Millisecond, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err, "ceiling shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never hit the uptime ceiling")
	}

	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSupervisorHonorsContextCancel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sup := NewSupervisor(hub, 10*time.Millisecond, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
}
