package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nearbylink/session/statusbus"
)

func newRegisteredSession(t *testing.T, hub *statusbus.Hub) *Session {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })
	local := LocalEndpoint{ID: [4]byte{1, 2, 3, 4}, Name: "peer", DeviceType: DeviceTypePhone}
	return NewOutbound(clientConn, local, [4]byte{5, 6, 7, 8}, hub)
}

func TestManagerRegisterGetUnregister(t *testing.T) {
	hub := statusbus.NewHub()
	m := NewManager()
	defer m.Close()

	s := newRegisteredSession(t, hub)
	m.Register(s)

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	require.Same(t, s, got)
	require.Contains(t, m.List(), s.ID())

	m.Unregister(s.ID())
	_, ok = m.Get(s.ID())
	require.False(t, ok)
}

func TestManagerStatsCountsOnlyNonTerminatedAsActive(t *testing.T) {
	hub := statusbus.NewHub()
	m := NewManager()
	defer m.Close()

	live := newRegisteredSession(t, hub)
	m.Register(live)

	terminated := newRegisteredSession(t, hub)
	terminated.state.Phase = PhaseTerminated
	m.Register(terminated)

	stats := m.Stats()
	require.Equal(t, 2, stats.TotalSessions)
	require.Equal(t, 1, stats.ActiveSessions)
}

func TestManagerGetUnknownIDReturnsFalse(t *testing.T) {
	m := NewManager()
	defer m.Close()

	_, ok := m.Get("does-not-exist")
	require.False(t, ok)
}
