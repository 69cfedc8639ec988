package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceBroadcaster_Connect(t *testing.T) {
	reg := NewRegistry(WithRegistryLogger(discardLogger()))
	NewPresenceBroadcaster(reg, discardLogger())

	a1 := newFakeConn("a1")
	_, err := reg.Register(alice, a1)
	require.NoError(t, err)

	assert.Equal(t, []string{EventUsersOnline}, a1.names(), "the joining identity gets the snapshot, not its own join notice")
	assert.Equal(t, PresenceSnapshot{alice}, decodeData[PresenceSnapshot](a1.events(EventUsersOnline)[0]))

	b1 := newFakeConn("b1")
	_, err = reg.Register(bob, b1)
	require.NoError(t, err)

	assert.Equal(t, []string{EventUsersOnline, EventUsersOnline, EventUserJoined}, a1.names())
	joined := decodeData[UserJoinedPayload](a1.events(EventUserJoined)[0])
	assert.Equal(t, UserJoinedPayload{UserID: bob.UserID, Username: bob.Username}, joined)
	assert.Equal(t, PresenceSnapshot{alice, bob}, decodeData[PresenceSnapshot](b1.events(EventUsersOnline)[0]))
}

func TestPresenceBroadcaster_SecondDeviceIsSilent(t *testing.T) {
	reg := NewRegistry(WithRegistryLogger(discardLogger()))
	NewPresenceBroadcaster(reg, discardLogger())

	a1 := newFakeConn("a1")
	b1 := newFakeConn("b1")
	_, _ = reg.Register(alice, a1)
	_, _ = reg.Register(bob, b1)
	a1.reset()
	b1.reset()

	_, err := reg.Register(bob, newFakeConn("b2"))
	require.NoError(t, err)
	_, err = reg.Deregister("b2")
	require.NoError(t, err)

	assert.Empty(t, a1.all())
	assert.Empty(t, b1.all())
}

func TestPresenceBroadcaster_LastDisconnect(t *testing.T) {
	reg := NewRegistry(WithRegistryLogger(discardLogger()))
	NewPresenceBroadcaster(reg, discardLogger())

	a1 := newFakeConn("a1")
	b1 := newFakeConn("b1")
	_, _ = reg.Register(alice, a1)
	_, _ = reg.Register(bob, b1)
	b1.reset()

	offline, err := reg.Deregister("a1")
	require.NoError(t, err)
	assert.True(t, offline)
	assert.False(t, reg.IsOnline(alice.UserID))

	assert.Equal(t, []string{EventUsersOnline, EventUserLeft}, b1.names())
	assert.Equal(t, PresenceSnapshot{bob}, decodeData[PresenceSnapshot](b1.events(EventUsersOnline)[0]))
	left := decodeData[UserLeftPayload](b1.events(EventUserLeft)[0])
	assert.Equal(t, alice.UserID, left.UserID)
	assert.Equal(t, alice.Username, left.Username)
	assert.False(t, left.LastSeen.IsZero())
}

func TestPresenceBroadcaster_OnRegistryChangeReturnsSnapshot(t *testing.T) {
	reg := NewRegistry(WithRegistryLogger(discardLogger()))
	b := NewPresenceBroadcaster(reg, discardLogger())
	_, _ = reg.Register(alice, newFakeConn("a1"))

	snapshot := b.OnRegistryChange(PresenceChange{Identity: alice, Online: true})
	assert.Equal(t, PresenceSnapshot{alice}, snapshot)
}

func TestPresenceBroadcaster_SendSnapshot(t *testing.T) {
	reg := NewRegistry(WithRegistryLogger(discardLogger()))
	b := NewPresenceBroadcaster(reg, discardLogger())
	_, _ = reg.Register(alice, newFakeConn("a1"))

	late := newFakeConn("late")
	b.SendSnapshot(late)
	require.Len(t, late.all(), 1)
	assert.Equal(t, PresenceSnapshot{alice}, decodeData[PresenceSnapshot](late.all()[0]))
}
