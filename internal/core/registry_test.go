package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/core"
)

type nopSender struct{}

func (nopSender) TrySend([]byte) error { return nil }
func (nopSender) Close()               {}

func TestConnRegistryRoundTrip(t *testing.T) {
	reg := core.NewConnRegistry()
	canceled := false
	reg.Bind("c1", nopSender{}, func() { canceled = true })

	_, ok := reg.RoomOf("c1")
	assert.False(t, ok, "no room before SetRoom")

	require.True(t, reg.SetRoom("c1", "r1"))
	roomID, ok := reg.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, "r1", string(roomID))

	s, ok := reg.SenderOf("c1")
	require.True(t, ok)
	assert.NotNil(t, s)

	reg.ClearRoom("c1")
	_, ok = reg.RoomOf("c1")
	assert.False(t, ok)
	_, ok = reg.SenderOf("c1")
	assert.True(t, ok, "clearing the room keeps the connection")

	reg.Unbind("c1")
	assert.True(t, canceled, "unbind cancels the connection context")
	_, ok = reg.SenderOf("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestConnRegistrySetRoomUnknownConn(t *testing.T) {
	reg := core.NewConnRegistry()
	assert.False(t, reg.SetRoom("ghost", "r1"))
}
