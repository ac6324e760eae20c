package domain_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/huddlehq/huddle/internal/domain"
)

func TestNewParticipantDefaultsToGuest(t *testing.T) {
	p := domain.NewParticipant("c1", "")
	assert.Equal(t, domain.GuestName, p.DisplayName)
	assert.False(t, p.Admitted)
}

func TestNewParticipantTruncatesLongNames(t *testing.T) {
	p := domain.NewParticipant("c1", strings.Repeat("x", 100))
	assert.Len(t, p.DisplayName, domain.MaxDisplayNameLen)
}

func TestNewParticipantTruncatesOnRuneBoundary(t *testing.T) {
	// 35 ASCII bytes followed by a multi-byte rune straddling the limit.
	name := strings.Repeat("x", domain.MaxDisplayNameLen-1) + "é"
	p := domain.NewParticipant("c1", name)

	assert.True(t, utf8.ValidString(p.DisplayName))
	assert.Equal(t, strings.Repeat("x", domain.MaxDisplayNameLen-1), p.DisplayName)
}

func TestValidateRoomID(t *testing.T) {
	assert.ErrorIs(t, domain.ValidateRoomID(""), domain.ErrRoomIDRequired)
	assert.ErrorIs(t, domain.ValidateRoomID(domain.RoomID(strings.Repeat("r", domain.MaxRoomIDLen+1))), domain.ErrRoomIDTooLong)
	assert.NoError(t, domain.ValidateRoomID("standup"))
}
