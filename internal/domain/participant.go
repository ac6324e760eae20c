// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"unicode/utf8"
)

const (
	MaxRoomIDLen      = 64
	MaxDisplayNameLen = 36

	// GuestName is the advisory fallback identity; the auth collaborator
	// is not required to supply a real name.
	GuestName = "guest"
)

var (
	ErrRoomIDRequired = errors.New("room id required")
	ErrRoomIDTooLong  = errors.New("room id too long")
)

// ConnID is the transport-assigned identity of one live connection.
// It is opaque, unique for the connection's lifetime and never reused.
type ConnID string

type RoomID string

// Participant is one connection's presence inside a single room.
// Admitted stays false while the participant waits in the lobby.
type Participant struct {
	ConnID      ConnID `json:"id"`
	DisplayName string `json:"username"`
	MicOn       bool   `json:"micOn"`
	CamOn       bool   `json:"camOn"`
	HandRaised  bool   `json:"handRaised"`
	Admitted    bool   `json:"-"`
}

// NewParticipant avoids raw literals in callers and keeps the name bounds
// in one place.
func NewParticipant(id ConnID, displayName string) *Participant {
	if displayName == "" {
		displayName = GuestName
	}
	if len(displayName) > MaxDisplayNameLen {
		// Cut on a rune boundary; a split rune would marshal as U+FFFD.
		cut := MaxDisplayNameLen
		for cut > 0 && !utf8.RuneStart(displayName[cut]) {
			cut--
		}
		displayName = displayName[:cut]
	}
	return &Participant{ConnID: id, DisplayName: displayName}
}

func ValidateRoomID(id RoomID) error {
	if id == "" {
		return ErrRoomIDRequired
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}
